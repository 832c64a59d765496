package scenario

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"api-harness/internal/auth"
	"api-harness/internal/envelope"
	"api-harness/internal/notify"
	"api-harness/internal/product"
)

type LoginTarget interface {
	Login(ctx context.Context, username, password string) (envelope.Response, error)
}

type ProductTarget interface {
	Detail(ctx context.Context, token, productID string) (envelope.Response, error)
	List(ctx context.Context, token string) (envelope.Response, error)
	Create(ctx context.Context, token string, input product.ProductInput) (envelope.Response, error)
}

// LocalTarget calls the services in-process.
type LocalTarget struct {
	Auth     *auth.Service
	Products *product.Service
}

func (t LocalTarget) Login(ctx context.Context, username, password string) (envelope.Response, error) {
	return t.Auth.Login(ctx, username, password), nil
}

func (t LocalTarget) Detail(ctx context.Context, token, productID string) (envelope.Response, error) {
	return t.Products.Detail(ctx, token, productID), nil
}

func (t LocalTarget) List(ctx context.Context, token string) (envelope.Response, error) {
	return t.Products.List(ctx, token), nil
}

func (t LocalTarget) Create(ctx context.Context, token string, input product.ProductInput) (envelope.Response, error) {
	return t.Products.Create(ctx, token, input), nil
}

// HTTPTarget calls a running server over the notify client.
type HTTPTarget struct {
	Sender notify.Sender
}

func (t HTTPTarget) Login(ctx context.Context, username, password string) (envelope.Response, error) {
	return t.call(ctx, notify.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"username": username, "password": password},
	})
}

func (t HTTPTarget) Detail(ctx context.Context, token, productID string) (envelope.Response, error) {
	return t.call(ctx, notify.Request{
		Method:      http.MethodGet,
		Path:        "/products/" + url.PathEscape(productID),
		BearerToken: token,
	})
}

func (t HTTPTarget) List(ctx context.Context, token string) (envelope.Response, error) {
	return t.call(ctx, notify.Request{Method: http.MethodGet, Path: "/products", BearerToken: token})
}

func (t HTTPTarget) Create(ctx context.Context, token string, input product.ProductInput) (envelope.Response, error) {
	return t.call(ctx, notify.Request{
		Method:      http.MethodPost,
		Path:        "/products",
		Body:        input,
		BearerToken: token,
	})
}

// call maps the decoded body back onto an envelope. Non-2xx statuses are
// expected outcomes here as long as the server answered with an envelope.
func (t HTTPTarget) call(ctx context.Context, req notify.Request) (envelope.Response, error) {
	result, err := t.Sender.Send(ctx, req)
	if err != nil {
		var statusErr *notify.StatusError
		if !errors.As(err, &statusErr) || result.Body == nil {
			return envelope.Response{}, err
		}
	}
	return fromBody(result), nil
}

func fromBody(result notify.Result) envelope.Response {
	resp := envelope.Response{Code: result.Status}
	if code, ok := result.Body["code"].(float64); ok {
		resp.Code = int(code)
	}
	if msg, ok := result.Body["msg"].(string); ok {
		resp.Msg = msg
	}
	resp.Data = result.Body["data"]
	return resp
}
