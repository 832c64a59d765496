package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxResponseBytes = 1 << 20

// Request describes one outbound call. Path is joined to the client's base URL
// unless it is already absolute.
type Request struct {
	Method      string
	Path        string
	Body        any
	Params      url.Values
	BearerToken string
}

type Result struct {
	Status int
	Body   map[string]any
}

// Sender is the capability services depend on; Client is the HTTP variant.
type Sender interface {
	Send(ctx context.Context, req Request) (Result, error)
}

// StatusError reports a response outside 2xx.
type StatusError struct {
	Method string
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
}

type Client struct {
	baseURL    string
	headers    map[string]string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration, headers map[string]string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	copied := make(map[string]string, len(headers))
	for k, v := range headers {
		copied[k] = v
	}

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		headers: copied,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) Send(ctx context.Context, req Request) (Result, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolve(req.Path, req.Params)
	if err != nil {
		return Result{}, err
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return Result{}, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}
	if token := strings.TrimSpace(req.BearerToken); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("send %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	result := Result{Status: resp.StatusCode}
	var decodeErr error
	if len(bytes.TrimSpace(raw)) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			decodeErr = fmt.Errorf("decode response: %w", err)
		} else {
			result.Body = decoded
		}
	}

	// A non-2xx result still carries whatever body decoded.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &StatusError{Method: method, URL: target, Status: resp.StatusCode}
	}
	if decodeErr != nil {
		return result, decodeErr
	}

	return result, nil
}

func (c *Client) resolve(path string, params url.Values) (string, error) {
	path = strings.TrimSpace(path)
	var raw string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		raw = path
	} else {
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		raw = c.baseURL + path
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("request url must be absolute: %q", raw)
	}

	if len(params) > 0 {
		query := parsed.Query()
		for k, values := range params {
			for _, v := range values {
				query.Add(k, v)
			}
		}
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}
