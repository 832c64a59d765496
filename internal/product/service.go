package product

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"

	"api-harness/internal/envelope"
	"api-harness/internal/notify"
	"api-harness/internal/observability"
)

const (
	maxNameLen          = 150
	defaultProbeTimeout = 10 * time.Second
)

type Service struct {
	catalog Catalog
	logger  *observability.Logger

	sender       notify.Sender
	probeTimeout time.Duration
}

func NewService(catalog Catalog, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Service{catalog: catalog, logger: logger, probeTimeout: defaultProbeTimeout}
}

// WithProber sends a best-effort request upstream on every operation,
// carrying the caller's bearer token.
func (s *Service) WithProber(sender notify.Sender, timeout time.Duration) *Service {
	s.sender = sender
	if timeout > 0 {
		s.probeTimeout = timeout
	}
	return s
}

func (s *Service) Detail(ctx context.Context, bearer, productID string) envelope.Response {
	s.probe(ctx, notify.Request{
		Method:      http.MethodGet,
		Path:        "/get",
		Params:      url.Values{"product_id": []string{productID}},
		BearerToken: bearer,
	})

	p, err := s.catalog.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			s.logger.Info("product_not_found", map[string]any{"product_id": productID})
			return envelope.Fail(http.StatusNotFound, "product not found")
		}
		return s.internal("product_get_failed", err)
	}

	resp := envelope.OK(p)
	switch p.Status {
	case StatusOutOfStock:
		resp.Msg = "success (out of stock)"
	case StatusOffSale:
		resp.Msg = "success (off sale)"
	}
	return resp
}

func (s *Service) List(ctx context.Context, bearer string) envelope.Response {
	s.probe(ctx, notify.Request{Method: http.MethodGet, Path: "/get", BearerToken: bearer})

	products, err := s.catalog.List(ctx)
	if err != nil {
		return s.internal("product_list_failed", err)
	}
	return envelope.OK(products)
}

func (s *Service) Create(ctx context.Context, bearer string, input ProductInput) envelope.Response {
	s.probe(ctx, notify.Request{
		Method:      http.MethodPost,
		Path:        "/post",
		Body:        map[string]any{"name": input.Name, "price": input.Price},
		BearerToken: bearer,
	})

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" || utf8.RuneCountInString(input.Name) > maxNameLen {
		return envelope.Fail(http.StatusBadRequest, "product name is invalid")
	}
	if input.Price < 0 {
		return envelope.Fail(http.StatusBadRequest, "price must be >= 0")
	}

	p, err := s.catalog.Create(ctx, input)
	if err != nil {
		return s.internal("product_create_failed", err)
	}

	s.logger.Info("product_created", map[string]any{"product_id": p.ProductID})
	return envelope.Created(p)
}

func (s *Service) probe(ctx context.Context, req notify.Request) {
	if s.sender == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	if _, err := s.sender.Send(ctx, req); err != nil {
		s.logger.Warn("product_probe_failed", map[string]any{"method": req.Method, "path": req.Path, "error": err.Error()})
	}
}

func (s *Service) internal(event string, err error) envelope.Response {
	s.logger.Error(event, map[string]any{"error": err.Error()})
	sentry.CaptureException(err)
	return envelope.Internal()
}
