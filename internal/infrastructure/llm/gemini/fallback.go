package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

// Endpoint is one entry in the ordered fallback list.
type Endpoint struct {
	Name  string
	Model string
}

type caller interface {
	Generate(ctx context.Context, model string, req Request) (string, error)
}

// Chain tries endpoints in order. Each failure is classified once: retryable
// failures advance to the next endpoint, anything else aborts immediately
// with the remaining endpoints untouched. Exhausting the whole list yields
// domain.ErrChainExhausted so callers can degrade instead of failing.
type Chain struct {
	client    caller
	endpoints []Endpoint
	logger    *slog.Logger
}

func NewChain(client caller, endpoints []Endpoint, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{client: client, endpoints: endpoints, logger: logger}
}

// Generate returns the generated text and the name of the endpoint that
// served it.
func (c *Chain) Generate(ctx context.Context, stage string, req Request) (string, string, error) {
	if len(c.endpoints) == 0 {
		return "", "", domain.WrapError(domain.ErrModelFatal, stage, errors.New("no model endpoints configured"))
	}

	var lastErr error
	for _, endpoint := range c.endpoints {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		text, err := c.client.Generate(ctx, endpoint.Model, req)
		if err == nil {
			c.logger.Info("model_endpoint_served", "stage", stage, "endpoint", endpoint.Name)
			return text, endpoint.Name, nil
		}

		if !retryable(err) {
			c.logger.Error("model_endpoint_fatal", "stage", stage, "endpoint", endpoint.Name, "error", err)
			return "", endpoint.Name, domain.WrapError(domain.ErrModelFatal, stage+": "+endpoint.Name, err)
		}

		c.logger.Warn("model_endpoint_retryable", "stage", stage, "endpoint", endpoint.Name, "error", err)
		lastErr = err
	}

	c.logger.Warn("model_chain_exhausted", "stage", stage, "endpoints", len(c.endpoints))
	return "", "", domain.WrapError(domain.ErrChainExhausted, stage, lastErr)
}

// retryable classifies a single endpoint failure. Retryable means capacity:
// HTTP 429 or 503, or a structured error body carrying code 429 or status
// RESOURCE_EXHAUSTED. Everything else (bad request, auth, network, schema)
// is fatal for the whole chain.
func retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == http.StatusServiceUnavailable {
		return true
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
}
