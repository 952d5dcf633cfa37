// Package transport posts wire envelopes to the fiscal document service.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/wire"
)

const (
	// DefaultMaxResponseBytes caps a response body
	DefaultMaxResponseBytes = 10 << 20

	contentType = "text/xml; charset=utf-8"
	userAgent   = "einvoice-gateway/1.0"
)

// Config contains the endpoints and limits of the client
type Config struct {
	SandboxURL       string
	ProductionURL    string
	Timeout          time.Duration
	MaxResponseBytes int64
}

// Client executes one HTTP exchange per call. It performs no retry.
type Client struct {
	cfg    Config
	client *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// New creates a transport client
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}

	c := &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the service URL of env
func (c *Client) Endpoint(env model.Environment) (string, error) {
	var url string
	switch env {
	case model.EnvSandbox:
		url = c.cfg.SandboxURL
	case model.EnvProduction:
		url = c.cfg.ProductionURL
	default:
		return "", fmt.Errorf("unknown environment %q", env)
	}
	if url == "" {
		return "", fmt.Errorf("no endpoint configured for %s", env)
	}
	return url, nil
}

// Execute posts wireXML with the operation's action header and returns the
// raw response body. Non-2xx statuses and socket failures are returned as
// TransportError; caller cancellation returns the context error.
func (c *Client) Execute(ctx context.Context, op wire.Operation, env model.Environment, wireXML []byte) ([]byte, error) {
	if !op.Valid() {
		return nil, wire.ErrUnknownOperation
	}
	endpoint, err := c.Endpoint(env)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wireXML))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("SOAPAction", op.Action())
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classify(ctx, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, c.classify(ctx, op, err)
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return nil, model.NewTransportError(model.TransportHTTP, op.Name(), resp.StatusCode,
			fmt.Sprintf("response exceeds %d bytes", c.cfg.MaxResponseBytes), nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := wire.ExtractFault(body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, model.NewTransportError(model.TransportHTTP, op.Name(), resp.StatusCode, msg, nil)
	}

	return body, nil
}

// classify maps a socket failure to a timeout or connection TransportError
func (c *Client) classify(ctx context.Context, op wire.Operation, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.NewTransportError(model.TransportTimeout, op.Name(), 0, "request timed out", err)
	}
	return model.NewTransportError(model.TransportConnection, op.Name(), 0, "connection failed", err)
}
