// Package gateway runs the nine remote operations end to end: mapping,
// signing, envelope construction, credential resolution, retried transport,
// response parsing and outcome classification.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rezonia/einvoice-gateway/internal/credential"
	"github.com/rezonia/einvoice-gateway/internal/logger"
	"github.com/rezonia/einvoice-gateway/internal/mapper"
	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/retry"
	"github.com/rezonia/einvoice-gateway/internal/signature"
	"github.com/rezonia/einvoice-gateway/internal/wire"
)

// CredentialResolver yields the credential of a tenant for one call
type CredentialResolver interface {
	Resolve(ctx context.Context, tenantID string) (credential.Credential, error)
}

// Transport posts an envelope and returns the raw response
type Transport interface {
	Execute(ctx context.Context, op wire.Operation, env model.Environment, wireXML []byte) ([]byte, error)
}

// Gateway is safe for concurrent use. It holds no tenant state; credentials
// and key material live only for the duration of a call.
type Gateway struct {
	resolver         CredentialResolver
	transport        Transport
	signer           *signature.Signer
	requireSignature bool
	policy           retry.Policy
	logger           *zap.Logger
	newCallID        func() string
}

// Option configures a Gateway
type Option func(*Gateway)

// WithSigner sets the signer used for submissions
func WithSigner(s *signature.Signer) Option {
	return func(g *Gateway) {
		g.signer = s
	}
}

// WithSignatureRequired makes Submit fail without key material
func WithSignatureRequired(required bool) Option {
	return func(g *Gateway) {
		g.requireSignature = required
	}
}

// WithRetryPolicy overrides the retry policy
func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Gateway) {
		g.policy = p
	}
}

// WithLogger sets the base logger
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// New creates a gateway
func New(resolver CredentialResolver, transport Transport, opts ...Option) *Gateway {
	g := &Gateway{
		resolver:  resolver,
		transport: transport,
		signer:    signature.NewSigner(),
		policy:    retry.DefaultPolicy(),
		logger:    zap.NewNop(),
		newCallID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// call is one logged exchange
type call struct {
	op     wire.Operation
	tenant string
	log    *zap.Logger
	start  time.Time
}

// begin starts a call, logging through the context logger when one is attached
func (g *Gateway) begin(ctx context.Context, op wire.Operation, tenantID string) *call {
	return &call{
		op:     op,
		tenant: tenantID,
		log:    logger.ForCall(logger.FromContext(ctx, g.logger), op.Name(), tenantID, g.newCallID()),
		start:  time.Now(),
	}
}

// fail logs err with the call context and returns it
func (c *call) fail(stage string, err error) error {
	c.log.Error("call failed",
		zap.String("stage", stage),
		zap.Duration("elapsed", time.Since(c.start)),
		zap.Error(err),
	)
	return err
}

// exchange resolves the tenant credential, sends payload with retry and
// classifies the response. Only accepted results are returned.
func (g *Gateway) exchange(ctx context.Context, c *call, payload wire.Payload) (*wire.Result, error) {
	cred, err := g.resolver.Resolve(ctx, c.tenant)
	if err != nil {
		return nil, c.fail("credentials", err)
	}
	log := c.log.With(zap.Object("credential", cred))

	envelope, err := wire.BuildEnvelope(c.op, cred.Wire(), payload)
	if err != nil {
		return nil, c.fail("build", err)
	}

	var raw []byte
	err = retry.Do(ctx, g.policy, log, func(ctx context.Context) error {
		var execErr error
		raw, execErr = g.transport.Execute(ctx, c.op, cred.Environment, envelope)
		return execErr
	})
	if err != nil {
		return nil, c.fail("transport", err)
	}

	res, err := wire.ParseResponse(raw, c.op)
	if err != nil {
		var parseErr *model.ParseError
		if errors.As(err, &parseErr) {
			log.Error("response could not be parsed",
				zap.Error(err),
				logger.Payload("raw_response", raw),
			)
			return nil, err
		}
		return nil, c.fail("response", err)
	}

	if rejected, ok := mapper.FromWireResult(res).(mapper.DocumentRejected); ok {
		return nil, c.fail("response", rejected.Err())
	}

	log.Info("call completed",
		zap.String("code", res.Code),
		zap.String("family", string(res.Family)),
		zap.Duration("elapsed", time.Since(c.start)),
	)
	return res, nil
}
