package einvoice

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rezonia/einvoice-gateway/internal/config"
	"github.com/rezonia/einvoice-gateway/internal/credential"
	"github.com/rezonia/einvoice-gateway/internal/gateway"
	"github.com/rezonia/einvoice-gateway/internal/logger"
	"github.com/rezonia/einvoice-gateway/internal/retry"
	"github.com/rezonia/einvoice-gateway/internal/signature"
	"github.com/rezonia/einvoice-gateway/internal/signature/trust"
	"github.com/rezonia/einvoice-gateway/internal/transport"
)

// ErrNoCredentialStore is returned by StoreCredential when the client was
// built without a credential database.
var ErrNoCredentialStore = errors.New("einvoice: no credential store configured")

// Client runs the service operations for any tenant. It is safe for
// concurrent use.
type Client struct {
	gateway *gateway.Gateway
	logger  *zap.Logger
	db      *gorm.DB
	store   *credential.GormStore
	sealer  *credential.AgeSealer
}

// ClientOption configures a Client
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger      *zap.Logger
	httpClient  *http.Client
	resolver    CredentialResolver
	ageIdentity string
	environ     func() []string
}

// WithLogger uses l instead of a logger built from the log configuration
func WithLogger(l *zap.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// WithHTTPClient sets the HTTP client used for service calls and OCSP
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithCredentialResolver replaces stored and operator credential resolution
func WithCredentialResolver(r CredentialResolver) ClientOption {
	return func(o *clientOptions) {
		o.resolver = r
	}
}

// WithAgeIdentity sets the age identity that opens stored secrets. Required
// when a credential database is configured.
func WithAgeIdentity(identity string) ClientOption {
	return func(o *clientOptions) {
		o.ageIdentity = identity
	}
}

// WithOperatorEnviron reads operator credentials from environ instead of the
// process environment
func WithOperatorEnviron(environ func() []string) ClientOption {
	return func(o *clientOptions) {
		o.environ = environ
	}
}

// NewClient creates a client from cfg. A nil cfg loads defaults and FE_
// environment overrides.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		loaded, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		built, err := logger.New(&logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cfg.Log.Output,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		log = built
	}

	c := &Client{logger: log}

	var transportOpts []transport.Option
	if o.httpClient != nil {
		transportOpts = append(transportOpts, transport.WithHTTPClient(o.httpClient))
	}
	tc := transport.New(transport.Config{
		SandboxURL:       cfg.Endpoints.Sandbox,
		ProductionURL:    cfg.Endpoints.Production,
		Timeout:          cfg.HTTP.Timeout,
		MaxResponseBytes: cfg.HTTP.MaxResponseBytes,
	}, transportOpts...)

	signer, err := newSigner(cfg.Signing, o.httpClient)
	if err != nil {
		return nil, err
	}

	resolver := o.resolver
	if resolver == nil {
		resolver, err = c.newResolver(cfg, o)
		if err != nil {
			return nil, err
		}
	}

	c.gateway = gateway.New(resolver, tc,
		gateway.WithSigner(signer),
		gateway.WithSignatureRequired(cfg.Signing.Required),
		gateway.WithRetryPolicy(retry.Policy{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Factor:       cfg.Retry.Factor,
		}),
		gateway.WithLogger(log),
	)

	log.Info("e-invoice client ready",
		zap.String("environment", string(cfg.Environment)),
		zap.Bool("signing_required", cfg.Signing.Required),
		zap.Bool("credential_store", c.store != nil),
	)
	return c, nil
}

func newSigner(cfg config.SigningConfig, httpClient *http.Client) (*signature.Signer, error) {
	if cfg.TrustRootsFile == "" {
		return signature.NewSigner(), nil
	}

	var rootOpts []trust.Option
	if cfg.OCSPTimeout > 0 {
		rootOpts = append(rootOpts, trust.WithOCSPTimeout(cfg.OCSPTimeout))
	}
	if cfg.OCSPSoftFail {
		rootOpts = append(rootOpts, trust.WithSoftFail())
	}
	if httpClient != nil {
		rootOpts = append(rootOpts, trust.WithHTTPClient(httpClient))
	}
	roots, err := trust.Load(cfg.TrustRootsFile, rootOpts...)
	if err != nil {
		return nil, err
	}

	signerOpts := []signature.SignerOption{signature.WithTrustRoots(roots)}
	if cfg.CheckRevocation {
		signerOpts = append(signerOpts, signature.WithRevocationCheck())
	}
	return signature.NewSigner(signerOpts...), nil
}

func (c *Client) newResolver(cfg *Config, o clientOptions) (*credential.Resolver, error) {
	operator := credential.NewEnvOperatorSource()
	if o.environ != nil {
		operator = credential.NewEnvOperatorSourceFrom(o.environ)
	}

	if cfg.Credentials.DatabasePath == "" {
		return credential.NewResolver(nil, nil, operator, cfg.Environment), nil
	}

	if o.ageIdentity == "" {
		return nil, fmt.Errorf("credentials.database_path is set but no age identity was supplied")
	}
	sealer, err := credential.NewAgeSealer(o.ageIdentity)
	if err != nil {
		return nil, err
	}

	db, err := credential.OpenSQLite(cfg.Credentials.DatabasePath, c.logger)
	if err != nil {
		return nil, err
	}
	store := credential.NewGormStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to migrate credential database: %w", err)
	}

	c.db, c.store, c.sealer = db, store, sealer
	return credential.NewResolver(store, sealer, operator, cfg.Environment), nil
}

// StoreCredential seals secret and saves the tenant's credential in the
// credential database.
func (c *Client) StoreCredential(ctx context.Context, tenantID, identity, secret string, env Environment) error {
	if c.store == nil {
		return ErrNoCredentialStore
	}
	sealed, err := c.sealer.Seal(secret)
	if err != nil {
		return err
	}
	if err := c.store.Put(ctx, credential.StoredRecord{
		TenantID:     tenantID,
		Identity:     identity,
		SealedSecret: sealed,
		Environment:  env,
	}); err != nil {
		return fmt.Errorf("failed to store credential for tenant %s: %w", tenantID, err)
	}
	c.logger.Info("tenant credential stored", zap.String(logger.FieldTenantID, tenantID), zap.String("environment", string(env)))
	return nil
}

// Close releases the credential database and flushes the logger.
func (c *Client) Close() error {
	_ = c.logger.Sync()
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Submit maps, optionally signs with km, and submits a document.
func (c *Client) Submit(ctx context.Context, tenantID string, inv *Invoice, km *KeyMaterial) (*Submission, error) {
	return c.gateway.Submit(ctx, tenantID, inv, km)
}

// DownloadXML downloads the authorized XML of a document.
func (c *Client) DownloadXML(ctx context.Context, tenantID string, ref DocumentRef) (*Download, error) {
	return c.gateway.DownloadXML(ctx, tenantID, ref)
}

// DownloadPDF downloads the printable representation of a document.
func (c *Client) DownloadPDF(ctx context.Context, tenantID string, ref DocumentRef) (*Download, error) {
	return c.gateway.DownloadPDF(ctx, tenantID, ref)
}

// DocumentStatus queries the status of a document.
func (c *Client) DocumentStatus(ctx context.Context, tenantID string, ref DocumentRef) (DocumentStatus, error) {
	return c.gateway.DocumentStatus(ctx, tenantID, ref)
}

// Cancel cancels an issued document.
func (c *Client) Cancel(ctx context.Context, tenantID string, ref DocumentRef, reason string) (EventReceipt, error) {
	return c.gateway.Cancel(ctx, tenantID, ref, reason)
}

// RemainingFolios returns the folio balance of the tenant.
func (c *Client) RemainingFolios(ctx context.Context, tenantID string) (FolioBalance, error) {
	return c.gateway.RemainingFolios(ctx, tenantID)
}

// SendEmail asks the service to email a document.
func (c *Client) SendEmail(ctx context.Context, tenantID string, ref DocumentRef, address string) (EventReceipt, error) {
	return c.gateway.SendEmail(ctx, tenantID, ref, address)
}

// TrackEmail returns the delivery status of the last email of a document.
func (c *Client) TrackEmail(ctx context.Context, tenantID string, ref DocumentRef) (EventReceipt, error) {
	return c.gateway.TrackEmail(ctx, tenantID, ref)
}

// LookupTaxpayer returns the registered check digit and name of a taxpayer.
func (c *Client) LookupTaxpayer(ctx context.Context, tenantID string, kind TaxpayerKind, id string) (TaxpayerCheck, error) {
	return c.gateway.LookupTaxpayer(ctx, tenantID, kind, id)
}
