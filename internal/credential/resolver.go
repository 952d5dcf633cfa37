package credential

import (
	"context"
	"fmt"

	"github.com/rezonia/einvoice-gateway/internal/model"
)

// StoredRecord is a tenant credential as persisted, with its secret sealed
type StoredRecord struct {
	TenantID     string
	Identity     string
	SealedSecret string
	Environment  model.Environment
}

// StoredSource looks up tenant records. A missing record is (nil, nil).
type StoredSource interface {
	Lookup(ctx context.Context, tenantID string) (*StoredRecord, error)
}

// Opener opens sealed secrets
type Opener interface {
	Open(sealed string) (string, error)
}

// OperatorSource returns the operator-level identity and secret of an
// environment, read afresh on every call
type OperatorSource interface {
	Lookup(ctx context.Context, env model.Environment) (identity, secret string, err error)
}

const remediation = "store a credential for the tenant or set FE_<ENV>_TOKEN_EMPRESA and FE_<ENV>_TOKEN_PASSWORD"

// Resolver picks the credential of a call: the tenant's stored credential
// first, the operator credential otherwise. The two are never combined.
type Resolver struct {
	stored      StoredSource
	opener      Opener
	operator    OperatorSource
	environment model.Environment
}

// NewResolver creates a resolver. stored and operator may be nil; opener is
// required when stored is set. environment applies to operator credentials
// and to stored records that carry none.
func NewResolver(stored StoredSource, opener Opener, operator OperatorSource, environment model.Environment) *Resolver {
	if !environment.Valid() {
		environment = model.EnvSandbox
	}
	return &Resolver{
		stored:      stored,
		opener:      opener,
		operator:    operator,
		environment: environment,
	}
}

// Resolve returns the credential for tenantID or CredentialsUnavailableError
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	if r.stored != nil {
		cred, found, err := r.resolveStored(ctx, tenantID)
		if err != nil {
			return Credential{}, err
		}
		if found {
			return cred, nil
		}
	}

	if r.operator != nil {
		identity, secret, err := r.operator.Lookup(ctx, r.environment)
		if err != nil {
			return Credential{}, fmt.Errorf("operator credential lookup for %s: %w", r.environment, err)
		}
		cred := Credential{
			TenantID:    tenantID,
			Identity:    identity,
			Secret:      secret,
			Environment: r.environment,
			Source:      SourceOperator,
		}
		if cred.Complete() {
			return cred, nil
		}
	}

	return Credential{}, model.NewCredentialsUnavailableError(tenantID, string(r.environment), remediation)
}

// resolveStored returns found only for a record whose identity and opened
// secret are both non-empty
func (r *Resolver) resolveStored(ctx context.Context, tenantID string) (Credential, bool, error) {
	rec, err := r.stored.Lookup(ctx, tenantID)
	if err != nil {
		return Credential{}, false, fmt.Errorf("stored credential lookup for tenant %s: %w", tenantID, err)
	}
	if rec == nil || rec.Identity == "" || rec.SealedSecret == "" {
		return Credential{}, false, nil
	}
	if r.opener == nil {
		return Credential{}, false, fmt.Errorf("stored credential for tenant %s is sealed but no opener is configured", tenantID)
	}

	secret, err := r.opener.Open(rec.SealedSecret)
	if err != nil {
		return Credential{}, false, fmt.Errorf("opening stored secret for tenant %s: %w", tenantID, err)
	}

	env := rec.Environment
	if !env.Valid() {
		env = r.environment
	}
	cred := Credential{
		TenantID:    tenantID,
		Identity:    rec.Identity,
		Secret:      secret,
		Environment: env,
		Source:      SourceStored,
	}
	return cred, cred.Complete(), nil
}
