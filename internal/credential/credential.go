// Package credential resolves the per-tenant service credentials of a call.
// Nothing is cached: every call resolves afresh and the result flows by value.
package credential

import (
	"go.uber.org/zap/zapcore"

	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/wire"
)

// Source names where a credential was resolved from
type Source string

const (
	SourceStored   Source = "stored"
	SourceOperator Source = "operator"
)

const redacted = "[REDACTED]"

// Credential is the identity/secret pair for one tenant and environment
type Credential struct {
	TenantID    string
	Identity    string
	Secret      string
	Environment model.Environment
	Source      Source
}

// Complete reports whether both identity and secret are present
func (c Credential) Complete() bool {
	return c.Identity != "" && c.Secret != ""
}

// Wire returns the credential fields of an envelope
func (c Credential) Wire() wire.Credentials {
	return wire.Credentials{Identity: c.Identity, Secret: c.Secret}
}

// String never includes the secret
func (c Credential) String() string {
	return "Credential{tenant=" + c.TenantID + " env=" + string(c.Environment) + " source=" + string(c.Source) + " secret=" + redacted + "}"
}

// MarshalLogObject implements zapcore.ObjectMarshaler with the secret redacted
func (c Credential) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("tenant_id", c.TenantID)
	enc.AddString("identity", c.Identity)
	enc.AddString("environment", string(c.Environment))
	enc.AddString("source", string(c.Source))
	if c.Secret != "" {
		enc.AddString("secret", redacted)
	}
	return nil
}
