package credential

import (
	"context"
	"fmt"
	"os"

	"github.com/Netflix/go-env"

	"github.com/rezonia/einvoice-gateway/internal/model"
)

// operatorEnvironment lists the operator variables of both environments
type operatorEnvironment struct {
	SandboxIdentity    string `env:"FE_SANDBOX_TOKEN_EMPRESA"`
	SandboxSecret      string `env:"FE_SANDBOX_TOKEN_PASSWORD"`
	ProductionIdentity string `env:"FE_PRODUCTION_TOKEN_EMPRESA"`
	ProductionSecret   string `env:"FE_PRODUCTION_TOKEN_PASSWORD"`
}

// EnvOperatorSource reads operator credentials from the process environment
// on every lookup
type EnvOperatorSource struct {
	environ func() []string
}

// NewEnvOperatorSource reads from os.Environ
func NewEnvOperatorSource() *EnvOperatorSource {
	return &EnvOperatorSource{environ: os.Environ}
}

// NewEnvOperatorSourceFrom reads from the given environ function
func NewEnvOperatorSourceFrom(environ func() []string) *EnvOperatorSource {
	return &EnvOperatorSource{environ: environ}
}

// Lookup implements OperatorSource
func (s *EnvOperatorSource) Lookup(ctx context.Context, environment model.Environment) (string, string, error) {
	es, err := env.EnvironToEnvSet(s.environ())
	if err != nil {
		return "", "", fmt.Errorf("failed to read environment: %w", err)
	}

	var vars operatorEnvironment
	if err := env.Unmarshal(es, &vars); err != nil {
		return "", "", fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	switch environment {
	case model.EnvSandbox:
		return vars.SandboxIdentity, vars.SandboxSecret, nil
	case model.EnvProduction:
		return vars.ProductionIdentity, vars.ProductionSecret, nil
	default:
		return "", "", fmt.Errorf("unknown environment %q", environment)
	}
}
