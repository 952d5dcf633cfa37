// Package config loads the gateway client configuration from an optional
// YAML file and FE_ prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rezonia/einvoice-gateway/internal/model"
)

// Default service endpoints
const (
	DefaultSandboxURL    = "https://demoemision.thefactoryhka.com.pa/ws/obj/v1.0/Service.svc"
	DefaultProductionURL = "https://emision.thefactoryhka.com.pa/ws/obj/v1.0/Service.svc"
)

// Config holds all client configuration. Operator secrets are not part of
// it; they are read per call.
type Config struct {
	Environment model.Environment
	Endpoints   EndpointConfig
	HTTP        HTTPConfig
	Retry       RetryConfig
	Log         LogConfig
	Signing     SigningConfig
	Credentials CredentialConfig
}

// EndpointConfig holds the two service endpoints
type EndpointConfig struct {
	Sandbox    string
	Production string
}

// HTTPConfig holds transport settings
type HTTPConfig struct {
	Timeout          time.Duration
	MaxResponseBytes int64
}

// RetryConfig holds the retry policy
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// SigningConfig controls signing of submissions
type SigningConfig struct {
	Required        bool
	TrustRootsFile  string
	CheckRevocation bool
	OCSPSoftFail    bool
	OCSPTimeout     time.Duration
}

// CredentialConfig locates the stored credential database
type CredentialConfig struct {
	DatabasePath string
}

// Load reads configuration. Priority (highest to lowest):
// 1. Environment variables with FE_ prefix (e.g., FE_HTTP_TIMEOUT)
// 2. the YAML file at path, when path is not empty
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	env, err := model.ParseEnvironment(v.GetString("environment"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: env,
		Endpoints: EndpointConfig{
			Sandbox:    v.GetString("endpoints.sandbox"),
			Production: v.GetString("endpoints.production"),
		},
		HTTP: HTTPConfig{
			Timeout:          v.GetDuration("http.timeout"),
			MaxResponseBytes: v.GetInt64("http.max_response_bytes"),
		},
		Retry: RetryConfig{
			MaxRetries:   v.GetInt("retry.max_retries"),
			InitialDelay: v.GetDuration("retry.initial_delay"),
			MaxDelay:     v.GetDuration("retry.max_delay"),
			Factor:       v.GetFloat64("retry.factor"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Signing: SigningConfig{
			Required:        v.GetBool("signing.required"),
			TrustRootsFile:  v.GetString("signing.trust_roots_file"),
			CheckRevocation: v.GetBool("signing.check_revocation"),
			OCSPSoftFail:    v.GetBool("signing.ocsp_soft_fail"),
			OCSPTimeout:     v.GetDuration("signing.ocsp_timeout"),
		},
		Credentials: CredentialConfig{
			DatabasePath: v.GetString("credentials.database_path"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", string(model.EnvSandbox))
	v.SetDefault("endpoints.sandbox", DefaultSandboxURL)
	v.SetDefault("endpoints.production", DefaultProductionURL)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_response_bytes", 10<<20)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_delay", time.Second)
	v.SetDefault("retry.max_delay", 10*time.Second)
	v.SetDefault("retry.factor", 2.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("signing.required", false)
	v.SetDefault("signing.trust_roots_file", "")
	v.SetDefault("signing.check_revocation", false)
	v.SetDefault("signing.ocsp_soft_fail", false)
	v.SetDefault("signing.ocsp_timeout", 10*time.Second)
	v.SetDefault("credentials.database_path", "")
}

func (c *Config) validate() error {
	if c.Endpoints.Sandbox == "" || c.Endpoints.Production == "" {
		return fmt.Errorf("both endpoints.sandbox and endpoints.production must be set")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %v", c.HTTP.Timeout)
	}
	if c.Retry.MaxRetries < 1 {
		return fmt.Errorf("retry.max_retries must be at least 1, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.Factor < 1 {
		return fmt.Errorf("retry.factor must be at least 1, got %v", c.Retry.Factor)
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("retry.max_delay (%v) cannot be lower than retry.initial_delay (%v)", c.Retry.MaxDelay, c.Retry.InitialDelay)
	}
	if c.Signing.CheckRevocation && c.Signing.TrustRootsFile == "" {
		return fmt.Errorf("signing.check_revocation requires signing.trust_roots_file")
	}
	return nil
}
