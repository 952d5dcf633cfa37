// Package trust checks that a signing certificate chains to a configured
// authority and has not been revoked.
package trust

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// DefaultOCSPTimeout bounds one revocation query across all responders
const DefaultOCSPTimeout = 10 * time.Second

// Roots is the set of authorities a signing certificate must chain to,
// together with the revocation policy applied before signing. It is
// read-only after construction and safe for concurrent use.
type Roots struct {
	pool     *x509.CertPool
	count    int
	timeout  time.Duration
	softFail bool
	client   *http.Client
	now      func() time.Time
}

// Option configures Roots
type Option func(*Roots)

// WithSoftFail lets signing proceed, with a warning, when no responder
// gives an answer
func WithSoftFail() Option {
	return func(r *Roots) {
		r.softFail = true
	}
}

// WithOCSPTimeout bounds each revocation query
func WithOCSPTimeout(d time.Duration) Option {
	return func(r *Roots) {
		r.timeout = d
	}
}

// WithHTTPClient sets the client used to reach OCSP responders
func WithHTTPClient(c *http.Client) Option {
	return func(r *Roots) {
		r.client = c
	}
}

// WithClock overrides the time used for chain validation
func WithClock(now func() time.Time) Option {
	return func(r *Roots) {
		r.now = now
	}
}

// New returns an empty set of roots
func New(opts ...Option) *Roots {
	r := &Roots{
		pool:    x509.NewCertPool(),
		timeout: DefaultOCSPTimeout,
		client:  http.DefaultClient,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads every CERTIFICATE block of the PEM file at path
func Load(path string, opts ...Option) (*Roots, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trust roots: %w", err)
	}
	r := New(opts...)
	if err := r.AddPEM(data); err != nil {
		return nil, fmt.Errorf("failed to load trust roots from %s: %w", path, err)
	}
	return r, nil
}

// Add trusts the given authorities
func (r *Roots) Add(certs ...*x509.Certificate) {
	for _, c := range certs {
		if c == nil {
			continue
		}
		r.pool.AddCert(c)
		r.count++
	}
}

// AddPEM trusts every certificate in data. Blocks of other types are skipped.
func (r *Roots) AddPEM(data []byte) error {
	var certs []*x509.Certificate
	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("failed to parse certificate %d: %w", len(certs)+1, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return errors.New("no certificates found in PEM data")
	}
	r.Add(certs...)
	return nil
}

// Len returns the number of trusted authorities
func (r *Roots) Len() int {
	return r.count
}

// SoftFail reports whether an unanswered revocation query is tolerated
func (r *Roots) SoftFail() bool {
	return r.softFail
}

// Chain returns the first verified path from leaf to a trusted authority,
// using intermediates as untrusted links.
func (r *Roots) Chain(leaf *x509.Certificate, intermediates []*x509.Certificate) ([]*x509.Certificate, error) {
	if leaf == nil {
		return nil, errors.New("certificate is nil")
	}

	links := x509.NewCertPool()
	for _, c := range intermediates {
		links.AddCert(c)
	}

	chains, err := leaf.Verify(x509.VerifyOptions{
		Roots:         r.pool,
		Intermediates: links,
		CurrentTime:   r.now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return nil, fmt.Errorf("chain verification failed: %w", err)
	}
	if len(chains) == 0 {
		return nil, errors.New("no valid certificate chains found")
	}
	return chains[0], nil
}

// Revocation asks the leaf's OCSP responders for its status. A leaf that
// names no responder is StatusUnchecked. Any failure to get an answer is
// returned as an error with StatusUnknown; callers decide with SoftFail.
func (r *Roots) Revocation(ctx context.Context, leaf, issuer *x509.Certificate) (Status, error) {
	if leaf == nil || issuer == nil {
		return StatusUnknown, errors.New("certificate or issuer is nil")
	}
	if len(leaf.OCSPServer) == 0 {
		return StatusUnchecked, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	status, err := Query(ctx, r.client, leaf, issuer)
	if err != nil {
		return StatusUnknown, fmt.Errorf("OCSP check failed: %w", err)
	}
	return status, nil
}
