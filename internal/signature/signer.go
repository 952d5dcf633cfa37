// Package signature produces and checks enveloped XML signatures over fiscal
// documents.
package signature

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/rezonia/einvoice-gateway/internal/signature/trust"
)

// XMLDSigNamespace is the namespace of the Signature element
const XMLDSigNamespace = "http://www.w3.org/2000/09/xmldsig#"

// Signer signs documents with call-supplied key material. It holds no key
// material itself and is safe for concurrent use.
type Signer struct {
	roots           *trust.Roots
	checkRevocation bool
	now             func() time.Time
}

// SignerOption configures a Signer
type SignerOption func(*Signer)

// WithTrustRoots verifies the signing certificate chain before signing
func WithTrustRoots(r *trust.Roots) SignerOption {
	return func(s *Signer) {
		s.roots = r
	}
}

// WithRevocationCheck queries OCSP for the signing certificate. It requires
// trust roots.
func WithRevocationCheck() SignerOption {
	return func(s *Signer) {
		s.checkRevocation = true
	}
}

// WithClock overrides the time used for validity checks and SignedAt
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner creates a signer
func NewSigner(opts ...SignerOption) *Signer {
	s := &Signer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign appends an enveloped signature (exclusive c14n, SHA-256, RSA-SHA256)
// as the last child of the document root. KeyInfo carries the certificate
// followed by the chain.
func (s *Signer) Sign(ctx context.Context, doc []byte, km *KeyMaterial) (*Signed, error) {
	if km == nil || km.Key == nil || km.Certificate == nil {
		return nil, ErrMalformedKey("key material is incomplete", nil)
	}

	parsed := etree.NewDocument()
	if err := parsed.ReadFromBytes(doc); err != nil {
		return nil, ErrMalformedDocument(err)
	}
	root := parsed.Root()
	if root == nil {
		return nil, ErrMalformedDocument(fmt.Errorf("empty XML document"))
	}

	now := s.now()
	if err := checkValidity(km.Certificate, now); err != nil {
		return nil, err
	}

	result := &Signed{
		SignedAt:           now,
		CertificateSubject: km.Certificate.Subject.String(),
		CertificateIssuer:  km.Certificate.Issuer.String(),
		Signer:             NewSignerInfo(km.Certificate),
	}

	if err := s.checkTrust(ctx, km, result); err != nil {
		return nil, err
	}

	certs := make([][]byte, 0, 1+len(km.Chain))
	certs = append(certs, km.Certificate.Raw)
	for _, c := range km.Chain {
		certs = append(certs, c.Raw)
	}

	signingCtx, err := dsig.NewSigningContext(km.Key, certs)
	if err != nil {
		return nil, ErrSigningFailed(err)
	}
	signingCtx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	if err := signingCtx.SetSignatureMethod(dsig.RSASHA256SignatureMethod); err != nil {
		return nil, ErrSigningFailed(err)
	}

	signedRoot, err := signingCtx.SignEnveloped(root)
	if err != nil {
		return nil, ErrSigningFailed(err)
	}

	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	out.SetRoot(signedRoot)
	b, err := out.WriteToBytes()
	if err != nil {
		return nil, ErrSigningFailed(err)
	}

	result.Document = b
	if sig := findSignatureElement(signedRoot); sig != nil {
		if dv := findElementRecursive(sig, "DigestValue"); dv != nil {
			result.DigestValue = dv.Text()
		}
	}
	return result, nil
}

// checkTrust runs the optional chain and revocation checks
func (s *Signer) checkTrust(ctx context.Context, km *KeyMaterial, result *Signed) error {
	if s.roots == nil {
		return nil
	}

	if _, err := s.roots.Chain(km.Certificate, km.Chain); err != nil {
		return ErrChainInvalid(err)
	}

	if !s.checkRevocation {
		return nil
	}

	issuer := issuerOf(km)
	if issuer == nil {
		result.AddWarning("revocation check skipped: no issuer certificate in chain")
		return nil
	}

	status, err := s.roots.Revocation(ctx, km.Certificate, issuer)
	result.Revocation = status.String()
	switch {
	case err != nil && s.roots.SoftFail():
		result.AddWarning(fmt.Sprintf("%v (soft-fail enabled)", err))
		return nil
	case err != nil:
		return ErrOCSPUnavailable(err)
	case status == trust.StatusRevoked:
		return ErrCertRevoked(km.Certificate.Subject.String())
	}
	return nil
}

// issuerOf returns the chain certificate that issued the signing certificate
func issuerOf(km *KeyMaterial) *x509.Certificate {
	for _, c := range km.Chain {
		if km.Certificate.CheckSignatureFrom(c) == nil {
			return c
		}
	}
	return nil
}
