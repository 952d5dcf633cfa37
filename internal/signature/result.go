package signature

import (
	"crypto/x509"
	"time"
)

// Signed is a document with an enveloped signature
type Signed struct {
	// Document is the signed XML, Signature as last child of the root
	Document []byte `json:"-"`

	SignedAt           time.Time `json:"signed_at"`
	DigestValue        string    `json:"digest_value"`
	CertificateSubject string    `json:"certificate_subject"`
	CertificateIssuer  string    `json:"certificate_issuer"`

	// Revocation is the OCSP status of the certificate, empty when not checked
	Revocation string `json:"revocation,omitempty"`

	// Signer information
	Signer *SignerInfo `json:"signer,omitempty"`

	// Warnings (non-fatal issues, e.g. a soft-failed OCSP check)
	Warnings []string `json:"warnings,omitempty"`
}

// SignerInfo contains certificate subject information
type SignerInfo struct {
	// Common name (CN)
	Name string `json:"name"`

	// Organization (O)
	Organization string `json:"organization,omitempty"`

	// Certificate serial number
	SerialNumber string `json:"serial_number"`

	// Issuer common name
	Issuer string `json:"issuer"`

	// Certificate validity period
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
}

// NewSignerInfo extracts SignerInfo from an x509 certificate
func NewSignerInfo(cert *x509.Certificate) *SignerInfo {
	if cert == nil {
		return nil
	}

	signer := &SignerInfo{
		Name:         cert.Subject.CommonName,
		SerialNumber: cert.SerialNumber.String(),
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
	}

	if len(cert.Subject.Organization) > 0 {
		signer.Organization = cert.Subject.Organization[0]
	}

	// Issuer CN, falling back to organization
	if cert.Issuer.CommonName != "" {
		signer.Issuer = cert.Issuer.CommonName
	} else if len(cert.Issuer.Organization) > 0 {
		signer.Issuer = cert.Issuer.Organization[0]
	}

	return signer
}

// AddWarning adds a warning message to the result
func (s *Signed) AddWarning(msg string) {
	s.Warnings = append(s.Warnings, msg)
}
