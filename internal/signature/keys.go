package signature

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"
)

// KeyMaterial is a parsed signing key with its certificate and optional chain
type KeyMaterial struct {
	Key         *rsa.PrivateKey
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
}

// ParseKeyMaterial parses PEM encoded key material. All structural checks
// run here, before any cryptographic operation. chainPEM may be empty.
func ParseKeyMaterial(keyPEM, certPEM, chainPEM []byte) (*KeyMaterial, error) {
	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, ErrMalformedCert("no CERTIFICATE block in PEM data", nil)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, ErrMalformedCert("failed to parse certificate", err)
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		return nil, ErrKeyMismatch()
	}

	var chain []*x509.Certificate
	if len(chainPEM) > 0 {
		chain, err = parseChain(chainPEM)
		if err != nil {
			return nil, err
		}
	}

	return &KeyMaterial{Key: key, Certificate: cert, Chain: chain}, nil
}

// parsePrivateKey accepts PKCS#8 first, then PKCS#1
func parsePrivateKey(keyPEM []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, ErrMalformedKey("no PEM block in key data", nil)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 format
		rsaKey, err1 := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err1 != nil {
			return nil, ErrMalformedKey("failed to parse private key", err)
		}
		parsed = rsaKey
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, NewSignatureError(ErrCodeUnsupportedKey, "key", fmt.Sprintf("unsupported key type %T, RSA required", parsed), nil)
	}
	if err := key.Validate(); err != nil {
		return nil, ErrMalformedKey("RSA key failed validation", err)
	}
	return key, nil
}

func parseChain(chainPEM []byte) ([]*x509.Certificate, error) {
	var chain []*x509.Certificate
	for {
		block, rest := pem.Decode(chainPEM)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, ErrMalformedChain("failed to parse chain certificate", err)
			}
			chain = append(chain, cert)
		}
		chainPEM = rest
	}
	if len(chain) == 0 {
		return nil, ErrMalformedChain("no certificates found in chain PEM data", nil)
	}
	return chain, nil
}

// checkValidity reports an expired or not yet valid certificate
func checkValidity(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) {
		return ErrCertNotYetValid(cert.Subject.String())
	}
	if now.After(cert.NotAfter) {
		return ErrCertExpired(cert.Subject.String())
	}
	return nil
}
