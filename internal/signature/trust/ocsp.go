package trust

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/crypto/ocsp"
)

const maxOCSPResponseSize = 1 << 20

// Status is the revocation state of a signing certificate
type Status int

const (
	StatusUnknown Status = iota
	StatusGood
	StatusRevoked
	// StatusUnchecked means the certificate names no responder
	StatusUnchecked
)

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusRevoked:
		return "revoked"
	case StatusUnchecked:
		return "unchecked"
	default:
		return "unknown"
	}
}

// Query asks each responder named by leaf in turn and returns the first
// definitive answer.
func Query(ctx context.Context, client *http.Client, leaf, issuer *x509.Certificate) (Status, error) {
	if len(leaf.OCSPServer) == 0 {
		return StatusUnknown, errors.New("no OCSP server URL in certificate")
	}

	body, err := ocsp.CreateRequest(leaf, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to create OCSP request: %w", err)
	}

	var errs []error
	for _, url := range leaf.OCSPServer {
		status, err := ask(ctx, client, url, body, leaf, issuer)
		if err == nil {
			return status, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", url, err))
	}
	return StatusUnknown, errors.Join(errs...)
}

func ask(ctx context.Context, client *http.Client, url string, body []byte, leaf, issuer *x509.Certificate) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return StatusUnknown, err
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := client.Do(req)
	if err != nil {
		return StatusUnknown, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusUnknown, fmt.Errorf("responder returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxOCSPResponseSize))
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to read OCSP response: %w", err)
	}
	parsed, err := ocsp.ParseResponseForCert(raw, leaf, issuer)
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to parse OCSP response: %w", err)
	}

	switch parsed.Status {
	case ocsp.Good:
		return StatusGood, nil
	case ocsp.Revoked:
		return StatusRevoked, nil
	default:
		return StatusUnknown, errors.New("responder does not know the certificate")
	}
}
