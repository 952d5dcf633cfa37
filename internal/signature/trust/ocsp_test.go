package trust

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ocsp"
)

// responder answers every request with status for the certificate returned
// by leaf, signed by the issuer.
func responder(t *testing.T, issuer *x509.Certificate, issuerKey *rsa.PrivateKey, leaf func() *x509.Certificate, status int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tmpl := ocsp.Response{
			Status:       status,
			SerialNumber: leaf().SerialNumber,
			ThisUpdate:   time.Now().Add(-time.Minute),
			NextUpdate:   time.Now().Add(time.Hour),
		}
		if status == ocsp.Revoked {
			tmpl.RevokedAt = time.Now().Add(-time.Minute)
			tmpl.RevocationReason = ocsp.KeyCompromise
		}
		der, err := ocsp.CreateResponse(issuer, issuer, tmpl, issuerKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(der)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRevocation(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    Status
		wantErr bool
	}{
		{"good", ocsp.Good, StatusGood, false},
		{"revoked", ocsp.Revoked, StatusRevoked, false},
		{"unknown", ocsp.Unknown, StatusUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ca, caKey := newAuthority(t, "Fiscal CA")

			var leaf *x509.Certificate
			srv := responder(t, ca, caKey, func() *x509.Certificate { return leaf }, tt.status)
			leaf = newSigningCert(t, "Comercial Istmo", ca, caKey, []string{srv.URL})

			status, err := New(WithHTTPClient(srv.Client())).Revocation(context.Background(), leaf, ca)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestRevocation_ResponderDown(t *testing.T) {
	ca, caKey := newAuthority(t, "Fiscal CA")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	leaf := newSigningCert(t, "Comercial Istmo", ca, caKey, []string{srv.URL})

	status, err := New(WithHTTPClient(srv.Client())).Revocation(context.Background(), leaf, ca)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, StatusUnknown, status)
}

func TestRevocation_FallsThroughResponders(t *testing.T) {
	ca, caKey := newAuthority(t, "Fiscal CA")

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	var leaf *x509.Certificate
	up := responder(t, ca, caKey, func() *x509.Certificate { return leaf }, ocsp.Good)
	leaf = newSigningCert(t, "Comercial Istmo", ca, caKey, []string{down.URL, up.URL})

	status, err := New().Revocation(context.Background(), leaf, ca)
	require.NoError(t, err)
	assert.Equal(t, StatusGood, status)
}

func TestRevocation_NoResponder(t *testing.T) {
	ca, caKey := newAuthority(t, "Fiscal CA")
	leaf := newSigningCert(t, "Comercial Istmo", ca, caKey, nil)

	status, err := New().Revocation(context.Background(), leaf, ca)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchecked, status)
	assert.Equal(t, "unchecked", status.String())
}

func TestRevocation_NilCertificate(t *testing.T) {
	_, err := New().Revocation(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestQuery_NoResponder(t *testing.T) {
	ca, caKey := newAuthority(t, "Fiscal CA")
	leaf := newSigningCert(t, "Comercial Istmo", ca, caKey, nil)

	_, err := Query(context.Background(), http.DefaultClient, leaf, ca)
	assert.Error(t, err)
}
