package signature

import "fmt"

// Error codes for signing and verification
const (
	ErrCodeMalformedKey    = "MALFORMED_KEY"
	ErrCodeMalformedCert   = "MALFORMED_CERT"
	ErrCodeMalformedChain  = "MALFORMED_CHAIN"
	ErrCodeKeyMismatch     = "KEY_MISMATCH"
	ErrCodeMalformedDoc    = "MALFORMED_DOCUMENT"
	ErrCodeSigningFailed   = "SIGNING_FAILED"
	ErrCodeNoSignature     = "NO_SIGNATURE"
	ErrCodeCertExpired     = "CERT_EXPIRED"
	ErrCodeCertNotYetValid = "CERT_NOT_YET_VALID"
	ErrCodeCertRevoked     = "CERT_REVOKED"
	ErrCodeChainInvalid    = "CHAIN_INVALID"
	ErrCodeOCSPUnavailable = "OCSP_UNAVAILABLE"
	ErrCodeUnsupportedKey  = "UNSUPPORTED_KEY"
)

// SignatureError represents malformed key material or a signing failure
type SignatureError struct {
	Code    string
	Field   string
	Message string
	Cause   error
}

func (e *SignatureError) Error() string {
	if e.Field != "" && e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Code, e.Field, e.Message, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SignatureError) Unwrap() error {
	return e.Cause
}

// NewSignatureError creates a new signature error
func NewSignatureError(code, field, message string, cause error) *SignatureError {
	return &SignatureError{
		Code:    code,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

// ErrMalformedKey returns error when the private key PEM cannot be used
func ErrMalformedKey(message string, cause error) *SignatureError {
	return NewSignatureError(ErrCodeMalformedKey, "key", message, cause)
}

// ErrMalformedCert returns error when the certificate PEM cannot be parsed
func ErrMalformedCert(message string, cause error) *SignatureError {
	return NewSignatureError(ErrCodeMalformedCert, "certificate", message, cause)
}

// ErrMalformedChain returns error when the chain PEM cannot be parsed
func ErrMalformedChain(message string, cause error) *SignatureError {
	return NewSignatureError(ErrCodeMalformedChain, "chain", message, cause)
}

// ErrKeyMismatch returns error when the certificate does not belong to the key
func ErrKeyMismatch() *SignatureError {
	return NewSignatureError(ErrCodeKeyMismatch, "certificate", "certificate public key does not match private key", nil)
}

// ErrMalformedDocument returns error when the document to sign is not XML
func ErrMalformedDocument(cause error) *SignatureError {
	return NewSignatureError(ErrCodeMalformedDoc, "document", "document is not well formed XML", cause)
}

// ErrSigningFailed returns error when the signature could not be produced
func ErrSigningFailed(cause error) *SignatureError {
	return NewSignatureError(ErrCodeSigningFailed, "signature", "signing failed", cause)
}

// ErrNoSignature returns error when no signature found in document
func ErrNoSignature() *SignatureError {
	return NewSignatureError(ErrCodeNoSignature, "", "no signature found in document", nil)
}

// ErrCertExpired returns error when certificate has expired
func ErrCertExpired(subject string) *SignatureError {
	return NewSignatureError(ErrCodeCertExpired, "certificate", fmt.Sprintf("certificate expired: %s", subject), nil)
}

// ErrCertNotYetValid returns error when certificate is not yet valid
func ErrCertNotYetValid(subject string) *SignatureError {
	return NewSignatureError(ErrCodeCertNotYetValid, "certificate", fmt.Sprintf("certificate not yet valid: %s", subject), nil)
}

// ErrCertRevoked returns error when certificate has been revoked
func ErrCertRevoked(subject string) *SignatureError {
	return NewSignatureError(ErrCodeCertRevoked, "certificate", fmt.Sprintf("certificate revoked: %s", subject), nil)
}

// ErrChainInvalid returns error when certificate chain is invalid
func ErrChainInvalid(cause error) *SignatureError {
	return NewSignatureError(ErrCodeChainInvalid, "chain", "certificate chain validation failed", cause)
}

// ErrOCSPUnavailable returns error when OCSP check fails
func ErrOCSPUnavailable(cause error) *SignatureError {
	return NewSignatureError(ErrCodeOCSPUnavailable, "ocsp", "OCSP check unavailable", cause)
}
