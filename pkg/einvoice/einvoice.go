// Package einvoice is the public API of the fiscal document gateway.
//
// It submits, queries, downloads and cancels fiscal documents at the remote
// electronic invoicing service on behalf of many tenants, each call carrying
// the tenant's own credential.
//
// Example usage:
//
//	cfg, err := einvoice.LoadConfig("gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := einvoice.NewClient(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	sub, err := client.Submit(ctx, tenantID, invoice, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(sub.DocumentID)
package einvoice

import (
	"github.com/rezonia/einvoice-gateway/internal/config"
	"github.com/rezonia/einvoice-gateway/internal/credential"
	"github.com/rezonia/einvoice-gateway/internal/gateway"
	"github.com/rezonia/einvoice-gateway/internal/mapper"
	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/signature"
	"github.com/rezonia/einvoice-gateway/internal/taxid"
)

// Re-export core types for public API
type (
	Invoice       = model.Invoice
	Party         = model.Party
	LineItem      = model.LineItem
	Payment       = model.Payment
	Totals        = model.Totals
	DocumentRef   = model.DocumentRef
	DocumentType  = model.DocumentType
	PartyKind     = model.PartyKind
	PaymentMethod = model.PaymentMethod
	PaymentTerm   = model.PaymentTerm
	Environment   = model.Environment
	Config        = config.Config
)

// Re-export result types
type (
	Submission     = gateway.Submission
	Download       = mapper.Download
	DocumentStatus = mapper.DocumentStatus
	EventReceipt   = mapper.EventReceipt
	FolioBalance   = mapper.FolioBalance
	TaxpayerCheck  = mapper.TaxpayerCheck
	TaxpayerKind   = mapper.TaxpayerKind
	KeyMaterial    = signature.KeyMaterial
	Signed         = signature.Signed
	Credential     = credential.Credential
	TaxIDCheck     = taxid.Validation
)

// CredentialResolver replaces the built-in stored/operator resolution
type CredentialResolver = gateway.CredentialResolver

// Re-export document types
const (
	DocumentTypeInvoice    = model.DocumentTypeInvoice
	DocumentTypeExport     = model.DocumentTypeExport
	DocumentTypeCreditNote = model.DocumentTypeCreditNote
	DocumentTypeDebitNote  = model.DocumentTypeDebitNote
)

// Re-export party kinds
const (
	PartyTaxpayer   = model.PartyTaxpayer
	PartyConsumer   = model.PartyConsumer
	PartyGovernment = model.PartyGovernment
	PartyForeign    = model.PartyForeign
)

// Re-export payment methods and terms
const (
	PaymentCredit     = model.PaymentCredit
	PaymentCash       = model.PaymentCash
	PaymentCreditCard = model.PaymentCreditCard
	PaymentDebitCard  = model.PaymentDebitCard
	PaymentTransfer   = model.PaymentTransfer
	PaymentOther      = model.PaymentOther

	TermImmediate = model.TermImmediate
	TermDeferred  = model.TermDeferred
	TermMixed     = model.TermMixed
)

// Re-export environments and taxpayer kinds
const (
	EnvSandbox    = model.EnvSandbox
	EnvProduction = model.EnvProduction

	TaxpayerNatural   = mapper.TaxpayerNatural
	TaxpayerJuridical = mapper.TaxpayerJuridical
)

// Re-export error types
type (
	TransportError              = model.TransportError
	BusinessError               = model.BusinessError
	ParseError                  = model.ParseError
	CredentialsUnavailableError = model.CredentialsUnavailableError
	ValidationError             = model.ValidationError
	MappingError                = model.MappingError
	RetryExhaustedError         = model.RetryExhaustedError
	SignatureError              = signature.SignatureError
)

// LoadConfig reads the YAML file at path (optional) and FE_ environment
// overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseKeyMaterial parses a PEM key, certificate and optional chain.
func ParseKeyMaterial(keyPEM, certPEM, chainPEM []byte) (*KeyMaterial, error) {
	return signature.ParseKeyMaterial(keyPEM, certPEM, chainPEM)
}

// VerifySignature reports whether a signed document verifies with the
// certificate's key.
func VerifySignature(signedDoc []byte, km *KeyMaterial) bool {
	if km == nil {
		return false
	}
	return signature.Verify(signedDoc, km.Certificate)
}

// CheckDigit returns the check digit of a taxpayer identifier body.
func CheckDigit(body string) string {
	return taxid.Checksum(body)
}

// ValidateTaxID checks the structure and check digit of a full identifier.
func ValidateTaxID(id string) TaxIDCheck {
	return taxid.ValidateFull(id)
}
