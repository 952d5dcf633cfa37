package model

import (
	"time"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/einvoice-gateway/internal/decimal"
)

// DocumentType is the fiscal document type code
type DocumentType string

const (
	DocumentTypeInvoice    DocumentType = "01"
	DocumentTypeExport     DocumentType = "03"
	DocumentTypeCreditNote DocumentType = "04"
	DocumentTypeDebitNote  DocumentType = "05"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeInvoice, DocumentTypeExport, DocumentTypeCreditNote, DocumentTypeDebitNote:
		return true
	}
	return false
}

// PartyKind classifies the receiver of a document
type PartyKind string

const (
	PartyTaxpayer   PartyKind = "01"
	PartyConsumer   PartyKind = "02"
	PartyGovernment PartyKind = "03"
	PartyForeign    PartyKind = "04"
)

// PaymentMethod is how the document is paid
type PaymentMethod string

const (
	PaymentCredit     PaymentMethod = "credit"
	PaymentCash       PaymentMethod = "cash"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentTransfer   PaymentMethod = "transfer"
	PaymentOther      PaymentMethod = "other"
)

// PaymentTerm is when the document is paid
type PaymentTerm string

const (
	TermImmediate PaymentTerm = "immediate"
	TermDeferred  PaymentTerm = "deferred"
	TermMixed     PaymentTerm = "mixed"
)

// Invoice is the canonical fiscal document handed over by the invoice
// management layer. It is treated as immutable input.
type Invoice struct {
	Number      string       `json:"number"`
	BranchCode  string       `json:"branch_code"`
	PointOfSale string       `json:"point_of_sale"`
	Type        DocumentType `json:"type"`
	IssuedAt    time.Time    `json:"issued_at"`

	Emitter  Party `json:"emitter"`
	Receiver Party `json:"receiver"`

	Items   []LineItem `json:"items"`
	Payment Payment    `json:"payment"`
	Notes   string     `json:"notes,omitempty"`

	// Totals as declared by the caller, if any. When set they must agree
	// with the totals computed from the lines.
	Totals *Totals `json:"totals,omitempty"`
}

// Party represents emitter or receiver
type Party struct {
	TaxID        string    `json:"tax_id"`
	CheckDigit   string    `json:"check_digit,omitempty"`
	Kind         PartyKind `json:"kind"`
	Name         string    `json:"name"`
	Address      string    `json:"address,omitempty"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	LocationCode string    `json:"location_code,omitempty"`
}

// LineItem represents a single line on the document
type LineItem struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Unit        string          `json:"unit,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"` // line amount, not a percentage
	TaxRate     decimal.Decimal `json:"tax_rate"` // percent
}

// LineAmounts are the derived amounts of a line item
type LineAmounts struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Amounts computes subtotal, tax and total of the line.
func (item LineItem) Amounts() LineAmounts {
	subtotal := money.CalculateSubtotal(item.Quantity, item.UnitPrice, item.Discount)
	tax := money.CalculateTax(subtotal, item.TaxRate)
	return LineAmounts{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    money.CalculateLineTotal(subtotal, tax),
	}
}

// Payment describes method and term of payment
type Payment struct {
	Method PaymentMethod   `json:"method"`
	Term   PaymentTerm     `json:"term"`
	Amount decimal.Decimal `json:"amount"` // zero means the document total
}

// Totals is the totals block of a document
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	// Taxable is the sum of line subtotals carrying a non-zero tax rate
	Taxable decimal.Decimal `json:"taxable"`
}

// ComputeTotals sums the line amounts.
func (inv *Invoice) ComputeTotals() Totals {
	var subtotals, discounts, taxes, taxable []decimal.Decimal
	for _, item := range inv.Items {
		a := item.Amounts()
		subtotals = append(subtotals, a.Subtotal)
		discounts = append(discounts, item.Discount)
		taxes = append(taxes, a.Tax)
		if !item.TaxRate.IsZero() {
			taxable = append(taxable, a.Subtotal)
		}
	}

	t := Totals{
		Subtotal: money.Sum(subtotals),
		Discount: money.Sum(discounts),
		Tax:      money.Sum(taxes),
		Taxable:  money.Sum(taxable),
	}
	t.Total = t.Subtotal.Add(t.Tax)
	return t
}

// DocumentRef identifies an already issued document for the download,
// status, cancellation and email operations.
type DocumentRef struct {
	EmitterTaxID      string       `json:"emitter_tax_id,omitempty"`
	EmitterCheckDigit string       `json:"emitter_check_digit,omitempty"`
	Type              DocumentType `json:"type"`
	Number            string       `json:"number"`
	BranchCode        string       `json:"branch_code"`
	PointOfSale       string       `json:"point_of_sale"`
}

// Ref returns the reference of an invoice.
func (inv *Invoice) Ref() DocumentRef {
	return DocumentRef{
		EmitterTaxID:      inv.Emitter.TaxID,
		EmitterCheckDigit: inv.Emitter.CheckDigit,
		Type:              inv.Type,
		Number:            inv.Number,
		BranchCode:        inv.BranchCode,
		PointOfSale:       inv.PointOfSale,
	}
}
