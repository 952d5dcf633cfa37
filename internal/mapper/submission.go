// Package mapper converts domain documents into wire payloads and wire results
// back into domain outcomes.
package mapper

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/einvoice-gateway/internal/decimal"
	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/taxid"
	"github.com/rezonia/einvoice-gateway/internal/wire"
)

// DateLayout is the wire format of timestamps.
const DateLayout = "2006-01-02T15:04:05-07:00"

// SignedDocumentField carries the signed rendering of the document.
const SignedDocumentField = "documentoFirmado"

// FiscalDocumentRoot and FiscalNamespace name the standalone document that is
// signed before submission.
const (
	FiscalDocumentRoot = "rFE"
	FiscalNamespace    = "http://dgi-fep.mef.gob.pa"
)

type taxCode struct {
	rate decimal.Decimal
	code string
}

var taxCodes = []taxCode{
	{decimal.NewFromInt(0), "00"},
	{decimal.NewFromInt(7), "01"},
	{decimal.NewFromInt(10), "02"},
	{decimal.NewFromInt(15), "03"},
}

// TaxCode resolves the wire tax code of a rate in percent.
func TaxCode(rate decimal.Decimal) (string, bool) {
	for _, tc := range taxCodes {
		if tc.rate.Equal(rate) {
			return tc.code, true
		}
	}
	return "", false
}

var paymentMethods = map[model.PaymentMethod]string{
	model.PaymentCredit:     "01",
	model.PaymentCash:       "02",
	model.PaymentCreditCard: "03",
	model.PaymentDebitCard:  "04",
	model.PaymentTransfer:   "08",
	model.PaymentOther:      "99",
}

var paymentTerms = map[model.PaymentTerm]string{
	model.TermImmediate: "1",
	model.TermDeferred:  "2",
	model.TermMixed:     "3",
}

var partyKinds = map[model.PartyKind]bool{
	model.PartyTaxpayer:   true,
	model.PartyConsumer:   true,
	model.PartyGovernment: true,
	model.PartyForeign:    true,
}

// ToWireSubmission maps an invoice into the Submit payload. Every violated
// rule is collected into a *model.MappingError; no payload is returned then.
func ToWireSubmission(inv *model.Invoice) (wire.Payload, error) {
	merr := &model.MappingError{}

	requireText(merr, "Number", inv.Number)
	requireText(merr, "BranchCode", inv.BranchCode)
	requireText(merr, "PointOfSale", inv.PointOfSale)
	if !inv.Type.Valid() {
		merr.Add("Type", string(inv.Type), "enum", "unknown document type")
	}
	if inv.IssuedAt.IsZero() {
		merr.Add("IssuedAt", nil, "required", "is required")
	}

	emitterDigit := identifier(merr, "Emitter", inv.Emitter, true)
	requireText(merr, "Emitter.Name", inv.Emitter.Name)

	receiverDigit := ""
	if !partyKinds[inv.Receiver.Kind] {
		merr.Add("Receiver.Kind", string(inv.Receiver.Kind), "enum", "unknown receiver kind")
	}
	requireText(merr, "Receiver.Name", inv.Receiver.Name)
	switch inv.Receiver.Kind {
	case model.PartyTaxpayer, model.PartyGovernment:
		receiverDigit = identifier(merr, "Receiver", inv.Receiver, true)
		requireText(merr, "Receiver.Address", inv.Receiver.Address)
	case model.PartyConsumer:
		receiverDigit = identifier(merr, "Receiver", inv.Receiver, false)
	}

	items := mapItems(merr, inv.Items)

	method, ok := paymentMethods[inv.Payment.Method]
	if !ok {
		merr.Add("Payment.Method", string(inv.Payment.Method), "enum", "unknown payment method")
	}
	term := paymentTerms[model.TermImmediate]
	if inv.Payment.Term != "" {
		if term, ok = paymentTerms[inv.Payment.Term]; !ok {
			merr.Add("Payment.Term", string(inv.Payment.Term), "enum", "unknown payment term")
		}
	}

	totals := inv.ComputeTotals()
	if inv.Totals != nil {
		crossCheck(merr, "Totals.Subtotal", inv.Totals.Subtotal, totals.Subtotal)
		crossCheck(merr, "Totals.Tax", inv.Totals.Tax, totals.Tax)
		crossCheck(merr, "Totals.Total", inv.Totals.Total, totals.Total)
		if !inv.Totals.Discount.IsZero() {
			crossCheck(merr, "Totals.Discount", inv.Totals.Discount, totals.Discount)
		}
	}

	paid := inv.Payment.Amount
	if paid.IsZero() {
		paid = totals.Total
	} else if !money.IsNonNegative(paid) {
		merr.Add("Payment.Amount", paid.String(), "non_negative", "must not be negative")
	}

	if err := merr.ErrOrNil(); err != nil {
		return nil, err
	}

	return wire.Payload{
		{Name: "codigoSucursalEmisor", Value: inv.BranchCode},
		{Name: "tipoSucursal", Value: "1"},
		{Name: "datosTransaccion", Value: wire.Payload{
			{Name: "tipoEmision", Value: "01"},
			{Name: "tipoDocumento", Value: string(inv.Type)},
			{Name: "numeroDocumentoFiscal", Value: inv.Number},
			{Name: "puntoFacturacionFiscal", Value: inv.PointOfSale},
			{Name: "fechaEmision", Value: inv.IssuedAt.Format(DateLayout)},
			{Name: "naturalezaOperacion", Value: "01"},
			{Name: "tipoOperacion", Value: "1"},
			{Name: "destinoOperacion", Value: destination(inv.Receiver.Kind)},
			{Name: "formatoCAFE", Value: "1"},
			{Name: "entregaCAFE", Value: "1"},
			{Name: "envioContenedor", Value: "1"},
			{Name: "procesoGeneracion", Value: "1"},
			{Name: "tipoVenta", Value: "1"},
			{Name: "informacionInteres", Value: inv.Notes},
			{Name: "emisor", Value: partyPayload(inv.Emitter, emitterDigit)},
			{Name: "cliente", Value: clientPayload(inv.Receiver, receiverDigit)},
		}},
		{Name: "listaItems", Value: wire.Payload{{Name: "item", Value: items}}},
		{Name: "totalesSubTotales", Value: wire.Payload{
			{Name: "totalPrecioNeto", Value: money.Format(totals.Subtotal)},
			{Name: "totalITBMS", Value: money.Format(totals.Tax)},
			{Name: "totalMontoGravado", Value: money.Format(totals.Taxable)},
			{Name: "totalDescuento", Value: money.Format(totals.Discount)},
			{Name: "totalFactura", Value: money.Format(totals.Total)},
			{Name: "totalValorRecibido", Value: money.Format(paid)},
			{Name: "tiempoPago", Value: term},
			{Name: "nroItems", Value: strconv.Itoa(len(items))},
			{Name: "totalTodosItems", Value: money.Format(totals.Total)},
			{Name: "listaFormaPago", Value: wire.Payload{{Name: "formaPago", Value: []wire.Payload{{
				{Name: "formaPagoFact", Value: method},
				{Name: "valorCuotaPagada", Value: money.Format(paid)},
			}}}}},
		}},
	}, nil
}

// WithSignedDocument returns payload carrying the signed document, base64
// encoded.
func WithSignedDocument(payload wire.Payload, signed []byte) wire.Payload {
	return payload.With(SignedDocumentField, base64.StdEncoding.EncodeToString(signed))
}

// RenderForSigning renders the submission payload as the standalone document
// that gets signed.
func RenderForSigning(payload wire.Payload) ([]byte, error) {
	return wire.RenderDocument(FiscalDocumentRoot, FiscalNamespace, payload)
}

func mapItems(merr *model.MappingError, items []model.LineItem) []wire.Payload {
	if len(items) == 0 {
		merr.Add("Items", nil, "required", "at least one line item is required")
		return nil
	}

	out := make([]wire.Payload, 0, len(items))
	for i, item := range items {
		field := "Items[" + strconv.Itoa(i) + "]"

		requireText(merr, field+".Description", item.Description)
		if !money.IsPositive(item.Quantity) {
			merr.Add(field+".Quantity", item.Quantity.String(), "positive", "must be greater than zero")
		}
		if !money.IsNonNegative(item.UnitPrice) {
			merr.Add(field+".UnitPrice", item.UnitPrice.String(), "non_negative", "must not be negative")
		}
		if !money.IsNonNegative(item.Discount) {
			merr.Add(field+".Discount", item.Discount.String(), "non_negative", "must not be negative")
		} else if item.Discount.GreaterThan(item.Quantity.Mul(item.UnitPrice)) {
			merr.Add(field+".Discount", item.Discount.String(), "max", "must not exceed quantity times unit price")
		}
		code, ok := TaxCode(item.TaxRate)
		if !ok {
			merr.Add(field+".TaxRate", item.TaxRate.String(), "enum", "no tax code for rate")
		}

		a := item.Amounts()
		out = append(out, wire.Payload{
			{Name: "descripcion", Value: item.Description},
			{Name: "codigo", Value: item.Code},
			{Name: "unidadMedida", Value: item.Unit},
			{Name: "cantidad", Value: money.FormatQuantity(item.Quantity)},
			{Name: "precioUnitario", Value: money.Format(item.UnitPrice)},
			{Name: "precioUnitarioDescuento", Value: nonZero(item.Discount)},
			{Name: "precioItem", Value: money.Format(a.Subtotal)},
			{Name: "valorTotal", Value: money.Format(a.Total)},
			{Name: "tasaITBMS", Value: code},
			{Name: "valorITBMS", Value: money.Format(a.Tax)},
		})
	}
	return out
}

// identifier checks a party's identifier and returns the check digit to emit.
// A supplied check digit must match the computed one.
func identifier(merr *model.MappingError, field string, p model.Party, required bool) string {
	body := strings.TrimSpace(p.TaxID)
	if body == "" {
		if required {
			merr.Add(field+".TaxID", nil, "required", "is required")
		}
		return ""
	}
	if err := taxid.ValidateBody(body); err != nil {
		merr.Add(field+".TaxID", body, "format", err.Error())
		return ""
	}

	digit := taxid.Checksum(body)
	if p.CheckDigit != "" && strings.TrimSpace(p.CheckDigit) != digit {
		merr.Add(field+".CheckDigit", p.CheckDigit, "checksum", "check digit does not match, expected "+digit)
	}
	return digit
}

func partyPayload(p model.Party, digit string) wire.Payload {
	return wire.Payload{
		{Name: "numeroRUC", Value: strings.TrimSpace(p.TaxID)},
		{Name: "digitoVerificadorRUC", Value: digit},
		{Name: "razonSocial", Value: p.Name},
		{Name: "direccion", Value: p.Address},
		{Name: "codigoUbicacion", Value: p.LocationCode},
		{Name: "telefono1", Value: p.Phone},
		{Name: "correoElectronico1", Value: p.Email},
	}
}

func clientPayload(p model.Party, digit string) wire.Payload {
	out := wire.Payload{{Name: "tipoClienteFE", Value: string(p.Kind)}}
	if p.Kind == model.PartyTaxpayer {
		out = append(out, wire.Field{Name: "tipoContribuyente", Value: contributorType(p.TaxID)})
	}
	out = append(out, partyPayload(p, digit)...)
	if p.Kind != model.PartyForeign {
		out = append(out, wire.Field{Name: "pais", Value: "PA"})
	}
	return out
}

// contributorType is "2" for juridical identifiers (type segment 2), else "1".
func contributorType(id string) string {
	segments := strings.Split(strings.TrimSpace(id), "-")
	if len(segments) >= 2 && segments[1] == "2" {
		return "2"
	}
	return "1"
}

func destination(kind model.PartyKind) string {
	if kind == model.PartyForeign {
		return "2"
	}
	return "1"
}

func crossCheck(merr *model.MappingError, field string, declared, computed decimal.Decimal) {
	if !declared.Round(money.Places).Equal(computed) {
		merr.Add(field, money.Format(declared), "matches_lines", "declared amount differs from computed "+money.Format(computed))
	}
}

func requireText(merr *model.MappingError, field, value string) {
	if strings.TrimSpace(value) == "" {
		merr.Add(field, nil, "required", "is required")
	}
}

func nonZero(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return money.Format(d)
}
