package mapper_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/einvoice-gateway/internal/mapper"
	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/wire"
)

func sampleInvoice() *model.Invoice {
	return &model.Invoice{
		Number:      "0000000001",
		BranchCode:  "0000",
		PointOfSale: "001",
		Type:        model.DocumentTypeInvoice,
		IssuedAt:    time.Date(2026, 3, 2, 9, 30, 0, 0, time.FixedZone("EST", -5*3600)),
		Emitter: model.Party{
			TaxID:   "123456789",
			Name:    "Emisor S.A.",
			Address: "Calle 50",
		},
		Receiver: model.Party{
			TaxID:   "987654-1-2020",
			Kind:    model.PartyTaxpayer,
			Name:    "Cliente S.A.",
			Address: "Via España",
			Email:   "cliente@example.com",
		},
		Items: []model.LineItem{
			{
				Code:        "P-1",
				Description: "Producto",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.RequireFromString("10.50"),
				TaxRate:     decimal.NewFromInt(7),
			},
		},
		Payment: model.Payment{Method: model.PaymentCash, Term: model.TermImmediate},
		Notes:   `Gracias por su "compra" & preferencia`,
	}
}

// render builds the Submit envelope so assertions can use element paths.
func render(t *testing.T, payload wire.Payload) *etree.Document {
	t.Helper()
	raw, err := wire.BuildEnvelope(wire.OpSubmit, wire.Credentials{Identity: "id", Secret: "secret"}, payload)
	require.NoError(t, err)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))
	return doc
}

func text(t *testing.T, doc *etree.Document, path string) string {
	t.Helper()
	el := doc.FindElement(path)
	require.NotNil(t, el, path)
	return el.Text()
}

func TestToWireSubmission_LineScenario(t *testing.T) {
	payload, err := mapper.ToWireSubmission(sampleInvoice())
	require.NoError(t, err)

	doc := render(t, payload)
	item := doc.FindElement("//ser:listaItems/ser:item")
	require.NotNil(t, item)

	assert.Equal(t, "2.00", item.FindElement("ser:cantidad").Text())
	assert.Equal(t, "10.50", item.FindElement("ser:precioUnitario").Text())
	assert.Equal(t, "21.00", item.FindElement("ser:precioItem").Text())
	assert.Equal(t, "1.47", item.FindElement("ser:valorITBMS").Text())
	assert.Equal(t, "22.47", item.FindElement("ser:valorTotal").Text())
	assert.Equal(t, "01", item.FindElement("ser:tasaITBMS").Text())
	assert.Nil(t, item.FindElement("ser:precioUnitarioDescuento"))

	assert.Equal(t, "123456789", text(t, doc, "//ser:emisor/ser:numeroRUC"))
	assert.Equal(t, "7", text(t, doc, "//ser:emisor/ser:digitoVerificadorRUC"))

	assert.Equal(t, "21.00", text(t, doc, "//ser:totalesSubTotales/ser:totalPrecioNeto"))
	assert.Equal(t, "1.47", text(t, doc, "//ser:totalesSubTotales/ser:totalITBMS"))
	assert.Equal(t, "22.47", text(t, doc, "//ser:totalesSubTotales/ser:totalFactura"))
	assert.Equal(t, "22.47", text(t, doc, "//ser:formaPago/ser:valorCuotaPagada"))
	assert.Equal(t, "02", text(t, doc, "//ser:formaPago/ser:formaPagoFact"))
	assert.Equal(t, "1", text(t, doc, "//ser:totalesSubTotales/ser:tiempoPago"))
	assert.Equal(t, "1", text(t, doc, "//ser:totalesSubTotales/ser:nroItems"))
}

func TestToWireSubmission_Header(t *testing.T) {
	payload, err := mapper.ToWireSubmission(sampleInvoice())
	require.NoError(t, err)

	doc := render(t, payload)
	assert.Equal(t, "0000", text(t, doc, "//tem:documento/ser:codigoSucursalEmisor"))
	assert.Equal(t, "01", text(t, doc, "//ser:datosTransaccion/ser:tipoDocumento"))
	assert.Equal(t, "0000000001", text(t, doc, "//ser:datosTransaccion/ser:numeroDocumentoFiscal"))
	assert.Equal(t, "001", text(t, doc, "//ser:datosTransaccion/ser:puntoFacturacionFiscal"))
	assert.Equal(t, "2026-03-02T09:30:00-05:00", text(t, doc, "//ser:datosTransaccion/ser:fechaEmision"))
	assert.Equal(t, `Gracias por su "compra" & preferencia`, text(t, doc, "//ser:datosTransaccion/ser:informacionInteres"))

	assert.Equal(t, "01", text(t, doc, "//ser:cliente/ser:tipoClienteFE"))
	assert.Equal(t, "1", text(t, doc, "//ser:cliente/ser:tipoContribuyente"))
	assert.Equal(t, "987654-1-2020", text(t, doc, "//ser:cliente/ser:numeroRUC"))
	assert.Equal(t, "2", text(t, doc, "//ser:cliente/ser:digitoVerificadorRUC"))
	assert.Equal(t, "PA", text(t, doc, "//ser:cliente/ser:pais"))
}

func TestToWireSubmission_CodeTables(t *testing.T) {
	tests := []struct {
		rate string
		code string
	}{
		{"0", "00"},
		{"7", "01"},
		{"7.00", "01"},
		{"10", "02"},
		{"15", "03"},
	}
	for _, tt := range tests {
		code, ok := mapper.TaxCode(decimal.RequireFromString(tt.rate))
		require.True(t, ok, tt.rate)
		assert.Equal(t, tt.code, code)
	}
	_, ok := mapper.TaxCode(decimal.NewFromInt(5))
	assert.False(t, ok)

	methods := map[model.PaymentMethod]string{
		model.PaymentCredit:     "01",
		model.PaymentCash:       "02",
		model.PaymentCreditCard: "03",
		model.PaymentDebitCard:  "04",
		model.PaymentTransfer:   "08",
		model.PaymentOther:      "99",
	}
	for method, code := range methods {
		inv := sampleInvoice()
		inv.Payment = model.Payment{Method: method, Term: model.TermDeferred}
		payload, err := mapper.ToWireSubmission(inv)
		require.NoError(t, err)
		doc := render(t, payload)
		assert.Equal(t, code, text(t, doc, "//ser:formaPago/ser:formaPagoFact"), string(method))
		assert.Equal(t, "2", text(t, doc, "//ser:tiempoPago"))
	}
}

func TestToWireSubmission_ListsEveryViolation(t *testing.T) {
	inv := &model.Invoice{
		Type:     "99",
		Emitter:  model.Party{TaxID: "123456789", CheckDigit: "3"},
		Receiver: model.Party{Kind: model.PartyTaxpayer},
		Items: []model.LineItem{
			{Quantity: decimal.Zero, UnitPrice: decimal.NewFromInt(-1), TaxRate: decimal.NewFromInt(5)},
		},
		Payment: model.Payment{Method: "barter", Term: "someday"},
	}

	payload, err := mapper.ToWireSubmission(inv)
	require.Error(t, err)
	assert.Nil(t, payload)

	var merr *model.MappingError
	require.ErrorAs(t, err, &merr)

	assert.Equal(t, []string{
		"Number",
		"BranchCode",
		"PointOfSale",
		"Type",
		"IssuedAt",
		"Emitter.CheckDigit",
		"Emitter.Name",
		"Receiver.Name",
		"Receiver.TaxID",
		"Receiver.Address",
		"Items[0].Description",
		"Items[0].Quantity",
		"Items[0].UnitPrice",
		"Items[0].TaxRate",
		"Payment.Method",
		"Payment.Term",
	}, merr.Fields())
}

func TestToWireSubmission_MalformedTaxID(t *testing.T) {
	inv := sampleInvoice()
	inv.Emitter.TaxID = "NOT-A-RUC"
	inv.Receiver.TaxID = "RUC"

	payload, err := mapper.ToWireSubmission(inv)
	require.Error(t, err)
	assert.Nil(t, payload)

	var merr *model.MappingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"Emitter.TaxID", "Receiver.TaxID"}, merr.Fields())
}

func TestToWireSubmission_NoItems(t *testing.T) {
	inv := sampleInvoice()
	inv.Items = nil

	_, err := mapper.ToWireSubmission(inv)
	var merr *model.MappingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"Items"}, merr.Fields())
}

func TestToWireSubmission_MatchingCheckDigitAccepted(t *testing.T) {
	inv := sampleInvoice()
	inv.Emitter.CheckDigit = "7"
	_, err := mapper.ToWireSubmission(inv)
	require.NoError(t, err)
}

func TestToWireSubmission_DeclaredTotals(t *testing.T) {
	inv := sampleInvoice()
	inv.Totals = &model.Totals{
		Subtotal: decimal.RequireFromString("21"),
		Tax:      decimal.RequireFromString("1.47"),
		Total:    decimal.RequireFromString("22.47"),
	}
	_, err := mapper.ToWireSubmission(inv)
	require.NoError(t, err)

	inv.Totals.Total = decimal.RequireFromString("22.48")
	_, err = mapper.ToWireSubmission(inv)
	var merr *model.MappingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"Totals.Total"}, merr.Fields())
}

func TestToWireSubmission_DiscountAndConsumer(t *testing.T) {
	inv := sampleInvoice()
	inv.Receiver = model.Party{Kind: model.PartyConsumer, Name: "Consumidor final"}
	inv.Items[0].Discount = decimal.RequireFromString("1.00")

	payload, err := mapper.ToWireSubmission(inv)
	require.NoError(t, err)

	doc := render(t, payload)
	assert.Equal(t, "1.00", text(t, doc, "//ser:item/ser:precioUnitarioDescuento"))
	assert.Equal(t, "20.00", text(t, doc, "//ser:item/ser:precioItem"))
	assert.Equal(t, "1.40", text(t, doc, "//ser:item/ser:valorITBMS"))
	assert.Equal(t, "21.40", text(t, doc, "//ser:item/ser:valorTotal"))
	assert.Equal(t, "1.00", text(t, doc, "//ser:totalDescuento"))
	assert.Equal(t, "02", text(t, doc, "//ser:cliente/ser:tipoClienteFE"))
	assert.Nil(t, doc.FindElement("//ser:cliente/ser:numeroRUC"))
	assert.Nil(t, doc.FindElement("//ser:cliente/ser:tipoContribuyente"))
}

func TestToWireSubmission_TaxableBase(t *testing.T) {
	inv := sampleInvoice()
	inv.Items = append(inv.Items, model.LineItem{
		Description: "Exento",
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.RequireFromString("8.00"),
		TaxRate:     decimal.Zero,
	})

	payload, err := mapper.ToWireSubmission(inv)
	require.NoError(t, err)

	doc := render(t, payload)
	assert.Equal(t, "29.00", text(t, doc, "//ser:totalesSubTotales/ser:totalPrecioNeto"))
	assert.Equal(t, "21.00", text(t, doc, "//ser:totalesSubTotales/ser:totalMontoGravado"))
	assert.Equal(t, "1.47", text(t, doc, "//ser:totalesSubTotales/ser:totalITBMS"))
}

func TestToWireSubmission_DiscountLargerThanLine(t *testing.T) {
	inv := sampleInvoice()
	inv.Items[0].Discount = decimal.NewFromInt(50)

	_, err := mapper.ToWireSubmission(inv)
	var merr *model.MappingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"Items[0].Discount"}, merr.Fields())
}

func TestWithSignedDocument(t *testing.T) {
	payload, err := mapper.ToWireSubmission(sampleInvoice())
	require.NoError(t, err)

	signed := mapper.WithSignedDocument(payload, []byte("<rFE/>"))
	v, ok := signed.Get(mapper.SignedDocumentField)
	require.True(t, ok)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("<rFE/>")), v)

	_, ok = payload.Get(mapper.SignedDocumentField)
	assert.False(t, ok)
}

func TestRenderForSigning(t *testing.T) {
	payload, err := mapper.ToWireSubmission(sampleInvoice())
	require.NoError(t, err)

	raw, err := mapper.RenderForSigning(payload)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))
	assert.Equal(t, mapper.FiscalDocumentRoot, doc.Root().Tag)
	assert.NotNil(t, doc.FindElement("//item/valorTotal"))
}
