package mapper_test

import (
	"encoding/base64"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/einvoice-gateway/internal/mapper"
	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/wire"
)

func submitResponse(code string) []byte {
	return []byte(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
		`<EnviarResponse xmlns="http://tempuri.org/"><EnviarResult xmlns:a="x">` +
		`<a:codigo>` + code + `</a:codigo><a:resultado>procesado</a:resultado>` +
		`<a:mensaje>Autorizado</a:mensaje><a:cufe>FE01-1</a:cufe><a:qr>https://qr</a:qr>` +
		`</EnviarResult></EnviarResponse></s:Body></s:Envelope>`)
}

func TestFromWireResult_SubmitScenarios(t *testing.T) {
	res, err := wire.ParseResponse(submitResponse("0260"), wire.OpSubmit)
	require.NoError(t, err)

	outcome := mapper.FromWireResult(res)
	require.True(t, outcome.Accepted())
	accepted, ok := outcome.(mapper.DocumentAccepted)
	require.True(t, ok)
	assert.Equal(t, "FE01-1", accepted.DocumentID)
	assert.Equal(t, "https://qr", accepted.QRPayload)
	assert.Equal(t, "0260", accepted.Code)

	_, err = wire.ParseResponse(submitResponse("0400"), wire.OpSubmit)
	var be *model.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "0400", be.Code)
}

func TestFromWireResult_WrongFamilyForOperation(t *testing.T) {
	res := &wire.Result{Operation: wire.OpSubmit, Code: "0600", Family: wire.FamilyEvent, Message: "evento"}

	outcome := mapper.FromWireResult(res)
	require.False(t, outcome.Accepted())
	rejected, ok := outcome.(mapper.DocumentRejected)
	require.True(t, ok)
	assert.Equal(t, "Enviar", rejected.Operation)
	assert.Equal(t, wire.FamilyEvent, rejected.Family)

	var be *model.BusinessError
	require.ErrorAs(t, rejected.Err(), &be)
	assert.Equal(t, "0600", be.Code)
}

func TestFromWireResult_PerOperationFamilies(t *testing.T) {
	tests := []struct {
		op       wire.Operation
		code     string
		accepted bool
	}{
		{wire.OpSubmit, "0261", true},
		{wire.OpSubmit, "200", true},
		{wire.OpSubmit, "0", false},
		{wire.OpDownloadXML, "0101", true},
		{wire.OpDownloadXML, "000", true},
		{wire.OpRemainingFolios, "0600", false},
		{wire.OpCancel, "0600", true},
		{wire.OpSendEmail, "0101", false},
		{wire.OpLookupTaxpayer, "200", true},
	}

	for _, tt := range tests {
		t.Run(tt.op.Name()+"/"+tt.code, func(t *testing.T) {
			outcome := mapper.FromWireResult(&wire.Result{Operation: tt.op, Code: tt.code})
			assert.Equal(t, tt.accepted, outcome.Accepted())
		})
	}
}

func TestToWireReference(t *testing.T) {
	ref := model.DocumentRef{
		EmitterTaxID: "123456789",
		Type:         model.DocumentTypeInvoice,
		Number:       "0000000001",
		BranchCode:   "0000",
		PointOfSale:  "001",
	}

	payload, err := mapper.ToWireReference(ref)
	require.NoError(t, err)

	v, _ := payload.Get("numeroDocumentoFiscal")
	assert.Equal(t, "0000000001", v)
	v, _ = payload.Get("digitoVerificadorRUC")
	assert.Equal(t, "7", v)
	v, _ = payload.Get("tipoEmision")
	assert.Equal(t, "01", v)

	_, err = mapper.ToWireReference(model.DocumentRef{})
	var merr *model.MappingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"Number", "BranchCode", "PointOfSale", "Type"}, merr.Fields())

	ref.EmitterTaxID = "NOT-A-RUC"
	_, err = mapper.ToWireReference(ref)
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"EmitterTaxID"}, merr.Fields())
}

func TestToWireCancellation(t *testing.T) {
	ref := model.DocumentRef{Type: model.DocumentTypeInvoice, Number: "1", BranchCode: "0000", PointOfSale: "001"}

	payload, err := mapper.ToWireCancellation(ref, "  Error en el monto facturado ")
	require.NoError(t, err)
	v, ok := payload.Get("motivoAnulacion")
	require.True(t, ok)
	assert.Equal(t, "Error en el monto facturado", v)
	v, ok = payload.Get(wire.WrapperReference)
	require.True(t, ok)
	number, _ := v.(wire.Payload).Get("numeroDocumentoFiscal")
	assert.Equal(t, "1", number)

	_, err = mapper.ToWireCancellation(ref, "")
	var merr *model.MappingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"Reason"}, merr.Fields())
}

func TestToWireEmail(t *testing.T) {
	ref := model.DocumentRef{Type: model.DocumentTypeInvoice, Number: "1", BranchCode: "0000", PointOfSale: "001"}

	payload, err := mapper.ToWireEmail(ref, "cliente@example.com")
	require.NoError(t, err)
	v, _ := payload.Get("correo")
	assert.Equal(t, "cliente@example.com", v)

	for _, bad := range []string{"", "not-an-email", "Cliente <cliente@example.com>"} {
		_, err = mapper.ToWireEmail(ref, bad)
		var merr *model.MappingError
		require.ErrorAs(t, err, &merr, bad)
		assert.Equal(t, []string{"Address"}, merr.Fields())
	}
}

func TestReferenceSiblingsInEnvelope(t *testing.T) {
	ref := model.DocumentRef{Type: model.DocumentTypeInvoice, Number: "1", BranchCode: "0000", PointOfSale: "001"}

	cancel, err := mapper.ToWireCancellation(ref, "Error en el monto")
	require.NoError(t, err)
	email, err := mapper.ToWireEmail(ref, "cliente@example.com")
	require.NoError(t, err)

	tests := []struct {
		op      wire.Operation
		payload wire.Payload
		field   string
	}{
		{wire.OpCancel, cancel, "motivoAnulacion"},
		{wire.OpSendEmail, email, "correo"},
	}

	for _, tt := range tests {
		t.Run(tt.op.Name(), func(t *testing.T) {
			raw, err := wire.BuildEnvelope(tt.op, wire.Credentials{Identity: "id", Secret: "secret"}, tt.payload)
			require.NoError(t, err)

			doc := etree.NewDocument()
			require.NoError(t, doc.ReadFromBytes(raw))

			field := doc.FindElement("//tem:" + tt.field)
			require.NotNil(t, field)
			assert.Equal(t, "tem:"+tt.op.Name(), field.Parent().FullTag())

			wrappers := doc.FindElements("//tem:" + wire.WrapperReference)
			require.Len(t, wrappers, 1)
			assert.Equal(t, "tem:"+tt.op.Name(), wrappers[0].Parent().FullTag())
			assert.NotNil(t, wrappers[0].SelectElement("ser:numeroDocumentoFiscal"))
			assert.Nil(t, wrappers[0].SelectElement("tem:"+tt.field))
		})
	}
}

func TestToWireTaxpayerQuery(t *testing.T) {
	payload, err := mapper.ToWireTaxpayerQuery(mapper.TaxpayerJuridical, "155596713-2-2015")
	require.NoError(t, err)

	v, ok := payload.Get("consultarRucDVRequest")
	require.True(t, ok)
	inner := v.(wire.Payload)
	kind, _ := inner.Get("tipoRuc")
	assert.Equal(t, "2", kind)
	ruc, _ := inner.Get("ruc")
	assert.Equal(t, "155596713-2-2015", ruc)

	_, err = mapper.ToWireTaxpayerQuery("9", "")
	var merr *model.MappingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"Kind", "TaxID"}, merr.Fields())
}

func TestToDownload_XML(t *testing.T) {
	content := []byte(`<rFE><dVerForm>1.00</dVerForm></rFE>`)
	res := &wire.Result{
		Operation:  wire.OpDownloadXML,
		Code:       "200",
		DocumentID: "FE01-1",
		Content:    base64.StdEncoding.EncodeToString(content),
	}

	dl, err := mapper.ToDownload(res, mapper.ContentXML)
	require.NoError(t, err)
	assert.Equal(t, content, dl.Content)
	assert.Equal(t, "FE01-1", dl.DocumentID)
	assert.Equal(t, "application/xml", dl.MediaType())
}

func TestToDownload_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    mapper.ContentKind
	}{
		{"empty", "", mapper.ContentXML},
		{"bad base64", "@@@", mapper.ContentXML},
		{"not xml", base64.StdEncoding.EncodeToString([]byte("plain text")), mapper.ContentXML},
		{"not pdf", base64.StdEncoding.EncodeToString([]byte("this is not a pdf")), mapper.ContentPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &wire.Result{Operation: wire.OpDownloadPDF, Code: "200", Content: tt.content}
			_, err := mapper.ToDownload(res, tt.kind)
			var pe *model.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "documento", pe.Field)
		})
	}
}

func TestToFolioBalance(t *testing.T) {
	res := &wire.Result{
		Operation: wire.OpRemainingFolios,
		Folios:    wire.FolioBalance{Total: "100", Used: "40", Available: "60"},
	}
	balance, err := mapper.ToFolioBalance(res)
	require.NoError(t, err)
	assert.Equal(t, mapper.FolioBalance{Total: 100, Used: 40, Available: 60}, balance)

	_, err = mapper.ToFolioBalance(&wire.Result{Operation: wire.OpRemainingFolios})
	var pe *model.ParseError
	require.ErrorAs(t, err, &pe)

	_, err = mapper.ToFolioBalance(&wire.Result{Operation: wire.OpRemainingFolios, Folios: wire.FolioBalance{Available: "many"}})
	require.ErrorAs(t, err, &pe)
}

func TestToDocumentStatusAndReceipts(t *testing.T) {
	status := mapper.ToDocumentStatus(&wire.Result{
		Operation: wire.OpDocumentStatus, Code: "0101", Result: "Autorizada", DocumentID: "FE01-1",
	})
	assert.Equal(t, "Autorizada", status.Status)
	assert.Equal(t, "FE01-1", status.DocumentID)

	receipt := mapper.ToEventReceipt(&wire.Result{Operation: wire.OpSendEmail, Code: "0600", TrackingID: "trk-1"})
	assert.Equal(t, "EnvioCorreo", receipt.Operation)
	assert.Equal(t, "trk-1", receipt.TrackingID)
}

func TestToTaxpayerCheck(t *testing.T) {
	check, err := mapper.ToTaxpayerCheck(&wire.Result{
		Operation: wire.OpLookupTaxpayer, Code: "200", CheckDigit: "59", TaxpayerName: "ACME",
	}, " 155596713-2-2015 ")
	require.NoError(t, err)
	assert.Equal(t, mapper.TaxpayerCheck{TaxID: "155596713-2-2015", CheckDigit: "59", Name: "ACME"}, check)

	_, err = mapper.ToTaxpayerCheck(&wire.Result{Operation: wire.OpLookupTaxpayer, Code: "200"}, "1")
	var pe *model.ParseError
	require.ErrorAs(t, err, &pe)
}
