package fakeservice_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/einvoice-gateway/internal/fakeservice"
	"github.com/rezonia/einvoice-gateway/internal/mapper"
	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/transport"
	"github.com/rezonia/einvoice-gateway/internal/wire"
)

var account = wire.Credentials{Identity: "tenant-token", Secret: "tenant-password"}

type harness struct {
	fake   *fakeservice.Server
	server *httptest.Server
	client *transport.Client
}

func newHarness(t *testing.T, cfg *fakeservice.Config) *harness {
	t.Helper()
	fake := fakeservice.NewServer(cfg)
	fake.AddAccount(account.Identity, account.Secret, 2)

	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	client := transport.New(transport.Config{
		SandboxURL:    srv.URL + fakeservice.Path,
		ProductionURL: srv.URL + fakeservice.Path,
		Timeout:       5 * time.Second,
	})
	return &harness{fake: fake, server: srv, client: client}
}

func (h *harness) call(t *testing.T, op wire.Operation, creds wire.Credentials, payload wire.Payload) (*wire.Result, error) {
	t.Helper()
	envelope, err := wire.BuildEnvelope(op, creds, payload)
	require.NoError(t, err)
	raw, err := h.client.Execute(context.Background(), op, model.EnvSandbox, envelope)
	if err != nil {
		return nil, err
	}
	return wire.ParseResponse(raw, op)
}

func invoice(number string) *model.Invoice {
	return &model.Invoice{
		Number:      number,
		BranchCode:  "0000",
		PointOfSale: "001",
		Type:        model.DocumentTypeInvoice,
		IssuedAt:    time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		Emitter:     model.Party{TaxID: "155596713-2-2015", Name: "Comercial Istmo S.A.", Address: "Calle 50"},
		Receiver:    model.Party{Kind: model.PartyConsumer, Name: "Consumidor Final"},
		Items: []model.LineItem{{
			Code:        "SKU-1",
			Description: "Cafe & azucar",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.RequireFromString("4.25"),
			TaxRate:     decimal.NewFromInt(7),
		}},
		Payment: model.Payment{Method: model.PaymentCash},
	}
}

func (h *harness) submit(t *testing.T, inv *model.Invoice) (*wire.Result, error) {
	t.Helper()
	payload, err := mapper.ToWireSubmission(inv)
	require.NoError(t, err)
	return h.call(t, wire.OpSubmit, account, payload)
}

func reference(t *testing.T, inv *model.Invoice) wire.Payload {
	t.Helper()
	payload, err := mapper.ToWireReference(inv.Ref())
	require.NoError(t, err)
	return payload
}

func requireBusinessCode(t *testing.T, err error, code string) {
	t.Helper()
	var be *model.BusinessError
	require.True(t, errors.As(err, &be), "want BusinessError, got %v", err)
	assert.Equal(t, code, be.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv := fakeservice.NewServer(&fakeservice.Config{Debug: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
}

func TestSubmit_AcceptedThenDuplicate(t *testing.T) {
	h := newHarness(t, nil)
	inv := invoice("0000000001")

	res, err := h.submit(t, inv)
	require.NoError(t, err)
	assert.Equal(t, "0260", res.Code)
	assert.Equal(t, wire.FamilyAcceptance, res.Family)
	assert.NotEmpty(t, res.DocumentID)
	assert.Contains(t, res.QRPayload, res.DocumentID)
	assert.NotEmpty(t, res.ReceivedAt)
	assert.Len(t, res.AuthorizationProtocol, 20)

	_, err = h.submit(t, inv)
	requireBusinessCode(t, err, "0400")

	calls := h.fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, wire.OpSubmit, calls[0].Operation)
	assert.Equal(t, account.Identity, calls[0].Identity)
}

func TestSubmit_ConsumesFolios(t *testing.T) {
	h := newHarness(t, nil)

	for _, n := range []string{"1", "2"} {
		_, err := h.submit(t, invoice(n))
		require.NoError(t, err)
	}
	_, err := h.submit(t, invoice("3"))
	requireBusinessCode(t, err, "101")

	res, err := h.call(t, wire.OpRemainingFolios, account, nil)
	require.NoError(t, err)
	balance, err := mapper.ToFolioBalance(res)
	require.NoError(t, err)
	assert.Equal(t, mapper.FolioBalance{Total: 2, Used: 2, Available: 0}, balance)
}

func TestSubmit_RequireSignature(t *testing.T) {
	h := newHarness(t, &fakeservice.Config{RequireSignature: true})
	inv := invoice("0000000009")

	_, err := h.submit(t, inv)
	requireBusinessCode(t, err, "0422")

	payload, err := mapper.ToWireSubmission(inv)
	require.NoError(t, err)
	payload = mapper.WithSignedDocument(payload, []byte(`<rFE xmlns="http://dgi-fep.mef.gob.pa"><dVerForm>1.00</dVerForm></rFE>`))
	_, err = h.call(t, wire.OpSubmit, account, payload)
	require.NoError(t, err)

	res, err := h.call(t, wire.OpDownloadXML, account, reference(t, inv))
	require.NoError(t, err)
	dl, err := mapper.ToDownload(res, mapper.ContentXML)
	require.NoError(t, err)
	assert.Contains(t, string(dl.Content), "dVerForm")
}

func TestAuthenticationFailure(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.call(t, wire.OpRemainingFolios, wire.Credentials{Identity: account.Identity, Secret: "wrong"}, nil)
	requireBusinessCode(t, err, "100")

	_, err = h.call(t, wire.OpRemainingFolios, wire.Credentials{Identity: "unknown", Secret: account.Secret}, nil)
	requireBusinessCode(t, err, "100")
}

func TestDownloads(t *testing.T) {
	h := newHarness(t, nil)
	inv := invoice("0000000002")
	_, err := h.submit(t, inv)
	require.NoError(t, err)

	res, err := h.call(t, wire.OpDownloadXML, account, reference(t, inv))
	require.NoError(t, err)
	xmlDoc, err := mapper.ToDownload(res, mapper.ContentXML)
	require.NoError(t, err)
	assert.Contains(t, string(xmlDoc.Content), "Cafe &amp; azucar")
	assert.Contains(t, string(xmlDoc.Content), `xmlns="http://dgi-fep.mef.gob.pa"`)

	res, err = h.call(t, wire.OpDownloadPDF, account, reference(t, inv))
	require.NoError(t, err)
	pdfDoc, err := mapper.ToDownload(res, mapper.ContentPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdfDoc.Content), "%PDF-1.4"))
	assert.Equal(t, "application/pdf", pdfDoc.MediaType())

	_, err = h.call(t, wire.OpDownloadPDF, account, reference(t, invoice("404")))
	requireBusinessCode(t, err, "0404")
}

func TestDownloadKeepsFreeTextVerbatim(t *testing.T) {
	h := newHarness(t, nil)
	inv := invoice("0000000009")
	inv.Notes = `Entrega "urgente" & fragil`
	_, err := h.submit(t, inv)
	require.NoError(t, err)

	res, err := h.call(t, wire.OpDownloadXML, account, reference(t, inv))
	require.NoError(t, err)
	xmlDoc, err := mapper.ToDownload(res, mapper.ContentXML)
	require.NoError(t, err)
	assert.Contains(t, string(xmlDoc.Content), `<informacionInteres><![CDATA[Entrega "urgente" & fragil]]></informacionInteres>`)
}

func TestCancelAndStatus(t *testing.T) {
	h := newHarness(t, nil)
	inv := invoice("0000000003")
	_, err := h.submit(t, inv)
	require.NoError(t, err)

	res, err := h.call(t, wire.OpDocumentStatus, account, reference(t, inv))
	require.NoError(t, err)
	assert.Equal(t, "Autorizada", mapper.ToDocumentStatus(res).Status)

	payload, err := mapper.ToWireCancellation(inv.Ref(), "error en el monto")
	require.NoError(t, err)
	res, err = h.call(t, wire.OpCancel, account, payload)
	require.NoError(t, err)
	assert.Equal(t, wire.FamilyEvent, res.Family)

	_, err = h.call(t, wire.OpCancel, account, payload)
	requireBusinessCode(t, err, "0410")

	res, err = h.call(t, wire.OpDocumentStatus, account, reference(t, inv))
	require.NoError(t, err)
	assert.Equal(t, "Anulada", mapper.ToDocumentStatus(res).Status)
}

func TestEmailTracking(t *testing.T) {
	h := newHarness(t, nil)
	inv := invoice("0000000004")
	_, err := h.submit(t, inv)
	require.NoError(t, err)

	_, err = h.call(t, wire.OpTrackEmail, account, reference(t, inv))
	requireBusinessCode(t, err, "0404")

	payload, err := mapper.ToWireEmail(inv.Ref(), "cliente@example.com")
	require.NoError(t, err)
	sent, err := h.call(t, wire.OpSendEmail, account, payload)
	require.NoError(t, err)
	require.NotEmpty(t, sent.TrackingID)

	tracked, err := h.call(t, wire.OpTrackEmail, account, reference(t, inv))
	require.NoError(t, err)
	receipt := mapper.ToEventReceipt(tracked)
	assert.Equal(t, sent.TrackingID, receipt.TrackingID)
	assert.Equal(t, "Entregado", receipt.Status)
}

func TestLookupTaxpayer(t *testing.T) {
	h := newHarness(t, nil)
	h.fake.AddTaxpayer("8-442-445", "Juan Perez")

	payload, err := mapper.ToWireTaxpayerQuery(mapper.TaxpayerNatural, "8-442-445")
	require.NoError(t, err)
	res, err := h.call(t, wire.OpLookupTaxpayer, account, payload)
	require.NoError(t, err)

	check, err := mapper.ToTaxpayerCheck(res, "8-442-445")
	require.NoError(t, err)
	assert.Equal(t, mapper.TaxpayerCheck{TaxID: "8-442-445", CheckDigit: "4", Name: "Juan Perez"}, check)
}

func TestNamespaceMismatchFaults(t *testing.T) {
	h := newHarness(t, nil)

	envelope, err := wire.BuildEnvelope(wire.OpRemainingFolios, account, nil)
	require.NoError(t, err)
	tampered := strings.Replace(string(envelope), wire.NamespaceModel, wire.NamespaceEvent, 1)

	_, err = h.client.Execute(context.Background(), wire.OpRemainingFolios, model.EnvSandbox, []byte(tampered))
	var te *model.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, model.TransportHTTP, te.Kind)
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.Contains(t, te.Message, "unexpected namespace")
}

func TestUnknownActionFaults(t *testing.T) {
	fake := fakeservice.NewServer(nil)

	req := httptest.NewRequest(http.MethodPost, fakeservice.Path, strings.NewReader("<x/>"))
	req.Header.Set("SOAPAction", `"http://tempuri.org/IService/Borrar"`)
	w := httptest.NewRecorder()
	fake.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "the action 'http://tempuri.org/IService/Borrar' is not supported", wire.ExtractFault(w.Body.Bytes()))
}

func TestScriptedFaults(t *testing.T) {
	h := newHarness(t, nil)
	h.fake.FailNext(
		fakeservice.DropConnection(),
		fakeservice.HTTPError(http.StatusServiceUnavailable, "servicio no disponible"),
		fakeservice.RawResponse("<html>gateway</html>"),
	)

	_, err := h.call(t, wire.OpRemainingFolios, account, nil)
	var te *model.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, model.TransportConnection, te.Kind)

	_, err = h.call(t, wire.OpRemainingFolios, account, nil)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, model.TransportHTTP, te.Kind)
	assert.Equal(t, "servicio no disponible", te.Message)

	_, err = h.call(t, wire.OpRemainingFolios, account, nil)
	var pe *model.ParseError
	require.True(t, errors.As(err, &pe))

	_, err = h.call(t, wire.OpRemainingFolios, account, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, h.fake.CallCount(wire.OpRemainingFolios))
}

func TestDelayFault(t *testing.T) {
	h := newHarness(t, nil)
	h.fake.FailNext(fakeservice.Delay(50 * time.Millisecond))

	start := time.Now()
	_, err := h.call(t, wire.OpRemainingFolios, account, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
