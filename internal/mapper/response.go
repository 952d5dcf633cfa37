package mapper

import (
	"bytes"
	"encoding/base64"
	"strconv"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/wire"
)

// ContentKind is the format of downloaded content
type ContentKind string

const (
	ContentXML ContentKind = "xml"
	ContentPDF ContentKind = "pdf"
)

// Download is a document downloaded from the service.
type Download struct {
	DocumentID string      `json:"document_id,omitempty"`
	Kind       ContentKind `json:"kind"`
	Base64     string      `json:"base64"`
	Content    []byte      `json:"-"`
}

// MediaType returns the MIME type of the content.
func (d *Download) MediaType() string {
	if d.Kind == ContentPDF {
		return "application/pdf"
	}
	return "application/xml"
}

// FolioBalance is the folio count of a tenant.
type FolioBalance struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Available int `json:"available"`
}

// DocumentStatus is the status of an issued document.
type DocumentStatus struct {
	DocumentID string `json:"document_id,omitempty"`
	Status     string `json:"status"`
	ReceivedAt string `json:"received_at,omitempty"`
	QRPayload  string `json:"qr_payload,omitempty"`
	Message    string `json:"message,omitempty"`
}

// EventReceipt acknowledges a cancellation or email event.
type EventReceipt struct {
	Operation  string `json:"operation"`
	Code       string `json:"code"`
	Message    string `json:"message,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	TrackingID string `json:"tracking_id,omitempty"`
	Status     string `json:"status,omitempty"`
}

// TaxpayerCheck is the result of a taxpayer lookup.
type TaxpayerCheck struct {
	TaxID      string `json:"tax_id"`
	CheckDigit string `json:"check_digit"`
	Name       string `json:"name,omitempty"`
}

var pdfConfigOnce sync.Once

// ToDownload decodes the base64 content of a download result. XML content
// must be well formed and PDF content must pass validation.
func ToDownload(res *wire.Result, kind ContentKind) (*Download, error) {
	op := res.Operation.Name()

	encoded := strings.Join(strings.Fields(res.Content), "")
	if encoded == "" {
		return nil, model.NewParseError(op, "documento", "download content is empty", nil)
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, model.NewParseError(op, "documento", "content is not valid base64", err)
	}

	switch kind {
	case ContentPDF:
		if err := validatePDF(content); err != nil {
			return nil, model.NewParseError(op, "documento", "content is not a valid PDF", err)
		}
	default:
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(content); err != nil || doc.Root() == nil {
			return nil, model.NewParseError(op, "documento", "content is not well formed XML", err)
		}
	}

	return &Download{
		DocumentID: res.DocumentID,
		Kind:       kind,
		Base64:     encoded,
		Content:    content,
	}, nil
}

func validatePDF(content []byte) error {
	pdfConfigOnce.Do(api.DisableConfigDir)
	return api.Validate(bytes.NewReader(content), pdfmodel.NewDefaultConfiguration())
}

// ToFolioBalance converts the folio counters of a RemainingFolios result.
func ToFolioBalance(res *wire.Result) (FolioBalance, error) {
	op := res.Operation.Name()

	available, err := count(op, "folioTotalDisponible", res.Folios.Available, true)
	if err != nil {
		return FolioBalance{}, err
	}
	total, err := count(op, "folioTotal", res.Folios.Total, false)
	if err != nil {
		return FolioBalance{}, err
	}
	used, err := count(op, "folioUtilizadoCiclo", res.Folios.Used, false)
	if err != nil {
		return FolioBalance{}, err
	}

	return FolioBalance{Total: total, Used: used, Available: available}, nil
}

func count(op, field, value string, required bool) (int, error) {
	if value == "" {
		if required {
			return 0, model.NewParseError(op, field, "folio counter missing", nil)
		}
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, model.NewParseError(op, field, "folio counter is not a number", err)
	}
	return n, nil
}

// ToDocumentStatus converts a DocumentStatus result.
func ToDocumentStatus(res *wire.Result) DocumentStatus {
	status := res.DocumentStatus
	if status == "" {
		status = res.Result
	}
	return DocumentStatus{
		DocumentID: res.DocumentID,
		Status:     status,
		ReceivedAt: res.ReceivedAt,
		QRPayload:  res.QRPayload,
		Message:    res.Message,
	}
}

// ToEventReceipt converts a Cancel, SendEmail or TrackEmail result.
func ToEventReceipt(res *wire.Result) EventReceipt {
	return EventReceipt{
		Operation:  res.Operation.Name(),
		Code:       res.Code,
		Message:    res.Message,
		DocumentID: res.DocumentID,
		TrackingID: res.TrackingID,
		Status:     res.DocumentStatus,
	}
}

// ToTaxpayerCheck converts a LookupTaxpayer result. The queried identifier is
// used when the service does not echo it back.
func ToTaxpayerCheck(res *wire.Result, queried string) (TaxpayerCheck, error) {
	if res.CheckDigit == "" {
		return TaxpayerCheck{}, model.NewParseError(res.Operation.Name(), "dv", "check digit missing", nil)
	}
	id := res.TaxpayerID
	if id == "" {
		id = strings.TrimSpace(queried)
	}
	return TaxpayerCheck{TaxID: id, CheckDigit: res.CheckDigit, Name: res.TaxpayerName}, nil
}
