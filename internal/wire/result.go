package wire

// Result is the normalized response of any operation.
type Result struct {
	Operation Operation `json:"-"`
	Code      string    `json:"code"`
	Result    string    `json:"result,omitempty"`
	Message   string    `json:"message,omitempty"`
	Family    Family    `json:"family"`

	DocumentID            string `json:"document_id,omitempty"`
	QRPayload             string `json:"qr_payload,omitempty"`
	ReceivedAt            string `json:"received_at,omitempty"`
	AuthorizationProtocol string `json:"authorization_protocol,omitempty"`
	Content               string `json:"content,omitempty"` // base64
	DocumentStatus        string `json:"document_status,omitempty"`
	TrackingID            string `json:"tracking_id,omitempty"`
	CheckDigit            string `json:"check_digit,omitempty"`
	TaxpayerName          string `json:"taxpayer_name,omitempty"`
	TaxpayerID            string `json:"taxpayer_id,omitempty"`

	Folios FolioBalance `json:"folios"`

	// Fields holds every leaf under the result node keyed by local name.
	Fields map[string]string `json:"fields,omitempty"`
}

// FolioBalance is the folio count reported by RemainingFolios.
type FolioBalance struct {
	Total     string `json:"total,omitempty"`
	Used      string `json:"used,omitempty"`
	Available string `json:"available,omitempty"`
}
