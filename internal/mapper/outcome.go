package mapper

import (
	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/wire"
)

// Outcome is either DocumentAccepted or DocumentRejected.
type Outcome interface {
	Accepted() bool
}

// DocumentAccepted is a result whose code is in the operation's acceptance
// families.
type DocumentAccepted struct {
	Operation             string `json:"operation"`
	Code                  string `json:"code"`
	Message               string `json:"message,omitempty"`
	DocumentID            string `json:"document_id,omitempty"`
	QRPayload             string `json:"qr_payload,omitempty"`
	ReceivedAt            string `json:"received_at,omitempty"`
	AuthorizationProtocol string `json:"authorization_protocol,omitempty"`
}

// Accepted implements Outcome.
func (DocumentAccepted) Accepted() bool { return true }

// DocumentRejected is a well formed result with a code the operation does not
// accept.
type DocumentRejected struct {
	Operation string      `json:"operation"`
	Code      string      `json:"code"`
	Message   string      `json:"message,omitempty"`
	Family    wire.Family `json:"family,omitempty"`
}

// Accepted implements Outcome.
func (DocumentRejected) Accepted() bool { return false }

// Err converts the rejection into a *model.BusinessError.
func (r DocumentRejected) Err() error {
	return model.NewBusinessError(r.Operation, r.Code, r.Message, wire.FriendlyMessage(r.Code))
}

// FromWireResult classifies res against the acceptance families of its
// operation.
func FromWireResult(res *wire.Result) Outcome {
	if !res.Operation.AcceptsCode(res.Code) {
		return DocumentRejected{
			Operation: res.Operation.Name(),
			Code:      res.Code,
			Message:   res.Message,
			Family:    res.Family,
		}
	}
	return DocumentAccepted{
		Operation:             res.Operation.Name(),
		Code:                  res.Code,
		Message:               res.Message,
		DocumentID:            res.DocumentID,
		QRPayload:             res.QRPayload,
		ReceivedAt:            res.ReceivedAt,
		AuthorizationProtocol: res.AuthorizationProtocol,
	}
}
