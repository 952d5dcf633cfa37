package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/rezonia/einvoice-gateway/internal/mapper"
	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/signature"
	"github.com/rezonia/einvoice-gateway/internal/wire"
)

// Submission is the result of an accepted Submit.
type Submission struct {
	mapper.DocumentAccepted
	// Signature is set when the document was signed before submission
	Signature *signature.Signed `json:"signature,omitempty"`
}

// Submit maps, optionally signs, and submits a document. km may be nil when
// signing is not required.
func (g *Gateway) Submit(ctx context.Context, tenantID string, inv *model.Invoice, km *signature.KeyMaterial) (*Submission, error) {
	c := g.begin(ctx, wire.OpSubmit, tenantID)

	if inv == nil {
		return nil, c.fail("mapping", model.NewValidationError("Invoice", nil, "required", "is required"))
	}
	payload, err := mapper.ToWireSubmission(inv)
	if err != nil {
		return nil, c.fail("mapping", err)
	}

	var signed *signature.Signed
	if km == nil && g.requireSignature {
		return nil, c.fail("signing", signature.ErrMalformedKey("signing is required but no key material was supplied", nil))
	}
	if km != nil {
		doc, err := mapper.RenderForSigning(payload)
		if err != nil {
			return nil, c.fail("signing", err)
		}
		signed, err = g.signer.Sign(ctx, doc, km)
		if err != nil {
			return nil, c.fail("signing", err)
		}
		for _, w := range signed.Warnings {
			c.log.Warn("signing warning", zap.String("warning", w))
		}
		c.log.Debug("document signed",
			zap.String("certificate_subject", signed.CertificateSubject),
			zap.String("digest", signed.DigestValue),
		)
		payload = mapper.WithSignedDocument(payload, signed.Document)
	}

	res, err := g.exchange(ctx, c, payload)
	if err != nil {
		return nil, err
	}
	accepted, ok := mapper.FromWireResult(res).(mapper.DocumentAccepted)
	if !ok {
		return nil, c.fail("response", model.NewParseError(wire.OpSubmit.Name(), "codigo", "unexpected outcome for accepted response", nil))
	}
	return &Submission{DocumentAccepted: accepted, Signature: signed}, nil
}

// DownloadXML downloads the authorized XML of a document.
func (g *Gateway) DownloadXML(ctx context.Context, tenantID string, ref model.DocumentRef) (*mapper.Download, error) {
	return g.download(ctx, wire.OpDownloadXML, tenantID, ref, mapper.ContentXML)
}

// DownloadPDF downloads the printable representation of a document.
func (g *Gateway) DownloadPDF(ctx context.Context, tenantID string, ref model.DocumentRef) (*mapper.Download, error) {
	return g.download(ctx, wire.OpDownloadPDF, tenantID, ref, mapper.ContentPDF)
}

func (g *Gateway) download(ctx context.Context, op wire.Operation, tenantID string, ref model.DocumentRef, kind mapper.ContentKind) (*mapper.Download, error) {
	c := g.begin(ctx, op, tenantID)

	payload, err := mapper.ToWireReference(ref)
	if err != nil {
		return nil, c.fail("mapping", err)
	}
	res, err := g.exchange(ctx, c, payload)
	if err != nil {
		return nil, err
	}
	dl, err := mapper.ToDownload(res, kind)
	if err != nil {
		return nil, c.fail("content", err)
	}
	return dl, nil
}

// DocumentStatus queries the status of a document.
func (g *Gateway) DocumentStatus(ctx context.Context, tenantID string, ref model.DocumentRef) (mapper.DocumentStatus, error) {
	c := g.begin(ctx, wire.OpDocumentStatus, tenantID)

	payload, err := mapper.ToWireReference(ref)
	if err != nil {
		return mapper.DocumentStatus{}, c.fail("mapping", err)
	}
	res, err := g.exchange(ctx, c, payload)
	if err != nil {
		return mapper.DocumentStatus{}, err
	}
	return mapper.ToDocumentStatus(res), nil
}

// Cancel cancels an issued document.
func (g *Gateway) Cancel(ctx context.Context, tenantID string, ref model.DocumentRef, reason string) (mapper.EventReceipt, error) {
	c := g.begin(ctx, wire.OpCancel, tenantID)

	payload, err := mapper.ToWireCancellation(ref, reason)
	if err != nil {
		return mapper.EventReceipt{}, c.fail("mapping", err)
	}
	return g.event(ctx, c, payload)
}

// SendEmail asks the service to email a document.
func (g *Gateway) SendEmail(ctx context.Context, tenantID string, ref model.DocumentRef, address string) (mapper.EventReceipt, error) {
	c := g.begin(ctx, wire.OpSendEmail, tenantID)

	payload, err := mapper.ToWireEmail(ref, address)
	if err != nil {
		return mapper.EventReceipt{}, c.fail("mapping", err)
	}
	return g.event(ctx, c, payload)
}

// TrackEmail returns the delivery status of the last email of a document.
func (g *Gateway) TrackEmail(ctx context.Context, tenantID string, ref model.DocumentRef) (mapper.EventReceipt, error) {
	c := g.begin(ctx, wire.OpTrackEmail, tenantID)

	payload, err := mapper.ToWireReference(ref)
	if err != nil {
		return mapper.EventReceipt{}, c.fail("mapping", err)
	}
	return g.event(ctx, c, payload)
}

func (g *Gateway) event(ctx context.Context, c *call, payload wire.Payload) (mapper.EventReceipt, error) {
	res, err := g.exchange(ctx, c, payload)
	if err != nil {
		return mapper.EventReceipt{}, err
	}
	return mapper.ToEventReceipt(res), nil
}

// RemainingFolios returns the folio balance of the tenant.
func (g *Gateway) RemainingFolios(ctx context.Context, tenantID string) (mapper.FolioBalance, error) {
	c := g.begin(ctx, wire.OpRemainingFolios, tenantID)

	res, err := g.exchange(ctx, c, nil)
	if err != nil {
		return mapper.FolioBalance{}, err
	}
	balance, err := mapper.ToFolioBalance(res)
	if err != nil {
		return mapper.FolioBalance{}, c.fail("content", err)
	}
	return balance, nil
}

// LookupTaxpayer returns the registered check digit and name of a taxpayer.
func (g *Gateway) LookupTaxpayer(ctx context.Context, tenantID string, kind mapper.TaxpayerKind, id string) (mapper.TaxpayerCheck, error) {
	c := g.begin(ctx, wire.OpLookupTaxpayer, tenantID)

	payload, err := mapper.ToWireTaxpayerQuery(kind, id)
	if err != nil {
		return mapper.TaxpayerCheck{}, c.fail("mapping", err)
	}
	res, err := g.exchange(ctx, c, payload)
	if err != nil {
		return mapper.TaxpayerCheck{}, err
	}
	check, err := mapper.ToTaxpayerCheck(res, id)
	if err != nil {
		return mapper.TaxpayerCheck{}, c.fail("content", err)
	}
	return check, nil
}
