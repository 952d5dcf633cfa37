package mapper

import (
	"net/mail"
	"strings"

	"github.com/rezonia/einvoice-gateway/internal/model"
	"github.com/rezonia/einvoice-gateway/internal/taxid"
	"github.com/rezonia/einvoice-gateway/internal/wire"
)

// TaxpayerKind selects natural or juridical persons in a taxpayer lookup
type TaxpayerKind string

const (
	TaxpayerNatural   TaxpayerKind = "1"
	TaxpayerJuridical TaxpayerKind = "2"
)

// ToWireReference maps a document reference for the download, status and
// email tracking operations.
func ToWireReference(ref model.DocumentRef) (wire.Payload, error) {
	merr := &model.MappingError{}
	payload := referencePayload(merr, ref)
	if err := merr.ErrOrNil(); err != nil {
		return nil, err
	}
	return payload, nil
}

// ToWireCancellation maps a reference plus the cancellation reason, which
// travels next to the reference rather than inside it.
func ToWireCancellation(ref model.DocumentRef, reason string) (wire.Payload, error) {
	merr := &model.MappingError{}
	payload := referencePayload(merr, ref)
	requireText(merr, "Reason", reason)
	if err := merr.ErrOrNil(); err != nil {
		return nil, err
	}
	return wire.Payload{
		{Name: wire.WrapperReference, Value: payload},
		{Name: "motivoAnulacion", Value: strings.TrimSpace(reason)},
	}, nil
}

// ToWireEmail maps a reference plus the recipient address, which travels
// next to the reference rather than inside it.
func ToWireEmail(ref model.DocumentRef, address string) (wire.Payload, error) {
	merr := &model.MappingError{}
	payload := referencePayload(merr, ref)
	address = strings.TrimSpace(address)
	if address == "" {
		merr.Add("Address", nil, "required", "is required")
	} else if parsed, err := mail.ParseAddress(address); err != nil || parsed.Address != address {
		merr.Add("Address", address, "email", "not a valid email address")
	}
	if err := merr.ErrOrNil(); err != nil {
		return nil, err
	}
	return wire.Payload{
		{Name: wire.WrapperReference, Value: payload},
		{Name: "correo", Value: address},
	}, nil
}

// ToWireTaxpayerQuery maps a taxpayer lookup.
func ToWireTaxpayerQuery(kind TaxpayerKind, id string) (wire.Payload, error) {
	merr := &model.MappingError{}
	if kind != TaxpayerNatural && kind != TaxpayerJuridical {
		merr.Add("Kind", string(kind), "enum", "unknown taxpayer kind")
	}
	id = strings.TrimSpace(id)
	requireText(merr, "TaxID", id)
	if id != "" {
		if err := taxid.ValidateBody(id); err != nil {
			merr.Add("TaxID", id, "format", err.Error())
		}
	}
	if err := merr.ErrOrNil(); err != nil {
		return nil, err
	}
	return wire.Payload{
		{Name: "consultarRucDVRequest", Value: wire.Payload{
			{Name: "tipoRuc", Value: string(kind)},
			{Name: "ruc", Value: id},
		}},
	}, nil
}

func referencePayload(merr *model.MappingError, ref model.DocumentRef) wire.Payload {
	requireText(merr, "Number", ref.Number)
	requireText(merr, "BranchCode", ref.BranchCode)
	requireText(merr, "PointOfSale", ref.PointOfSale)
	if !ref.Type.Valid() {
		merr.Add("Type", string(ref.Type), "enum", "unknown document type")
	}

	payload := wire.Payload{}
	if body := strings.TrimSpace(ref.EmitterTaxID); body != "" {
		if err := taxid.ValidateBody(body); err != nil {
			merr.Add("EmitterTaxID", body, "format", err.Error())
			return nil
		}
		digit := taxid.Checksum(body)
		if ref.EmitterCheckDigit != "" && strings.TrimSpace(ref.EmitterCheckDigit) != digit {
			merr.Add("EmitterCheckDigit", ref.EmitterCheckDigit, "checksum", "check digit does not match, expected "+digit)
		}
		payload = append(payload,
			wire.Field{Name: "numeroRUC", Value: body},
			wire.Field{Name: "digitoVerificadorRUC", Value: digit},
		)
	}

	return append(payload,
		wire.Field{Name: "codigoSucursalEmisor", Value: ref.BranchCode},
		wire.Field{Name: "numeroDocumentoFiscal", Value: ref.Number},
		wire.Field{Name: "puntoFacturacionFiscal", Value: ref.PointOfSale},
		wire.Field{Name: "tipoDocumento", Value: string(ref.Type)},
		wire.Field{Name: "tipoEmision", Value: "01"},
	)
}
