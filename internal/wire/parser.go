package wire

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/rezonia/einvoice-gateway/internal/model"
)

// ParseResponse normalizes a raw response of op. It returns a
// *model.ParseError when the envelope, body, response or result node or the
// code field is missing, and a *model.BusinessError when the code is outside
// every known success family. Parsing is pure.
func ParseResponse(raw []byte, op Operation) (*Result, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperation, int(op))
	}
	name := op.Name()

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, model.NewParseError(name, "Envelope", "malformed XML", err)
	}

	env := doc.Root()
	if env == nil || env.Tag != "Envelope" {
		return nil, model.NewParseError(name, "Envelope", "envelope element not found", nil)
	}
	body := childElement(env, "Body")
	if body == nil {
		return nil, model.NewParseError(name, "Body", "body element not found", nil)
	}
	if fault := childElement(body, "Fault"); fault != nil {
		return nil, model.NewParseError(name, "Fault", faultText(raw), nil)
	}
	resp := childElement(body, name+"Response")
	if resp == nil {
		return nil, model.NewParseError(name, name+"Response", "response element not found", nil)
	}
	node := childElement(resp, name+"Result")
	if node == nil {
		return nil, model.NewParseError(name, name+"Result", "result element not found", nil)
	}

	fields := make(map[string]string)
	flatten(node, fields)

	code := strings.TrimSpace(lookup(op, fields, keyCode))
	if code == "" {
		return nil, model.NewParseError(name, "codigo", "response code not found", nil)
	}

	res := &Result{
		Operation: op,
		Code:      code,
		Result:    lookup(op, fields, keyResult),
		Message:   lookup(op, fields, keyMessage),

		DocumentID:            lookup(op, fields, keyDocumentID),
		QRPayload:             lookup(op, fields, keyQRPayload),
		ReceivedAt:            lookup(op, fields, keyReceivedAt),
		AuthorizationProtocol: lookup(op, fields, keyAuthorizationProtocol),
		Content:               lookup(op, fields, keyContent),
		DocumentStatus:        lookup(op, fields, keyDocumentStatus),
		TrackingID:            lookup(op, fields, keyTrackingID),
		CheckDigit:            lookup(op, fields, keyCheckDigit),
		TaxpayerName:          lookup(op, fields, keyTaxpayerName),
		TaxpayerID:            lookup(op, fields, keyTaxpayerID),
		Folios: FolioBalance{
			Total:     lookup(op, fields, keyFoliosTotal),
			Used:      lookup(op, fields, keyFoliosUsed),
			Available: lookup(op, fields, keyFoliosAvailable),
		},
		Fields: fields,
	}

	family, ok := FamilyOf(code)
	if !ok {
		return nil, model.NewBusinessError(name, code, res.Message, FriendlyMessage(code))
	}
	res.Family = family

	return res, nil
}

func faultText(raw []byte) string {
	if text := ExtractFault(raw); text != "" {
		return text
	}
	return "SOAP fault"
}

// childElement finds a direct child by local name, ignoring the prefix.
func childElement(parent *etree.Element, local string) *etree.Element {
	for _, ch := range parent.ChildElements() {
		if ch.Tag == local {
			return ch
		}
	}
	return nil
}

// flatten collects the leaves under el keyed by local name, level by level,
// so a shallower leaf wins over a deeper one with the same name. Within a
// level the first occurrence wins and nil elements are skipped.
func flatten(el *etree.Element, out map[string]string) {
	level := []*etree.Element{el}
	for len(level) > 0 {
		var next []*etree.Element
		for _, parent := range level {
			for _, ch := range parent.ChildElements() {
				if isNil(ch) {
					continue
				}
				if len(ch.ChildElements()) > 0 {
					next = append(next, ch)
					continue
				}
				if _, seen := out[ch.Tag]; !seen {
					out[ch.Tag] = strings.TrimSpace(charData(ch))
				}
			}
		}
		level = next
	}
}

func isNil(el *etree.Element) bool {
	for _, a := range el.Attr {
		if a.Key == "nil" && a.Value == "true" {
			return true
		}
	}
	return false
}

func charData(el *etree.Element) string {
	var sb strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			sb.WriteString(cd.Data)
		}
	}
	return sb.String()
}
