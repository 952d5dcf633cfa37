package fakeservice

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/rezonia/einvoice-gateway/internal/taxid"
)

const (
	fiscalRoot      = "rFE"
	fiscalNamespace = "http://dgi-fep.mef.gob.pa"
	qrBase          = "https://dgi-fep.mef.gob.pa/Consultas/FacturasPorQR?chFE="
	receivedLayout  = "2006-01-02T15:04:05-07:00"
)

type docKey struct {
	typ, branch, pointOfSale, number string
}

func (k docKey) complete() bool {
	return k.typ != "" && k.branch != "" && k.pointOfSale != "" && k.number != ""
}

type document struct {
	id         string
	qr         string
	receivedAt string
	protocol   string
	content    []byte
	signed     bool
	cancelled  bool
	tracking   []string
}

func referenceKey(ref *etree.Element) docKey {
	return docKey{
		typ:         childText(ref, "tipoDocumento"),
		branch:      childText(ref, "codigoSucursalEmisor"),
		pointOfSale: childText(ref, "puntoFacturacionFiscal"),
		number:      childText(ref, "numeroDocumentoFiscal"),
	}
}

func (s *Server) submit(acct *account, wrapper *etree.Element) []field {
	if wrapper == nil {
		return status(codeInvalid, "error", "documento requerido")
	}

	key := docKey{
		typ:         pathText(wrapper, "datosTransaccion", "tipoDocumento"),
		branch:      childText(wrapper, "codigoSucursalEmisor"),
		pointOfSale: pathText(wrapper, "datosTransaccion", "puntoFacturacionFiscal"),
		number:      pathText(wrapper, "datosTransaccion", "numeroDocumentoFiscal"),
	}
	if !key.complete() {
		return status(codeInvalid, "error", "datos del documento incompletos")
	}

	ruc := pathText(wrapper, "datosTransaccion", "emisor", "numeroRUC")
	dv := pathText(wrapper, "datosTransaccion", "emisor", "digitoVerificadorRUC")
	if ruc == "" || dv != taxid.Checksum(ruc) {
		return status(codeInvalid, "error", "RUC o digito verificador del emisor invalido")
	}

	var content []byte
	signed := false
	if encoded := childText(wrapper, "documentoFirmado"); encoded != "" {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || !wellFormed(raw) {
			return status(codeInvalid, "error", "documento firmado invalido")
		}
		content, signed = raw, true
	} else if s.config.RequireSignature {
		return status(codeInvalid, "error", "documento sin firma")
	}

	if _, exists := acct.documents[key]; exists {
		return status(codeDuplicate, "rechazado", "documento duplicado")
	}
	if acct.used >= acct.total {
		return status(codeNoFolios, "rechazado", "sin folios disponibles")
	}

	s.sequence++
	id := fmt.Sprintf("FE%s%s-%s%s-%s", key.typ, strings.ReplaceAll(ruc, "-", ""), key.branch, key.pointOfSale, key.number)
	if content == nil {
		content = renderFiscalDocument(id, wrapper)
	}
	doc := &document{
		id:         id,
		qr:         qrBase + id,
		receivedAt: time.Now().Format(receivedLayout),
		protocol:   fmt.Sprintf("%020d", s.sequence),
		content:    content,
		signed:     signed,
	}
	acct.documents[key] = doc
	acct.used++

	return append(status(codeAccepted, "procesado", "documento autorizado"),
		field{"cufe", doc.id},
		field{"qr", doc.qr},
		field{"fechaRecepcionDGI", doc.receivedAt},
		field{"nroProtocoloAutorizacion", doc.protocol},
	)
}

func (s *Server) find(acct *account, ref *etree.Element) (*document, []field) {
	if ref == nil {
		return nil, status(codeInvalid, "error", "datosDocumento requerido")
	}
	key := referenceKey(ref)
	if !key.complete() {
		return nil, status(codeInvalid, "error", "datos del documento incompletos")
	}
	doc, ok := acct.documents[key]
	if !ok {
		return nil, status(codeNotFound, "error", "documento no encontrado")
	}
	return doc, nil
}

func (s *Server) downloadXML(acct *account, ref *etree.Element) []field {
	doc, fail := s.find(acct, ref)
	if doc == nil {
		return fail
	}
	return append(status(codeFound, "procesado", "descarga exitosa"),
		field{"documento", base64.StdEncoding.EncodeToString(doc.content)},
		field{"cufe", doc.id},
	)
}

func (s *Server) downloadPDF(acct *account, ref *etree.Element) []field {
	doc, fail := s.find(acct, ref)
	if doc == nil {
		return fail
	}
	return append(status(codeFound, "procesado", "descarga exitosa"),
		field{"documento", base64.StdEncoding.EncodeToString(renderPDF("CAFE " + doc.id))},
		field{"cufe", doc.id},
	)
}

func (s *Server) documentStatus(acct *account, ref *etree.Element) []field {
	doc, fail := s.find(acct, ref)
	if doc == nil {
		return fail
	}
	state := "Autorizada"
	if doc.cancelled {
		state = "Anulada"
	}
	return append(status(codeFound, "procesado", "consulta exitosa"),
		field{"estatusDocumento", state},
		field{"cufe", doc.id},
		field{"fechaRecepcionDGI", doc.receivedAt},
		field{"qr", doc.qr},
	)
}

func (s *Server) cancel(acct *account, ref *etree.Element, reason string) []field {
	doc, fail := s.find(acct, ref)
	if doc == nil {
		return fail
	}
	if reason == "" {
		return status(codeInvalid, "error", "motivoAnulacion requerido")
	}
	if doc.cancelled {
		return status(codeAlreadyCancelled, "rechazado", "documento ya anulado")
	}
	doc.cancelled = true
	return append(status(codeEventDone, "procesado", "anulacion exitosa"),
		field{"cufe", doc.id},
	)
}

func (s *Server) remainingFolios(acct *account) []field {
	return append(status(codeFolios, "procesado", "consulta exitosa"),
		field{"folioTotal", strconv.Itoa(acct.total)},
		field{"folioUtilizadoCiclo", strconv.Itoa(acct.used)},
		field{"folioTotalDisponible", strconv.Itoa(acct.total - acct.used)},
	)
}

func (s *Server) sendEmail(acct *account, ref *etree.Element, address string) []field {
	doc, fail := s.find(acct, ref)
	if doc == nil {
		return fail
	}
	if !strings.Contains(address, "@") {
		return status(codeInvalid, "error", "correo invalido")
	}
	s.sequence++
	tracking := fmt.Sprintf("R%08d", s.sequence)
	doc.tracking = append(doc.tracking, tracking)
	return append(status(codeEventDone, "procesado", "correo en cola"),
		field{"idRastreo", tracking},
	)
}

func (s *Server) trackEmail(acct *account, ref *etree.Element) []field {
	doc, fail := s.find(acct, ref)
	if doc == nil {
		return fail
	}
	if len(doc.tracking) == 0 {
		return status(codeNotFound, "error", "sin correos enviados")
	}
	return append(status(codeEventTracked, "procesado", "consulta exitosa"),
		field{"idRastreo", doc.tracking[len(doc.tracking)-1]},
		field{"estatusCorreo", "Entregado"},
	)
}

func (s *Server) lookupTaxpayer(query *etree.Element) []field {
	id := childText(query, "ruc")
	kind := childText(query, "tipoRuc")
	if id == "" || (kind != "1" && kind != "2") {
		return status(codeInvalid, "error", "consulta invalida")
	}
	name, ok := s.taxpayers[id]
	if !ok {
		return status(codeNotFound, "error", "RUC no registrado")
	}
	return append(status(codeFound, "procesado", "consulta exitosa"),
		field{"ruc", id},
		field{"dv", taxid.Checksum(id)},
		field{"razonSocial", name},
	)
}

func wellFormed(raw []byte) bool {
	doc := etree.NewDocument()
	return doc.ReadFromBytes(raw) == nil && doc.Root() != nil
}

// renderFiscalDocument stores an unsigned submission as a standalone
// document with every element in the fiscal namespace.
func renderFiscalDocument(id string, wrapper *etree.Element) []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement(fiscalRoot)
	root.CreateAttr("xmlns", fiscalNamespace)
	root.CreateElement("dId").SetText(id)
	for _, child := range wrapper.ChildElements() {
		root.AddChild(unqualified(child))
	}
	b, _ := doc.WriteToBytes()
	return b
}

// unqualified copies el without namespace prefixes. CDATA sections stay CDATA.
func unqualified(el *etree.Element) *etree.Element {
	out := etree.NewElement(el.Tag)
	children := el.ChildElements()
	if len(children) == 0 {
		for _, tok := range el.Child {
			cd, ok := tok.(*etree.CharData)
			if !ok {
				continue
			}
			if cd.IsCData() {
				out.CreateCData(cd.Data)
			} else {
				out.CreateText(cd.Data)
			}
		}
		return out
	}
	for _, child := range children {
		out.AddChild(unqualified(child))
	}
	return out
}
