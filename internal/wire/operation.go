// Package wire builds and parses the SOAP messages exchanged with the fiscal
// document service.
package wire

import "errors"

// ErrUnknownOperation is returned for an operation outside the fixed table.
var ErrUnknownOperation = errors.New("wire: unknown operation")

// Operation is one of the remote procedures of the service.
type Operation int

const (
	OpSubmit Operation = iota + 1
	OpDownloadXML
	OpDownloadPDF
	OpDocumentStatus
	OpCancel
	OpRemainingFolios
	OpSendEmail
	OpTrackEmail
	OpLookupTaxpayer
)

const (
	// SOAPNamespace is the SOAP 1.1 envelope namespace
	SOAPNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
	// CredentialNamespace qualifies the operation element, credential fields
	// and allow-listed containers
	CredentialNamespace = "http://tempuri.org/"

	actionPrefix = "http://tempuri.org/IService/"
)

// Operation namespaces
const (
	NamespaceDocument = "http://schemas.datacontract.org/2004/07/Services.ObjComprobante.v1_0"
	NamespaceModel    = "http://schemas.datacontract.org/2004/07/Services.Model"
	NamespaceEvent    = "http://schemas.datacontract.org/2004/07/Services.Evento"
	NamespaceTaxpayer = "http://schemas.datacontract.org/2004/07/Services.ConsultarRucDV"
)

// Wrapper element names
const (
	WrapperDocument  = "documento"
	WrapperReference = "datosDocumento"
)

type operationSpec struct {
	name      string
	namespace string
	wrapper   string
	accepts   []Family
}

var operations = map[Operation]operationSpec{
	OpSubmit:          {"Enviar", NamespaceDocument, WrapperDocument, []Family{FamilyHTTP, FamilyAcceptance}},
	OpDownloadXML:     {"DescargaXML", NamespaceModel, WrapperReference, queryFamilies},
	OpDownloadPDF:     {"DescargaPDF", NamespaceModel, WrapperReference, queryFamilies},
	OpDocumentStatus:  {"EstadoDocumento", NamespaceModel, WrapperReference, queryFamilies},
	OpCancel:          {"AnulacionDocumento", NamespaceEvent, WrapperReference, eventFamilies},
	OpRemainingFolios: {"FoliosRestantes", NamespaceModel, "", queryFamilies},
	OpSendEmail:       {"EnvioCorreo", NamespaceEvent, WrapperReference, eventFamilies},
	OpTrackEmail:      {"RastreoCorreo", NamespaceEvent, WrapperReference, eventFamilies},
	OpLookupTaxpayer:  {"ConsultarRucDV", NamespaceTaxpayer, "", queryFamilies},
}

var (
	queryFamilies = []Family{FamilyLegacy, FamilyHTTP, FamilyQuery}
	eventFamilies = []Family{FamilyLegacy, FamilyHTTP, FamilyEvent}
)

// Operations lists every operation in table order.
func Operations() []Operation {
	return []Operation{
		OpSubmit, OpDownloadXML, OpDownloadPDF, OpDocumentStatus, OpCancel,
		OpRemainingFolios, OpSendEmail, OpTrackEmail, OpLookupTaxpayer,
	}
}

// ParseOperation resolves a remote procedure name.
func ParseOperation(name string) (Operation, bool) {
	for op, s := range operations {
		if s.name == name {
			return op, true
		}
	}
	return 0, false
}

// Valid reports whether o is in the operation table.
func (o Operation) Valid() bool {
	_, ok := operations[o]
	return ok
}

// Name is the remote procedure name, e.g. "Enviar".
func (o Operation) Name() string {
	return operations[o].name
}

func (o Operation) String() string {
	if s, ok := operations[o]; ok {
		return s.name
	}
	return "Unknown"
}

// Namespace is the namespace of the operation's payload fields.
func (o Operation) Namespace() string {
	return operations[o].namespace
}

// Wrapper is the element that holds the payload, empty if the payload goes
// directly under the operation element.
func (o Operation) Wrapper() string {
	return operations[o].wrapper
}

// Action is the quoted SOAPAction header value.
func (o Operation) Action() string {
	return `"` + actionPrefix + operations[o].name + `"`
}

// AcceptsCode reports whether code belongs to one of the operation's
// acceptance families.
func (o Operation) AcceptsCode(code string) bool {
	family, ok := FamilyOf(code)
	if !ok {
		return false
	}
	for _, f := range operations[o].accepts {
		if f == family {
			return true
		}
	}
	return false
}
