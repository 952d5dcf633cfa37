package wire

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

const (
	soapPrefix       = "soapenv"
	credentialPrefix = "tem"
	operationPrefix  = "ser"
)

// Field names always qualified with the credential namespace.
var credentialFields = map[string]bool{
	"tokenEmpresa":          true,
	"tokenPassword":         true,
	WrapperDocument:         true,
	WrapperReference:        true,
	"motivoAnulacion":       true,
	"correo":                true,
	"consultarRucDVRequest": true,
}

// freeTextField is emitted as CDATA so its content is preserved verbatim.
const freeTextField = "informacionInteres"

// Credentials are the per-call identity and secret written in the envelope.
type Credentials struct {
	Identity string
	Secret   string
}

// Field is a named payload value. Value is a string, a Payload, a []Payload,
// a []string, nil, or any value printable with fmt.
type Field struct {
	Name  string
	Value interface{}
}

// Payload is an ordered set of fields.
type Payload []Field

// Get returns the value of the first field named name.
func (p Payload) Get(name string) (interface{}, bool) {
	for _, f := range p {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// With returns a copy of p with the field appended.
func (p Payload) With(name string, value interface{}) Payload {
	out := make(Payload, len(p), len(p)+1)
	copy(out, p)
	return append(out, Field{Name: name, Value: value})
}

// BuildEnvelope serializes payload into the envelope of op. payload may be nil.
func BuildEnvelope(op Operation, creds Credentials, payload Payload) ([]byte, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperation, int(op))
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	env := doc.CreateElement(soapPrefix + ":Envelope")
	env.CreateAttr("xmlns:"+soapPrefix, SOAPNamespace)
	env.CreateAttr("xmlns:"+credentialPrefix, CredentialNamespace)
	env.CreateAttr("xmlns:"+operationPrefix, op.Namespace())
	env.CreateElement(soapPrefix + ":Header")
	body := env.CreateElement(soapPrefix + ":Body")

	call := body.CreateElement(credentialPrefix + ":" + op.Name())
	call.CreateElement(credentialPrefix + ":tokenEmpresa").SetText(creds.Identity)
	call.CreateElement(credentialPrefix + ":tokenPassword").SetText(creds.Secret)

	s := serializer{credential: credentialPrefix, operation: operationPrefix}
	// a payload carrying the wrapper itself places the other fields next to it
	parent := call
	if w := op.Wrapper(); w != "" && !isEmpty(payload) {
		if _, explicit := payload.Get(w); !explicit {
			parent = call.CreateElement(credentialPrefix + ":" + w)
		}
	}
	s.writeFields(parent, payload, false)

	return doc.WriteToBytes()
}

// RenderDocument renders payload as a standalone document under root, every
// element in the default namespace ns.
func RenderDocument(root, ns string, payload Payload) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	el := doc.CreateElement(root)
	if ns != "" {
		el.CreateAttr("xmlns", ns)
	}
	serializer{}.writeFields(el, payload, true)

	return doc.WriteToBytes()
}

type serializer struct {
	credential string
	operation  string
}

func (s serializer) tag(name string, forced bool) string {
	prefix := s.operation
	if !forced && credentialFields[name] {
		prefix = s.credential
	}
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}

func (s serializer) writeFields(parent *etree.Element, p Payload, forced bool) {
	for _, f := range p {
		s.writeField(parent, f, forced)
	}
}

func (s serializer) writeField(parent *etree.Element, f Field, forced bool) {
	if isEmpty(f.Value) {
		return
	}

	switch v := f.Value.(type) {
	case Payload:
		el := parent.CreateElement(s.tag(f.Name, forced))
		s.writeFields(el, v, forced)
	case []Payload:
		for _, item := range v {
			if isEmpty(item) {
				continue
			}
			el := parent.CreateElement(s.tag(f.Name, true))
			s.writeFields(el, item, true)
		}
	case []string:
		for _, item := range v {
			if item == "" {
				continue
			}
			parent.CreateElement(s.tag(f.Name, true)).SetText(item)
		}
	default:
		el := parent.CreateElement(s.tag(f.Name, forced))
		text := scalar(v)
		if f.Name == freeTextField {
			writeCData(el, text)
			return
		}
		el.SetText(text)
	}
}

// writeCData emits text as one or more CDATA sections. A literal "]]>" is
// split across two sections.
func writeCData(el *etree.Element, text string) {
	pieces := strings.Split(text, "]]>")
	for i, piece := range pieces {
		if i > 0 {
			piece = ">" + piece
		}
		if i < len(pieces)-1 {
			piece += "]]"
		}
		el.CreateCData(piece)
	}
}

func scalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case *string:
		return *t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case *string:
		return t == nil || strings.TrimSpace(*t) == ""
	case Payload:
		for _, f := range t {
			if !isEmpty(f.Value) {
				return false
			}
		}
		return true
	case []Payload:
		for _, item := range t {
			if !isEmpty(item) {
				return false
			}
		}
		return true
	case []string:
		for _, s := range t {
			if s != "" {
				return false
			}
		}
		return true
	}
	return false
}
