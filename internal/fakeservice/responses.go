package fakeservice

import (
	"net/http"

	"github.com/beevik/etree"
	"github.com/gin-gonic/gin"

	"github.com/rezonia/einvoice-gateway/internal/wire"
)

const (
	contentType       = "text/xml; charset=utf-8"
	instanceNamespace = "http://www.w3.org/2001/XMLSchema-instance"
)

// Codes the fake answers with
const (
	codeAccepted     = "0260"
	codeFound        = "0101"
	codeFolios       = "200"
	codeEventDone    = "0600"
	codeEventTracked = "0601"

	codeAuthFailed       = "100"
	codeNoFolios         = "101"
	codeDuplicate        = "0400"
	codeInvalid          = "0422"
	codeNotFound         = "0404"
	codeAlreadyCancelled = "0410"
)

type field struct {
	name  string
	value string
}

func status(code, result, message string) []field {
	return []field{
		{"codigo", code},
		{"resultado", result},
		{"mensaje", message},
	}
}

// writeResult answers with <Name>Response/<Name>Result. Empty values are
// written as nil elements.
func writeResult(c *gin.Context, op wire.Operation, fields []field) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	env := doc.CreateElement("s:Envelope")
	env.CreateAttr("xmlns:s", wire.SOAPNamespace)
	body := env.CreateElement("s:Body")

	resp := body.CreateElement(op.Name() + "Response")
	resp.CreateAttr("xmlns", wire.CredentialNamespace)
	result := resp.CreateElement(op.Name() + "Result")
	result.CreateAttr("xmlns:a", op.Namespace())
	result.CreateAttr("xmlns:i", instanceNamespace)

	for _, f := range fields {
		el := result.CreateElement("a:" + f.name)
		if f.value == "" {
			el.CreateAttr("i:nil", "true")
			continue
		}
		el.SetText(f.value)
	}

	b, _ := doc.WriteToBytes()
	c.Data(http.StatusOK, contentType, b)
}

func writeFault(c *gin.Context, code int, faultCode, message string) {
	doc := etree.NewDocument()
	env := doc.CreateElement("s:Envelope")
	env.CreateAttr("xmlns:s", wire.SOAPNamespace)
	fault := env.CreateElement("s:Body").CreateElement("s:Fault")
	fault.CreateElement("faultcode").SetText(faultCode)
	fault.CreateElement("faultstring").SetText(message)

	b, _ := doc.WriteToBytes()
	c.Data(code, contentType, b)
}
