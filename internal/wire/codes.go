package wire

import "strings"

// Family is a group of response codes meaning success.
type Family string

const (
	FamilyLegacy     Family = "legacy"
	FamilyHTTP       Family = "http"
	FamilyAcceptance Family = "acceptance"
	FamilyQuery      Family = "query"
	FamilyEvent      Family = "event"
)

// Success code families. Only partially documented by the service; see
// DESIGN.md.
var families = map[Family][]string{
	FamilyLegacy:     {"0", "00", "000"},
	FamilyHTTP:       {"200", "201", "202"},
	FamilyAcceptance: {"0260", "0261"},
	FamilyQuery:      {"0101", "0102"},
	FamilyEvent:      {"0600", "0601", "0602"},
}

var codeFamily = func() map[string]Family {
	m := make(map[string]Family)
	for f, codes := range families {
		for _, c := range codes {
			m[c] = f
		}
	}
	return m
}()

// FamilyOf returns the success family of code.
func FamilyOf(code string) (Family, bool) {
	f, ok := codeFamily[strings.TrimSpace(code)]
	return f, ok
}

// friendly holds operator facing explanations of known rejection codes.
var friendly = map[string]string{
	"100":  "authentication failed, check the tenant's tokenEmpresa and tokenPassword",
	"101":  "the tenant has no folios left, purchase more before submitting",
	"102":  "the tenant's license is expired or inactive",
	"0400": "the tax authority rejected the document, check it was not already submitted",
	"0422": "the document failed schema validation, check the mapped fields",
	"0500": "the tax authority is unavailable, submit again later",
}

// FriendlyMessage returns the explanation for a rejection code, if any.
func FriendlyMessage(code string) string {
	return friendly[strings.TrimSpace(code)]
}
