package wire

import (
	"html"
	"regexp"
	"strings"
)

// faultPatterns are tried in order against raw payloads that could not be
// parsed structurally: SOAP 1.1 faultstring, SOAP 1.2 Reason/Text, and the
// service's own mensaje field.
var faultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<(?:[\w-]+:)?faultstring[^>]*>(.*?)</(?:[\w-]+:)?faultstring>`),
	regexp.MustCompile(`(?s)<(?:[\w-]+:)?Reason[^>]*>\s*<(?:[\w-]+:)?Text[^>]*>(.*?)</(?:[\w-]+:)?Text>`),
	regexp.MustCompile(`(?s)<(?:[\w-]+:)?mensaje[^>]*>(.*?)</(?:[\w-]+:)?mensaje>`),
}

var cdataPattern = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)

// ExtractFault scans raw for fault text. Fallback only: it is used when
// structured parsing failed or the transport saw a non-2xx status. Returns ""
// when nothing matches.
func ExtractFault(raw []byte) string {
	for _, p := range faultPatterns {
		m := p.FindSubmatch(raw)
		if m == nil {
			continue
		}
		text := cdataPattern.ReplaceAllString(string(m[1]), "$1")
		text = strings.TrimSpace(html.UnescapeString(text))
		if text != "" {
			return text
		}
	}
	return ""
}
