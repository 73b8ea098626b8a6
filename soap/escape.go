package soap

import "strings"

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeText escapes the five predefined XML entities. Every caller supplied
// value passes through here before it lands in an envelope, token values and
// credentials included.
func EscapeText(value string) string {
	return xmlEscaper.Replace(value)
}
