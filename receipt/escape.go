package receipt

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape normalizes s to NFC and escapes every character the layout
// markup treats specially.
func Escape(s string) string {
	return markupEscaper.Replace(norm.NFC.String(s))
}
