package stub

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"triageterm/internal/api"
)

var (
	productiveWords = []string{
		"suporte", "support", "erro", "error", "problema", "problem", "solicit", "request",
		"fatura", "invoice", "status", "dúvida", "duvida", "question", "ajuda", "help", "urgente", "urgent",
	}
	unproductiveWords = []string{
		"obrigad", "thank", "parabéns", "parabens", "congrat", "feliz", "happy", "boas festas",
	}
)

const noActionReply = "No action needed."

// classify stands in for the language model: productive mail gets a reply
// draft, courtesy mail gets none, anything else stays undefined.
func classify(body string) (class, reply string) {
	lower := strings.ToLower(body)
	for _, w := range productiveWords {
		if strings.Contains(lower, w) {
			return api.ClassProductive, "Thanks for reaching out. We received your message and will follow up shortly."
		}
	}
	for _, w := range unproductiveWords {
		if strings.Contains(lower, w) {
			return api.ClassUnproductive, noActionReply
		}
	}
	return api.ClassUndefined, noActionReply
}

// decodeText reads UTF-8 and falls back to Latin-1.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

var pdfTextOp = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)\s*Tj`)

// extractPDFText pulls literal strings shown with the Tj operator out of
// uncompressed content streams. Anything fancier yields no text.
func extractPDFText(raw []byte) string {
	if !strings.HasPrefix(string(raw), "%PDF-") {
		return ""
	}
	var parts []string
	for _, m := range pdfTextOp.FindAllSubmatch(raw, -1) {
		s := strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`).Replace(string(m[1]))
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
