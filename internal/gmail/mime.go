package gmail

import (
	"encoding/base64"
	"regexp"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// findPart returns the decoded body of the first part of the given MIME type,
// depth first. Direct children of the wanted type are tried before descending
// so multipart/alternative resolves to its plain sibling.
func findPart(part *gmailv1.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, sub := range part.Parts {
		if strings.EqualFold(sub.MimeType, mimeType) {
			if body := findPart(sub, mimeType); body != "" {
				return body
			}
		}
	}
	for _, sub := range part.Parts {
		if body := findPart(sub, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// messageText prefers text/plain, then tag-stripped text/html, then the snippet.
func messageText(msg *gmailv1.Message) string {
	if msg == nil {
		return ""
	}
	if body := strings.TrimSpace(findPart(msg.Payload, "text/plain")); body != "" {
		return body
	}
	if html := findPart(msg.Payload, "text/html"); html != "" {
		if text := stripTags(html); text != "" {
			return text
		}
	}
	return strings.TrimSpace(msg.Snippet)
}

var (
	blockBreak = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|tr|li|h[1-6])>`)

	entities = strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&#39;", "'", "&apos;", "'", "&nbsp;", " ",
	)
)

// stripTags turns simple HTML into readable text.
func stripTags(html string) string {
	html = blockBreak.ReplaceAllString(html, "\n")
	var b strings.Builder
	depth := 0
	for _, r := range html {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	text := entities.Replace(b.String())
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

// decodeBody decodes Gmail's base64url body data, padded or not.
func decodeBody(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		if b, err = base64.RawURLEncoding.DecodeString(data); err != nil {
			return ""
		}
	}
	return string(b)
}
