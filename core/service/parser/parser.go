// Package parser normalizes raw provider messages into email records.
// Parsing never fails: missing or malformed data degrades to empty fields.
package parser

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mailgate_server/core/port/out"
)

// ParsedEmail is the normalized output of a provider message.
type ParsedEmail struct {
	From    string
	To      string
	Subject string
	Body    string
	Date    time.Time
}

// ParseMessage converts a raw provider message into a ParsedEmail. Header
// lookup is case-insensitive, first match wins; absent headers yield "".
// An unparseable internal date yields the zero epoch.
func ParseMessage(msg *out.ProviderMessage) *ParsedEmail {
	if msg == nil {
		return &ParsedEmail{Date: time.UnixMilli(0)}
	}

	var headers []out.ProviderHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	return &ParsedEmail{
		From:    header(headers, "From"),
		To:      header(headers, "To"),
		Subject: header(headers, "Subject"),
		Body:    ExtractBody(msg.Payload),
		Date:    parseInternalDate(msg.InternalDate),
	}
}

func header(headers []out.ProviderHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func parseInternalDate(internalDate string) time.Time {
	ms, err := strconv.ParseInt(internalDate, 10, 64)
	if err != nil {
		return time.UnixMilli(0)
	}
	return time.UnixMilli(ms)
}

// ExtractBody walks a (possibly multipart) payload: direct body first, then
// the first text/plain part, then the first text/html part stripped to
// text, then nested multiparts, then "".
func ExtractBody(payload *out.ProviderPart) string {
	if payload == nil {
		return ""
	}

	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBase64URL(payload.Body.Data)
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return decodeBase64URL(part.Body.Data)
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			return StripHTML(decodeBase64URL(part.Body.Data))
		}
	}

	for _, part := range payload.Parts {
		if len(part.Parts) > 0 {
			if nested := ExtractBody(part); nested != "" {
				return nested
			}
		}
	}

	return ""
}

func decodeBase64URL(encoded string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

var (
	styleBlockRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptBlockRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
)

// StripHTML reduces an HTML body to plain text: style/script blocks and tags
// removed, common entities decoded, whitespace collapsed.
func StripHTML(html string) string {
	text := styleBlockRe.ReplaceAllString(html, "")
	text = scriptBlockRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, " ")
	text = entityReplacer.Replace(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
