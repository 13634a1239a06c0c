package parser

import (
	"encoding/base64"
	"testing"
	"time"

	"mailgate_server/core/port/out"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestParseMessageHeaders(t *testing.T) {
	msg := &out.ProviderMessage{
		InternalDate: "1700000000000",
		Payload: &out.ProviderPart{
			Headers: []out.ProviderHeader{
				{Name: "FROM", Value: "alice@example.com"},
				{Name: "To", Value: "bob@example.com"},
				{Name: "Subject", Value: "Hello"},
			},
			Body: &out.ProviderBody{Data: b64("plain body")},
		},
	}

	parsed := ParseMessage(msg)

	if parsed.From != "alice@example.com" {
		t.Errorf("From = %q, want alice@example.com", parsed.From)
	}
	if parsed.To != "bob@example.com" {
		t.Errorf("To = %q, want bob@example.com", parsed.To)
	}
	if parsed.Subject != "Hello" {
		t.Errorf("Subject = %q, want Hello", parsed.Subject)
	}
	if parsed.Body != "plain body" {
		t.Errorf("Body = %q, want plain body", parsed.Body)
	}
	if !parsed.Date.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("Date = %v, want %v", parsed.Date, time.UnixMilli(1700000000000))
	}
}

func TestParseMessageMissingData(t *testing.T) {
	tests := []struct {
		name string
		msg  *out.ProviderMessage
	}{
		{"nil message", nil},
		{"nil payload", &out.ProviderMessage{}},
		{"empty payload", &out.ProviderMessage{Payload: &out.ProviderPart{}}},
		{"bad internal date", &out.ProviderMessage{InternalDate: "not-a-number"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseMessage(tt.msg)
			if parsed.From != "" || parsed.To != "" || parsed.Subject != "" || parsed.Body != "" {
				t.Errorf("expected empty fields, got %+v", parsed)
			}
			if !parsed.Date.Equal(time.UnixMilli(0)) {
				t.Errorf("Date = %v, want epoch 0", parsed.Date)
			}
		})
	}
}

func TestExtractBodyPrefersTextPlain(t *testing.T) {
	payload := &out.ProviderPart{
		MimeType: "multipart/alternative",
		Parts: []*out.ProviderPart{
			{MimeType: "text/html", Body: &out.ProviderBody{Data: b64("<p>html</p>")}},
			{MimeType: "text/plain", Body: &out.ProviderBody{Data: b64("plain text")}},
		},
	}

	if got := ExtractBody(payload); got != "plain text" {
		t.Errorf("ExtractBody = %q, want plain text", got)
	}
}

func TestExtractBodyFallsBackToHTML(t *testing.T) {
	payload := &out.ProviderPart{
		MimeType: "multipart/alternative",
		Parts: []*out.ProviderPart{
			{MimeType: "text/html", Body: &out.ProviderBody{Data: b64("<b>bold</b> &amp; plain")}},
		},
	}

	if got := ExtractBody(payload); got != "bold & plain" {
		t.Errorf("ExtractBody = %q, want %q", got, "bold & plain")
	}
}

func TestExtractBodyRecursesNestedMultipart(t *testing.T) {
	payload := &out.ProviderPart{
		MimeType: "multipart/mixed",
		Parts: []*out.ProviderPart{
			{
				MimeType: "multipart/alternative",
				Parts: []*out.ProviderPart{
					{MimeType: "text/plain", Body: &out.ProviderBody{Data: b64("nested body")}},
				},
			},
		},
	}

	if got := ExtractBody(payload); got != "nested body" {
		t.Errorf("ExtractBody = %q, want nested body", got)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"style and script removed",
			"<style>body{color:red}</style><script>alert(1)</script><p>hello</p>",
			"hello",
		},
		{
			"entities decoded",
			"a &lt;b&gt; &quot;c&quot;&nbsp;&amp; d",
			`a <b> "c" & d`,
		},
		{
			"whitespace collapsed",
			"<div>  one\n\n two  </div>",
			"one two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.html); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.html, got, tt.want)
			}
		})
	}
}
