package gmail

import (
	"encoding/base64"
	"regexp"
	"strings"
)

type apiMessage struct {
	ID      string  `json:"id"`
	Payload payload `json:"payload"`
}

type payload struct {
	MimeType string `json:"mimeType"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []payload `json:"parts"`
}

// extractBody pulls the main text out of a Gmail payload tree. Plain
// text parts win over HTML; HTML is stripped down to its text content.
func extractBody(p *payload) string {
	body, mime := findBody(p)
	if body == "" {
		return ""
	}
	if strings.Contains(strings.ToLower(mime), "html") {
		body = htmlToText(body)
	}
	return strings.TrimSpace(body)
}

func findBody(p *payload) (body, mimeType string) {
	if len(p.Parts) == 0 {
		return decodePart(p.Body.Data), p.MimeType
	}

	var htmlBody string
	for i := range p.Parts {
		part := &p.Parts[i]
		switch {
		case strings.Contains(part.MimeType, "text/plain"):
			if b := decodePart(part.Body.Data); b != "" {
				return b, part.MimeType
			}
		case strings.Contains(part.MimeType, "text/html"):
			if htmlBody == "" {
				htmlBody = decodePart(part.Body.Data)
			}
		case len(part.Parts) > 0:
			// multipart/alternative nested inside multipart/mixed
			if b, m := findBody(part); b != "" {
				if strings.Contains(m, "text/plain") {
					return b, m
				}
				if htmlBody == "" {
					htmlBody = b
				}
			}
		}
	}
	return htmlBody, "text/html"
}

func decodePart(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// htmlToText strips markup from an HTML body, keeping only readable
// text. Entities common in marketing mail are expanded by hand; the
// classifier only needs keywords, not faithful rendering.
func htmlToText(s string) string {
	s = scriptStyleRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	).Replace(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
