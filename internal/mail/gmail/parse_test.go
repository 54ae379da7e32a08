package gmail

import (
	"testing"
)

func TestExtractBody_SinglePartPlain(t *testing.T) {
	t.Parallel()

	p := &payload{MimeType: "text/plain"}
	p.Body.Data = b64("hello world\n")

	if got := extractBody(p); got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBody_SinglePartHTML(t *testing.T) {
	t.Parallel()

	p := &payload{MimeType: "text/html"}
	p.Body.Data = b64("<html><style>p{color:red}</style><p>Urgent: interview &amp; offer</p></html>")

	if got := extractBody(p); got != "Urgent: interview & offer" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBody_PrefersPlainOverHTML(t *testing.T) {
	t.Parallel()

	p := &payload{
		MimeType: "multipart/alternative",
		Parts: []payload{
			{MimeType: "text/html"},
			{MimeType: "text/plain"},
		},
	}
	p.Parts[0].Body.Data = b64("<b>html version</b>")
	p.Parts[1].Body.Data = b64("plain version")

	if got := extractBody(p); got != "plain version" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBody_HTMLFallback(t *testing.T) {
	t.Parallel()

	p := &payload{
		MimeType: "multipart/alternative",
		Parts:    []payload{{MimeType: "text/html"}},
	}
	p.Parts[0].Body.Data = b64("<div>only html</div>")

	if got := extractBody(p); got != "only html" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBody_NestedMultipart(t *testing.T) {
	t.Parallel()

	inner := payload{
		MimeType: "multipart/alternative",
		Parts:    []payload{{MimeType: "text/plain"}},
	}
	inner.Parts[0].Body.Data = b64("nested text")

	p := &payload{
		MimeType: "multipart/mixed",
		Parts: []payload{
			{MimeType: "application/pdf"},
			inner,
		},
	}

	if got := extractBody(p); got != "nested text" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBody_Empty(t *testing.T) {
	t.Parallel()

	if got := extractBody(&payload{MimeType: "text/plain"}); got != "" {
		t.Errorf("got %q, want empty", got)
	}
	if got := extractBody(&payload{}); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestHTMLToText_CollapsesWhitespace(t *testing.T) {
	t.Parallel()

	in := "<p>one</p>\n\n  <p>two</p>\t<script>evil()</script>"
	if got := htmlToText(in); got != "one two" {
		t.Errorf("got %q", got)
	}
}
