package reply

import (
	"strings"
	"testing"
)

func TestSubject(t *testing.T) {
	tests := map[string]string{
		"Summer camp pricing?":     "Re: Summer camp pricing?",
		"Re: Summer camp pricing?": "Re: Summer camp pricing?",
		"RE: hours":                "RE: hours",
		"  Lab hours ":             "Re: Lab hours",
		"":                         "Re: ",
		"Regarding camp":           "Re: Regarding camp",
	}
	for in, want := range tests {
		if got := Subject(in); got != want {
			t.Errorf("Subject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBodyFragment(t *testing.T) {
	html := "<p>Hi Jane,</p><p>Camps are $250/week.</p>"
	if got := BodyFragment(html); got != html {
		t.Errorf("HTML should pass through, got %q", got)
	}

	md := "Hi Jane,\n\nCamps are **$250/week**. Register at https://example.com/register"
	got := BodyFragment(md)
	for _, want := range []string{"<p>Hi Jane,</p>", "<strong>$250/week</strong>", `<a href="https://example.com/register">`} {
		if !strings.Contains(got, want) {
			t.Errorf("BodyFragment(markdown) = %q, missing %q", got, want)
		}
	}
}

func TestHTMLDocument(t *testing.T) {
	doc := HTMLDocument("<p>Hello</p>")
	if !strings.HasPrefix(doc, "<html><body><p>Hello</p><br><br>--<br>") {
		t.Errorf("document = %q", doc)
	}
	if !strings.HasSuffix(doc, "</a>\n</body></html>") {
		t.Errorf("document = %q", doc)
	}
}

func TestPlainDocument(t *testing.T) {
	got := PlainDocument("<p>Hi <b>Jane</b>,</p><p>See you soon.</p>")
	if !strings.HasPrefix(got, "Hi Jane , See you soon.") {
		t.Errorf("PlainDocument() = %q", got)
	}
	if !strings.Contains(got, "https://makerlab.illinois.edu") {
		t.Errorf("plain signature missing: %q", got)
	}
}
