// Package reply turns a drafted reply into the message body sent to the
// original sender.
package reply

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/mikey/makerlab-autoreply/internal/utils"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Signature is appended to every outgoing HTML body
const Signature = `<br><br>--<br>
<strong>Illinois MakerLab</strong><br>
Business Instructional Facility, Room 3030<br>
University of Illinois at Urbana-Champaign<br>
<a href="https://makerlab.illinois.edu">makerlab.illinois.edu</a>
`

// PlainSignature is the text/plain rendering of Signature
const PlainSignature = "\n\n--\nIllinois MakerLab\nBusiness Instructional Facility, Room 3030\nUniversity of Illinois at Urbana-Champaign\nhttps://makerlab.illinois.edu\n"

var (
	tagPattern = regexp.MustCompile(`<(p|br|a|ul|ol|li|strong|em|b|i|div|h[1-6])[\s/>]`)
	markdown   = goldmark.New(goldmark.WithExtensions(extension.Linkify))
)

// Subject prefixes "Re: " unless the subject is already a reply
func Subject(subject string) string {
	subject = strings.TrimSpace(subject)
	if len(subject) >= 3 && strings.EqualFold(subject[:3], "re:") {
		return subject
	}
	return "Re: " + subject
}

// LooksLikeHTML reports whether body already contains common HTML markup
func LooksLikeHTML(body string) bool {
	return tagPattern.MatchString(strings.ToLower(body))
}

// BodyFragment returns the reply as an HTML fragment. Models occasionally
// answer in Markdown despite being asked for HTML; that is rendered here.
func BodyFragment(body string) string {
	body = strings.TrimSpace(body)
	if body == "" || LooksLikeHTML(body) {
		return body
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "<p>" + body + "</p>"
	}
	return strings.TrimSpace(buf.String())
}

// HTMLDocument wraps the reply and signature in a complete HTML document
func HTMLDocument(body string) string {
	return "<html><body>" + BodyFragment(body) + Signature + "</body></html>"
}

// PlainDocument is the text alternative of HTMLDocument
func PlainDocument(body string) string {
	return utils.PlainText(BodyFragment(body)) + PlainSignature
}
