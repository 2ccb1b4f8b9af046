package mailer

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"github.com/mikey/makerlab-autoreply/internal/reply"
)

// Envelope holds the addressing used to build an outgoing message
type Envelope struct {
	From    mail.Address
	ReplyTo string
	Date    time.Time
}

// BuildMessage renders m as a multipart/alternative message with a text and
// an HTML part. The subject is prefixed "Re: " and the signature appended.
func BuildMessage(env Envelope, m *core.OutboundMail) ([]byte, error) {
	to, err := mail.ParseAddress(m.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	var replyTo *mail.Address
	if env.ReplyTo != "" {
		if replyTo, err = mail.ParseAddress(env.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to %q: %w", env.ReplyTo, err)
		}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := writePart(mw, "text/plain; charset=utf-8", reply.PlainDocument(m.BodyHTML)); err != nil {
		return nil, err
	}
	if err := writePart(mw, "text/html; charset=utf-8", reply.HTMLDocument(m.BodyHTML)); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	date := env.Date
	if date.IsZero() {
		date = time.Now()
	}
	_, domain, _ := strings.Cut(env.From.Address, "@")
	if domain == "" {
		domain = "localhost"
	}

	var msg bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&msg, "%s: %s\r\n", k, v) }
	header("From", env.From.String())
	header("To", to.String())
	if replyTo != nil {
		header("Reply-To", replyTo.String())
	}
	header("Subject", mime.QEncoding.Encode("utf-8", reply.Subject(m.Subject)))
	header("Date", date.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain))
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary()))
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	pw, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	qp := quotedprintable.NewWriter(pw)
	if _, err := qp.Write([]byte(content)); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return qp.Close()
}
