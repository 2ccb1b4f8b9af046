package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"os"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"go.uber.org/zap"
)

// SMTPMailer delivers replies through an authenticated SMTP relay
type SMTPMailer struct {
	cfg       config.SMTPConfig
	hostname  string
	tlsConfig *tls.Config
	logger    *zap.Logger
}

// NewSMTPMailer creates a new SMTP mailer
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPMailer{
		cfg:       cfg,
		hostname:  hostname,
		tlsConfig: &tls.Config{ServerName: cfg.Host},
		logger:    logger,
	}
}

// Send builds the reply message and hands it to the relay
func (m *SMTPMailer) Send(ctx context.Context, out *core.OutboundMail) error {
	if out.To == "" {
		return fmt.Errorf("reply has no recipient")
	}
	rcpt, err := mail.ParseAddress(out.To)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", out.To, err)
	}

	data, err := BuildMessage(Envelope{
		From:    mail.Address{Name: m.cfg.FromName, Address: m.cfg.FromEmail},
		ReplyTo: m.cfg.ReplyTo,
	}, out)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	if err := m.deliver(ctx, m.cfg.FromEmail, rcpt.Address, data); err != nil {
		return err
	}

	m.logger.Info("Reply delivered to relay",
		zap.String("to", rcpt.Address),
		zap.String("relay", m.cfg.Host),
		zap.Int("size", len(data)))
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, sender, recipient string, data []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to mail relay %s: %w", addr, err)
	}

	deadline := time.Now().Add(m.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c, err := m.newClient(conn)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if m.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)); err != nil {
			return fmt.Errorf("AUTH failed: %w: %w", core.ErrMailAuth, err)
		}
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(recipient, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the relay has already accepted the message
		m.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// newClient greets the relay, upgrading to TLS first when configured
func (m *SMTPMailer) newClient(conn net.Conn) (*smtp.Client, error) {
	if m.cfg.StartTLS {
		// NewClientStartTLS sends its own EHLO before upgrading
		c, err := smtp.NewClientStartTLS(conn, m.tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
		return c, nil
	}

	c := smtp.NewClient(conn)
	if err := c.Hello(m.hostname); err != nil {
		c.Close()
		return nil, fmt.Errorf("EHLO failed: %w", err)
	}
	return c, nil
}
