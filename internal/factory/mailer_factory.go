package factory

import (
	"fmt"

	"github.com/mikey/makerlab-autoreply/internal/adapters/mailer"
	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"go.uber.org/zap"
)

// MailerFactory creates the outbound mailer for a run mode
type MailerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailerFactory creates a new mailer factory
func NewMailerFactory(cfg *config.Config, logger *zap.Logger) *MailerFactory {
	return &MailerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMailer returns an SMTP mailer in send mode and nil otherwise, so
// draft and dry runs cannot reach the relay
func (f *MailerFactory) CreateMailer(mode core.RunMode) (core.Mailer, error) {
	if mode != core.ModeSend {
		return nil, nil
	}

	smtpCfg, err := f.cfg.GetSMTP()
	if err != nil {
		return nil, err
	}
	if smtpCfg.Host == "" || smtpCfg.FromEmail == "" {
		return nil, fmt.Errorf("smtp host and from address are required in send mode")
	}
	if smtpCfg.Username != "" && smtpCfg.Password == "" {
		return nil, fmt.Errorf("SENDGRID_API_KEY is required in send mode")
	}
	return mailer.NewSMTPMailer(smtpCfg, f.logger), nil
}
