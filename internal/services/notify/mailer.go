package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// senderName is the display name on every outgoing notification
const senderName = "DriveNova Notifier"

// ErrMailerDisabled is returned by Send when SMTP is not configured
var ErrMailerDisabled = errors.New("smtp is not configured")

// SMTPConfig holds outgoing mail settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // falls back to Username
	To       string
	SSL      bool // implicit TLS, typically port 465
}

// Enabled reports whether enough is configured to send mail
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Username != "" && c.Password != "" && c.To != ""
}

func (c SMTPConfig) fromAddress() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// Sender delivers a prepared message
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends notification emails to the operator address
type Mailer struct {
	cfg    SMTPConfig
	sender Sender
	logger *zap.Logger
}

// NewMailer creates a mailer. An unconfigured mailer is valid; its Send
// returns ErrMailerDisabled.
func NewMailer(cfg SMTPConfig, log *zap.Logger) (*Mailer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Mailer{cfg: cfg, logger: log}
	if !cfg.Enabled() {
		log.Warn("smtp_not_configured")
		return m, nil
	}

	opts := []mail.Option{
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	m.sender = client
	return m, nil
}

// Enabled reports whether Send will attempt delivery
func (m *Mailer) Enabled() bool {
	return m.sender != nil
}

// Message builds the email for subject and an HTML body
func (m *Mailer) Message(subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(senderName, m.cfg.fromAddress()); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(m.cfg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

// Send delivers one notification
func (m *Mailer) Send(ctx context.Context, subject, body string) error {
	if m.sender == nil {
		return ErrMailerDisabled
	}
	msg, err := m.Message(subject, body)
	if err != nil {
		return err
	}
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	m.logger.Info("notification_email_sent", zap.String("subject", subject))
	return nil
}
