package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pushit/marketplace/internal/config"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// smtpClient is the part of *mail.Client the mailer uses.
type smtpClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends plain-text email over SMTP. Without a host it only logs.
type Mailer struct {
	from   string
	client smtpClient
	log    *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) (*Mailer, error) {
	m := &Mailer{from: cfg.EmailFrom, log: log}
	if cfg.SMTPHost == "" {
		return m, nil
	}

	timeout := cfg.SMTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}
	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	m.client = client
	return m, nil
}

func (m *Mailer) Enabled() bool { return m.client != nil }

// Send delivers one message. The dial and the SMTP exchange both stop when
// ctx is done.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.Enabled() {
		m.log.Info("email (smtp disabled)",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}

	msg, err := buildMessage(m.from, to, subject, body, time.Now())
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// headerSafe strips line breaks so a value cannot inject headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(s)
}

func buildMessage(from, to, subject, body string, now time.Time) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(headerSafe(from)); err != nil {
		return nil, fmt.Errorf("sender address %q: %w", from, err)
	}
	if err := msg.To(headerSafe(to)); err != nil {
		return nil, fmt.Errorf("recipient address %q: %w", to, err)
	}
	msg.Subject(headerSafe(subject))
	msg.SetDateWithValue(now)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}
