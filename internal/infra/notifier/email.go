package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"notify-dispatch/internal/domain/entity"
)

// mailSender is the part of *mail.Client the adapter needs.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// MailClientFactory builds a sender for one set of SMTP settings.
type MailClientFactory func(settings *entity.EmailSettings, timeout time.Duration) (mailSender, error)

// EmailAdapter delivers messages over SMTP. Delivery is all-or-nothing:
// a single rejected recipient fails the whole message.
type EmailAdapter struct {
	newClient MailClientFactory
	timeout   time.Duration
}

// NewEmailAdapter creates an SMTP adapter backed by go-mail.
func NewEmailAdapter() *EmailAdapter {
	return &EmailAdapter{newClient: newMailClient, timeout: DefaultHTTPTimeout}
}

func (a *EmailAdapter) Type() entity.ChannelType { return entity.ChannelEmail }

// Deliver sends msg to every recipient in cfg.
func (a *EmailAdapter) Deliver(ctx context.Context, msg *entity.Message, cfg *entity.ChannelConfig) error {
	settings, ok := settingsOf[*entity.EmailSettings](cfg)
	if !ok {
		return settingsMismatch(entity.ChannelEmail, cfg)
	}

	m, err := buildMail(msg, settings)
	if err != nil {
		return err
	}

	client, err := a.newClient(settings, a.timeout)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	start := time.Now()
	err = client.DialAndSendWithContext(ctx, m)
	err = classifyMailError(err, settings.To)
	observe(string(entity.ChannelEmail), start, err)
	return err
}

// buildMail renders the subject "[LEVEL] title" and a plain-text body.
func buildMail(msg *entity.Message, settings *entity.EmailSettings) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(settings.From); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := m.To(settings.To...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}

	subject := msg.LevelTag()
	if msg.Title != "" {
		subject += " " + msg.Title
	}
	m.Subject(subject)
	m.SetDate()
	m.SetMessageID()
	if msg.Level == entity.LevelCritical {
		m.SetImportance(mail.ImportanceHigh)
	}
	m.SetBodyString(mail.TypeTextPlain, plainText(msg))
	return m, nil
}

// newMailClient maps the configured security mode onto go-mail options.
func newMailClient(settings *entity.EmailSettings, timeout time.Duration) (mailSender, error) {
	opts := []mail.Option{
		mail.WithPort(settings.Port),
		mail.WithTimeout(timeout),
	}

	security := settings.EffectiveSecurity()
	switch security {
	case entity.SecuritySSL:
		opts = append(opts, mail.WithSSL())
	case entity.SecuritySTARTTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	case entity.SecurityNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if settings.Username != "" {
		auth := mail.SMTPAuthPlain
		if security == entity.SecurityNone {
			auth = mail.SMTPAuthPlainNoEnc
		}
		opts = append(opts,
			mail.WithSMTPAuth(auth),
			mail.WithUsername(settings.Username),
			mail.WithPassword(settings.Password),
		)
	}

	return mail.NewClient(settings.Host, opts...)
}

// smtpError keeps the temporary flag reported by the SMTP server.
type smtpError struct {
	msg  string
	temp bool
	err  error
}

func (e *smtpError) Error() string   { return e.msg }
func (e *smtpError) Unwrap() error   { return e.err }
func (e *smtpError) Temporary() bool { return e.temp }

// classifyMailError turns a RCPT TO failure into a "rejected recipients"
// diagnostic naming the refused addresses.
func classifyMailError(err error, recipients []string) error {
	if err == nil {
		return nil
	}

	var sendErr *mail.SendError
	if !errors.As(err, &sendErr) {
		return err
	}

	if sendErr.Reason != mail.ErrSMTPRcptTo {
		return &smtpError{msg: fmt.Sprintf("smtp: %s", sendErr.Error()), temp: sendErr.IsTemp(), err: err}
	}

	text := sendErr.Error()
	var rejected []string
	for _, rcpt := range recipients {
		if strings.Contains(text, rcpt) {
			rejected = append(rejected, rcpt)
		}
	}
	if len(rejected) == 0 {
		return &smtpError{msg: "rejected recipients: " + text, temp: sendErr.IsTemp(), err: err}
	}
	return &smtpError{
		msg:  "rejected recipients: " + strings.Join(rejected, ", "),
		temp: sendErr.IsTemp(),
		err:  err,
	}
}
