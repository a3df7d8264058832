package mailer

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

var ErrNoRecipients = errors.New("mailer: message has no recipients")

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is an HTML email. Bcc recipients never appear in the headers.
type Message struct {
	To          []string
	Bcc         []string
	ReplyTo     string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer delivers outbound email
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends through an authenticated SMTP relay
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}
}

// Send dials the relay for each message. The SMTP exchange itself cannot be
// cancelled; ctx only bounds how long the caller waits for it.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	gm, err := buildMessage(m.from, msg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(gm) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from string, msg Message) (*gomail.Message, error) {
	if len(msg.To) == 0 && len(msg.Bcc) == 0 {
		return nil, ErrNoRecipients
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", from)
	if len(msg.To) > 0 {
		gm.SetHeader("To", msg.To...)
	}
	if len(msg.Bcc) > 0 {
		gm.SetHeader("Bcc", msg.Bcc...)
	}
	if msg.ReplyTo != "" {
		gm.SetHeader("Reply-To", msg.ReplyTo)
	}
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	for _, a := range msg.Attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		gm.Attach(a.Filename, settings...)
	}
	return gm, nil
}

// LogMailer only logs; it stands in when SMTP is not configured
type LogMailer struct {
	log *logrus.Logger
}

func NewLogMailer(log *logrus.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 && len(msg.Bcc) == 0 {
		return ErrNoRecipients
	}
	m.log.WithFields(logrus.Fields{
		"to":          msg.To,
		"bcc":         len(msg.Bcc),
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	}).Info("mail delivery disabled, message dropped")
	return nil
}
