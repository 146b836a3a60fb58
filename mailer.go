package jobsculpt

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	MailDriverSendGrid = "sendgrid"
	MailDriverSMTP     = "smtp"
	MailDriverLog      = "log"

	DefaultSendGridHost = "https://api.sendgrid.com"
)

// SendGridMailer delivers through the SendGrid v3 mail send API
type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
	from     string
}

var _ Mailer = (*SendGridMailer)(nil)

// NewSendGridMailer returns a mailer. host overrides the API base URL.
func NewSendGridMailer(apiKey, fromName, from, host string) *SendGridMailer {
	if host == "" {
		host = DefaultSendGridHost
	}
	request := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	request.Method = "POST"

	return &SendGridMailer{
		client:   &sendgrid.Client{Request: request},
		fromName: fromName,
		from:     from,
	}
}

func (s *SendGridMailer) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(s.fromName, s.from)
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "sendgrid request failed")
	}

	if response.StatusCode >= 400 {
		return goerrors.New(fmt.Sprintf("sendgrid returned status %d", response.StatusCode), goerrors.CategoryExternal).
			WithMetadata(map[string]any{"body": response.Body})
	}

	return nil
}

// SMTPConfig holds SMTP relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers over an SMTP relay with PLAIN auth
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer returns a mailer for cfg
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{
		cfg:  cfg,
		send: smtp.SendMail,
		now:  time.Now,
	}
}

func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := s.send(addr, auth, s.cfg.From, []string{msg.To}, s.compose(msg)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "smtp send failed")
	}
	return nil
}

func (s *SMTPMailer) compose(msg Message) []byte {
	const boundary = "jobsculpt-alt-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.Text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// LogMailer writes messages to the logger instead of sending them
type LogMailer struct {
	logger Logger
}

var _ Mailer = (*LogMailer)(nil)

// NewLogMailer returns a mailer for development
func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(_ context.Context, msg Message) error {
	l.logger.Info("email", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}
