package jobsculpt

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"sync"
	texttemplate "text/template"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Notifier dispatches the transactional emails of the auth workflow
type Notifier interface {
	SendVerificationLink(ctx context.Context, to, link string) error
	SendPasswordReset(ctx context.Context, to, link string) error
	SendNewDeviceAlert(ctx context.Context, to string, device *Device) error
}

// Message is a rendered email
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers a rendered message
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type emailTemplate struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func mustTemplate(name, subject, text, html string) emailTemplate {
	return emailTemplate{
		subject: subject,
		text:    texttemplate.Must(texttemplate.New(name).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name).Parse(html)),
	}
}

var (
	verificationTemplate = mustTemplate("verification", "Email Verification",
		"Please verify your email by clicking on the following link: {{.Link}}\n",
		`<p>Please verify your email by clicking on the following link: <a href="{{.Link}}">{{.Link}}</a></p>`,
	)

	passwordResetTemplate = mustTemplate("password-reset", "Password Reset",
		"You requested a password reset. Use the following link within the hour: {{.Link}}\nIf you did not request this, ignore this email.\n",
		`<p>You requested a password reset. Use the following link within the hour: <a href="{{.Link}}">{{.Link}}</a></p><p>If you did not request this, ignore this email.</p>`,
	)

	newDeviceTemplate = mustTemplate("new-device", "New device sign-in",
		"A new sign-in to your account was detected.\nDevice: {{.Device.DeviceName}}\nPlatform: {{.Device.Platform}}\nLocation: {{.Device.Location.City}}, {{.Device.Location.Country}}\nIP: {{.Device.IP}}\nTime: {{.When}}\n",
		`<p>A new sign-in to your account was detected.</p><ul><li>Device: {{.Device.DeviceName}}</li><li>Platform: {{.Device.Platform}}</li><li>Location: {{.Device.Location.City}}, {{.Device.Location.Country}}</li><li>IP: {{.Device.IP}}</li><li>Time: {{.When}}</li></ul>`,
	)
)

func (t emailTemplate) render(to string, data any) (Message, error) {
	var text, html bytes.Buffer
	if err := t.text.Execute(&text, data); err != nil {
		return Message{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email text")
	}
	if err := t.html.Execute(&html, data); err != nil {
		return Message{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email html")
	}
	return Message{
		To:      to,
		Subject: t.subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// EmailNotifier renders the built in templates and hands them to a Mailer
type EmailNotifier struct {
	mailer Mailer
}

var _ Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier returns a Notifier backed by mailer
func NewEmailNotifier(mailer Mailer) *EmailNotifier {
	return &EmailNotifier{mailer: mailer}
}

func (n *EmailNotifier) SendVerificationLink(ctx context.Context, to, link string) error {
	return n.send(ctx, verificationTemplate, to, map[string]any{"Link": link})
}

func (n *EmailNotifier) SendPasswordReset(ctx context.Context, to, link string) error {
	return n.send(ctx, passwordResetTemplate, to, map[string]any{"Link": link})
}

func (n *EmailNotifier) SendNewDeviceAlert(ctx context.Context, to string, device *Device) error {
	if device == nil {
		return goerrors.New("device is required", goerrors.CategoryInternal)
	}
	return n.send(ctx, newDeviceTemplate, to, map[string]any{
		"Device": device,
		"When":   device.LastLogin.UTC().Format(time.RFC1123),
	})
}

func (n *EmailNotifier) send(ctx context.Context, t emailTemplate, to string, data any) error {
	msg, err := t.render(to, data)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, msg)
}

// AsyncNotifier sends in the background so requests never wait on the mail
// provider. Failures are logged. Close blocks until in flight sends finish.
type AsyncNotifier struct {
	next    Notifier
	logger  Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

var _ Notifier = (*AsyncNotifier)(nil)

// NewAsyncNotifier wraps next
func NewAsyncNotifier(next Notifier, logger Logger) *AsyncNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &AsyncNotifier{
		next:    next,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

func (a *AsyncNotifier) SendVerificationLink(_ context.Context, to, link string) error {
	a.dispatch("verification", to, func(ctx context.Context) error {
		return a.next.SendVerificationLink(ctx, to, link)
	})
	return nil
}

func (a *AsyncNotifier) SendPasswordReset(_ context.Context, to, link string) error {
	a.dispatch("password-reset", to, func(ctx context.Context) error {
		return a.next.SendPasswordReset(ctx, to, link)
	})
	return nil
}

func (a *AsyncNotifier) SendNewDeviceAlert(_ context.Context, to string, device *Device) error {
	a.dispatch("new-device", to, func(ctx context.Context) error {
		return a.next.SendNewDeviceAlert(ctx, to, device)
	})
	return nil
}

// the request context is not used since it ends with the response
func (a *AsyncNotifier) dispatch(kind, to string, send func(ctx context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			a.logger.Error("notification failed", "kind", kind, "to", to, "error", err)
		}
	}()
}

// Close waits for pending notifications
func (a *AsyncNotifier) Close() {
	a.wg.Wait()
}
