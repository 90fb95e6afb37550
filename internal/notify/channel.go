package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"gradewatch/internal/components/retry"
	"gradewatch/internal/components/telemetry"
	"gradewatch/internal/watcherr"

	"github.com/go-resty/resty/v2"
	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

// Channel delivers one already rendered HTML message.
type Channel interface {
	Name() string
	Send(ctx context.Context, text string) error
}

type TelegramOptions struct {
	// BaseURL defaults to https://api.telegram.org.
	BaseURL string
	Token   string
	ChatID  string
	Timeout time.Duration
}

// TelegramChannel posts messages through the Bot API's sendMessage method.
type TelegramChannel struct {
	http   *resty.Client
	chatID string
	token  string
}

func NewTelegramChannel(opts TelegramOptions, tel telemetry.API) *TelegramChannel {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.telegram.org"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/"))
	client.SetTimeout(opts.Timeout)
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("telegram", tel), opts.Token)

	return &TelegramChannel{
		http:   client,
		chatID: opts.ChatID,
		token:  opts.Token,
	}
}

func (c *TelegramChannel) Name() string {
	return "telegram"
}

func (c *TelegramChannel) Send(ctx context.Context, text string) error {
	ctx, span := tracer.Start(ctx, "TelegramChannel.Send")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("token", c.token).
		SetFormData(map[string]string{
			"chat_id":    c.chatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post("/bot{token}/sendMessage")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return watcherr.Wrap(watcherr.ErrDelivery, "telegram.send", watcherr.Wrap(watcherr.ErrTransientNetwork, "telegram.send", redactErr(err, c.token)))
	}
	if res.StatusCode() == http.StatusOK {
		return nil
	}

	err = watcherr.New(watcherr.ErrDelivery, "telegram.send", "status %d: %s", res.StatusCode(), truncate(res.String(), 200))
	span.RecordError(err)
	span.SetStatus(codes.Error, "rejected")
	if res.StatusCode() >= 400 && res.StatusCode() < 500 && res.StatusCode() != http.StatusTooManyRequests {
		// bad chat id, revoked token or malformed html, repeating will not help
		return retry.Permanent(err)
	}
	return err
}

type redactedError struct {
	msg string
	err error
}

func (e redactedError) Error() string { return e.msg }
func (e redactedError) Unwrap() error { return e.err }

func redactErr(err error, secret string) error {
	if secret == "" {
		return err
	}
	return redactedError{msg: strings.ReplaceAll(err.Error(), secret, "***"), err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type EmailOptions struct {
	SmtpServer string
	Port       int
	Username   string
	Password   string
	From       string
	To         []string
}

// EmailChannel sends HTML mail over SMTP, falling back to an unauthenticated
// session when the server does not offer AUTH.
type EmailChannel struct {
	opts EmailOptions
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewEmailChannel(opts EmailOptions) *EmailChannel {
	if opts.Port == 0 {
		opts.Port = 587
	}
	if opts.Username == "" {
		opts.Username = opts.From
	}
	return &EmailChannel{
		opts: opts,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (c *EmailChannel) Name() string {
	return "email"
}

func (c *EmailChannel) Send(ctx context.Context, text string) error {
	_, span := tracer.Start(ctx, "EmailChannel.Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("gradewatch <%s>", c.opts.From)
	mail.To = c.opts.To
	mail.Subject = subjectOf(text)
	mail.HTML = []byte(strings.ReplaceAll(text, "\n", "<br>\n"))

	addr := fmt.Sprintf("%s:%d", c.opts.SmtpServer, c.opts.Port)
	err := c.send(mail, addr, smtp.PlainAuth("", c.opts.Username, c.opts.Password, c.opts.SmtpServer))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = c.send(mail, addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return watcherr.Wrap(watcherr.ErrDelivery, "email.send", err)
	}
	return nil
}

// subjectOf uses the first line of the message without markup.
func subjectOf(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.NewReplacer("<b>", "", "</b>", "").Replace(line)
	line = strings.TrimSpace(line)
	if line == "" {
		return "gradewatch"
	}
	return line
}
