// Package email sends registry notices over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"giftregistry/api/internal/logger"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SendFunc delivers one message. smtp.SendMail is the default.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   SendFunc
}

// NewService creates a new email service. Without a username the session
// is unauthenticated.
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// SetSender replaces the delivery function.
func (s *Service) SetSender(send SendFunc) {
	s.send = send
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s != nil && s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	return s.config.From
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		s.fromHeader(),
		subject,
		body,
	))

	return s.send(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email with a plain text alternative.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	boundary := "boundary-registry"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// PublishNotice describes one newly published registry version.
type PublishNotice struct {
	Version     string
	PublishedAt time.Time
	// GiftCount is ignored for undo notices.
	GiftCount int
	// Undo is set when the version became live through an undo-publish.
	Undo bool
}

// SendPublishNotice mails notice to the given recipients.
func (s *Service) SendPublishNotice(to []string, notice PublishNotice) error {
	action := "published"
	if notice.Undo {
		action = "restored"
	}
	subject := fmt.Sprintf("Gift registry %s %s", action, notice.Version)
	text := fmt.Sprintf("Version %s was %s at %s.", notice.Version, action, notice.PublishedAt.UTC().Format(time.RFC1123))
	if !notice.Undo {
		text += fmt.Sprintf(" The live registry now lists %d gifts.", notice.GiftCount)
	}

	html, err := renderTemplate(publishNoticeTemplate, struct {
		PublishNotice
		Action string
	}{notice, action})
	if err != nil {
		return fmt.Errorf("render publish notice: %w", err)
	}
	return s.SendHTMLEmail(to, subject, text, html)
}

func renderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("email").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string { return t.UTC().Format(time.RFC1123) },
	}).Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Notifier mails publish notices to a fixed recipient list in the
// background. A nil or unconfigured Notifier does nothing.
type Notifier struct {
	service    *Service
	recipients []string
	log        *logger.Logger
	wg         sync.WaitGroup
}

func NewNotifier(service *Service, recipients []string, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{service: service, recipients: recipients, log: log}
}

// Enabled reports whether notices will actually be sent.
func (n *Notifier) Enabled() bool {
	return n != nil && n.service.IsConfigured() && len(n.recipients) > 0
}

// Notify sends notice without blocking the caller. Failures are logged.
func (n *Notifier) Notify(notice PublishNotice) {
	if !n.Enabled() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.service.SendPublishNotice(n.recipients, notice); err != nil {
			n.log.Warn().Err(err).Str("version", notice.Version).Msg("publish notice not sent")
			return
		}
		n.log.Info().Str("version", notice.Version).Int("recipients", len(n.recipients)).Msg("publish notice sent")
	}()
}

// Wait blocks until every pending notice has been handled.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}

// ParseRecipients splits a comma separated address list.
func ParseRecipients(list string) []string {
	var out []string
	for _, addr := range strings.Split(list, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

const publishNoticeTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Gift registry {{.Action}} {{.Version}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .version { font-family: monospace; background: #f4f4f4; padding: 2px 6px; border-radius: 4px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Gift registry</h1>
    </div>

    <p>Version <span class="version">{{.Version}}</span> was {{.Action}} at {{formatTime .PublishedAt}}.</p>

    {{if not .Undo}}<p>The live registry now lists {{.GiftCount}} gifts.</p>{{end}}

    <div class="footer">
        <p>You receive this notice because your address is on the registry publish list.</p>
    </div>
</body>
</html>`
