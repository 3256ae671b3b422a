package alerter

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/jiin/lookout/internal/config"
)

const (
	// Email sending timeout
	emailDialTimeout = 10 * time.Second
	emailSendTimeout = 30 * time.Second
)

// EmailChannel sends notifications via SMTP email
type EmailChannel struct {
	cfg config.EmailConfig
}

// NewEmailChannel creates a new email channel
func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg}
}

func (e *EmailChannel) Name() string {
	return "email"
}

func (e *EmailChannel) IsEnabled() bool {
	return e.cfg.Enabled && e.cfg.SMTPHost != "" && len(e.cfg.To) > 0
}

func (e *EmailChannel) Send(n *Notification) error {
	if !e.IsEnabled() {
		return nil
	}

	subject := fmt.Sprintf("[Lookout %s] %s", strings.ToUpper(n.Severity), n.Title)
	body, err := renderEmailBody(n)
	if err != nil {
		return err
	}

	return e.sendEmail(subject, body)
}

func (e *EmailChannel) sendEmail(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)

	// Build message
	var msg bytes.Buffer
	msg.WriteString(fmt.Sprintf("From: %s\r\n", e.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(e.cfg.To, ",")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	// Authentication
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
	}

	var conn net.Conn
	var err error
	if e.cfg.UseTLS {
		dialer := &net.Dialer{Timeout: emailDialTimeout}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: e.cfg.SMTPHost})
	} else {
		conn, err = net.DialTimeout("tcp", addr, emailDialTimeout)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	// Deadline covers the entire send
	if err := conn.SetDeadline(time.Now().Add(emailSendTimeout)); err != nil {
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, e.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("SMTP MAIL command failed: %w", err)
	}
	for _, to := range e.cfg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("SMTP RCPT command failed for %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command failed: %w", err)
	}
	if _, err := w.Write(msg.Bytes()); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close email body: %w", err)
	}

	return client.Quit()
}

func renderEmailBody(n *Notification) (string, error) {
	tmpl, err := template.New("email").Parse(emailTemplate)
	if err != nil {
		return "", err
	}

	data := struct {
		N     *Notification
		Color string
		Time  time.Time
	}{
		N:     n,
		Color: GetColorString(n.Severity),
		Time:  n.SentAt,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const emailTemplate = `<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
        .container { max-width: 600px; margin: 0 auto; background: white; border-radius: 8px; padding: 24px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .header { padding-bottom: 16px; border-bottom: 2px solid {{.Color}}; }
        .title { font-size: 20px; font-weight: 600; margin: 0; color: {{.Color}}; }
        .message { font-size: 16px; color: #333; margin: 16px 0; }
        .targets { background: #f9f9f9; border-radius: 4px; padding: 16px; margin: 16px 0; color: #333; }
        .footer { margin-top: 24px; padding-top: 16px; border-top: 1px solid #eee; font-size: 12px; color: #999; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1 class="title">{{.N.Title}}</h1>
        </div>
        <div class="message">{{.N.Body}}</div>
        <div class="targets">
            {{range .N.Targets}}<div>{{.}}</div>{{end}}
        </div>
        <div class="footer">
            Sent by Lookout at {{.Time.Format "2006-01-02 15:04:05"}}
        </div>
    </div>
</body>
</html>`
