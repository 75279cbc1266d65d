package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/config"
)

type SMTPNotifier struct {
	cfg config.MailConfig
	log zerolog.Logger
}

func NewSMTPNotifier(cfg config.MailConfig, log zerolog.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, log: log}
}

func (n *SMTPNotifier) Configured() bool {
	return n.cfg.Host != "" && n.cfg.Username != "" && n.cfg.Password != ""
}

// Send delivers over SMTP with STARTTLS. Without credentials the message is
// logged instead and Send reports false.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) bool {
	if !n.Configured() {
		n.log.Warn().
			Str("to", to).
			Str("subject", subject).
			Msg("smtp not configured, message not delivered")
		if n.cfg.LogUndelivered {
			n.log.Info().Str("to", to).Str("body", body).Msg("undelivered message body")
		}
		return false
	}

	if err := n.deliver(ctx, to, subject, body); err != nil {
		n.log.Error().Err(err).Str("to", to).Msg("smtp delivery failed")
		return false
	}
	return true
}

func (n *SMTPNotifier) deliver(ctx context.Context, to, subject, body string) error {
	timeout := n.cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if err := client.Auth(smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := client.Mail(n.cfg.FromAddress); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(n.compose(to, subject, body)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}

func (n *SMTPNotifier) compose(to, subject, body string) []byte {
	from := mail.Address{Name: n.cfg.FromName, Address: n.cfg.FromAddress}

	var b strings.Builder
	b.WriteString("From: " + from.String() + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
