// Package mailer delivers verification codes by email.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"educhat/backend/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	subject    = "Your EduChat Verification Code"
	gmailScope = "https://mail.google.com/"
)

// LogMailer writes codes to the log instead of sending them. It is used when
// no SMTP server is configured.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log.With(slog.String("component", "mailer"))}
}

func (m *LogMailer) SendVerificationCode(_ context.Context, email, code string) error {
	m.log.Info("verification code (SMTP disabled)", slog.String("email", email), slog.String("code", code))
	return nil
}

type deliverFunc func(ctx context.Context, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends codes through an SMTP relay, authenticating with PLAIN or,
// when OAuth credentials are configured, Gmail XOAUTH2.
type SMTPMailer struct {
	cfg     config.SMTPConfig
	tokens  oauth2.TokenSource
	deliver deliverFunc
	log     *slog.Logger
}

// NewSMTPMailer builds a mailer for cfg. ctx scopes the OAuth token refreshes.
func NewSMTPMailer(ctx context.Context, cfg config.SMTPConfig, log *slog.Logger) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg, log: log.With(slog.String("component", "mailer"))}
	if cfg.UsesOAuth() {
		oc := &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmailScope},
		}
		m.tokens = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.OAuthRefreshToken})
	}
	m.deliver = m.dial
	return m
}

func (m *SMTPMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	auth, err := m.auth()
	if err != nil {
		return err
	}
	msg, err := buildMessage(m.cfg.From, email, code)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	if err := m.deliver(ctx, auth, m.cfg.From, []string{email}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", email, err)
	}
	m.log.Debug("verification mail sent", slog.String("email", email))
	return nil
}

func (m *SMTPMailer) auth() (smtp.Auth, error) {
	if m.tokens != nil {
		tok, err := m.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("refresh oauth token: %w", err)
		}
		return &xoauth2Auth{username: m.cfg.Username, token: tok.AccessToken}, nil
	}
	if m.cfg.Username == "" {
		return nil, nil
	}
	return smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host), nil
}

// dial runs one SMTP transaction, upgrading to TLS when the server offers it.
func (m *SMTPMailer) dial(ctx context.Context, auth smtp.Auth, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// xoauth2Auth implements the SASL XOAUTH2 mechanism used by Gmail.
type xoauth2Auth struct {
	username string
	token    string
}

func (a *xoauth2Auth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	return "XOAUTH2", []byte("user=" + a.username + "\x01auth=Bearer " + a.token + "\x01\x01"), nil
}

func (a *xoauth2Auth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		// the server only continues to report a failure
		return nil, errors.New("xoauth2: " + string(fromServer))
	}
	return nil, nil
}

func buildMessage(from, to, code string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", fmt.Sprintf("Your verification code is: %s\r\nFrom: EduChat Team (%s)\r\n", code, from)},
		{"text/html; charset=UTF-8", fmt.Sprintf("<h1>EduChat Verification</h1>\r\n<p>Your verification code is: <strong>%s</strong></p>\r\n<p>From: EduChat Team (%s)</p>\r\n", code, from)},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
