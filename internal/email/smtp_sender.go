package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

const defaultRecipientName = "there"

// SMTPSender envia correos via SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	useTLS   bool

	// deliver se reemplaza en tests.
	deliver func(ctx context.Context, to string, msg []byte) error
}

type Message struct {
	To      string
	Subject string
	Body    string
}

func NewSMTPSender(host string, port int, username, password, from, fromName string, useTLS bool) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	s := &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
		useTLS:   useTLS,
	}
	s.deliver = s.dialAndSend
	return s, nil
}

func (s *SMTPSender) SendVerificationEmail(ctx context.Context, toEmail, fullName, link string) error {
	return s.send(ctx, VerificationMessage(toEmail, fullName, link))
}

func (s *SMTPSender) SendPasswordResetEmail(ctx context.Context, toEmail, fullName, link string) error {
	return s.send(ctx, PasswordResetMessage(toEmail, fullName, link))
}

// VerificationMessage arma el correo de verificacion de email.
func VerificationMessage(toEmail, fullName, link string) Message {
	return Message{
		To:      toEmail,
		Subject: "Verify your email",
		Body: fmt.Sprintf(
			"Hi %s,\n\nThanks for signing up. Confirm your email address by opening this link:\n\n%s\n\nIf you did not create an account, ignore this email.\n",
			recipientName(fullName),
			link,
		),
	}
}

// PasswordResetMessage arma el correo de reseteo de password.
func PasswordResetMessage(toEmail, fullName, link string) Message {
	return Message{
		To:      toEmail,
		Subject: "Reset your password",
		Body: fmt.Sprintf(
			"Hi %s,\n\nWe received a request to reset your password. Continue with this link:\n\n%s\n\nIf you did not ask for this change, ignore this email.\n",
			recipientName(fullName),
			link,
		),
	}
}

func recipientName(fullName string) string {
	if name := strings.TrimSpace(fullName); name != "" {
		return name
	}
	return defaultRecipientName
}

func (s *SMTPSender) send(ctx context.Context, m Message) error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("to email is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(s.from, s.fromName, m.To, m.Subject, m.Body)
	if err := s.deliver(ctx, m.To, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, toEmail string, msg []byte) error {
	addr := net.JoinHostPort(s.host, fmt.Sprint(s.port))

	dialer := &net.Dialer{}
	var (
		conn net.Conn
		err  error
	)
	if s.useTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer client.Close()

	if !s.useTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
				return err
			}
		}
	}
	if s.username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return err
		}
	}
	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(toEmail); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write(msg); err != nil {
		_ = writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, fromName, to, subject, body string) string {
	fromHeader := from
	if strings.TrimSpace(fromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}

	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}
