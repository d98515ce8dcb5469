package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var paymentLinkTemplate = template.Must(template.ParseFS(templateFS, "templates/payment_link.html"))

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPNotifier struct {
	cfg        SMTPConfig
	send       sendMailFunc
	maxRetries uint64
	log        *zap.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, log *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:        cfg,
		send:       smtp.SendMail,
		maxRetries: 2,
		log:        log.Named("notification.smtp"),
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return ErrNoRecipient
	}

	body, err := renderPaymentLink(msg)
	if err != nil {
		return err
	}
	raw := buildMIME(n.cfg.From, to, subjectFor(msg), body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), n.maxRetries), ctx)
	return backoff.RetryNotify(func() error {
		return n.send(addr, auth, n.cfg.From, []string{to}, raw)
	}, policy, func(err error, wait time.Duration) {
		n.log.Warn("smtp send retry", zap.String("to", to), zap.Duration("wait", wait), zap.Error(err))
	})
}

func subjectFor(msg Message) string {
	if msg.Description != "" {
		return "Payment due: " + msg.Description
	}
	return "Your subscription invoice"
}

func renderPaymentLink(msg Message) (string, error) {
	data := struct {
		RestaurantName string
		Description    string
		Amount         string
		Currency       string
		DueDate        string
		PaymentLink    string
	}{
		RestaurantName: msg.RestaurantName,
		Description:    msg.Description,
		Amount:         msg.Amount.StringFixed(2),
		Currency:       msg.Currency,
		DueDate:        msg.DueDate.Format("02 Jan 2006"),
		PaymentLink:    msg.PaymentLink,
	}

	var body bytes.Buffer
	if err := paymentLinkTemplate.Execute(&body, data); err != nil {
		return "", fmt.Errorf("render payment link email: %w", err)
	}
	return body.String(), nil
}

func buildMIME(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
