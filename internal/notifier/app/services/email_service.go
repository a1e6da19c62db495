package services

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"restaurant-app/internal/notifier/app/core"
	"restaurant-app/internal/xpkg/logger"
	"restaurant-app/internal/xpkg/models"
)

const (
	defaultCustomerName = "Customer"
	dateLayout          = "Mon Jan 2 2006 15:04:05 MST"
)

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// EmailService renders notifications and hands them to the mailer.
type EmailService struct {
	mailer core.IMailer
	mylog  logger.Logger
}

func NewEmailService(mailer core.IMailer, mylog logger.Logger) *EmailService {
	return &EmailService{mailer: mailer, mylog: mylog}
}

// RenderReceipt builds the receipt of an order. Orders without an email,
// items or creation time are reported as core.ErrMalformed.
func RenderReceipt(msg models.OrderCreated) (core.Email, error) {
	switch {
	case strings.TrimSpace(msg.Email) == "":
		return core.Email{}, fmt.Errorf("%w: order %s has no email", core.ErrMalformed, msg.OrderID)
	case len(msg.Items) == 0:
		return core.Email{}, fmt.Errorf("%w: order %s has no items", core.ErrMalformed, msg.OrderID)
	case msg.CreatedAt.IsZero():
		return core.Email{}, fmt.Errorf("%w: order %s has no creation time", core.ErrMalformed, msg.OrderID)
	}

	name := strings.TrimSpace(msg.CustomerName)
	if name == "" {
		name = defaultCustomerName
	}

	var buf bytes.Buffer
	err := receiptTmpl.Execute(&buf, struct {
		models.OrderCreated
		Date string
	}{
		OrderCreated: withName(msg, name),
		Date:         msg.CreatedAt.UTC().Format(dateLayout),
	})
	if err != nil {
		return core.Email{}, fmt.Errorf("render receipt: %w", err)
	}

	return core.Email{
		To:      msg.Email,
		Subject: "Order Receipt #" + msg.OrderID,
		HTML:    buf.String(),
	}, nil
}

func withName(msg models.OrderCreated, name string) models.OrderCreated {
	msg.CustomerName = name
	return msg
}

// RenderAccountEmail builds a verification or password reset email.
func RenderAccountEmail(job models.EmailJob) (core.Email, error) {
	if strings.TrimSpace(job.To) == "" || job.Link == "" {
		return core.Email{}, fmt.Errorf("%w: account email without recipient or link", core.ErrMalformed)
	}

	data := struct {
		Name, Intro, Action, Link string
	}{Name: job.DisplayName, Link: job.Link}
	if data.Name == "" {
		data.Name = defaultCustomerName
	}

	var subject string
	switch job.Kind {
	case models.EmailVerification:
		subject = "Verify your email"
		data.Intro = "Please confirm your email address to start ordering."
		data.Action = "Verify email"
	case models.EmailPasswordReset:
		subject = "Reset your password"
		data.Intro = "We received a request to reset your password."
		data.Action = "Choose a new password"
	default:
		return core.Email{}, fmt.Errorf("%w: unknown email kind %q", core.ErrMalformed, job.Kind)
	}

	var buf bytes.Buffer
	if err := accountTmpl.Execute(&buf, data); err != nil {
		return core.Email{}, fmt.Errorf("render account email: %w", err)
	}
	return core.Email{To: job.To, Subject: subject, HTML: buf.String()}, nil
}

func (s *EmailService) SendReceipt(ctx context.Context, msg models.OrderCreated) error {
	email, err := RenderReceipt(msg)
	if err != nil {
		return err
	}
	return s.send(ctx, email, "order_id", msg.OrderID)
}

func (s *EmailService) SendAccountEmail(ctx context.Context, job models.EmailJob) error {
	email, err := RenderAccountEmail(job)
	if err != nil {
		return err
	}
	return s.send(ctx, email, "kind", job.Kind)
}

func (s *EmailService) send(ctx context.Context, email core.Email, args ...any) error {
	sendCtx, cancel := context.WithTimeout(ctx, core.WaitTime*time.Second)
	defer cancel()

	if err := s.mailer.Send(sendCtx, email); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	s.mylog.Action("email_sent").Info("Email sent", append([]any{"to", email.To}, args...)...)
	return nil
}
