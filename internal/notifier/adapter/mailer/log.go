package mailer

import (
	"context"

	"restaurant-app/internal/notifier/app/core"
	"restaurant-app/internal/xpkg/logger"
)

// LogMailer writes emails to the log instead of sending them. It is used
// when no SMTP relay is configured.
type LogMailer struct {
	mylog logger.Logger
}

func NewLogMailer(mylog logger.Logger) *LogMailer {
	return &LogMailer{mylog: mylog}
}

func (m *LogMailer) Send(ctx context.Context, email core.Email) error {
	m.mylog.Action("email_logged").Info("Email not sent, no SMTP relay configured",
		"to", email.To, "subject", email.Subject, "bytes", len(email.HTML))
	m.mylog.Action("email_logged").Debug("Email body", "html", email.HTML)
	return nil
}
