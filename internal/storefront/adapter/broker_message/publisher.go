package brokermessage

import (
	"context"
	"fmt"

	"restaurant-app/internal/xpkg/logger"
	"restaurant-app/internal/xpkg/models"
)

// Broker is the publishing side of the message broker.
type Broker interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

// Publisher hands order receipts and account emails to the notifier.
type Publisher struct {
	mb    Broker
	mylog logger.Logger
}

func NewPublisher(mb Broker, mylog logger.Logger) *Publisher {
	return &Publisher{mb: mb, mylog: mylog}
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, msg models.OrderCreated) error {
	if err := p.mb.Publish(ctx, models.OrderReceiptsQueue, msg); err != nil {
		return fmt.Errorf("publish order receipt: %w", err)
	}
	p.mylog.Action("receipt_published").Debug("Order receipt queued", "order_id", msg.OrderID)
	return nil
}

func (p *Publisher) SendAccountEmail(ctx context.Context, job models.EmailJob) error {
	if err := p.mb.Publish(ctx, models.AccountEmailsQueue, job); err != nil {
		return fmt.Errorf("publish account email: %w", err)
	}
	p.mylog.Action("account_email_published").Debug("Account email queued", "kind", job.Kind)
	return nil
}
