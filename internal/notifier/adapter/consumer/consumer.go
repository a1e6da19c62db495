package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"restaurant-app/internal/notifier/adapter/mailer"
	"restaurant-app/internal/notifier/app/core"
	"restaurant-app/internal/notifier/app/services"
	"restaurant-app/internal/xpkg/broker"
	"restaurant-app/internal/xpkg/config"
	"restaurant-app/internal/xpkg/logger"
	"restaurant-app/internal/xpkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

const consumerTag = "notifier"

// Broker is the consuming side of the message broker.
type Broker interface {
	Consume(ctx context.Context, queue, consumer string) (<-chan amqp.Delivery, error)
	Close() error
}

type handlerFunc func(ctx context.Context, body []byte) error

type Notifier struct {
	cfg    *config.Config
	params *core.NotifierParams
	mylog  logger.Logger
	mb     Broker
	emails *services.EmailService
	ctx    context.Context
	appCtx context.Context

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewNotifier(
	ctx context.Context,
	appCtx context.Context,
	cfg *config.Config,
	params *core.NotifierParams,
	mylog logger.Logger,
) *Notifier {
	return &Notifier{
		ctx:    ctx,
		appCtx: appCtx,
		cfg:    cfg,
		params: params,
		mylog:  mylog,
	}
}

// Run connects to the broker and delivers emails until the context ends.
func (n *Notifier) Run() error {
	mylog := n.mylog.Action("notifier_started")

	if err := n.initializeRabbitMQ(); err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}
	mylog.Action("mb_connected").Info("Successful message broker connection")

	n.initializeMailer()

	return n.consume()
}

func (n *Notifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.mylog.Action("graceful_shutdown_started").Info("Shutting down")

	// wait for in-flight emails
	n.wg.Wait()

	if n.mb != nil {
		if err := n.mb.Close(); err != nil {
			n.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			return fmt.Errorf("mb close: %w", err)
		}
		n.mylog.Action("mb_closed").Info("Message broker closed")
	}

	n.mylog.Action("graceful_shutdown_completed").Info("Successfully shut down")
	return nil
}

// consume reads both queues concurrently.
func (n *Notifier) consume() error {
	g, gctx := errgroup.WithContext(n.ctx)

	queues := map[string]handlerFunc{
		models.OrderReceiptsQueue: n.handleReceipt,
		models.AccountEmailsQueue: n.handleAccountEmail,
	}
	for queue, h := range queues {
		g.Go(func() error {
			deliveries, err := n.mb.Consume(gctx, queue, consumerTag+"-"+queue)
			if err != nil {
				return fmt.Errorf("consume %s: %w", queue, err)
			}
			n.mylog.Action("consumer_started").Info("Consuming queue", "queue", queue)
			if err := n.work(gctx, deliveries, h); err != nil {
				return fmt.Errorf("consume %s: %w", queue, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// work returns nil once ctx ends and core.ErrDeliveriesClosed when the
// broker stops delivering before that.
func (n *Notifier) work(ctx context.Context, deliveries <-chan amqp.Delivery, h handlerFunc) error {
	for {
		select {
		case <-ctx.Done():
			n.mylog.Action("work_shutdown").Info("Stopping message consumption due to context cancel")
			return nil

		case msg, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				n.mylog.Action("deliveries_closed").Error("Broker closed the delivery channel", core.ErrDeliveriesClosed)
				return core.ErrDeliveriesClosed
			}
			n.wg.Add(1)
			go func(msg amqp.Delivery) {
				defer n.wg.Done()
				n.processMsg(msg, h)
			}(msg)
		}
	}
}

// processMsg acks delivered and malformed messages and drops failed ones
// without requeueing.
func (n *Notifier) processMsg(msg amqp.Delivery, h handlerFunc) {
	log := n.mylog.With("routing_key", msg.RoutingKey, "delivery_tag", msg.DeliveryTag)

	err := h(n.appCtx, msg.Body)
	switch {
	case err == nil:
		if err := msg.Ack(false); err != nil {
			log.Action("ack_failed").Error("Failed to acknowledge message", err)
		}
	case errors.Is(err, core.ErrMalformed):
		log.Action("message_dropped").Warn("Dropping malformed message", "error", err.Error())
		if err := msg.Ack(false); err != nil {
			log.Action("ack_failed").Error("Failed to acknowledge message", err)
		}
	default:
		log.Action("delivery_failed").Error("Failed to deliver email", err)
		if err := msg.Nack(false, false); err != nil {
			log.Action("nack_failed").Error("Failed to nack message", err)
		}
	}
}

func (n *Notifier) handleReceipt(ctx context.Context, body []byte) error {
	var msg models.OrderCreated
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformed, err)
	}
	n.mylog.Action("receipt_received").Info("Received order receipt", "order_id", msg.OrderID)
	return n.emails.SendReceipt(ctx, msg)
}

func (n *Notifier) handleAccountEmail(ctx context.Context, body []byte) error {
	var job models.EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformed, err)
	}
	n.mylog.Action("account_email_received").Info("Received account email", "kind", job.Kind)
	return n.emails.SendAccountEmail(ctx, job)
}

func (n *Notifier) initializeRabbitMQ() error {
	mb, err := broker.New(n.appCtx, *n.cfg.RMQ, n.mylog, n.params.Prefetch)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	n.mb = mb
	return nil
}

func (n *Notifier) initializeMailer() {
	var m core.IMailer
	if n.cfg.SMTP != nil && n.cfg.SMTP.Host != "" {
		m = mailer.NewSMTPMailer(*n.cfg.SMTP)
		n.mylog.Action("mailer_configured").Info("Sending email over SMTP", "host", n.cfg.SMTP.Host)
	} else {
		m = mailer.NewLogMailer(n.mylog)
		n.mylog.Action("mailer_configured").Warn("No SMTP relay configured, emails are only logged")
	}
	n.emails = services.NewEmailService(m, n.mylog)
}
