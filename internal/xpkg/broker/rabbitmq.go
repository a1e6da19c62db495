package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"restaurant-app/internal/xpkg/config"
	xerrors "restaurant-app/internal/xpkg/errors"
	"restaurant-app/internal/xpkg/logger"
	"restaurant-app/internal/xpkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const reconnInterval = 5 * time.Second

var errNacked = errors.New("message was not confirmed by broker")

type RabbitMQ struct {
	ctx          context.Context
	cfg          config.RabbitMQ
	conn         *amqp.Connection
	ch           *amqp.Channel
	mylog        logger.Logger
	reconnecting bool
	mu           sync.Mutex

	prefetch int
}

// New dials RabbitMQ and declares the notification topology.
func New(
	ctx context.Context,
	rabbitmqCfg config.RabbitMQ,
	mylog logger.Logger,
	prefetch int,
) (*RabbitMQ, error) {
	r := &RabbitMQ{
		ctx:      ctx,
		cfg:      rabbitmqCfg,
		mylog:    mylog,
		prefetch: prefetch,
	}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.cfg.URL())
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrMBConn, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", xerrors.ErrMBCh, err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return err
	}

	if err := ch.Qos(r.prefetch, 0, false); err != nil {
		conn.Close()
		return err
	}

	if err := declareTopology(ch); err != nil {
		conn.Close()
		return err
	}

	r.mu.Lock()
	r.conn = conn
	r.ch = ch
	r.mu.Unlock()
	return nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(models.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for _, q := range []string{models.OrderReceiptsQueue, models.AccountEmailsQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, models.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

func (r *RabbitMQ) IsAlive() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return xerrors.ErrMBConn
	}

	if r.ch == nil || r.ch.IsClosed() {
		return xerrors.ErrMBCh
	}

	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %v", err)
		}
	}

	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %v", err)
		}
	}
	return nil
}

// Publish sends v as a persistent JSON message routed by routingKey and
// waits for the broker confirmation.
func (r *RabbitMQ) Publish(ctx context.Context, routingKey string, v any) error {
	log := r.mylog.Action("publish").With("routing_key", routingKey)

	if err := r.IsAlive(); err != nil {
		log.Error("connection to rabbitmq is closed", err)
		go r.reconnect(r.ctx)
		return err
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, models.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait confirm: %w", err)
	}
	if !ok {
		return errNacked
	}
	log.Debug("message published", "bytes", len(body))
	return nil
}

func (r *RabbitMQ) reconnect(ctx context.Context) {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	t := time.NewTicker(reconnInterval)
	defer t.Stop()
	log := r.mylog.Action("rabbitmq_reconnecting")

	for {
		select {
		case <-t.C:
			err := r.connect()
			if err == nil {
				log.Info("rabbitmq reconnected")
				return
			}
			log.Warn("rabbitmq failed to reconnect", "error", err.Error())

		case <-ctx.Done():
			return
		}
	}
}

// Consume starts delivering messages from queue with manual acknowledgement.
func (r *RabbitMQ) Consume(ctx context.Context, queue, consumer string) (<-chan amqp.Delivery, error) {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()
	if ch == nil {
		return nil, xerrors.ErrMBCh
	}
	return ch.ConsumeWithContext(ctx, queue, consumer, false, false, false, false, nil)
}
