package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"restaurant-app/internal/notifier/app/core"
	"restaurant-app/internal/notifier/app/services"
	"restaurant-app/internal/xpkg/logger"
	"restaurant-app/internal/xpkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecord struct {
	tag     uint64
	acked   bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, acked: true})
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) byTag() map[uint64]ackRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[uint64]ackRecord, len(a.records))
	for _, r := range a.records {
		out[r.tag] = r
	}
	return out
}

type fakeBroker struct {
	queues map[string]chan amqp.Delivery
	closed bool
}

func (b *fakeBroker) Consume(ctx context.Context, queue, consumer string) (<-chan amqp.Delivery, error) {
	ch, ok := b.queues[queue]
	if !ok {
		return nil, errors.New("no such queue")
	}
	return ch, nil
}

func (b *fakeBroker) Close() error {
	b.closed = true
	return nil
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []core.Email
	failTo string
}

func (m *fakeMailer) Send(ctx context.Context, email core.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if email.To == m.failTo {
		return errors.New("relay refused recipient")
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *fakeMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.sent {
		out = append(out, e.Subject)
	}
	return out
}

func delivery(t *testing.T, ack amqp.Acknowledger, tag uint64, v any) amqp.Delivery {
	t.Helper()
	var body []byte
	if raw, ok := v.(string); ok {
		body = []byte(raw)
	} else {
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: body}
}

func TestNotifier_ProcessesBothQueues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ack := &fakeAcknowledger{}
	mail := &fakeMailer{failTo: "bounce@example.com"}
	mb := &fakeBroker{queues: map[string]chan amqp.Delivery{
		models.OrderReceiptsQueue: make(chan amqp.Delivery, 8),
		models.AccountEmailsQueue: make(chan amqp.Delivery, 8),
	}}

	n := NewNotifier(ctx, context.Background(), nil, &core.NotifierParams{Prefetch: 1}, logger.Discard())
	n.mb = mb
	n.emails = services.NewEmailService(mail, logger.Discard())

	receipt := models.OrderCreated{
		OrderID:   "o1",
		Email:     "ann@example.com",
		Items:     []models.ReceiptItem{{Name: "Ramen", Price: 12, Quantity: 2}},
		Total:     24,
		CreatedAt: time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC),
	}
	noEmail := receipt
	noEmail.OrderID, noEmail.Email = "o2", ""
	bounce := receipt
	bounce.OrderID, bounce.Email = "o3", "bounce@example.com"

	mb.queues[models.OrderReceiptsQueue] <- delivery(t, ack, 1, receipt)
	mb.queues[models.OrderReceiptsQueue] <- delivery(t, ack, 2, noEmail)
	mb.queues[models.OrderReceiptsQueue] <- delivery(t, ack, 3, "{not json")
	mb.queues[models.OrderReceiptsQueue] <- delivery(t, ack, 4, bounce)
	mb.queues[models.AccountEmailsQueue] <- delivery(t, ack, 5, models.EmailJob{
		Kind: models.EmailPasswordReset, To: "ann@example.com", Link: "http://shop.test/reset-password?token=t",
	})

	done := make(chan error, 1)
	go func() { done <- n.consume() }()

	require.Eventually(t, func() bool {
		return len(ack.byTag()) == 5
	}, 2*time.Second, 10*time.Millisecond)

	records := ack.byTag()
	assert.True(t, records[1].acked)
	assert.True(t, records[2].acked, "malformed receipt is dropped")
	assert.True(t, records[3].acked, "undecodable receipt is dropped")
	assert.False(t, records[4].acked)
	assert.False(t, records[4].requeue)
	assert.True(t, records[5].acked)

	assert.ElementsMatch(t, []string{"Order Receipt #o1", "Reset your password"}, mail.subjects())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop")
	}

	require.NoError(t, n.Stop(context.Background()))
	assert.True(t, mb.closed)
}

func TestNotifier_ConsumeFailure(t *testing.T) {
	n := NewNotifier(context.Background(), context.Background(), nil, &core.NotifierParams{Prefetch: 1}, logger.Discard())
	n.mb = &fakeBroker{queues: map[string]chan amqp.Delivery{}}
	n.emails = services.NewEmailService(&fakeMailer{}, logger.Discard())

	assert.ErrorContains(t, n.consume(), "no such queue")
}

func TestNotifier_DeliveryChannelClosed(t *testing.T) {
	mb := &fakeBroker{queues: map[string]chan amqp.Delivery{
		models.OrderReceiptsQueue: make(chan amqp.Delivery),
		models.AccountEmailsQueue: make(chan amqp.Delivery),
	}}
	n := NewNotifier(context.Background(), context.Background(), nil, &core.NotifierParams{Prefetch: 1}, logger.Discard())
	n.mb = mb
	n.emails = services.NewEmailService(&fakeMailer{}, logger.Discard())

	done := make(chan error, 1)
	go func() { done <- n.consume() }()

	close(mb.queues[models.OrderReceiptsQueue])

	select {
	case err := <-done:
		assert.ErrorIs(t, err, core.ErrDeliveriesClosed)
		assert.ErrorContains(t, err, models.OrderReceiptsQueue)
	case <-time.After(2 * time.Second):
		t.Fatal("notifier kept running after the broker closed its deliveries")
	}
}
