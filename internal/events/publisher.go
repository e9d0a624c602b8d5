// Package events publishes terminal transaction outcomes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ayo6706/ledger-engine/internal/domain"
	"github.com/ayo6706/ledger-engine/internal/observability"
	"github.com/ayo6706/ledger-engine/internal/service"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	DefaultTopic        = "ledger.transactions"
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
	tripAfterFailures   = 3
	breakerOpenTimeout  = 30 * time.Second
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TransactionEvent is the message value written for every terminal outcome.
type TransactionEvent struct {
	EventType       string    `json:"event_type"`
	TransactionID   uuid.UUID `json:"transaction_id"`
	AccountID       uuid.UUID `json:"account_id"`
	ReferenceID     string    `json:"reference_id"`
	Operation       string    `json:"operation"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	Balance         string    `json:"balance"`
	ReservedBalance string    `json:"reserved_balance"`
	ErrorCode       string    `json:"error_code,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewKafkaWriter builds a synchronous writer keyed by account id so events of
// one account stay ordered within a partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// Publisher is a service.Observer that forwards transaction outcomes to a
// broker. Observe never blocks: events are queued and written by a single
// background goroutine behind a circuit breaker. A full queue drops events.
type Publisher struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker
	queue   chan kafka.Message
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPublisher starts the drain goroutine. Call Close to flush and stop it.
func NewPublisher(writer MessageWriter, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	p := &Publisher{
		writer:  writer,
		queue:   make(chan kafka.Message, queueSize),
		timeout: defaultWriteTimeout,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-publisher",
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfterFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Publisher) Observe(_ context.Context, e service.Event) {
	switch e.Type {
	case service.EventTransactionSucceeded, service.EventTransactionFailed:
	default:
		return
	}

	value, err := json.Marshal(newTransactionEvent(e))
	if err != nil {
		observability.IncrementEventPublish("error")
		return
	}
	msg := kafka.Message{
		Key:   []byte(e.AccountID.String()),
		Value: value,
		Time:  e.OccurredAt,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		observability.IncrementEventPublish("dropped")
		return
	}
	select {
	case p.queue <- msg:
	default:
		observability.IncrementEventPublish("dropped")
		zap.L().Warn("event queue full, dropping event", zap.String("reference_id", e.ReferenceID))
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for msg := range p.queue {
		p.publish(msg)
	}
}

func (p *Publisher) publish(msg kafka.Message) {
	_, err := p.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	switch {
	case err == nil:
		observability.IncrementEventPublish("published")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.IncrementEventPublish("rejected")
	default:
		observability.IncrementEventPublish("failed")
		zap.L().Error("failed to publish transaction event", zap.ByteString("key", msg.Key), zap.Error(err))
	}
}

// Close stops accepting events, drains the queue and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.writer.Close()
}

func newTransactionEvent(e service.Event) TransactionEvent {
	return TransactionEvent{
		EventType:       string(e.Type),
		TransactionID:   e.TransactionID,
		AccountID:       e.AccountID,
		ReferenceID:     e.ReferenceID,
		Operation:       string(e.Operation),
		Amount:          domain.FormatAmount(e.Amount),
		Currency:        e.Currency,
		Balance:         domain.FormatAmount(e.Balance),
		ReservedBalance: domain.FormatAmount(e.ReservedBalance),
		ErrorCode:       string(e.ErrorCode),
		ErrorMessage:    e.ErrorMessage,
		OccurredAt:      e.OccurredAt,
	}
}
