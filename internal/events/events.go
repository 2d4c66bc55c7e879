// Package events carries flow notifications out of the controller: to
// in-process subscribers such as the websocket hub, to the log, and to a
// Kafka topic for the surrounding system.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Type names an event.
type Type string

const (
	Transition          Type = "flow.transition"
	RateUpdated         Type = "rate.updated"
	LiquidityChecked    Type = "liquidity.checked"
	LiquidityFailedOpen Type = "liquidity.failed_open"
	BankVerified        Type = "bank.verified"
	BanksLoaded         Type = "bank.list"
	OrderCreated        Type = "order.created"
	OrderRejected       Type = "order.rejected"
	SignRequested       Type = "signature.requested"
	SignCompleted       Type = "signature.completed"
	SignCancelled       Type = "signature.cancelled"
	PaymentRequested    Type = "payment.requested"
	PaymentCompleted    Type = "payment.completed"
	PaymentCancelled    Type = "payment.cancelled"
	OrderSettled        Type = "order.settled"
	ExpiryTick          Type = "expiry.tick"
	WalletConnected     Type = "wallet.connected"
	WalletDisconnected  Type = "wallet.disconnected"
	WalletConnectPrompt Type = "wallet.connect_requested"
)

// Event is one notification.
type Event struct {
	ID      string    `json:"id"`
	Type    Type      `json:"type"`
	Time    time.Time `json:"time"`
	State   string    `json:"state,omitempty"`
	Attempt string    `json:"attempt,omitempty"`
	Data    any       `json:"data,omitempty"`
}

// New stamps an event with an id and the current time.
func New(t Type, state, attempt string, data any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    t,
		Time:    time.Now().UTC(),
		State:   state,
		Attempt: attempt,
		Data:    data,
	}
}

// Sink receives events.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Bus fans events out to every registered sink. A failing sink is logged
// and does not stop delivery to the others.
type Bus struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *logrus.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *logrus.Logger) *Bus {
	if logger == nil {
		logger = logrus.New()
	}
	return &Bus{logger: logger}
}

// Subscribe adds a sink.
func (b *Bus) Subscribe(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Publish delivers e to all sinks in registration order.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Publish(ctx, e); err != nil {
			b.logger.WithFields(logrus.Fields{"event": e.Type, "id": e.ID}).WithError(err).Warn("event sink failed")
		}
	}
	return nil
}

// LogSink writes every event to the logger at debug level, except the
// liquidity fail-open condition which is a warning.
type LogSink struct {
	Logger *logrus.Logger
}

func (s LogSink) Publish(ctx context.Context, e Event) error {
	entry := s.Logger.WithFields(logrus.Fields{
		"event":   e.Type,
		"state":   e.State,
		"attempt": e.Attempt,
	})
	switch e.Type {
	case LiquidityFailedOpen:
		entry.Warn("liquidity gate failed open")
	case ExpiryTick:
		// too chatty for any level
	default:
		entry.Debug("flow event")
	}
	return nil
}
