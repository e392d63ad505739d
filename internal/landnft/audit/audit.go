// Package audit records the intent and outcome of every ledger-mutating operation
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Phase tells whether an event was written before or after the ledger call
type Phase string

const (
	PhaseIntent  Phase = "intent"
	PhaseOutcome Phase = "outcome"
)

// Event is one audit record
type Event struct {
	ID            string    `json:"id" dynamodbav:"id"`
	Time          time.Time `json:"time" dynamodbav:"time"`
	Operation     string    `json:"operation" dynamodbav:"operation"`
	Phase         Phase     `json:"phase" dynamodbav:"phase"`
	TokenID       string    `json:"token_id,omitempty" dynamodbav:"token_id,omitempty"`
	Serials       []int64   `json:"serials,omitempty" dynamodbav:"serials,omitempty"`
	From          string    `json:"from,omitempty" dynamodbav:"from,omitempty"`
	To            string    `json:"to,omitempty" dynamodbav:"to,omitempty"`
	Reference     string    `json:"reference,omitempty" dynamodbav:"reference,omitempty"`
	Outcome       string    `json:"outcome,omitempty" dynamodbav:"outcome,omitempty"`
	ReceiptStatus string    `json:"receipt_status,omitempty" dynamodbav:"receipt_status,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty" dynamodbav:"transaction_id,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty" dynamodbav:"error_kind,omitempty"`
	Error         string    `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// NewEvent creates an event with a fresh id and timestamp
func NewEvent(operation string, phase Phase) Event {
	return Event{
		ID:        uuid.NewString(),
		Time:      time.Now().UTC(),
		Operation: operation,
		Phase:     phase,
	}
}

// Sink persists audit events
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Record(ctx context.Context, e Event) error { return f(ctx, e) }

// Recorder fans events out to every sink. Sink failures are logged and never
// surface to the operation being audited.
type Recorder struct {
	sinks   map[string]Sink
	order   []string
	timeout time.Duration
	logger  *zap.Logger
}

// DefaultSinkTimeout bounds a single sink write
const DefaultSinkTimeout = 5 * time.Second

// NewRecorder creates a recorder with no sinks
func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		sinks:   make(map[string]Sink),
		timeout: DefaultSinkTimeout,
		logger:  logger,
	}
}

// WithTimeout sets the deadline for each sink write; non-positive values keep the default
func (r *Recorder) WithTimeout(d time.Duration) *Recorder {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Add registers a named sink
func (r *Recorder) Add(name string, sink Sink) *Recorder {
	if _, ok := r.sinks[name]; !ok {
		r.order = append(r.order, name)
	}
	r.sinks[name] = sink
	return r
}

// Sinks returns the registered sink names in order
func (r *Recorder) Sinks() []string {
	return append([]string(nil), r.order...)
}

// Record writes e to all sinks
func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	for _, name := range r.order {
		if err := r.write(ctx, r.sinks[name], e); err != nil {
			r.logger.Warn("Failed to record audit event",
				zap.String("sink", name),
				zap.String("event_id", e.ID),
				zap.String("operation", e.Operation),
				zap.Error(err))
		}
	}
}

// write gives up on a sink once its deadline passes, even if the sink ignores ctx
func (r *Recorder) write(ctx context.Context, sink Sink, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sink.Record(ctx, e) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("sink did not finish: %w", ctx.Err())
	}
}
