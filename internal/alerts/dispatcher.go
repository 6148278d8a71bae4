package alerts

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ultramarket/inventory-core/pkg/enums"
	pkgerrors "github.com/ultramarket/inventory-core/pkg/errors"
	"github.com/ultramarket/inventory-core/pkg/logger"
)

// Event is one consistency finding worth operator attention.
type Event struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Type        enums.DiscrepancyType
	Severity    enums.AlertSeverity
	Message     string
}

// Sink receives drained events. Implementations must be safe for use from
// the dispatcher's worker goroutine.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Dispatcher decouples finding producers from alert delivery through a
// bounded in-process queue. Publish blocks when the queue is full so
// findings are never silently dropped.
type Dispatcher struct {
	sink   Sink
	logg   *logger.Logger
	queue  chan Event
	done   chan struct{}
	closed sync.Once
}

// NewDispatcher builds a dispatcher with the given queue capacity.
// Run must be called before events are drained.
func NewDispatcher(sink Sink, logg *logger.Logger, bufferSize int) (*Dispatcher, error) {
	if sink == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "alert sink required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if bufferSize <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "alert buffer size must be positive")
	}
	return &Dispatcher{
		sink:  sink,
		logg:  logg,
		queue: make(chan Event, bufferSize),
		done:  make(chan struct{}),
	}, nil
}

// Publish enqueues an event, blocking while the queue is full. It returns
// the context error when the caller gives up first.
func (d *Dispatcher) Publish(ctx context.Context, event Event) error {
	select {
	case d.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue into the sink until the context is cancelled or
// Close is called. On shutdown it flushes whatever is already queued.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case event, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, event)
		case <-ctx.Done():
			d.flush(context.WithoutCancel(ctx))
			return
		}
	}
}

// Close stops accepting events and waits for Run to finish flushing.
// Publishing after Close is a programming error.
func (d *Dispatcher) Close() {
	d.closed.Do(func() {
		close(d.queue)
	})
	<-d.done
}

func (d *Dispatcher) flush(ctx context.Context) {
	for {
		select {
		case event, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	if err := d.sink.Deliver(ctx, event); err != nil {
		d.logg.Error(d.logg.WithFields(ctx, map[string]any{
			"product_id":   event.ProductID,
			"warehouse_id": event.WarehouseID,
			"severity":     event.Severity,
		}), "delivering alert", err)
	}
}

// LogSink writes alerts to the structured log. It is the default delivery
// target until an external channel (pager, webhook) is wired in.
type LogSink struct {
	logg *logger.Logger
}

// NewLogSink returns a sink that logs every event.
func NewLogSink(logg *logger.Logger) (*LogSink, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &LogSink{logg: logg}, nil
}

func (s *LogSink) Deliver(ctx context.Context, event Event) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event":        "consistency.alert",
		"product_id":   event.ProductID,
		"warehouse_id": event.WarehouseID,
		"type":         event.Type,
		"severity":     event.Severity,
	})
	if event.Severity == enums.AlertSeverityCritical {
		s.logg.Error(logCtx, event.Message, nil)
		return nil
	}
	s.logg.Warn(logCtx, event.Message)
	return nil
}
