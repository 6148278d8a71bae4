package alerts

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ultramarket/inventory-core/pkg/enums"
	"github.com/ultramarket/inventory-core/pkg/logger"
)

type fakeSink struct {
	mu        sync.Mutex
	delivered []Event
	fail      bool
}

func (s *fakeSink) Deliver(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.delivered = append(s.delivered, event)
	return nil
}

func (s *fakeSink) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.delivered))
	copy(out, s.delivered)
	return out
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDispatcherDeliversPublishedEvents(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	d, err := NewDispatcher(sink, testLogger(), 8)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	event := Event{
		ProductID:   uuid.New(),
		WarehouseID: uuid.New(),
		Type:        enums.DiscrepancyTypeShortage,
		Severity:    enums.AlertSeverityCritical,
		Message:     "negative available quantity",
	}
	if err := d.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return len(sink.events()) == 1 })
	got := sink.events()[0]
	if got.Type != event.Type || got.Severity != event.Severity {
		t.Fatalf("delivered event mismatch: %+v", got)
	}
}

func TestDispatcherCloseFlushesQueue(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	d, err := NewDispatcher(sink, testLogger(), 16)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := d.Publish(ctx, Event{
			ProductID:   uuid.New(),
			WarehouseID: uuid.New(),
			Type:        enums.DiscrepancyTypeExcess,
			Severity:    enums.AlertSeverityWarning,
			Message:     "available exceeds total",
		}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	go d.Run(ctx)
	d.Close()

	if got := len(sink.events()); got != 10 {
		t.Fatalf("close should flush all queued events, delivered %d", got)
	}
}

func TestPublishBlocksUntilContextCancelled(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	d, err := NewDispatcher(sink, testLogger(), 1)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	// no Run: the single-slot queue fills and the second publish must block
	ctx := context.Background()
	if err := d.Publish(ctx, Event{Message: "first"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := d.Publish(blocked, Event{Message: "second"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDispatcherSurvivesSinkFailures(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{fail: true}
	d, err := NewDispatcher(sink, testLogger(), 4)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	if err := d.Publish(ctx, Event{Message: "will fail"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// failed delivery must not wedge the worker
	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()

	if err := d.Publish(ctx, Event{Message: "recovers"}); err != nil {
		t.Fatalf("publish after failure: %v", err)
	}
	waitFor(t, func() bool {
		for _, e := range sink.events() {
			if e.Message == "recovers" {
				return true
			}
		}
		return false
	})
}
