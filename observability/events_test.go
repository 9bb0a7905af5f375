package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"bazaar/core/events"
	"bazaar/core/types"
)

type stubEvent struct {
	evt *types.Event
}

func (s stubEvent) EventType() string {
	if s.evt == nil {
		return ""
	}
	return s.evt.Type
}

func (s stubEvent) Event() *types.Event { return s.evt }

type captureEmitter struct {
	received []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.received = append(c.received, evt)
}

func orderLifecycleEvent(eventType, total string) stubEvent {
	return stubEvent{evt: &types.Event{
		Type:       eventType,
		Attributes: map[string]string{"totalPrice": total},
	}}
}

func TestMeteredEmitterTracksVaultBalance(t *testing.T) {
	inner := &captureEmitter{}
	emitter := NewMeteredEmitter(inner)
	gauge := ModuleMetrics().escrowed
	deliveredBefore := testutil.ToFloat64(ModuleMetrics().settlements.WithLabelValues("delivered"))
	cancelledBefore := testutil.ToFloat64(ModuleMetrics().settlements.WithLabelValues("cancelled"))

	emitter.Emit(orderLifecycleEvent(eventOrderCreated, "100"))
	if got := testutil.ToFloat64(gauge); got != 100 {
		t.Fatalf("expected vault gauge 100, got %v", got)
	}
	emitter.Emit(orderLifecycleEvent(eventOrderCreated, "50"))
	if got := testutil.ToFloat64(gauge); got != 150 {
		t.Fatalf("expected vault gauge 150, got %v", got)
	}

	emitter.Emit(orderLifecycleEvent(eventOrderDelivered, "100"))
	if got := testutil.ToFloat64(gauge); got != 50 {
		t.Fatalf("expected vault gauge 50, got %v", got)
	}
	emitter.Emit(orderLifecycleEvent(eventOrderCancelled, "50"))
	if got := testutil.ToFloat64(gauge); got != 0 {
		t.Fatalf("expected vault gauge 0, got %v", got)
	}

	delivered := testutil.ToFloat64(ModuleMetrics().settlements.WithLabelValues("delivered"))
	cancelled := testutil.ToFloat64(ModuleMetrics().settlements.WithLabelValues("cancelled"))
	if delivered != deliveredBefore+1 || cancelled != cancelledBefore+1 {
		t.Fatalf("expected one settlement per outcome, got delivered=%v cancelled=%v", delivered, cancelled)
	}

	// Every event reached the wrapped emitter.
	if len(inner.received) != 4 {
		t.Fatalf("expected 4 forwarded events, got %d", len(inner.received))
	}
}

func TestMeteredEmitterIgnoresMalformedEvents(t *testing.T) {
	emitter := NewMeteredEmitter(nil)
	before := testutil.ToFloat64(ModuleMetrics().escrowed)

	emitter.Emit(orderLifecycleEvent(eventOrderCreated, "not-a-number"))
	emitter.Emit(stubEvent{evt: &types.Event{Type: eventOrderCreated, Attributes: map[string]string{}}})
	emitter.Emit(stubEvent{})
	emitter.Emit(nil)

	if got := testutil.ToFloat64(ModuleMetrics().escrowed); got != before {
		t.Fatalf("malformed events moved the gauge: %v != %v", got, before)
	}
}
