package notify

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNew_WithAsync(t *testing.T) {
	n := New(WithAsync(100))
	defer n.Close()
	if !n.async {
		t.Error("expected async = true")
	}
}

func TestEventType_String(t *testing.T) {
	tests := []struct {
		et   EventType
		want string
	}{
		{CommandRegistered, "commandRegistered"},
		{CommandUnregistered, "commandUnregistered"},
		{CommandExecuted, "commandExecuted"},
		{CommandError, "commandError"},
		{CommandNotFound, "commandNotFound"},
		{PluginLoaded, "pluginLoaded"},
		{CommandDeprecated, "commandDeprecated"},
		{PermissionDenied, "permissionDenied"},
		{MiddlewareAborted, "middlewareAborted"},
		{EventType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.et.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.et, got, tt.want)
		}
	}
}

func TestNotifier_Subscribe(t *testing.T) {
	n := New()
	defer n.Close()

	var received atomic.Int32
	sub := n.Subscribe(func(e Event) {
		if e.Time.IsZero() {
			t.Error("expected event time to be set")
		}
		received.Add(1)
	})

	n.Notify(Event{Type: CommandExecuted, Command: "ping"})
	if received.Load() != 1 {
		t.Fatalf("expected 1 delivery, got %d", received.Load())
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	n.Notify(Event{Type: CommandExecuted, Command: "ping"})
	if received.Load() != 1 {
		t.Error("unsubscribed observer received notification")
	}
	if n.Len() != 0 {
		t.Errorf("expected no subscriptions, got %d", n.Len())
	}
}

func TestNotifier_SubscribeType(t *testing.T) {
	n := New()
	defer n.Close()

	var errs, all atomic.Int32
	n.SubscribeType(func(Event) { errs.Add(1) }, CommandError, CommandNotFound)
	n.Subscribe(func(Event) { all.Add(1) })

	n.Notify(Event{Type: CommandExecuted})
	n.Notify(Event{Type: CommandError})
	n.Notify(Event{Type: CommandNotFound})

	if errs.Load() != 2 {
		t.Errorf("expected 2 filtered deliveries, got %d", errs.Load())
	}
	if all.Load() != 3 {
		t.Errorf("expected 3 deliveries, got %d", all.Load())
	}
}

func TestNotifier_OrderAndPanic(t *testing.T) {
	n := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer n.Close()

	var order []int
	n.Subscribe(func(Event) { order = append(order, 1) })
	n.Subscribe(func(Event) { panic("observer bug") })
	n.Subscribe(func(Event) { order = append(order, 3) })

	n.Notify(Event{Type: PluginLoaded})

	if len(order) != 2 || order[0] != 1 || order[1] != 3 {
		t.Errorf("expected observers 1 and 3 in order, got %v", order)
	}
}

func TestNotifier_Async(t *testing.T) {
	n := New(WithAsync(10))

	var mu sync.Mutex
	var got []string
	n.Subscribe(func(e Event) {
		mu.Lock()
		got = append(got, e.Command)
		mu.Unlock()
	})

	for _, c := range []string{"a", "b", "c"} {
		n.Notify(Event{Type: CommandExecuted, Command: c})
	}
	n.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("expected in-order async delivery, got %v", got)
	}
}

func TestNotifier_NotifyAfterClose(t *testing.T) {
	n := New()
	var received atomic.Bool
	n.Subscribe(func(Event) { received.Store(true) })
	n.Close()
	n.Close()

	n.Notify(Event{Type: CommandExecuted})
	if received.Load() {
		t.Error("expected no delivery after Close")
	}
}

func TestBatch(t *testing.T) {
	n := New()
	defer n.Close()

	var received atomic.Int32
	n.Subscribe(func(Event) { received.Add(1) })

	b := n.NewBatch()
	b.Add(Event{Type: CommandRegistered, Command: "a"})
	b.Add(Event{Type: CommandRegistered, Command: "b"})
	if b.Len() != 2 {
		t.Errorf("expected 2 queued, got %d", b.Len())
	}
	if received.Load() != 0 {
		t.Error("batch delivered before Commit")
	}

	b.Commit()
	if received.Load() != 2 {
		t.Errorf("expected 2 deliveries, got %d", received.Load())
	}

	b.Add(Event{Type: CommandRegistered})
	b.Discard()
	b.Commit()
	if received.Load() != 2 {
		t.Error("discarded events were delivered")
	}
}
