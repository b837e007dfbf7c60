package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestDispatcherDeliversAndFlushesOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Action: ActionLogin, Success: true})
	}
	d.Close()

	got := 0
	for {
		select {
		case <-sink.Events():
			got++
		default:
			if got != 5 {
				t.Fatalf("delivered %d events, want 5", got)
			}
			return
		}
	}
}

// gateSink blocks every Emit until released, simulating a slow consumer.
type gateSink struct {
	release chan struct{}
}

func (g gateSink) Emit(context.Context, Event) { <-g.release }

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := gateSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// With the worker stalled, one event is in flight, one fits the buffer,
	// and everything else must be counted as dropped.
	deadline := time.Now().Add(time.Second)
	for d.Dropped() == 0 {
		d.Emit(context.Background(), Event{Action: ActionLogin})
		if time.Now().After(deadline) {
			t.Fatal("no events dropped")
		}
	}

	close(sink.release)
	d.Close()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}

	// Nil receivers are safe.
	d.Emit(context.Background(), Event{Action: ActionLogin})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestEmitAfterCloseIsDiscarded(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), Event{Action: ActionLogout})
	select {
	case e := <-sink.Events():
		t.Fatalf("event delivered after close: %+v", e)
	default:
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Action:    ActionLockout,
		UserID:    "user-1",
		IP:        "203.0.113.9",
		Success:   false,
		Error:     "too many attempts",
	})

	var got Event
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("not one JSON line: %v", err)
	}
	if got.Action != ActionLockout || got.UserID != "user-1" || got.Success {
		t.Fatalf("event = %+v", got)
	}
}
