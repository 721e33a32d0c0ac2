package linkserver

import (
	"context"
	"testing"
	"time"

	"github.com/navkit-dev/navkit/observability"
)

func event(i int) observability.Event {
	return observability.Event{
		Type:   "nav.test.event",
		Level:  observability.LevelInfo,
		Time:   time.Now(),
		Scope:  "test",
		Fields: map[string]any{"i": i},
	}
}

func TestStreamBridge_FanOut(t *testing.T) {
	b := NewStreamBridge()
	_, ch1 := b.subscribe()
	_, ch2 := b.subscribe()

	if got := b.Clients(); got != 2 {
		t.Fatalf("Clients() = %d, want 2", got)
	}

	b.OnEvent(context.Background(), event(1))

	for name, ch := range map[string]<-chan observability.Event{"first": ch1, "second": ch2} {
		select {
		case ev := <-ch:
			if ev.Fields["i"] != 1 {
				t.Errorf("%s client got event %v, want 1", name, ev.Fields["i"])
			}
		default:
			t.Errorf("%s client received nothing", name)
		}
	}
}

func TestStreamBridge_DropsOldestWhenFull(t *testing.T) {
	b := NewStreamBridge()
	_, ch := b.subscribe()

	total := clientBuffer + 2
	for i := 0; i < total; i++ {
		b.OnEvent(context.Background(), event(i))
	}

	if got := len(ch); got != clientBuffer {
		t.Fatalf("buffered = %d, want %d", got, clientBuffer)
	}

	// The two oldest events were evicted to make room.
	first := <-ch
	if first.Fields["i"] != 2 {
		t.Errorf("first buffered event = %v, want 2", first.Fields["i"])
	}

	var last observability.Event
	for len(ch) > 0 {
		last = <-ch
	}
	if last.Fields["i"] != total-1 {
		t.Errorf("last buffered event = %v, want %d", last.Fields["i"], total-1)
	}
}

func TestStreamBridge_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewStreamBridge()
	id, ch := b.subscribe()

	b.unsubscribe(id)
	if got := b.Clients(); got != 0 {
		t.Fatalf("Clients() = %d after unsubscribe, want 0", got)
	}

	b.OnEvent(context.Background(), event(1))
	if got := len(ch); got != 0 {
		t.Errorf("unsubscribed client buffered %d events, want 0", got)
	}
}
