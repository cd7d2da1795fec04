package bus

import (
	"testing"
	"time"

	"github.com/you/crossfeed/internal/core"
)

func chatEvent(id string) core.Event {
	return core.Event{
		Type:     core.KindChat,
		Platform: core.PlatformTwitch,
		Metadata: core.Metadata{Platform: core.PlatformTwitch, CorrelationID: id},
	}
}

func TestFanOutDeliversToAllSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	a := b.Subscribe("a", 4)
	c := b.Subscribe("c", 4)

	b.Publish(chatEvent("one"))

	for name, ch := range map[string]<-chan core.Event{"a": a, "c": c} {
		select {
		case ev := <-ch:
			if ev.Metadata.CorrelationID != "one" {
				t.Fatalf("subscriber %s got %q", name, ev.Metadata.CorrelationID)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s received nothing", name)
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New()
	defer b.Close()

	slow := b.Subscribe("slow", 1)
	fast := b.Subscribe("fast", 8)

	for i := 0; i < 5; i++ {
		b.Publish(chatEvent("burst"))
	}

	if got := len(slow); got != 1 {
		t.Fatalf("slow subscriber buffered %d, want 1", got)
	}
	if got := len(fast); got != 5 {
		t.Fatalf("fast subscriber buffered %d, want 5", got)
	}
}

func TestCloseIsIdempotentAndClosesChannels(t *testing.T) {
	b := New()
	ch := b.Subscribe("tap", 2)

	b.Close()
	b.Close()

	if _, open := <-ch; open {
		t.Fatalf("channel should be closed after Close")
	}

	// publishing after close must be a no-op
	b.Publish(chatEvent("late"))

	if late := b.Subscribe("late", 2); late == nil {
		t.Fatalf("subscribe after close should still return a channel")
	} else if _, open := <-late; open {
		t.Fatalf("post-close subscription should be closed immediately")
	}
}
