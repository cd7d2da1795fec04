package twitch

import (
	"fmt"
	"testing"

	"github.com/you/crossfeed/internal/config"
	"github.com/you/crossfeed/internal/core"
	"github.com/you/crossfeed/internal/router"
)

type capture struct {
	events []core.Event
	errs   []string
}

func (c *capture) emit(ev core.Event) { c.events = append(c.events, ev) }

func (c *capture) HandleEventError(err error, eventType string, payload any, humanMsg string) {
	c.errs = append(c.errs, eventType+": "+err.Error())
}

func newTestRouter(t *testing.T) (*Router, *capture) {
	t.Helper()
	raw := map[string]any{
		"twitch": map[string]any{
			"enabled":           true,
			"username":          "host",
			"channel":           "host",
			"clientId":          "abc",
			"messagesEnabled":   true,
			"giftsEnabled":      true,
			"followsEnabled":    true,
			"raidsEnabled":      true,
			"paypiggiesEnabled": true,
		},
	}
	cap := &capture{}
	n := 0
	deps := &router.Deps{
		Config: config.Normalize(raw),
		Factory: core.NewFactory(
			func() string { n++; return fmt.Sprintf("corr-%d", n) },
			func() string { return "2024-01-01T00:00:00.000Z" },
		),
		Emit:   cap.emit,
		Errors: cap,
	}
	return New(deps), cap
}

func meta() map[string]any {
	return map[string]any{"message_timestamp": "2024-05-01T12:00:00.500Z"}
}

func TestStreamOnlinePrefersStartedAt(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("stream.online", map[string]any{
		"id":         "9001",
		"started_at": "2024-05-01T11:59:00Z",
	}, meta())

	if len(cap.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(cap.events))
	}
	ev := cap.events[0]
	if ev.Type != core.KindStreamStatus || ev.IsLive == nil || !*ev.IsLive {
		t.Fatalf("expected live stream-status: %+v", ev)
	}
	if ev.Timestamp != "2024-05-01T11:59:00.000Z" {
		t.Fatalf("started_at not preferred: %q", ev.Timestamp)
	}
	if ev.StreamID != "9001" {
		t.Fatalf("stream id lost: %q", ev.StreamID)
	}
}

func TestStreamOfflineUsesTimestamp(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("stream.offline", map[string]any{
		"timestamp": "2024-05-01T13:00:00Z",
	}, meta())

	ev := cap.events[0]
	if ev.IsLive == nil || *ev.IsLive {
		t.Fatalf("expected offline status: %+v", ev)
	}
	if ev.Timestamp != "2024-05-01T13:00:00.000Z" {
		t.Fatalf("timestamp lost: %q", ev.Timestamp)
	}
}

func TestFollowTimestampChain(t *testing.T) {
	r, cap := newTestRouter(t)

	r.HandleNotification("channel.follow", map[string]any{
		"user_name":   "NewFan",
		"user_id":     "111",
		"followed_at": "2024-05-01T10:00:00Z",
	}, meta())
	if cap.events[0].Timestamp != "2024-05-01T10:00:00.000Z" {
		t.Fatalf("followed_at not preferred: %q", cap.events[0].Timestamp)
	}

	// no followed_at or timestamp: metadata envelope closes the chain
	cap.events = nil
	r.HandleNotification("channel.follow", map[string]any{
		"user_name": "NewFan",
		"user_id":   "111",
	}, meta())
	if cap.events[0].Timestamp != "2024-05-01T12:00:00.500Z" {
		t.Fatalf("metadata fallback not applied: %q", cap.events[0].Timestamp)
	}
}

func TestRaidScenario(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("channel.raid", map[string]any{
		"from_broadcaster_user_name": "TwitchRaider",
		"from_broadcaster_user_id":   "555000",
		"viewers":                    float64(42),
		"timestamp":                  "2024-01-01T00:00:00.000Z",
	}, meta())

	if len(cap.events) != 1 {
		t.Fatalf("expected 1 raid, got %d", len(cap.events))
	}
	ev := cap.events[0]
	if ev.Type != core.KindRaid || ev.Username != "TwitchRaider" || ev.UserID != "555000" {
		t.Fatalf("raid identity wrong: %+v", ev)
	}
	if ev.ViewerCount != 42 || ev.Timestamp != "2024-01-01T00:00:00.000Z" {
		t.Fatalf("raid details wrong: %+v", ev)
	}
}

func TestChatMessage(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("channel.chat.message", map[string]any{
		"chatter_user_name": "Chatter",
		"chatter_user_id":   "777",
		"message":           map[string]any{"text": "hi chat"},
		"color":             "#FF0000",
	}, meta())

	ev := cap.events[0]
	if ev.Type != core.KindChat || ev.Message != "hi chat" || ev.Color != "#FF0000" {
		t.Fatalf("chat lost fields: %+v", ev)
	}
}

func TestCheerHappyPath(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("channel.cheer", map[string]any{
		"message_id": "msg-1",
		"user_name":  "Cheerer",
		"user_id":    "888",
		"bits":       float64(150),
		"message":    map[string]any{"text": "Cheer100 Cheer50 nice"},
	}, meta())

	ev := cap.events[0]
	if ev.Type != core.KindGift || ev.IsError {
		t.Fatalf("expected clean gift: %+v", ev)
	}
	if ev.Amount != 150 || ev.Currency != "BITS" || ev.GiftType != "bits" {
		t.Fatalf("bits mapping wrong: %+v", ev)
	}
	if ev.Cheermote == nil || ev.Cheermote.Bits != 150 || ev.Cheermote.IsMixed {
		t.Fatalf("cheermote extraction wrong: %+v", ev.Cheermote)
	}
}

func TestCheerMixedBits(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("channel.cheer", map[string]any{
		"id":        "msg-2",
		"user_name": "Cheerer",
		"user_id":   "888",
		"bits":      float64(300),
		"message":   map[string]any{"text": "Cheer100 Party200"},
	}, meta())

	ev := cap.events[0]
	if ev.GiftType != "mixed bits" {
		t.Fatalf("mixed cheermotes should set mixed bits, got %q", ev.GiftType)
	}
	if ev.ID != "msg-2" {
		t.Fatalf("id fallback to event.id lost: %q", ev.ID)
	}
}

func TestCheerPartialIdentityIsErrorVariant(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("channel.cheer", map[string]any{
		"message_id": "msg-3",
		"user_name":  "Cheerer",
		"bits":       float64(100),
	}, meta())

	if len(cap.events) != 1 || !cap.events[0].IsError {
		t.Fatalf("partial identity must surface as error-variant: %+v", cap.events)
	}
	if len(cap.errs) != 1 {
		t.Fatalf("expected one error-handler call, got %d", len(cap.errs))
	}
}

func TestCheerMissingIDDropped(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("channel.cheer", map[string]any{
		"user_name": "Cheerer",
		"user_id":   "888",
		"bits":      float64(100),
	}, meta())

	if len(cap.events) != 0 {
		t.Fatalf("cheer without any id must drop: %+v", cap.events)
	}
}

func TestSubscriptionGiftSuppression(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("channel.subscribe", map[string]any{
		"user_name": "Lucky",
		"user_id":   "999",
		"tier":      "1000",
		"is_gift":   true,
	}, meta())

	if len(cap.events) != 0 {
		t.Fatalf("gifted subscription must be suppressed: %+v", cap.events)
	}
	if len(cap.errs) != 0 {
		t.Fatalf("suppression is not an error: %v", cap.errs)
	}
}

func TestResubMessageMonths(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("channel.subscription.message", map[string]any{
		"user_name":         "Loyal",
		"user_id":           "1010",
		"tier":              "2000",
		"cumulative_months": float64(7),
		"message":           map[string]any{"text": "seven months!"},
	}, meta())

	ev := cap.events[0]
	if ev.Type != core.KindPaypiggy || ev.Months != 7 || !ev.IsRenewal {
		t.Fatalf("resub mapping wrong: %+v", ev)
	}
	if ev.Message != "seven months!" || ev.Tier != "2000" {
		t.Fatalf("resub details lost: %+v", ev)
	}
}

func TestSubscriptionGiftAnonymous(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("channel.subscription.gift", map[string]any{
		"is_anonymous":     true,
		"total":            float64(5),
		"tier":             "1000",
		"cumulative_total": float64(25),
	}, meta())

	ev := cap.events[0]
	if ev.Type != core.KindGiftPaypiggy || ev.IsError {
		t.Fatalf("anonymous gift should be clean: %+v", ev)
	}
	if ev.GiftCount != 5 || !ev.IsAnonymous || ev.CumulativeTotal != 25 || !ev.IsGift {
		t.Fatalf("gift details lost: %+v", ev)
	}
}

func TestUnhandledTypeIsSilent(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("channel.poll.begin", map[string]any{}, meta())
	if len(cap.events) != 0 || len(cap.errs) != 0 {
		t.Fatalf("unhandled types must not emit or error")
	}
}

func TestCleanupAfterOnlineEmitsOffline(t *testing.T) {
	r, cap := newTestRouter(t)
	r.HandleNotification("stream.online", map[string]any{"started_at": "2024-05-01T11:59:00Z"}, meta())
	cap.events = nil

	r.Cleanup()
	if len(cap.events) != 2 {
		t.Fatalf("cleanup should emit stream-status + chat-disconnected, got %d", len(cap.events))
	}
	cap.events = nil
	r.Cleanup()
	if len(cap.events) != 0 {
		t.Fatalf("second cleanup must be silent")
	}
}
