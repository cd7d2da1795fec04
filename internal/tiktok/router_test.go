package tiktok

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

func newTestRouter(t *testing.T, overrides map[string]any) (*Router, *capture) {
	t.Helper()
	raw := map[string]any{
		"tiktok": map[string]any{
			"enabled":           true,
			"username":          "host",
			"messagesEnabled":   true,
			"giftsEnabled":      true,
			"followsEnabled":    true,
			"paypiggiesEnabled": true,
		},
	}
	for k, v := range overrides {
		raw[k] = v
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

func chatPayload() map[string]any {
	return map[string]any{
		"uniqueId":   "viewer1",
		"userId":     "7000001",
		"comment":    "hello!",
		"createTime": float64(1700000000000),
	}
}

func TestChatNormalization(t *testing.T) {
	r, cap := newTestRouter(t, nil)
	r.HandleChat(chatPayload())

	if len(cap.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(cap.events))
	}
	ev := cap.events[0]
	if ev.Type != core.KindChat || ev.Platform != core.PlatformTikTok {
		t.Fatalf("unexpected event head: %s %s", ev.Type, ev.Platform)
	}
	if ev.Username != "viewer1" || ev.UserID != "7000001" || ev.Message != "hello!" {
		t.Fatalf("identity/message lost: %+v", ev)
	}
	if ev.Timestamp != "2023-11-14T22:13:20.000Z" {
		t.Fatalf("source timestamp replaced: %q", ev.Timestamp)
	}
	if ev.Metadata.Platform != ev.Platform || ev.Metadata.CorrelationID == "" {
		t.Fatalf("metadata invariant broken: %+v", ev.Metadata)
	}
}

func TestChatDroppedWithoutIdentity(t *testing.T) {
	r, cap := newTestRouter(t, nil)
	payload := chatPayload()
	delete(payload, "userId")
	r.HandleChat(payload)

	if len(cap.events) != 0 {
		t.Fatalf("incomplete identity must not emit: %+v", cap.events)
	}
	if len(cap.errs) != 1 {
		t.Fatalf("expected exactly one error-handler call, got %d", len(cap.errs))
	}
}

func TestChatGatedByMessagesEnabled(t *testing.T) {
	r, cap := newTestRouter(t, map[string]any{
		"tiktok": map[string]any{"enabled": true, "username": "host", "messagesEnabled": false},
	})
	r.HandleChat(chatPayload())
	if len(cap.events) != 0 {
		t.Fatalf("messagesEnabled=false must drop chat")
	}
}

func TestGiftHappyPath(t *testing.T) {
	r, cap := newTestRouter(t, nil)
	r.HandleGift(map[string]any{
		"uniqueId":     "donor",
		"userId":       "42",
		"giftId":       "5655",
		"giftName":     "Rose",
		"repeatCount":  float64(3),
		"diamondCount": float64(10),
		"createTime":   float64(1700000000000),
	})

	if len(cap.events) != 1 {
		t.Fatalf("expected 1 gift, got %d", len(cap.events))
	}
	ev := cap.events[0]
	if ev.Type != core.KindGift || ev.IsError {
		t.Fatalf("unexpected gift: %+v", ev)
	}
	if ev.Amount != 30 || ev.Currency != "COINS" || ev.GiftCount != 3 || ev.GiftType != "Rose" {
		t.Fatalf("gift math wrong: %+v", ev)
	}
}

func TestGiftMissingDiamondsEmitsErrorVariant(t *testing.T) {
	r, cap := newTestRouter(t, nil)
	r.HandleGift(map[string]any{
		"uniqueId":   "donor",
		"userId":     "42",
		"giftId":     "5655",
		"giftName":   "Rose",
		"createTime": float64(1700000000000),
	})

	if len(cap.events) != 1 {
		t.Fatalf("broken monetization must still surface: %+v", cap.events)
	}
	ev := cap.events[0]
	if !ev.IsError {
		t.Fatalf("expected error-variant gift: %+v", ev)
	}
	if ev.Username != "donor" || ev.ID != "5655" || ev.GiftType != "Rose" {
		t.Fatalf("derivable fields lost on error-variant: %+v", ev)
	}
	if ev.Amount != 0 || ev.Currency != "" {
		t.Fatalf("error-variant must not fake amounts: %+v", ev)
	}
}

func TestSubscribeAndSuperfanTiers(t *testing.T) {
	r, cap := newTestRouter(t, nil)
	base := map[string]any{
		"uniqueId":   "fan",
		"userId":     "9",
		"createTime": float64(1700000000000),
	}
	r.HandleSubscribe(base)
	r.HandleSuperfan(base)

	if len(cap.events) != 2 {
		t.Fatalf("expected 2 paypiggies, got %d", len(cap.events))
	}
	if cap.events[0].Tier != "" {
		t.Fatalf("subscription tier should be empty, got %q", cap.events[0].Tier)
	}
	if cap.events[1].Tier != "superfan" {
		t.Fatalf("superfan tier lost: %q", cap.events[1].Tier)
	}
}

func TestRoomUserViewerCount(t *testing.T) {
	r, cap := newTestRouter(t, nil)
	r.HandleRoomUser(map[string]any{"viewerCount": float64(123), "createTime": float64(1700000000000)})

	if len(cap.events) != 1 || cap.events[0].Type != core.KindViewerCount {
		t.Fatalf("expected viewer-count event: %+v", cap.events)
	}
	if cap.events[0].Count != 123 {
		t.Fatalf("count lost: %d", cap.events[0].Count)
	}
}

func TestLikeIsIgnored(t *testing.T) {
	r, cap := newTestRouter(t, nil)
	r.HandleLike(map[string]any{"uniqueId": "fan", "likeCount": float64(15)})
	if len(cap.events) != 0 || len(cap.errs) != 0 {
		t.Fatalf("likes must be silent")
	}
}

func TestLifecycleTransitions(t *testing.T) {
	r, cap := newTestRouter(t, nil)

	r.Connected()
	if len(cap.events) != 2 {
		t.Fatalf("first connect should emit chat-connected + stream-status, got %d", len(cap.events))
	}
	if cap.events[0].Type != core.KindChatConnected {
		t.Fatalf("expected chat-connected first: %s", cap.events[0].Type)
	}
	if cap.events[1].Type != core.KindStreamStatus || cap.events[1].IsLive == nil || !*cap.events[1].IsLive {
		t.Fatalf("expected stream-status live=true: %+v", cap.events[1])
	}

	cap.events = nil
	r.Disconnected()
	if len(cap.events) != 2 {
		t.Fatalf("last disconnect should emit both events, got %d", len(cap.events))
	}
	if cap.events[1].IsLive == nil || *cap.events[1].IsLive {
		t.Fatalf("expected stream-status live=false: %+v", cap.events[1])
	}
}

func TestStreamEndEmitsOffline(t *testing.T) {
	r, cap := newTestRouter(t, nil)
	r.Connected()
	cap.events = nil

	r.HandleStreamEnd(map[string]any{"createTime": float64(1700000000000)})
	if len(cap.events) != 1 || cap.events[0].Type != core.KindStreamStatus {
		t.Fatalf("expected stream-status: %+v", cap.events)
	}
	if cap.events[0].Timestamp != "2023-11-14T22:13:20.000Z" {
		t.Fatalf("source timestamp replaced: %q", cap.events[0].Timestamp)
	}

	// second end with no live state is silent
	cap.events = nil
	r.HandleStreamEnd(map[string]any{})
	if len(cap.events) != 0 {
		t.Fatalf("streamEnd without live state should be silent")
	}
}

func TestCleanupIdempotent(t *testing.T) {
	r, cap := newTestRouter(t, nil)
	r.Connected()
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
