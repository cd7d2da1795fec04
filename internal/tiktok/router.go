// Package tiktok normalizes TikTok LIVE webcast payloads into canonical
// events. One Router serves one connected live room.
package tiktok

import (
	"fmt"

	"github.com/you/crossfeed/internal/core"
	"github.com/you/crossfeed/internal/router"
)

type Router struct {
	deps  *router.Deps
	drops *router.DropLogger
	live  router.LiveState
}

func New(deps *router.Deps) *Router {
	return &Router{
		deps:  deps,
		drops: router.NewDropLogger("tiktok", 0),
	}
}

func (r *Router) drop(reason, eventType string) {
	r.drops.Note(reason, eventType)
	if r.deps.Metrics != nil {
		r.deps.Metrics.IncDropped(string(core.PlatformTikTok), reason)
	}
}

// identity pulls the webcast user reference. TikTok names the handle
// uniqueId and the numeric account id userId.
func identity(payload map[string]any) (router.Identity, bool) {
	username := router.Text(payload, "uniqueId")
	if username == "" {
		username = router.Text(router.Dig(payload, "user"), "uniqueId")
	}
	userID := router.Text(payload, "userId")
	if userID == "" {
		userID = router.Text(router.Dig(payload, "user"), "userId")
	}
	return router.NormalizeIdentity(username, userID)
}

func eventTimestamp(payload map[string]any) (string, bool) {
	return router.FirstTimestamp(payload, "createTime", "timestamp")
}

// HandleChat routes a comment payload.
func (r *Router) HandleChat(payload map[string]any) {
	r.deps.Guard("chat", payload, func() {
		r.deps.LogRaw(string(core.PlatformTikTok), "chat", payload)
		if !r.deps.Config.TikTok.MessagesEnabled {
			return
		}

		id, ok := identity(payload)
		if !ok {
			r.deps.Errors.HandleEventError(fmt.Errorf("chat: incomplete identity"), "chat", payload, "chat message missing user identity")
			r.drop("missing_identity", "chat")
			return
		}
		message := router.Text(payload, "comment")
		if message == "" {
			r.drop("empty_message", "chat")
			return
		}
		ts, ok := eventTimestamp(payload)
		if !ok {
			r.deps.Errors.HandleEventError(fmt.Errorf("chat: missing createTime"), "chat", payload, "chat message missing timestamp")
			r.drop("missing_timestamp", "chat")
			return
		}

		ev, err := r.deps.Factory.Chat(core.ChatPayload{
			Platform:  core.PlatformTikTok,
			Timestamp: ts,
			Username:  id.Username,
			UserID:    id.UserID,
			Message:   message,
		})
		if err != nil {
			r.deps.Errors.HandleEventError(err, "chat", payload, "chat normalization failed")
			return
		}
		r.deps.Publish(ev)
	})
}

// HandleGift routes a gift payload. Monetization failures fall back to
// an error-variant event carrying whatever fields could be derived.
func (r *Router) HandleGift(payload map[string]any) {
	r.deps.Guard("gift", payload, func() {
		r.deps.LogRaw(string(core.PlatformTikTok), "gift", payload)
		if !r.deps.Config.TikTok.GiftsEnabled {
			return
		}

		id, hasIdentity := identity(payload)
		giftID := router.Text(payload, "giftId")
		if giftID == "" {
			if n, ok := router.Number(payload, "giftId"); ok {
				giftID = fmt.Sprintf("%.0f", n)
			}
		}
		giftName := router.Text(payload, "giftName")
		if giftName == "" {
			giftName = router.Text(router.Dig(payload, "giftDetails"), "giftName")
		}
		count := 1
		if n, ok := router.Number(payload, "repeatCount"); ok && n > 0 {
			count = int(n)
		}
		diamonds, hasDiamonds := router.Number(payload, "diamondCount")
		if !hasDiamonds {
			diamonds, hasDiamonds = router.Number(router.Dig(payload, "giftDetails"), "diamondCount")
		}
		ts, _ := eventTimestamp(payload)

		gift := core.GiftPayload{
			Platform:    core.PlatformTikTok,
			Timestamp:   ts,
			Username:    id.Username,
			UserID:      id.UserID,
			ID:          giftID,
			GiftType:    giftName,
			GiftCount:   count,
			RepeatCount: count,
			SourceType:  "tiktok-gift",
		}

		switch {
		case !hasIdentity, giftID == "", giftName == "", !hasDiamonds, diamonds <= 0:
			// broken monetization payloads surface as error-variant
			// events instead of vanishing
			gift.IsError = true
			r.deps.Errors.HandleEventError(fmt.Errorf("gift: missing monetization fields"), "gift", payload, "gift payload incomplete")
		default:
			gift.Amount = diamonds * float64(count)
			gift.Currency = "COINS"
		}

		ev, err := r.deps.Factory.Gift(gift)
		if err != nil {
			r.deps.Errors.HandleEventError(err, "gift", payload, "gift normalization failed")
			return
		}
		r.deps.Publish(ev)
	})
}

// HandleFollow routes a new-follower payload.
func (r *Router) HandleFollow(payload map[string]any) {
	r.deps.Guard("follow", payload, func() {
		r.deps.LogRaw(string(core.PlatformTikTok), "follow", payload)
		if !r.deps.Config.TikTok.FollowsEnabled {
			return
		}

		id, ok := identity(payload)
		if !ok {
			r.drop("missing_identity", "follow")
			return
		}
		ts, ok := eventTimestamp(payload)
		if !ok {
			r.drop("missing_timestamp", "follow")
			return
		}

		ev, err := r.deps.Factory.Follow(core.FollowPayload{
			Platform:  core.PlatformTikTok,
			Timestamp: ts,
			Username:  id.Username,
			UserID:    id.UserID,
		})
		if err != nil {
			r.deps.Errors.HandleEventError(err, "follow", payload, "follow normalization failed")
			return
		}
		r.deps.Publish(ev)
	})
}

// HandleSubscribe routes a subscription payload as a paypiggy with an
// empty tier; downstream tells subscriptions and superfans apart by tier.
func (r *Router) HandleSubscribe(payload map[string]any) {
	r.paypiggy("subscribe", "", payload)
}

// HandleSuperfan routes a superfan upgrade as a paypiggy with the
// superfan tier.
func (r *Router) HandleSuperfan(payload map[string]any) {
	r.paypiggy("superfan", "superfan", payload)
}

func (r *Router) paypiggy(eventType, tier string, payload map[string]any) {
	r.deps.Guard(eventType, payload, func() {
		r.deps.LogRaw(string(core.PlatformTikTok), eventType, payload)
		if !r.deps.Config.TikTok.PaypiggiesEnabled {
			return
		}

		id, ok := identity(payload)
		if !ok {
			r.drop("missing_identity", eventType)
			return
		}
		months := 0
		if n, ok := router.Number(payload, "subMonth"); ok && n > 0 {
			months = int(n)
		}
		ts, _ := eventTimestamp(payload)

		ev, err := r.deps.Factory.Paypiggy(core.PaypiggyPayload{
			Platform:  core.PlatformTikTok,
			Timestamp: ts,
			Username:  id.Username,
			UserID:    id.UserID,
			Tier:      tier,
			Months:    months,
		})
		if err != nil {
			r.deps.Errors.HandleEventError(err, eventType, payload, "subscription normalization failed")
			return
		}
		r.deps.Publish(ev)
	})
}

// HandleLike is a known no-op: like bursts are viewer engagement noise,
// not canonical events.
func (r *Router) HandleLike(payload map[string]any) {}

// HandleRoomUser routes the periodic room statistics payload into a
// viewer-count event.
func (r *Router) HandleRoomUser(payload map[string]any) {
	r.deps.Guard("roomUser", payload, func() {
		r.deps.LogRaw(string(core.PlatformTikTok), "roomUser", payload)

		n, ok := router.Number(payload, "viewerCount")
		if !ok || n < 0 {
			r.drop("missing_viewer_count", "roomUser")
			return
		}
		ts, _ := eventTimestamp(payload)
		r.deps.Publish(r.deps.Factory.ViewerCount(core.ViewerCountPayload{
			Platform:  core.PlatformTikTok,
			Timestamp: ts,
			Count:     int(n),
		}))
	})
}

// HandleStreamEnd routes the host ending the live room.
func (r *Router) HandleStreamEnd(payload map[string]any) {
	r.deps.Guard("streamEnd", payload, func() {
		r.deps.LogRaw(string(core.PlatformTikTok), "streamEnd", payload)
		ts, _ := eventTimestamp(payload)
		if r.live.Reset() {
			r.deps.Publish(r.deps.Factory.StreamStatus(core.StreamStatusPayload{
				Platform:  core.PlatformTikTok,
				Timestamp: ts,
				IsLive:    false,
			}))
		}
	})
}

// Connected marks the transport ready and announces the live transition
// on the first connection.
func (r *Router) Connected() {
	r.deps.Publish(r.deps.Factory.ChatConnected(core.PlatformTikTok, ""))
	if r.live.Up() {
		r.deps.Publish(r.deps.Factory.StreamStatus(core.StreamStatusPayload{
			Platform: core.PlatformTikTok,
			IsLive:   true,
		}))
	}
}

// Disconnected marks the transport down.
func (r *Router) Disconnected() {
	r.deps.Publish(r.deps.Factory.ChatDisconnected(core.PlatformTikTok, ""))
	if r.live.Down() {
		r.deps.Publish(r.deps.Factory.StreamStatus(core.StreamStatusPayload{
			Platform: core.PlatformTikTok,
			IsLive:   false,
		}))
	}
}

// HandleTransportError re-emits a transport failure as a canonical error
// event.
func (r *Router) HandleTransportError(name, message string) {
	ev, err := r.deps.Factory.Error(core.ErrorPayload{
		Platform:    core.PlatformTikTok,
		Name:        name,
		Message:     message,
		Operation:   "tiktok-transport",
		Recoverable: true,
	})
	if err != nil {
		r.deps.Errors.HandleEventError(err, "error", nil, "error event construction failed")
		return
	}
	r.deps.Publish(ev)
}

// Cleanup tears the router down. Idempotent: the stream-live transition
// and disconnect notice fire at most once.
func (r *Router) Cleanup() {
	r.drops.Flush()
	if r.live.Reset() {
		r.deps.Publish(r.deps.Factory.StreamStatus(core.StreamStatusPayload{
			Platform: core.PlatformTikTok,
			IsLive:   false,
		}))
		r.deps.Publish(r.deps.Factory.ChatDisconnected(core.PlatformTikTok, ""))
	}
}
