// Package twitch normalizes Twitch EventSub notifications into canonical
// events. A notification is routed by its subscription type with the
// event body and transport metadata.
package twitch

import (
	"fmt"
	"log/slog"

	"github.com/you/crossfeed/internal/core"
	"github.com/you/crossfeed/internal/router"
)

type handler func(event, metadata map[string]any)

type Router struct {
	deps     *router.Deps
	drops    *router.DropLogger
	live     router.LiveState
	handlers map[string]handler
}

func New(deps *router.Deps) *Router {
	r := &Router{
		deps:  deps,
		drops: router.NewDropLogger("twitch", 0),
	}
	r.handlers = map[string]handler{
		"stream.online":                r.handleStreamOnline,
		"stream.offline":               r.handleStreamOffline,
		"channel.follow":               r.handleFollow,
		"channel.raid":                 r.handleRaid,
		"channel.chat.message":         r.handleChatMessage,
		"channel.cheer":                r.handleCheer,
		"channel.subscribe":            r.handleSubscription,
		"channel.subscription.message": r.handleSubscription,
		"channel.subscription.gift":    r.handleSubscriptionGift,
	}
	return r
}

// HandleNotification dispatches one EventSub notification.
func (r *Router) HandleNotification(subscriptionType string, event, metadata map[string]any) {
	r.deps.Guard(subscriptionType, event, func() {
		r.deps.LogRaw(string(core.PlatformTwitch), subscriptionType, event)

		h, ok := r.handlers[subscriptionType]
		if !ok {
			slog.Debug("twitch: unhandled notification type", "type", subscriptionType)
			r.drop("unhandled_type", subscriptionType)
			return
		}
		h(event, metadata)
	})
}

func (r *Router) drop(reason, eventType string) {
	r.drops.Note(reason, eventType)
	if r.deps.Metrics != nil {
		r.deps.Metrics.IncDropped(string(core.PlatformTwitch), reason)
	}
}

// notificationTimestamp is the generic fallback chain: the event's own
// timestamp, then the transport envelope's message timestamp.
func notificationTimestamp(event, metadata map[string]any) string {
	if ts, ok := router.FirstTimestamp(event, "timestamp"); ok {
		return ts
	}
	if ts, ok := router.FirstTimestamp(metadata, "message_timestamp"); ok {
		return ts
	}
	return ""
}

func (r *Router) handleStreamOnline(event, metadata map[string]any) {
	ts, ok := router.FirstTimestamp(event, "started_at")
	if !ok {
		ts = notificationTimestamp(event, metadata)
	}
	r.live.Up()
	r.deps.Publish(r.deps.Factory.StreamStatus(core.StreamStatusPayload{
		Platform:  core.PlatformTwitch,
		Timestamp: ts,
		IsLive:    true,
		StreamID:  router.Text(event, "id"),
		StartedAt: router.Text(event, "started_at"),
	}))
}

func (r *Router) handleStreamOffline(event, metadata map[string]any) {
	r.live.Reset()
	r.deps.Publish(r.deps.Factory.StreamStatus(core.StreamStatusPayload{
		Platform:  core.PlatformTwitch,
		Timestamp: notificationTimestamp(event, metadata),
		IsLive:    false,
	}))
}

func (r *Router) handleFollow(event, metadata map[string]any) {
	if !r.deps.Config.Twitch.FollowsEnabled {
		return
	}
	id, ok := router.NormalizeIdentity(
		router.Text(event, "user_name"),
		router.Text(event, "user_id"),
	)
	if !ok {
		r.deps.Errors.HandleEventError(fmt.Errorf("follow: incomplete identity"), "channel.follow", event, "follow missing user identity")
		r.drop("missing_identity", "channel.follow")
		return
	}
	ts, ok := router.FirstTimestamp(event, "followed_at", "timestamp")
	if !ok {
		ts = notificationTimestamp(event, metadata)
	}
	if ts == "" {
		r.drop("missing_timestamp", "channel.follow")
		return
	}

	ev, err := r.deps.Factory.Follow(core.FollowPayload{
		Platform:  core.PlatformTwitch,
		Timestamp: ts,
		Username:  id.Username,
		UserID:    id.UserID,
	})
	if err != nil {
		r.deps.Errors.HandleEventError(err, "channel.follow", event, "follow normalization failed")
		return
	}
	r.deps.Publish(ev)
}

func (r *Router) handleRaid(event, metadata map[string]any) {
	if !r.deps.Config.Twitch.RaidsEnabled {
		return
	}
	id, ok := router.NormalizeIdentity(
		router.Text(event, "from_broadcaster_user_name"),
		router.Text(event, "from_broadcaster_user_id"),
	)
	if !ok {
		r.deps.Errors.HandleEventError(fmt.Errorf("raid: incomplete identity"), "channel.raid", event, "raid missing raider identity")
		r.drop("missing_identity", "channel.raid")
		return
	}
	viewers, _ := router.Number(event, "viewers")

	ev, err := r.deps.Factory.Raid(core.RaidPayload{
		Platform:    core.PlatformTwitch,
		Timestamp:   notificationTimestamp(event, metadata),
		Username:    id.Username,
		UserID:      id.UserID,
		ViewerCount: int(viewers),
	})
	if err != nil {
		r.deps.Errors.HandleEventError(err, "channel.raid", event, "raid normalization failed")
		return
	}
	r.deps.Publish(ev)
}

func (r *Router) handleChatMessage(event, metadata map[string]any) {
	if !r.deps.Config.Twitch.MessagesEnabled {
		return
	}
	id, ok := router.NormalizeIdentity(
		router.Text(event, "chatter_user_name"),
		router.Text(event, "chatter_user_id"),
	)
	if !ok {
		r.drop("missing_identity", "channel.chat.message")
		return
	}
	text := router.Text(router.Dig(event, "message"), "text")
	if text == "" {
		r.drop("empty_message", "channel.chat.message")
		return
	}
	ts := notificationTimestamp(event, metadata)
	if ts == "" {
		r.drop("missing_timestamp", "channel.chat.message")
		return
	}

	ev, err := r.deps.Factory.Chat(core.ChatPayload{
		Platform:  core.PlatformTwitch,
		Timestamp: ts,
		Username:  id.Username,
		UserID:    id.UserID,
		Message:   text,
		Color:     router.Text(event, "color"),
	})
	if err != nil {
		r.deps.Errors.HandleEventError(err, "channel.chat.message", event, "chat normalization failed")
		return
	}
	r.deps.Publish(ev)
}

// handleCheer routes a bits use. A stable message id is essential; bits
// and identity failures fall back to the error-variant gift.
func (r *Router) handleCheer(event, metadata map[string]any) {
	if !r.deps.Config.Twitch.GiftsEnabled {
		return
	}

	msgID := router.Text(event, "message_id")
	if msgID == "" {
		msgID = router.Text(event, "id")
	}
	if msgID == "" {
		r.deps.Errors.HandleEventError(fmt.Errorf("cheer: missing message id"), "channel.cheer", event, "cheer lacks a stable id")
		r.drop("missing_id", "channel.cheer")
		return
	}

	anonymous := router.Flag(event, "is_anonymous")
	username := router.Text(event, "user_name")
	userID := router.Text(event, "user_id")
	id, completeIdentity := router.NormalizeIdentity(username, userID)

	bits, hasBits := router.Number(event, "bits")
	message := router.Text(router.Dig(event, "message"), "text")
	if message == "" {
		message = router.Text(event, "message")
	}
	cheermotes := ExtractCheermotes(message)

	gift := core.GiftPayload{
		Platform:   core.PlatformTwitch,
		Timestamp:  notificationTimestamp(event, metadata),
		Username:   id.Username,
		UserID:     id.UserID,
		ID:         msgID,
		Message:    message,
		GiftCount:  1,
		Cheermote:  cheermotes,
		SourceType: "twitch-cheer",
	}

	partialIdentity := !completeIdentity && (username != "" || userID != "")
	switch {
	case !hasBits || bits <= 0:
		gift.IsError = true
		r.deps.Errors.HandleEventError(fmt.Errorf("cheer: missing bits amount"), "channel.cheer", event, "cheer lacks bits")
	case partialIdentity:
		gift.IsError = true
		r.deps.Errors.HandleEventError(fmt.Errorf("cheer: partial identity"), "channel.cheer", event, "cheer has username or id but not both")
	case !completeIdentity && !anonymous:
		gift.IsError = true
		r.deps.Errors.HandleEventError(fmt.Errorf("cheer: missing identity"), "channel.cheer", event, "cheer lacks identity and is not anonymous")
	default:
		gift.Amount = bits
		gift.Currency = "BITS"
		gift.GiftType = "bits"
		if cheermotes != nil && cheermotes.IsMixed {
			gift.GiftType = "mixed bits"
		}
	}

	ev, err := r.deps.Factory.Gift(gift)
	if err != nil {
		r.deps.Errors.HandleEventError(err, "channel.cheer", event, "cheer normalization failed")
		return
	}
	r.deps.Publish(ev)
}

// handleSubscription covers both the initial subscribe and the resub
// message notification. Gifted subscriptions are suppressed: the
// purchase announcement already carries the canonical information.
func (r *Router) handleSubscription(event, metadata map[string]any) {
	if !r.deps.Config.Twitch.PaypiggiesEnabled {
		return
	}
	if router.Flag(event, "is_gift") {
		slog.Debug("twitch: suppressing gifted subscription notification",
			"user", router.Text(event, "user_name"))
		return
	}

	id, ok := router.NormalizeIdentity(
		router.Text(event, "user_name"),
		router.Text(event, "user_id"),
	)
	if !ok {
		r.deps.Errors.HandleEventError(fmt.Errorf("subscription: incomplete identity"), "channel.subscribe", event, "subscription missing identity")
		r.drop("missing_identity", "channel.subscribe")
		return
	}

	months := 0
	if n, ok := router.Number(event, "cumulative_months"); ok && n > 0 {
		months = int(n)
	}

	ev, err := r.deps.Factory.Paypiggy(core.PaypiggyPayload{
		Platform:  core.PlatformTwitch,
		Timestamp: notificationTimestamp(event, metadata),
		Username:  id.Username,
		UserID:    id.UserID,
		Tier:      router.Text(event, "tier"),
		Months:    months,
		Message:   router.Text(router.Dig(event, "message"), "text"),
	})
	if err != nil {
		r.deps.Errors.HandleEventError(err, "channel.subscribe", event, "subscription normalization failed")
		return
	}
	r.deps.Publish(ev)
}

func (r *Router) handleSubscriptionGift(event, metadata map[string]any) {
	if !r.deps.Config.Twitch.PaypiggiesEnabled {
		return
	}

	anonymous := router.Flag(event, "is_anonymous")
	id, complete := router.NormalizeIdentity(
		router.Text(event, "user_name"),
		router.Text(event, "user_id"),
	)
	total, hasTotal := router.Number(event, "total")
	cumulative, _ := router.Number(event, "cumulative_total")

	payload := core.GiftPaypiggyPayload{
		Platform:        core.PlatformTwitch,
		Timestamp:       notificationTimestamp(event, metadata),
		Username:        id.Username,
		UserID:          id.UserID,
		Tier:            router.Text(event, "tier"),
		GiftCount:       int(total),
		IsAnonymous:     anonymous,
		CumulativeTotal: int(cumulative),
	}

	if !hasTotal || total <= 0 || (!complete && !anonymous) {
		payload.IsError = true
		r.deps.Errors.HandleEventError(fmt.Errorf("subscription gift: incomplete payload"), "channel.subscription.gift", event, "gifted subscription payload incomplete")
	}

	ev, err := r.deps.Factory.GiftPaypiggy(payload)
	if err != nil {
		r.deps.Errors.HandleEventError(err, "channel.subscription.gift", event, "gifted subscription normalization failed")
		return
	}
	r.deps.Publish(ev)
}

// Connected marks the EventSub transport ready.
func (r *Router) Connected() {
	r.deps.Publish(r.deps.Factory.ChatConnected(core.PlatformTwitch, ""))
}

// Disconnected marks the EventSub transport down.
func (r *Router) Disconnected() {
	r.deps.Publish(r.deps.Factory.ChatDisconnected(core.PlatformTwitch, ""))
}

// HandleTransportError re-emits a transport failure as an error event.
func (r *Router) HandleTransportError(name, message string) {
	ev, err := r.deps.Factory.Error(core.ErrorPayload{
		Platform:    core.PlatformTwitch,
		Name:        name,
		Message:     message,
		Operation:   "twitch-transport",
		Recoverable: true,
	})
	if err != nil {
		r.deps.Errors.HandleEventError(err, "error", nil, "error event construction failed")
		return
	}
	r.deps.Publish(ev)
}

// Cleanup tears the router down. Idempotent.
func (r *Router) Cleanup() {
	r.drops.Flush()
	if r.live.Reset() {
		r.deps.Publish(r.deps.Factory.StreamStatus(core.StreamStatusPayload{
			Platform: core.PlatformTwitch,
			IsLive:   false,
		}))
		r.deps.Publish(r.deps.Factory.ChatDisconnected(core.PlatformTwitch, ""))
	}
}
