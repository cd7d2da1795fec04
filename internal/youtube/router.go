package youtube

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/you/crossfeed/internal/core"
	"github.com/you/crossfeed/internal/money"
	"github.com/you/crossfeed/internal/router"
)

type handler func(item Item)

// lowPriorityTypes are known feed noise: routed to a no-op on purpose so
// they never show up as unknown-type logging.
var lowPriorityTypes = map[string]struct{}{
	"LiveChatViewerEngagementMessage": {},
	"LiveChatAutoModMessage":          {},
	"LiveChatModeChangeMessage":       {},
	"LiveChatBannerPoll":              {},
}

const giftRedemptionType = "LiveChatSponsorshipsGiftRedemptionAnnouncement"

type Router struct {
	deps     *router.Deps
	drops    *router.DropLogger
	live     router.LiveState
	handlers map[string]handler

	unknownLogged map[string]struct{}
}

func New(deps *router.Deps) *Router {
	r := &Router{
		deps:          deps,
		drops:         router.NewDropLogger("youtube", 0),
		unknownLogged: make(map[string]struct{}),
	}
	r.handlers = map[string]handler{
		"LiveChatPaidMessage":                          r.parseSuperChat,
		"LiveChatPaidSticker":                          r.parseSticker,
		"LiveChatMembershipItem":                       r.parseMembership,
		"LiveChatSponsorshipsGiftPurchaseAnnouncement": r.parseGiftPurchase,
		"LiveChatTextMessage":                          r.routeChatText,
	}
	return r
}

// HandleItem routes one chat feed payload, wrapped or direct.
func (r *Router) HandleItem(payload map[string]any) {
	item, ok := NormalizeItem(payload)
	if !ok {
		r.drop("unrecognized_shape", "")
		return
	}
	itemType := router.Text(item.Body, "type")

	r.deps.Guard(itemType, payload, func() {
		r.deps.LogRaw(string(core.PlatformYouTube), itemType, payload)

		if h, ok := r.handlers[itemType]; ok {
			h(item)
			return
		}
		if _, ok := lowPriorityTypes[itemType]; ok {
			return
		}
		if itemType == giftRedemptionType {
			slog.Debug("youtube: ignored gifted membership announcement", "id", item.ID)
			return
		}
		if strings.HasSuffix(itemType, "Renderer") {
			slog.Debug("youtube: ignored duplicate", "type", itemType, "id", item.ID)
			return
		}
		if _, logged := r.unknownLogged[itemType]; !logged {
			r.unknownLogged[itemType] = struct{}{}
			slog.Debug("youtube: unknown item type", "type", itemType)
		}
		r.drop("unknown_type", itemType)
	})
}

func (r *Router) drop(reason, eventType string) {
	r.drops.Note(reason, eventType)
	if r.deps.Metrics != nil {
		r.deps.Metrics.IncDropped(string(core.PlatformYouTube), reason)
	}
}

func itemMessage(body map[string]any) string {
	msg := router.Dig(body, "message")
	if msg == nil {
		return ""
	}
	if text := router.Text(msg, "text"); text != "" {
		return text
	}
	return router.Runs(msg, "runs")
}

func (r *Router) routeChatText(item Item) {
	if !r.deps.Config.YouTube.MessagesEnabled {
		return
	}
	name, channelID := author(item.Body)
	id, ok := router.NormalizeIdentity(name, channelID)
	if !ok {
		r.drop("missing_identity", "LiveChatTextMessage")
		return
	}
	message := itemMessage(item.Body)
	if message == "" {
		r.drop("empty_message", "LiveChatTextMessage")
		return
	}
	ts, ok := itemTimestamp(item)
	if !ok {
		r.drop("missing_timestamp", "LiveChatTextMessage")
		return
	}

	ev, err := r.deps.Factory.Chat(core.ChatPayload{
		Platform:  core.PlatformYouTube,
		Timestamp: ts,
		Username:  id.Username,
		UserID:    id.UserID,
		Message:   message,
	})
	if err != nil {
		r.deps.Errors.HandleEventError(err, "LiveChatTextMessage", item.Body, "chat normalization failed")
		return
	}
	r.deps.Publish(ev)
}

func (r *Router) parseSuperChat(item Item) {
	r.paidItem(item, "Super Chat", "LiveChatPaidMessage", false)
}

func (r *Router) parseSticker(item Item) {
	r.paidItem(item, "Super Sticker", "LiveChatPaidSticker", true)
}

// paidItem normalizes Super Chats and Super Stickers. Parse failures on
// the purchase amount surface as error-variant gifts carrying whatever
// could still be derived.
func (r *Router) paidItem(item Item, giftType, eventType string, sticker bool) {
	if !r.deps.Config.YouTube.GiftsEnabled {
		return
	}

	name, channelID := author(item.Body)
	id, hasIdentity := router.NormalizeIdentity(name, channelID)
	ts, _ := itemTimestamp(item)

	gift := core.GiftPayload{
		Platform:    core.PlatformYouTube,
		Timestamp:   ts,
		Username:    id.Username,
		UserID:      id.UserID,
		ID:          item.ID,
		GiftType:    giftType,
		GiftCount:   1,
		Message:     itemMessage(item.Body),
		SourceType:  "youtube-" + strings.ToLower(strings.ReplaceAll(giftType, " ", "-")),
		IsSuperChat: !sticker,
		IsSticker:   sticker,
	}

	amountText := router.Text(item.Body, "purchase_amount")
	if amountText == "" {
		amountText = router.Text(item.Body, "purchaseAmount")
	}
	parsed := money.Parse(amountText)

	switch {
	case !hasIdentity, item.ID == "", !parsed.OK:
		gift.IsError = true
		r.deps.Errors.HandleEventError(fmt.Errorf("%s: unparseable purchase", eventType), eventType, item.Body, "paid item incomplete")
	default:
		gift.Amount = parsed.Amount
		gift.Currency = parsed.Currency
	}

	ev, err := r.deps.Factory.Gift(gift)
	if err != nil {
		r.deps.Errors.HandleEventError(err, eventType, item.Body, "paid item normalization failed")
		return
	}
	r.deps.Publish(ev)
}

var monthsRe = regexp.MustCompile(`(\d+)\s+month`)

// membershipMonths digs the renewal month count out of the header
// subtext ("Member for 7 months").
func membershipMonths(body map[string]any) int {
	subtext := router.Dig(body, "headerSubtext")
	if subtext == nil {
		subtext = router.Dig(body, "header_subtext")
	}
	text := router.Text(subtext, "text")
	if text == "" {
		text = router.Runs(subtext, "runs")
	}
	m := monthsRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func (r *Router) parseMembership(item Item) {
	if !r.deps.Config.YouTube.PaypiggiesEnabled {
		return
	}
	name, channelID := author(item.Body)
	id, ok := router.NormalizeIdentity(name, channelID)
	if !ok {
		r.deps.Errors.HandleEventError(fmt.Errorf("membership: incomplete identity"), "LiveChatMembershipItem", item.Body, "membership missing author")
		r.drop("missing_identity", "LiveChatMembershipItem")
		return
	}
	ts, _ := itemTimestamp(item)

	ev, err := r.deps.Factory.Paypiggy(core.PaypiggyPayload{
		Platform:  core.PlatformYouTube,
		Timestamp: ts,
		Username:  id.Username,
		UserID:    id.UserID,
		Tier:      router.Text(item.Body, "levelName"),
		Months:    membershipMonths(item.Body),
		Message:   itemMessage(item.Body),
	})
	if err != nil {
		r.deps.Errors.HandleEventError(err, "LiveChatMembershipItem", item.Body, "membership normalization failed")
		return
	}
	r.deps.Publish(ev)
}

// parseGiftPurchase normalizes a gift membership purchase announcement.
// The author often lives only in the header; with no author resolvable
// at all the purchase surfaces as an error event.
func (r *Router) parseGiftPurchase(item Item) {
	if !r.deps.Config.YouTube.PaypiggiesEnabled {
		return
	}

	name, channelID, ok := hydrateGiftAuthor(item.Body)
	if !ok {
		ev, err := r.deps.Factory.Error(core.ErrorPayload{
			Platform:  core.PlatformYouTube,
			Name:      "GiftPurchaseAuthorUnresolved",
			Message:   "gift purchase announcement has no resolvable author",
			Operation: "parseGiftPurchase",
			Detail:    item.ID,
		})
		if err == nil {
			r.deps.Publish(ev)
		}
		r.deps.Errors.HandleEventError(fmt.Errorf("gift purchase: no resolvable author"), "LiveChatSponsorshipsGiftPurchaseAnnouncement", item.Body, "author missing from item and header")
		return
	}

	count := 0
	if n, ok := router.Number(item.Body, "giftMembershipsCount"); ok && n > 0 {
		count = int(n)
	} else if header := router.Dig(item.Body, "header"); header != nil {
		if n, ok := router.Number(header, "giftMembershipsCount"); ok && n > 0 {
			count = int(n)
		}
	}
	ts, _ := itemTimestamp(item)

	payload := core.GiftPaypiggyPayload{
		Platform:  core.PlatformYouTube,
		Timestamp: ts,
		Username:  name,
		UserID:    channelID,
		ID:        item.ID,
		GiftCount: count,
	}
	if count <= 0 {
		payload.IsError = true
		r.deps.Errors.HandleEventError(fmt.Errorf("gift purchase: missing membership count"), "LiveChatSponsorshipsGiftPurchaseAnnouncement", item.Body, "gift purchase lacks count")
	}

	ev, err := r.deps.Factory.GiftPaypiggy(payload)
	if err != nil {
		r.deps.Errors.HandleEventError(err, "LiveChatSponsorshipsGiftPurchaseAnnouncement", item.Body, "gift purchase normalization failed")
		return
	}
	r.deps.Publish(ev)
}

// StreamConnected marks one live stream's chat ready. The stream-live
// transition fires only for the first concurrent stream.
func (r *Router) StreamConnected(streamID string) {
	r.deps.Publish(r.deps.Factory.ChatConnected(core.PlatformYouTube, streamID))
	if r.live.Up() {
		r.deps.Publish(r.deps.Factory.StreamStatus(core.StreamStatusPayload{
			Platform: core.PlatformYouTube,
			IsLive:   true,
			StreamID: streamID,
		}))
	}
}

// StreamDisconnected marks one stream's chat lost; only the last one
// flips the stream-live state back.
func (r *Router) StreamDisconnected(streamID string) {
	r.deps.Publish(r.deps.Factory.ChatDisconnected(core.PlatformYouTube, streamID))
	if r.live.Down() {
		r.deps.Publish(r.deps.Factory.StreamStatus(core.StreamStatusPayload{
			Platform: core.PlatformYouTube,
			IsLive:   false,
			StreamID: streamID,
		}))
	}
}

// StreamDetected announces a newly discovered live stream.
func (r *Router) StreamDetected(streamID string) {
	ev, err := r.deps.Factory.StreamDetected(core.PlatformYouTube, streamID)
	if err != nil {
		r.deps.Errors.HandleEventError(err, "stream-detected", nil, "stream detection event failed")
		return
	}
	r.deps.Publish(ev)
}

// HandleTransportError re-emits a transport failure as an error event.
func (r *Router) HandleTransportError(name, message string) {
	ev, err := r.deps.Factory.Error(core.ErrorPayload{
		Platform:    core.PlatformYouTube,
		Name:        name,
		Message:     message,
		Operation:   "youtube-transport",
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
			Platform: core.PlatformYouTube,
			IsLive:   false,
		}))
		r.deps.Publish(r.deps.Factory.ChatDisconnected(core.PlatformYouTube, ""))
	}
}
