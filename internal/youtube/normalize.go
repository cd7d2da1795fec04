// Package youtube normalizes YouTube live chat items into canonical
// events and hosts the multi-stream detector.
package youtube

import (
	"math"
	"strconv"
	"strings"

	"github.com/you/crossfeed/internal/router"
)

// Item is the unified wrapped shape every chat payload is reduced to
// before dispatch. Fields already present on the inner item win over the
// wrapper during hydration, so normalizing twice is a no-op.
type Item struct {
	ID            string
	TimestampUsec string
	Body          map[string]any
}

// NormalizeItem accepts both structural dialects the chat feed produces:
// wrapped ({id, timestampUsec, item: {type, ...}}) and direct (the
// payload is the item with a top-level type). It reports false when
// neither shape fits.
func NormalizeItem(payload map[string]any) (Item, bool) {
	if payload == nil {
		return Item{}, false
	}

	if inner := router.Dig(payload, "item"); inner != nil && router.Text(inner, "type") != "" {
		item := Item{
			ID:            router.Text(payload, "id"),
			TimestampUsec: wrapperUsec(payload),
			Body:          inner,
		}
		hydrate(&item)
		return item, true
	}

	if router.Text(payload, "type") != "" {
		item := Item{
			ID:            router.Text(payload, "id"),
			TimestampUsec: itemUsec(payload),
			Body:          payload,
		}
		hydrate(&item)
		return item, true
	}

	return Item{}, false
}

// hydrate pushes wrapper id/timestampUsec down into the inner item when
// the item lacks them. Values already on the item are never clobbered.
func hydrate(item *Item) {
	if item.ID == "" {
		item.ID = router.Text(item.Body, "id")
	} else if router.Text(item.Body, "id") == "" {
		item.Body["id"] = item.ID
	}

	if inner := itemUsec(item.Body); inner != "" {
		item.TimestampUsec = inner
	} else if item.TimestampUsec != "" {
		item.Body["timestamp_usec"] = item.TimestampUsec
	}
}

func wrapperUsec(payload map[string]any) string {
	if s := router.Text(payload, "timestampUsec"); s != "" {
		return s
	}
	return router.Text(payload, "timestamp_usec")
}

func itemUsec(body map[string]any) string {
	if s := router.Text(body, "timestamp_usec"); s != "" {
		return s
	}
	return router.Text(body, "timestampUsec")
}

// itemTimestamp resolves the canonical timestamp for a normalized item:
// timestamp_usec is microseconds by definition, the looser timestamp
// field gets the magnitude heuristic.
func itemTimestamp(item Item) (string, bool) {
	if item.TimestampUsec != "" {
		if usec, err := strconv.ParseFloat(strings.TrimSpace(item.TimestampUsec), 64); err == nil && usec > 0 && !math.IsInf(usec, 0) {
			return router.FormatMillis(int64(usec / 1000)), true
		}
	}
	if v, present := item.Body["timestamp"]; present {
		if s, ok := v.(string); ok {
			if ts, ok := router.ISOTimestamp(s); ok {
				return ts, true
			}
		}
		if ts, ok := router.EpochToTimestamp(v); ok {
			return ts, true
		}
	}
	return "", false
}

// author resolves the canonical author slot, trying the nested author
// object first and then the flat channel-id fields some item types use.
func author(body map[string]any) (name, id string) {
	if a := router.Dig(body, "author"); a != nil {
		name = router.Text(a, "name")
		id = router.Text(a, "id")
		if id == "" {
			id = router.Text(a, "channelId")
		}
	}
	if id == "" {
		id = router.Text(body, "author_external_channel_id")
	}
	return name, id
}

// hydrateGiftAuthor fills the author slot of a gift-purchase
// announcement from its header when the canonical slot is empty.
func hydrateGiftAuthor(body map[string]any) (name, id string, ok bool) {
	name, id = author(body)
	if name == "" {
		header := router.Dig(body, "header")
		name = router.Text(router.Dig(header, "author_name"), "text")
		if name == "" {
			name = router.Runs(router.Dig(header, "author_name"), "runs")
		}
	}
	return name, id, name != "" && id != ""
}
