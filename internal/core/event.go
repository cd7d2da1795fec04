package core

// Kind is the canonical event type string carried on the bus.
type Kind string

const (
	KindChat             Kind = "platform:chat-message"
	KindFollow           Kind = "platform:follow"
	KindRaid             Kind = "platform:raid"
	KindGift             Kind = "platform:gift"
	KindGiftPaypiggy     Kind = "platform:giftpaypiggy"
	KindPaypiggy         Kind = "platform:paypiggy"
	KindStreamStatus     Kind = "platform:stream-status"
	KindViewerCount      Kind = "platform:viewer-count"
	KindStreamDetected   Kind = "platform:stream-detected"
	KindChatConnected    Kind = "platform:chat-connected"
	KindChatDisconnected Kind = "platform:chat-disconnected"
	KindError            Kind = "platform:error"
)

// Platform identifies the source broadcaster.
type Platform string

const (
	PlatformTikTok  Platform = "tiktok"
	PlatformTwitch  Platform = "twitch"
	PlatformYouTube Platform = "youtube"
)

// Metadata rides on every event. Metadata.Platform always agrees with
// Event.Platform; CorrelationID is process-unique per event.
type Metadata struct {
	Platform      Platform `json:"platform"`
	CorrelationID string   `json:"correlationId"`
}

// CheermoteInfo describes paid animated emotes found in a Twitch cheer.
type CheermoteInfo struct {
	Prefixes []string `json:"prefixes,omitempty"`
	Bits     int      `json:"bits,omitempty"`
	IsMixed  bool     `json:"isMixed,omitempty"`
}

// ErrorInfo carries the failure description on error events.
type ErrorInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ErrorContext names the operation that failed.
type ErrorContext struct {
	Operation string `json:"operation"`
	Detail    string `json:"detail,omitempty"`
}

// Event is the unified cross-platform record emitted on the internal bus.
// Type/Platform/Timestamp/Metadata are always set; the remaining fields are
// variant-specific and omitted from the wire form when unset.
type Event struct {
	Type      Kind     `json:"type"`
	Platform  Platform `json:"platform"`
	Timestamp string   `json:"timestamp"`
	Metadata  Metadata `json:"metadata"`

	Username string `json:"username,omitempty"`
	UserID   string `json:"userId,omitempty"`

	// chat
	Message string   `json:"message,omitempty"`
	Badges  []string `json:"badges,omitempty"`
	Color   string   `json:"color,omitempty"`
	Emotes  []string `json:"emotes,omitempty"`
	RoomID  string   `json:"roomId,omitempty"`

	// raid
	ViewerCount int `json:"viewerCount,omitempty"`

	// paypiggy / giftpaypiggy
	Tier            string `json:"tier,omitempty"`
	Months          int    `json:"months,omitempty"`
	IsGift          bool   `json:"isGift,omitempty"`
	IsRenewal       bool   `json:"isRenewal,omitempty"`
	IsAnonymous     bool   `json:"isAnonymous,omitempty"`
	CumulativeTotal int    `json:"cumulativeTotal,omitempty"`

	// gift
	ID              string         `json:"id,omitempty"`
	GiftType        string         `json:"giftType,omitempty"`
	GiftCount       int            `json:"giftCount,omitempty"`
	Amount          float64        `json:"amount,omitempty"`
	Currency        string         `json:"currency,omitempty"`
	RepeatCount     int            `json:"repeatCount,omitempty"`
	Cheermote       *CheermoteInfo `json:"cheermoteInfo,omitempty"`
	IsAggregated    bool           `json:"isAggregated,omitempty"`
	AggregatedCount int            `json:"aggregatedCount,omitempty"`
	SourceType      string         `json:"sourceType,omitempty"`
	IsSuperChat     bool           `json:"isSuperChat,omitempty"`
	IsSticker       bool           `json:"isSticker,omitempty"`
	IsError         bool           `json:"isError,omitempty"`

	// stream lifecycle
	IsLive    *bool  `json:"isLive,omitempty"`
	StreamID  string `json:"streamId,omitempty"`
	StartedAt string `json:"startedAt,omitempty"`
	Count     int    `json:"count,omitempty"`

	// error
	Error       *ErrorInfo    `json:"error,omitempty"`
	Context     *ErrorContext `json:"context,omitempty"`
	Recoverable bool          `json:"recoverable,omitempty"`
}
