package core

import "fmt"

// Factory builds canonical events with an invariant shape. The correlation
// generator and clock are injected so event shapes stay deterministic under
// test. Now is only consulted when a monetization or lifecycle payload
// carries no source timestamp; a valid source timestamp is never replaced.
type Factory struct {
	NewCorrelationID func() string
	Now              func() string
}

func NewFactory(correlate func() string, now func() string) *Factory {
	return &Factory{NewCorrelationID: correlate, Now: now}
}

func (f *Factory) base(kind Kind, platform Platform, timestamp string) Event {
	return Event{
		Type:      kind,
		Platform:  platform,
		Timestamp: timestamp,
		Metadata:  Metadata{Platform: platform, CorrelationID: f.NewCorrelationID()},
	}
}

func missing(kind Kind, field string) error {
	return fmt.Errorf("%s: missing required field %q", kind, field)
}

// ChatPayload carries a validated chat message.
type ChatPayload struct {
	Platform  Platform
	Timestamp string
	Username  string
	UserID    string
	Message   string
	Badges    []string
	Color     string
	Emotes    []string
	RoomID    string
}

func (f *Factory) Chat(p ChatPayload) (Event, error) {
	switch {
	case p.Username == "":
		return Event{}, missing(KindChat, "username")
	case p.UserID == "":
		return Event{}, missing(KindChat, "userId")
	case p.Message == "":
		return Event{}, missing(KindChat, "message")
	case p.Timestamp == "":
		return Event{}, missing(KindChat, "timestamp")
	}
	e := f.base(KindChat, p.Platform, p.Timestamp)
	e.Username = p.Username
	e.UserID = p.UserID
	e.Message = p.Message
	e.Badges = p.Badges
	e.Color = p.Color
	e.Emotes = p.Emotes
	e.RoomID = p.RoomID
	return e, nil
}

// FollowPayload carries a new-follower notification.
type FollowPayload struct {
	Platform  Platform
	Timestamp string
	Username  string
	UserID    string
}

func (f *Factory) Follow(p FollowPayload) (Event, error) {
	switch {
	case p.Username == "":
		return Event{}, missing(KindFollow, "username")
	case p.UserID == "":
		return Event{}, missing(KindFollow, "userId")
	case p.Timestamp == "":
		return Event{}, missing(KindFollow, "timestamp")
	}
	e := f.base(KindFollow, p.Platform, p.Timestamp)
	e.Username = p.Username
	e.UserID = p.UserID
	return e, nil
}

// RaidPayload carries an incoming raid.
type RaidPayload struct {
	Platform    Platform
	Timestamp   string
	Username    string
	UserID      string
	ViewerCount int
}

func (f *Factory) Raid(p RaidPayload) (Event, error) {
	switch {
	case p.Username == "":
		return Event{}, missing(KindRaid, "username")
	case p.UserID == "":
		return Event{}, missing(KindRaid, "userId")
	case p.ViewerCount <= 0:
		return Event{}, missing(KindRaid, "viewerCount")
	case p.Timestamp == "":
		return Event{}, missing(KindRaid, "timestamp")
	}
	e := f.base(KindRaid, p.Platform, p.Timestamp)
	e.Username = p.Username
	e.UserID = p.UserID
	e.ViewerCount = p.ViewerCount
	return e, nil
}

// PaypiggyPayload carries a recurring paid-support event. Tier is passed
// through as-is: some platforms leave it empty for plain subscriptions and
// downstream consumers distinguish sub-variants by tier.
type PaypiggyPayload struct {
	Platform  Platform
	Timestamp string
	Username  string
	UserID    string
	Tier      string
	Months    int
	Message   string
	IsGift    bool
	IsRenewal bool
}

func (f *Factory) Paypiggy(p PaypiggyPayload) (Event, error) {
	switch {
	case p.Username == "":
		return Event{}, missing(KindPaypiggy, "username")
	case p.UserID == "":
		return Event{}, missing(KindPaypiggy, "userId")
	}
	ts := p.Timestamp
	if ts == "" {
		ts = f.Now()
	}
	e := f.base(KindPaypiggy, p.Platform, ts)
	e.Username = p.Username
	e.UserID = p.UserID
	e.Tier = p.Tier
	e.Months = p.Months
	e.Message = p.Message
	e.IsGift = p.IsGift
	// months > 1 always implies a renewal, even when the source says otherwise
	e.IsRenewal = p.IsRenewal || p.Months > 1
	return e, nil
}

// GiftPaypiggyPayload carries a gifted-subscription purchase announcement.
type GiftPaypiggyPayload struct {
	Platform        Platform
	Timestamp       string
	Username        string
	UserID          string
	ID              string
	Tier            string
	GiftCount       int
	IsAnonymous     bool
	CumulativeTotal int
	IsError         bool
}

func (f *Factory) GiftPaypiggy(p GiftPaypiggyPayload) (Event, error) {
	if !p.IsError {
		if p.GiftCount <= 0 {
			return Event{}, missing(KindGiftPaypiggy, "giftCount")
		}
		if !p.IsAnonymous && (p.Username == "" || p.UserID == "") {
			return Event{}, missing(KindGiftPaypiggy, "username")
		}
	}
	ts := p.Timestamp
	if ts == "" {
		ts = f.Now()
	}
	e := f.base(KindGiftPaypiggy, p.Platform, ts)
	e.Username = p.Username
	e.UserID = p.UserID
	e.ID = p.ID
	e.Tier = p.Tier
	e.GiftCount = p.GiftCount
	e.IsGift = true
	e.IsAnonymous = p.IsAnonymous
	e.CumulativeTotal = p.CumulativeTotal
	e.IsError = p.IsError
	return e, nil
}

// GiftPayload carries a one-time monetization event. With IsError set the
// required-field checks relax so a failed parse still surfaces downstream
// with whatever could be derived.
type GiftPayload struct {
	Platform        Platform
	Timestamp       string
	Username        string
	UserID          string
	ID              string
	GiftType        string
	GiftCount       int
	Amount          float64
	Currency        string
	Message         string
	RepeatCount     int
	Cheermote       *CheermoteInfo
	IsAggregated    bool
	AggregatedCount int
	SourceType      string
	IsSuperChat     bool
	IsSticker       bool
	IsError         bool
}

func (f *Factory) Gift(p GiftPayload) (Event, error) {
	if !p.IsError {
		switch {
		case p.ID == "":
			return Event{}, missing(KindGift, "id")
		case p.GiftType == "":
			return Event{}, missing(KindGift, "giftType")
		case p.GiftCount <= 0:
			return Event{}, missing(KindGift, "giftCount")
		case p.Amount <= 0:
			return Event{}, missing(KindGift, "amount")
		case p.Currency == "":
			return Event{}, missing(KindGift, "currency")
		}
	}
	ts := p.Timestamp
	if ts == "" {
		ts = f.Now()
	}
	e := f.base(KindGift, p.Platform, ts)
	e.Username = p.Username
	e.UserID = p.UserID
	e.ID = p.ID
	e.GiftType = p.GiftType
	e.GiftCount = p.GiftCount
	e.Amount = p.Amount
	e.Currency = p.Currency
	e.Message = p.Message
	e.RepeatCount = p.RepeatCount
	e.Cheermote = p.Cheermote
	e.IsAggregated = p.IsAggregated
	e.AggregatedCount = p.AggregatedCount
	e.SourceType = p.SourceType
	e.IsSuperChat = p.IsSuperChat
	e.IsSticker = p.IsSticker
	e.IsError = p.IsError
	return e, nil
}

// StreamStatusPayload reports the broadcaster going live or offline.
type StreamStatusPayload struct {
	Platform  Platform
	Timestamp string
	IsLive    bool
	StreamID  string
	StartedAt string
}

func (f *Factory) StreamStatus(p StreamStatusPayload) Event {
	ts := p.Timestamp
	if ts == "" {
		ts = f.Now()
	}
	e := f.base(KindStreamStatus, p.Platform, ts)
	live := p.IsLive
	e.IsLive = &live
	e.StreamID = p.StreamID
	e.StartedAt = p.StartedAt
	return e
}

// ViewerCountPayload reports the current concurrent viewer count.
type ViewerCountPayload struct {
	Platform  Platform
	Timestamp string
	Count     int
	StreamID  string
}

func (f *Factory) ViewerCount(p ViewerCountPayload) Event {
	ts := p.Timestamp
	if ts == "" {
		ts = f.Now()
	}
	e := f.base(KindViewerCount, p.Platform, ts)
	e.Count = p.Count
	e.StreamID = p.StreamID
	return e
}

func (f *Factory) StreamDetected(platform Platform, streamID string) (Event, error) {
	if streamID == "" {
		return Event{}, missing(KindStreamDetected, "streamId")
	}
	e := f.base(KindStreamDetected, platform, f.Now())
	e.StreamID = streamID
	return e, nil
}

func (f *Factory) ChatConnected(platform Platform, streamID string) Event {
	e := f.base(KindChatConnected, platform, f.Now())
	e.StreamID = streamID
	return e
}

func (f *Factory) ChatDisconnected(platform Platform, streamID string) Event {
	e := f.base(KindChatDisconnected, platform, f.Now())
	e.StreamID = streamID
	return e
}

// ErrorPayload carries a failure surfaced as a first-class event.
type ErrorPayload struct {
	Platform    Platform
	Timestamp   string
	Name        string
	Message     string
	Operation   string
	Detail      string
	Recoverable bool
}

func (f *Factory) Error(p ErrorPayload) (Event, error) {
	switch {
	case p.Name == "":
		return Event{}, missing(KindError, "error.name")
	case p.Message == "":
		return Event{}, missing(KindError, "error.message")
	case p.Operation == "":
		return Event{}, missing(KindError, "context.operation")
	}
	ts := p.Timestamp
	if ts == "" {
		ts = f.Now()
	}
	e := f.base(KindError, p.Platform, ts)
	e.Error = &ErrorInfo{Name: p.Name, Message: p.Message}
	e.Context = &ErrorContext{Operation: p.Operation, Detail: p.Detail}
	e.Recoverable = p.Recoverable
	return e, nil
}
