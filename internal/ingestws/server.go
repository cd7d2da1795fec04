// Package ingestws accepts platform payloads over a websocket, the
// transport stand-in used for development and soak testing. Each frame
// names its platform and event type and carries the raw payload.
package ingestws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"nhooyr.io/websocket"

	"github.com/you/crossfeed/internal/router"
	"github.com/you/crossfeed/internal/tiktok"
	"github.com/you/crossfeed/internal/twitch"
	"github.com/you/crossfeed/internal/youtube"
)

// Frame is one inbound payload envelope.
type Frame struct {
	Platform string         `json:"platform"`
	Type     string         `json:"type"`
	Payload  map[string]any `json:"payload"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Dispatcher fans frames out to the per-platform routers.
type Dispatcher struct {
	TikTok  *tiktok.Router
	Twitch  *twitch.Router
	YouTube *youtube.Router
}

// Dispatch routes one frame. The types connect, disconnect and error
// are transport control frames on every platform; the rest carry
// payloads. Unknown platforms and TikTok event types are errors;
// unknown Twitch and YouTube payload types are the routers' concern.
func (d *Dispatcher) Dispatch(frame Frame) error {
	switch strings.ToLower(frame.Platform) {
	case "tiktok":
		return d.dispatchTikTok(frame)
	case "twitch":
		return d.dispatchTwitch(frame)
	case "youtube":
		return d.dispatchYouTube(frame)
	default:
		return fmt.Errorf("unknown platform %q", frame.Platform)
	}
}

func errorFields(payload map[string]any) (name, message string) {
	name = router.Text(payload, "name")
	if name == "" {
		name = "transport-error"
	}
	return name, router.Text(payload, "message")
}

func (d *Dispatcher) dispatchTwitch(frame Frame) error {
	if d.Twitch == nil {
		return errors.New("twitch router not configured")
	}
	switch frame.Type {
	case "connect":
		d.Twitch.Connected()
	case "disconnect":
		d.Twitch.Disconnected()
	case "error":
		name, message := errorFields(frame.Payload)
		d.Twitch.HandleTransportError(name, message)
	default:
		d.Twitch.HandleNotification(frame.Type, frame.Payload, frame.Metadata)
	}
	return nil
}

func (d *Dispatcher) dispatchYouTube(frame Frame) error {
	if d.YouTube == nil {
		return errors.New("youtube router not configured")
	}
	switch frame.Type {
	case "connect":
		d.YouTube.StreamConnected(router.Text(frame.Payload, "streamId"))
	case "disconnect":
		d.YouTube.StreamDisconnected(router.Text(frame.Payload, "streamId"))
	case "error":
		name, message := errorFields(frame.Payload)
		d.YouTube.HandleTransportError(name, message)
	default:
		d.YouTube.HandleItem(frame.Payload)
	}
	return nil
}

func (d *Dispatcher) dispatchTikTok(frame Frame) error {
	if d.TikTok == nil {
		return errors.New("tiktok router not configured")
	}
	switch frame.Type {
	case "connect":
		d.TikTok.Connected()
	case "disconnect":
		d.TikTok.Disconnected()
	case "error":
		name, message := errorFields(frame.Payload)
		d.TikTok.HandleTransportError(name, message)
	case "chat":
		d.TikTok.HandleChat(frame.Payload)
	case "gift":
		d.TikTok.HandleGift(frame.Payload)
	case "follow":
		d.TikTok.HandleFollow(frame.Payload)
	case "subscribe":
		d.TikTok.HandleSubscribe(frame.Payload)
	case "superfan":
		d.TikTok.HandleSuperfan(frame.Payload)
	case "like":
		d.TikTok.HandleLike(frame.Payload)
	case "roomUser":
		d.TikTok.HandleRoomUser(frame.Payload)
	case "streamEnd":
		d.TikTok.HandleStreamEnd(frame.Payload)
	default:
		return fmt.Errorf("unknown tiktok event type %q", frame.Type)
	}
	return nil
}

// Handler upgrades the request and pumps frames into the dispatcher
// until the peer hangs up. Frames are processed in arrival order, one
// at a time, matching the per-transport serialization the routers
// assume.
func Handler(d *Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			slog.Warn("ingestws: accept failed", "err", err)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "closing")

		slog.Info("ingestws: client connected", "remote", r.RemoteAddr)
		serve(r.Context(), conn, d)
		slog.Info("ingestws: client disconnected", "remote", r.RemoteAddr)
	})
}

func serve(ctx context.Context, conn *websocket.Conn, d *Dispatcher) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Debug("ingestws: malformed frame", "err", err)
			continue
		}
		if err := d.Dispatch(frame); err != nil {
			slog.Debug("ingestws: frame rejected", "err", err,
				"platform", frame.Platform, "type", frame.Type)
		}
	}
}
