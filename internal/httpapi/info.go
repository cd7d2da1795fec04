package httpapi

import (
	"net/http"
	"runtime"
	"time"
)

// BuildInfo describes the compiled binary.
type BuildInfo struct {
	Version  string
	Revision string
	BuiltAt  time.Time
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	info := map[string]any{
		"version": s.opts.Build.Version,
		"rev":     s.opts.Build.Revision,
		"go":      runtime.Version(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	}
	if !s.opts.Build.BuiltAt.IsZero() {
		info["built_at"] = s.opts.Build.BuiltAt.UTC().Format(time.RFC3339)
	}
	if cfg := s.opts.Config; cfg != nil {
		platforms := make([]string, 0, 3)
		if cfg.TikTok.Enabled {
			platforms = append(platforms, "tiktok")
		}
		if cfg.Twitch.Enabled {
			platforms = append(platforms, "twitch")
		}
		if cfg.YouTube.Enabled {
			platforms = append(platforms, "youtube")
		}
		info["platforms"] = platforms
	}
	writeJSON(w, info)
}
