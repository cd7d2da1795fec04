package config

import "fmt"

// Result is the outcome of Validate. Errors block startup; warnings do not.
type Result struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate enforces cross-field rules on a normalized snapshot. It is pure:
// it never mutates the config and never fails, errors are values. The raw
// tree is consulted only for section presence, which normalization cannot
// represent (it materializes every section).
func Validate(cfg *Config, raw map[string]any) Result {
	var r Result

	// a nil raw tree (empty config file) has every section missing
	for _, name := range []string{"general", "obs", "commands"} {
		if _, ok := raw[name]; !ok {
			r.errorf("Missing required configuration section: %s", name)
		}
	}

	if cfg.TikTok.Enabled && cfg.TikTok.Username == "" {
		r.errorf("Missing required configuration: TikTok username")
	}
	if cfg.Twitch.Enabled {
		if cfg.Twitch.Username == "" {
			r.errorf("Missing required configuration: Twitch username")
		}
		if cfg.Twitch.ClientID == "" {
			r.errorf("Missing required configuration: Twitch clientId")
		}
		if cfg.Twitch.Channel == "" {
			r.errorf("Missing required configuration: Twitch channel")
		}
	}
	if cfg.YouTube.Enabled && cfg.YouTube.Username == "" {
		r.errorf("Missing required configuration: YouTube username")
	}

	if cfg.StreamElements.Enabled &&
		cfg.StreamElements.YouTubeChannelID == "" && cfg.StreamElements.TwitchChannelID == "" {
		r.errorf("StreamElements requires youtubeChannelId or twitchChannelId when enabled")
	}

	if cfg.Cooldowns.DefaultCooldown < 10 || cfg.Cooldowns.DefaultCooldown > 3600 {
		r.warnf("cooldowns.defaultCooldown %d outside recommended range [10, 3600]", cfg.Cooldowns.DefaultCooldown)
	}
	if cfg.Handcam.MaxSize < 1 || cfg.Handcam.MaxSize > 100 {
		r.warnf("handcam.maxSize %d outside recommended range [1, 100]", cfg.Handcam.MaxSize)
	}
	if cfg.Retry.BaseDelay < 100 || cfg.Retry.BaseDelay > 30000 {
		r.warnf("retry.baseDelay %d outside recommended range [100, 30000]", cfg.Retry.BaseDelay)
	}

	r.IsValid = len(r.Errors) == 0
	return r
}
