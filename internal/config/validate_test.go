package config

import (
	"encoding/json"
	"strings"
	"testing"
)

func baseRaw() map[string]any {
	return map[string]any{
		"general":  map[string]any{},
		"obs":      map[string]any{},
		"commands": map[string]any{},
	}
}

func TestValidateRequiredSections(t *testing.T) {
	raw := map[string]any{"general": map[string]any{}}
	res := Validate(Normalize(raw), raw)
	if res.IsValid {
		t.Fatalf("expected invalid result for missing sections")
	}
	joined := strings.Join(res.Errors, "\n")
	for _, want := range []string{
		"Missing required configuration section: obs",
		"Missing required configuration section: commands",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected error %q, got %v", want, res.Errors)
		}
	}
}

func TestValidateNilRawTreeMissingAllSections(t *testing.T) {
	res := Validate(Normalize(nil), nil)
	if res.IsValid {
		t.Fatalf("empty config file should not validate")
	}
	joined := strings.Join(res.Errors, "\n")
	for _, want := range []string{
		"Missing required configuration section: general",
		"Missing required configuration section: obs",
		"Missing required configuration section: commands",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected error %q, got %v", want, res.Errors)
		}
	}
}

func TestValidateEnabledPlatformsNeedUsernames(t *testing.T) {
	cases := []struct {
		name    string
		raw     map[string]any
		wantErr string
	}{
		{
			"tiktok enabled without username",
			map[string]any{"tiktok": map[string]any{"enabled": true}},
			"Missing required configuration: TikTok username",
		},
		{
			"youtube enabled without username",
			map[string]any{"youtube": map[string]any{"enabled": true}},
			"Missing required configuration: YouTube username",
		},
		{
			"twitch enabled without client id",
			map[string]any{"twitch": map[string]any{"enabled": true, "username": "u", "channel": "c"}},
			"Missing required configuration: Twitch clientId",
		},
		{
			"twitch enabled without channel",
			map[string]any{"twitch": map[string]any{"enabled": true, "username": "u", "clientId": "id"}},
			"Missing required configuration: Twitch channel",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := baseRaw()
			for k, v := range tc.raw {
				raw[k] = v
			}
			res := Validate(Normalize(raw), raw)
			if res.IsValid {
				t.Fatalf("expected invalid result")
			}
			if !strings.Contains(strings.Join(res.Errors, "\n"), tc.wantErr) {
				t.Fatalf("expected %q in %v", tc.wantErr, res.Errors)
			}
		})
	}
}

func TestValidateStreamElementsChannelRequirement(t *testing.T) {
	raw := baseRaw()
	raw["streamelements"] = map[string]any{"enabled": true}
	res := Validate(Normalize(raw), raw)
	if res.IsValid {
		t.Fatalf("expected streamelements channel requirement to fail")
	}

	raw["streamelements"] = map[string]any{"enabled": true, "twitchChannelId": "123"}
	res = Validate(Normalize(raw), raw)
	if !res.IsValid {
		t.Fatalf("one channel id should satisfy streamelements: %v", res.Errors)
	}
}

func TestValidateRangeWarnings(t *testing.T) {
	raw := baseRaw()
	raw["cooldowns"] = map[string]any{"defaultCooldown": 5}
	raw["retry"] = map[string]any{"baseDelay": 50}
	res := Validate(Normalize(raw), raw)
	if !res.IsValid {
		t.Fatalf("range issues must be warnings, not errors: %v", res.Errors)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", res.Warnings)
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	raw := baseRaw()
	raw["twitch"] = map[string]any{"enabled": true}
	cfg := Normalize(raw)
	before, _ := json.Marshal(cfg)
	_ = Validate(cfg, raw)
	after, _ := json.Marshal(cfg)
	if string(before) != string(after) {
		t.Fatalf("validate mutated the snapshot")
	}
}
