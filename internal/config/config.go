package config

import "encoding/json"

// Config is the strict typed snapshot of user configuration. It is built
// once at startup by Normalize, validated by Validate, and never mutated
// afterwards; every consumer shares the same read-only reference.
//
// Every section is always present and every field carries its default when
// the raw input leaves it unset. Unknown raw keys are dropped.
type Config struct {
	General          GeneralConfig          `json:"general"`
	HTTP             HTTPConfig             `json:"http"`
	OBS              OBSConfig              `json:"obs"`
	TikTok           PlatformConfig         `json:"tiktok"`
	Twitch           TwitchConfig           `json:"twitch"`
	YouTube          YouTubeConfig          `json:"youtube"`
	Handcam          HandcamConfig          `json:"handcam"`
	Goals            GoalsConfig            `json:"goals"`
	Gifts            GiftsConfig            `json:"gifts"`
	Timing           TimingConfig           `json:"timing"`
	Cooldowns        CooldownsConfig        `json:"cooldowns"`
	TTS              TTSConfig              `json:"tts"`
	Spam             SpamConfig             `json:"spam"`
	DisplayQueue     DisplayQueueConfig     `json:"displayQueue"`
	Retry            RetryConfig            `json:"retry"`
	Intervals        IntervalsConfig        `json:"intervals"`
	ConnectionLimits ConnectionLimitsConfig `json:"connectionLimits"`
	API              APIConfig              `json:"api"`
	Logging          LoggingConfig          `json:"logging"`
	Farewell         FarewellConfig         `json:"farewell"`
	Commands         CommandsConfig         `json:"commands"`
	VFX              VFXConfig              `json:"vfx"`
	StreamElements   StreamElementsConfig   `json:"streamelements"`
	Follows          FollowsConfig          `json:"follows"`
	Raids            RaidsConfig            `json:"raids"`
	Paypiggies       PaypiggiesConfig       `json:"paypiggies"`
	Greetings        GreetingsConfig        `json:"greetings"`
	Shares           SharesConfig           `json:"shares"`
}

// SectionNames lists every recognized section, in snapshot order.
var SectionNames = []string{
	"general", "http", "obs", "tiktok", "twitch", "youtube", "handcam",
	"goals", "gifts", "timing", "cooldowns", "tts", "spam", "displayQueue",
	"retry", "intervals", "connectionLimits", "api", "logging", "farewell",
	"commands", "vfx", "streamelements", "follows", "raids", "paypiggies",
	"greetings", "shares",
}

// PlatformFlags are the per-category gates every platform carries. Absent
// per-platform values inherit from the general section.
type PlatformFlags struct {
	MessagesEnabled    bool `json:"messagesEnabled"`
	CommandsEnabled    bool `json:"commandsEnabled"`
	GreetingsEnabled   bool `json:"greetingsEnabled"`
	FarewellsEnabled   bool `json:"farewellsEnabled"`
	FollowsEnabled     bool `json:"followsEnabled"`
	GiftsEnabled       bool `json:"giftsEnabled"`
	RaidsEnabled       bool `json:"raidsEnabled"`
	PaypiggiesEnabled  bool `json:"paypiggiesEnabled"`
	GreetNewCommentors bool `json:"greetNewCommentors"`
	IgnoreSelfMessages bool `json:"ignoreSelfMessages"`
}

type GeneralConfig struct {
	PlatformFlags
	BotName string `json:"botName,omitempty"`
}

type HTTPConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type OBSConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password,omitempty"`
}

// PlatformConfig is the TikTok section; Twitch and YouTube extend it with
// platform-specific credentials.
type PlatformConfig struct {
	PlatformFlags
	Enabled  bool   `json:"enabled"`
	Username string `json:"username"`
}

type TwitchConfig struct {
	PlatformFlags
	Enabled  bool   `json:"enabled"`
	Username string `json:"username"`
	Channel  string `json:"channel"`
	ClientID string `json:"clientId,omitempty"`
}

type YouTubeConfig struct {
	PlatformFlags
	Enabled               bool   `json:"enabled"`
	Username              string `json:"username"`
	APIKey                string `json:"apiKey,omitempty"`
	StreamDetectionMethod string `json:"streamDetectionMethod"`
}

// StreamDetectionMethods enumerates the allowed youtube.streamDetectionMethod
// values; normalization resets anything else to the default.
var StreamDetectionMethods = []string{"polling", "scrape", "api"}

const defaultStreamDetectionMethod = "polling"

type HandcamConfig struct {
	Enabled  bool   `json:"enabled"`
	MaxSize  int    `json:"maxSize"`
	Position string `json:"position"`
}

type GoalsConfig struct {
	Enabled        bool    `json:"enabled"`
	Currency       string  `json:"currency"`
	Target         float64 `json:"target"`
	StartingAmount float64 `json:"startingAmount"`
}

type GiftsConfig struct {
	MinDiamonds       int `json:"minDiamonds"`
	AggregationWindow int `json:"aggregationWindow"`
}

type TimingConfig struct {
	NotificationDuration int `json:"notificationDuration"`
	MinDisplayTime       int `json:"minDisplayTime"`
}

type CooldownsConfig struct {
	Enabled         bool `json:"enabled"`
	DefaultCooldown int  `json:"defaultCooldown"`
	GlobalCooldown  int  `json:"globalCooldown"`
}

type TTSConfig struct {
	Enabled   bool   `json:"enabled"`
	Voice     string `json:"voice"`
	MaxLength int    `json:"maxLength"`
	Volume    int    `json:"volume"`
}

type SpamConfig struct {
	Enabled     bool `json:"enabled"`
	MaxRepeats  int  `json:"maxRepeats"`
	MuteSeconds int  `json:"muteSeconds"`
}

type DisplayQueueConfig struct {
	MaxSize    int  `json:"maxSize"`
	DropOldest bool `json:"dropOldest"`
}

type RetryConfig struct {
	MaxAttempts int `json:"maxAttempts"`
	BaseDelay   int `json:"baseDelay"`
	MaxDelay    int `json:"maxDelay"`
}

type IntervalsConfig struct {
	StreamPollingInterval int `json:"streamPollingInterval"`
	FullCheckInterval     int `json:"fullCheckInterval"`
	ViewerCountInterval   int `json:"viewerCountInterval"`
}

type ConnectionLimitsConfig struct {
	MaxStreams    int `json:"maxStreams"`
	MaxReconnects int `json:"maxReconnects"`
}

type APIConfig struct {
	Enabled     bool   `json:"enabled"`
	Port        int    `json:"port"`
	CORSOrigins string `json:"corsOrigins"`
}

type LoggingConfig struct {
	Level              string `json:"level"`
	DataLoggingEnabled bool   `json:"dataLoggingEnabled"`
	RawLogPath         string `json:"rawLogPath"`
}

type FarewellConfig struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

// CommandsConfig is sparse: besides the enabled flag, arbitrary keys map to
// command-definition strings ("<triggers>, <mediaSource>[, <keywords>]").
// Definitions pass through normalization verbatim; an external command
// parser interprets them later.
type CommandsConfig struct {
	Enabled     bool              `json:"enabled"`
	Definitions map[string]string `json:"definitions,omitempty"`
}

type VFXConfig struct {
	Enabled  bool   `json:"enabled"`
	Volume   int    `json:"volume"`
	MediaDir string `json:"mediaDir"`
}

type StreamElementsConfig struct {
	Enabled          bool   `json:"enabled"`
	JWTToken         string `json:"jwtToken,omitempty"`
	YouTubeChannelID string `json:"youtubeChannelId"`
	TwitchChannelID  string `json:"twitchChannelId"`
}

type FollowsConfig struct {
	Enabled       bool `json:"enabled"`
	MinAccountAge int  `json:"minAccountAge"`
}

type RaidsConfig struct {
	Enabled    bool `json:"enabled"`
	MinViewers int  `json:"minViewers"`
}

type PaypiggiesConfig struct {
	Enabled    bool `json:"enabled"`
	ShowMonths bool `json:"showMonths"`
}

type GreetingsConfig struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

type SharesConfig struct {
	Enabled bool `json:"enabled"`
}

// optFlags holds per-platform flag values before inheritance resolves them.
type optFlags struct {
	messagesEnabled    *bool
	commandsEnabled    *bool
	greetingsEnabled   *bool
	farewellsEnabled   *bool
	followsEnabled     *bool
	giftsEnabled       *bool
	raidsEnabled       *bool
	paypiggiesEnabled  *bool
	greetNewCommentors *bool
	ignoreSelfMessages *bool
}

func readOptFlags(s map[string]any) optFlags {
	return optFlags{
		messagesEnabled:    parseOptBool(s["messagesEnabled"]),
		commandsEnabled:    parseOptBool(s["commandsEnabled"]),
		greetingsEnabled:   parseOptBool(s["greetingsEnabled"]),
		farewellsEnabled:   parseOptBool(s["farewellsEnabled"]),
		followsEnabled:     parseOptBool(s["followsEnabled"]),
		giftsEnabled:       parseOptBool(s["giftsEnabled"]),
		raidsEnabled:       parseOptBool(s["raidsEnabled"]),
		paypiggiesEnabled:  parseOptBool(s["paypiggiesEnabled"]),
		greetNewCommentors: parseOptBool(s["greetNewCommentors"]),
		ignoreSelfMessages: parseOptBool(s["ignoreSelfMessages"]),
	}
}

func inherit(v *bool, general bool) bool {
	if v != nil {
		return *v
	}
	return general
}

func (o optFlags) resolve(g PlatformFlags) PlatformFlags {
	return PlatformFlags{
		MessagesEnabled:    inherit(o.messagesEnabled, g.MessagesEnabled),
		CommandsEnabled:    inherit(o.commandsEnabled, g.CommandsEnabled),
		GreetingsEnabled:   inherit(o.greetingsEnabled, g.GreetingsEnabled),
		FarewellsEnabled:   inherit(o.farewellsEnabled, g.FarewellsEnabled),
		FollowsEnabled:     inherit(o.followsEnabled, g.FollowsEnabled),
		GiftsEnabled:       inherit(o.giftsEnabled, g.GiftsEnabled),
		RaidsEnabled:       inherit(o.raidsEnabled, g.RaidsEnabled),
		PaypiggiesEnabled:  inherit(o.paypiggiesEnabled, g.PaypiggiesEnabled),
		GreetNewCommentors: inherit(o.greetNewCommentors, g.GreetNewCommentors),
		IgnoreSelfMessages: inherit(o.ignoreSelfMessages, g.IgnoreSelfMessages),
	}
}

// Normalize coerces a raw section tree into the strict typed snapshot. It is
// total: whatever the input looks like, the result has every section, every
// field, and canonical types.
func Normalize(raw map[string]any) *Config {
	cfg := &Config{}

	g := sectionMap(raw, "general")
	cfg.General = GeneralConfig{
		PlatformFlags: PlatformFlags{
			MessagesEnabled:    parseBool(g["messagesEnabled"], true),
			CommandsEnabled:    parseBool(g["commandsEnabled"], true),
			GreetingsEnabled:   parseBool(g["greetingsEnabled"], false),
			FarewellsEnabled:   parseBool(g["farewellsEnabled"], false),
			FollowsEnabled:     parseBool(g["followsEnabled"], true),
			GiftsEnabled:       parseBool(g["giftsEnabled"], true),
			RaidsEnabled:       parseBool(g["raidsEnabled"], true),
			PaypiggiesEnabled:  parseBool(g["paypiggiesEnabled"], true),
			GreetNewCommentors: parseBool(g["greetNewCommentors"], false),
			IgnoreSelfMessages: parseBool(g["ignoreSelfMessages"], true),
		},
		BotName: parseString(g["botName"], ""),
	}

	h := sectionMap(raw, "http")
	cfg.HTTP = HTTPConfig{
		Host: parseString(h["host"], "127.0.0.1"),
		Port: parseInt(h["port"], 8080, numOpts{Min: 1, Max: 65535, HasMin: true, HasMax: true}),
	}

	o := sectionMap(raw, "obs")
	cfg.OBS = OBSConfig{
		Enabled:  parseBool(o["enabled"], false),
		Host:     parseString(o["host"], "127.0.0.1"),
		Port:     parseInt(o["port"], 4455, numOpts{Min: 1, Max: 65535, HasMin: true, HasMax: true}),
		Password: parseSecret(o["password"]),
	}

	tk := sectionMap(raw, "tiktok")
	cfg.TikTok = PlatformConfig{
		PlatformFlags: readOptFlags(tk).resolve(cfg.General.PlatformFlags),
		Enabled:       parseBool(tk["enabled"], false),
		Username:      parseString(tk["username"], ""),
	}

	tw := sectionMap(raw, "twitch")
	cfg.Twitch = TwitchConfig{
		PlatformFlags: readOptFlags(tw).resolve(cfg.General.PlatformFlags),
		Enabled:       parseBool(tw["enabled"], false),
		Username:      parseString(tw["username"], ""),
		Channel:       parseString(tw["channel"], ""),
		ClientID:      parseSecret(tw["clientId"]),
	}

	yt := sectionMap(raw, "youtube")
	cfg.YouTube = YouTubeConfig{
		PlatformFlags:         readOptFlags(yt).resolve(cfg.General.PlatformFlags),
		Enabled:               parseBool(yt["enabled"], false),
		Username:              parseString(yt["username"], ""),
		APIKey:                parseSecret(yt["apiKey"]),
		StreamDetectionMethod: parseEnum(yt["streamDetectionMethod"], defaultStreamDetectionMethod, StreamDetectionMethods...),
	}

	hc := sectionMap(raw, "handcam")
	cfg.Handcam = HandcamConfig{
		Enabled:  parseBool(hc["enabled"], false),
		MaxSize:  parseInt(hc["maxSize"], 30, numOpts{NoZero: true}),
		Position: parseString(hc["position"], "bottom-right"),
	}

	gl := sectionMap(raw, "goals")
	cfg.Goals = GoalsConfig{
		Enabled:        parseBool(gl["enabled"], false),
		Currency:       parseString(gl["currency"], "USD"),
		Target:         parseFloat(gl["target"], 0, numOpts{}),
		StartingAmount: parseFloat(gl["startingAmount"], 0, numOpts{}),
	}

	gf := sectionMap(raw, "gifts")
	cfg.Gifts = GiftsConfig{
		MinDiamonds:       parseInt(gf["minDiamonds"], 0, numOpts{}),
		AggregationWindow: parseInt(gf["aggregationWindow"], 5, numOpts{NoZero: true}),
	}

	tm := sectionMap(raw, "timing")
	cfg.Timing = TimingConfig{
		NotificationDuration: parseInt(tm["notificationDuration"], 5, numOpts{NoZero: true}),
		MinDisplayTime:       parseInt(tm["minDisplayTime"], 2, numOpts{NoZero: true}),
	}

	cd := sectionMap(raw, "cooldowns")
	cfg.Cooldowns = CooldownsConfig{
		Enabled:         parseBool(cd["enabled"], true),
		DefaultCooldown: parseInt(cd["defaultCooldown"], 30, numOpts{NoZero: true}),
		GlobalCooldown:  parseInt(cd["globalCooldown"], 0, numOpts{}),
	}

	tt := sectionMap(raw, "tts")
	cfg.TTS = TTSConfig{
		Enabled:   parseBool(tt["enabled"], false),
		Voice:     parseString(tt["voice"], "default"),
		MaxLength: parseInt(tt["maxLength"], 200, numOpts{NoZero: true}),
		Volume:    parseInt(tt["volume"], 80, numOpts{Min: 0, Max: 100, HasMin: true, HasMax: true}),
	}

	sp := sectionMap(raw, "spam")
	cfg.Spam = SpamConfig{
		Enabled:     parseBool(sp["enabled"], true),
		MaxRepeats:  parseInt(sp["maxRepeats"], 3, numOpts{NoZero: true}),
		MuteSeconds: parseInt(sp["muteSeconds"], 60, numOpts{NoZero: true}),
	}

	dq := sectionMap(raw, "displayQueue")
	cfg.DisplayQueue = DisplayQueueConfig{
		MaxSize:    parseInt(dq["maxSize"], 50, numOpts{NoZero: true}),
		DropOldest: parseBool(dq["dropOldest"], true),
	}

	rt := sectionMap(raw, "retry")
	cfg.Retry = RetryConfig{
		MaxAttempts: parseInt(rt["maxAttempts"], 3, numOpts{NoZero: true}),
		BaseDelay:   parseInt(rt["baseDelay"], 1000, numOpts{NoZero: true}),
		MaxDelay:    parseInt(rt["maxDelay"], 30000, numOpts{NoZero: true}),
	}

	iv := sectionMap(raw, "intervals")
	cfg.Intervals = IntervalsConfig{
		StreamPollingInterval: parseInt(iv["streamPollingInterval"], 60, numOpts{NoZero: true}),
		FullCheckInterval:     parseInt(iv["fullCheckInterval"], 300, numOpts{NoZero: true}),
		ViewerCountInterval:   parseInt(iv["viewerCountInterval"], 30, numOpts{NoZero: true}),
	}

	cl := sectionMap(raw, "connectionLimits")
	cfg.ConnectionLimits = ConnectionLimitsConfig{
		MaxStreams:    parseInt(cl["maxStreams"], 2, numOpts{Min: 1, Max: 10, HasMin: true, HasMax: true}),
		MaxReconnects: parseInt(cl["maxReconnects"], 10, numOpts{NoZero: true}),
	}

	ap := sectionMap(raw, "api")
	cfg.API = APIConfig{
		Enabled:     parseBool(ap["enabled"], false),
		Port:        parseInt(ap["port"], 3000, numOpts{Min: 1, Max: 65535, HasMin: true, HasMax: true}),
		CORSOrigins: parseString(ap["corsOrigins"], ""),
	}

	lg := sectionMap(raw, "logging")
	cfg.Logging = LoggingConfig{
		Level:              parseEnum(lg["level"], "info", "debug", "info", "warn", "error"),
		DataLoggingEnabled: parseBool(lg["dataLoggingEnabled"], false),
		RawLogPath:         parseString(lg["rawLogPath"], "rawlog.db"),
	}

	fw := sectionMap(raw, "farewell")
	cfg.Farewell = FarewellConfig{
		Enabled: parseBool(fw["enabled"], false),
		Message: parseString(fw["message"], ""),
	}

	cfg.Commands = normalizeCommands(sectionMap(raw, "commands"))

	vx := sectionMap(raw, "vfx")
	cfg.VFX = VFXConfig{
		Enabled:  parseBool(vx["enabled"], false),
		Volume:   parseInt(vx["volume"], 50, numOpts{Min: 0, Max: 100, HasMin: true, HasMax: true}),
		MediaDir: parseString(vx["mediaDir"], ""),
	}

	se := sectionMap(raw, "streamelements")
	cfg.StreamElements = StreamElementsConfig{
		Enabled:          parseBool(se["enabled"], false),
		JWTToken:         parseSecret(se["jwtToken"]),
		YouTubeChannelID: parseString(se["youtubeChannelId"], ""),
		TwitchChannelID:  parseString(se["twitchChannelId"], ""),
	}

	fl := sectionMap(raw, "follows")
	cfg.Follows = FollowsConfig{
		Enabled:       parseBool(fl["enabled"], true),
		MinAccountAge: parseInt(fl["minAccountAge"], 0, numOpts{}),
	}

	rd := sectionMap(raw, "raids")
	cfg.Raids = RaidsConfig{
		Enabled:    parseBool(rd["enabled"], true),
		MinViewers: parseInt(rd["minViewers"], 0, numOpts{}),
	}

	pp := sectionMap(raw, "paypiggies")
	cfg.Paypiggies = PaypiggiesConfig{
		Enabled:    parseBool(pp["enabled"], true),
		ShowMonths: parseBool(pp["showMonths"], true),
	}

	gr := sectionMap(raw, "greetings")
	cfg.Greetings = GreetingsConfig{
		Enabled: parseBool(gr["enabled"], false),
		Message: parseString(gr["message"], "Welcome, {user}!"),
	}

	sh := sectionMap(raw, "shares")
	cfg.Shares = SharesConfig{
		Enabled: parseBool(sh["enabled"], true),
	}

	return cfg
}

func normalizeCommands(s map[string]any) CommandsConfig {
	out := CommandsConfig{
		Enabled: parseBool(s["enabled"], true),
	}
	for key, v := range s {
		if key == "enabled" {
			continue
		}
		if key == "definitions" {
			// re-normalizing a snapshot round-trips the nested map
			for k, dv := range sectionMap(s, "definitions") {
				if def, ok := dv.(string); ok {
					out.addDefinition(k, def)
				}
			}
			continue
		}
		// definition strings pass through verbatim, no reformatting
		if def, ok := v.(string); ok {
			out.addDefinition(key, def)
		}
	}
	return out
}

func (c *CommandsConfig) addDefinition(name, def string) {
	if c.Definitions == nil {
		c.Definitions = make(map[string]string)
	}
	c.Definitions[name] = def
}

// Redacted returns the snapshot with secrets masked, for status endpoints
// and startup logging.
func (c *Config) Redacted() map[string]any {
	data, _ := json.Marshal(c)
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	redactKey(out, "obs", "password")
	redactKey(out, "twitch", "clientId")
	redactKey(out, "youtube", "apiKey")
	redactKey(out, "streamelements", "jwtToken")
	return out
}

func redactKey(tree map[string]any, section, key string) {
	s, ok := tree[section].(map[string]any)
	if !ok {
		return
	}
	if v, ok := s[key].(string); ok && v != "" {
		s[key] = "***REDACTED***"
	}
}

// RedactedJSON renders the redacted snapshot for logs.
func (c *Config) RedactedJSON() []byte {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return data
}
