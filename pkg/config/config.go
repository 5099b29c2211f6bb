package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-go-golems/chatwidget/pkg/scroll"
	"github.com/go-go-golems/chatwidget/pkg/settings"
	"github.com/go-go-golems/chatwidget/pkg/speech"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"
)

const (
	DefaultBotName     = "Bot"
	DefaultPlaceholder = "Write your message here"
)

// Backends accepted by --settings-backend.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendStatic = "static"
)

// Section slugs.
const (
	WidgetSlug     = "widget"
	AppSettingSlug = "app-setting"
	SpeechSlug     = "speech"
)

type SettingsConfig struct {
	Backend      string
	File         string
	RedisAddr    string
	RedisKey     string
	RedisChannel string
	SQLitePath   string
	PollInterval time.Duration
	// URL seeds the static backend.
	URL string
}

type SpeechConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Recorder []string
}

type Config struct {
	BotName               string
	HeaderText            string
	Placeholder           string
	Preamble              string
	InitialMessagesFile   string
	DisableScrollToBottom bool
	ScrollDelay           time.Duration
	MaxInputLength        int
	ReplyDelay            time.Duration
	Plugins               []string
	MetricsAddr           string

	Settings SettingsConfig
	Speech   SpeechConfig
}

// WidgetSettings is the decoded widget section. Durations stay strings
// until Load parses them.
type WidgetSettings struct {
	BotName               string   `glazed:"bot-name"`
	HeaderText            string   `glazed:"header-text"`
	Placeholder           string   `glazed:"placeholder"`
	Preamble              string   `glazed:"preamble"`
	InitialMessages       string   `glazed:"initial-messages"`
	DisableScrollToBottom bool     `glazed:"disable-scroll-to-bottom"`
	ScrollDelay           string   `glazed:"scroll-delay"`
	MaxInputLength        int      `glazed:"max-input-length"`
	ReplyDelay            string   `glazed:"reply-delay"`
	Plugins               []string `glazed:"plugin"`
	MetricsAddr           string   `glazed:"metrics-addr"`
}

type AppSettingSettings struct {
	Backend      string `glazed:"settings-backend"`
	File         string `glazed:"settings-file"`
	RedisAddr    string `glazed:"settings-redis-addr"`
	RedisKey     string `glazed:"settings-redis-key"`
	RedisChannel string `glazed:"settings-redis-channel"`
	SQLitePath   string `glazed:"settings-sqlite-path"`
	PollInterval string `glazed:"settings-poll-interval"`
	URL          string `glazed:"settings-url"`
}

type SpeechSettings struct {
	APIKey   string   `glazed:"openai-api-key"`
	BaseURL  string   `glazed:"openai-base-url"`
	Model    string   `glazed:"speech-model"`
	Language string   `glazed:"speech-language"`
	Recorder []string `glazed:"speech-recorder"`
}

func NewWidgetSection() (schema.Section, error) {
	return schema.NewSection(
		WidgetSlug,
		"Chat widget",
		schema.WithFields(
			fields.New("bot-name", fields.TypeString,
				fields.WithHelp("Name of the bot shown in the header"),
				fields.WithDefault(DefaultBotName)),
			fields.New("header-text", fields.TypeString,
				fields.WithHelp("Header text, replaces \"Conversation with <bot-name>\""),
				fields.WithDefault("")),
			fields.New("placeholder", fields.TypeString,
				fields.WithHelp("Placeholder of the message input"),
				fields.WithDefault(DefaultPlaceholder)),
			fields.New("preamble", fields.TypeString,
				fields.WithHelp("Markdown shown above the conversation"),
				fields.WithDefault("")),
			fields.New("initial-messages", fields.TypeString,
				fields.WithHelp("YAML file with the messages the conversation starts with"),
				fields.WithDefault("")),
			fields.New("disable-scroll-to-bottom", fields.TypeBool,
				fields.WithHelp("Do not follow new messages"),
				fields.WithDefault(false)),
			fields.New("scroll-delay", fields.TypeString,
				fields.WithHelp("Delay before scrolling to the newest message"),
				fields.WithDefault(scroll.DefaultDelay.String())),
			fields.New("max-input-length", fields.TypeInteger,
				fields.WithHelp("Reject submissions longer than this many characters (0 disables)"),
				fields.WithDefault(0)),
			fields.New("reply-delay", fields.TypeString,
				fields.WithHelp("Delay of the echo action provider"),
				fields.WithDefault("600ms")),
			fields.New("plugin", fields.TypeStringList,
				fields.WithHelp("JavaScript plugin script registering custom messages, widgets and components"),
				fields.WithDefault([]string{})),
			fields.New("metrics-addr", fields.TypeString,
				fields.WithHelp("Serve Prometheus metrics on this address"),
				fields.WithDefault("")),
		),
	)
}

func NewAppSettingSection() (schema.Section, error) {
	return schema.NewSection(
		AppSettingSlug,
		"App setting backend",
		schema.WithFields(
			fields.New("settings-backend", fields.TypeChoice,
				fields.WithHelp("App setting backend"),
				fields.WithChoices(BackendFile, BackendRedis, BackendSQLite, BackendStatic),
				fields.WithDefault(BackendFile)),
			fields.New("settings-file", fields.TypeString,
				fields.WithHelp("App setting file for the file backend"),
				fields.WithDefault("$HOME/.chatwidget/app-setting.yaml")),
			fields.New("settings-redis-addr", fields.TypeString,
				fields.WithHelp("Redis address for the redis backend"),
				fields.WithDefault("localhost:6379")),
			fields.New("settings-redis-key", fields.TypeString,
				fields.WithHelp("Redis key holding the app setting"),
				fields.WithDefault(settings.Key)),
			fields.New("settings-redis-channel", fields.TypeString,
				fields.WithHelp("Redis channel announcing changes (default <key>:changed)"),
				fields.WithDefault("")),
			fields.New("settings-sqlite-path", fields.TypeString,
				fields.WithHelp("Database for the sqlite backend"),
				fields.WithDefault("$HOME/.chatwidget/settings.db")),
			fields.New("settings-poll-interval", fields.TypeString,
				fields.WithHelp("Poll interval of the sqlite backend"),
				fields.WithDefault("1s")),
			fields.New("settings-url", fields.TypeString,
				fields.WithHelp("Backend URL for the static backend"),
				fields.WithDefault("")),
		),
	)
}

func NewSpeechSection() (schema.Section, error) {
	return schema.NewSection(
		SpeechSlug,
		"Speech transcription",
		schema.WithFields(
			fields.New("openai-api-key", fields.TypeSecret,
				fields.WithHelp("API key used for speech transcription (default $OPENAI_API_KEY)"),
				fields.WithDefault("")),
			fields.New("openai-base-url", fields.TypeString,
				fields.WithHelp("Base URL of the transcription API"),
				fields.WithDefault("")),
			fields.New("speech-model", fields.TypeString,
				fields.WithHelp("Transcription model"),
				fields.WithDefault("")),
			fields.New("speech-language", fields.TypeString,
				fields.WithHelp("Transcription language (default derived from the locale)"),
				fields.WithDefault("")),
			fields.New("speech-recorder", fields.TypeStringList,
				fields.WithHelp("Recorder command, "+speech.OutputPlaceholder+" is replaced by the clip path"),
				fields.WithDefault(speech.DefaultRecorder)),
		),
	)
}

// NewSections returns every section Load decodes.
func NewSections() ([]schema.Section, error) {
	widget, err := NewWidgetSection()
	if err != nil {
		return nil, err
	}
	appSetting, err := NewAppSettingSection()
	if err != nil {
		return nil, err
	}
	sp, err := NewSpeechSection()
	if err != nil {
		return nil, err
	}
	return []schema.Section{widget, appSetting, sp}, nil
}

// LoadSettings decodes only the app setting section.
func LoadSettings(parsed *values.Values) (SettingsConfig, error) {
	s := &AppSettingSettings{}
	if err := parsed.DecodeSectionInto(AppSettingSlug, s); err != nil {
		return SettingsConfig{}, err
	}
	poll, err := parseDuration("settings-poll-interval", s.PollInterval)
	if err != nil {
		return SettingsConfig{}, err
	}
	return SettingsConfig{
		Backend:      strings.ToLower(strings.TrimSpace(s.Backend)),
		File:         expand(s.File),
		RedisAddr:    s.RedisAddr,
		RedisKey:     s.RedisKey,
		RedisChannel: s.RedisChannel,
		SQLitePath:   expand(s.SQLitePath),
		PollInterval: poll,
		URL:          s.URL,
	}, nil
}

// Load decodes the widget, app setting and speech sections of parsed.
func Load(parsed *values.Values) (Config, error) {
	w := &WidgetSettings{}
	if err := parsed.DecodeSectionInto(WidgetSlug, w); err != nil {
		return Config{}, err
	}
	sp := &SpeechSettings{}
	if err := parsed.DecodeSectionInto(SpeechSlug, sp); err != nil {
		return Config{}, err
	}
	sc, err := LoadSettings(parsed)
	if err != nil {
		return Config{}, err
	}
	scrollDelay, err := parseDuration("scroll-delay", w.ScrollDelay)
	if err != nil {
		return Config{}, err
	}
	replyDelay, err := parseDuration("reply-delay", w.ReplyDelay)
	if err != nil {
		return Config{}, err
	}

	c := Config{
		BotName:               w.BotName,
		HeaderText:            w.HeaderText,
		Placeholder:           w.Placeholder,
		Preamble:              w.Preamble,
		InitialMessagesFile:   expand(w.InitialMessages),
		DisableScrollToBottom: w.DisableScrollToBottom,
		ScrollDelay:           scrollDelay,
		MaxInputLength:        w.MaxInputLength,
		ReplyDelay:            replyDelay,
		Plugins:               w.Plugins,
		MetricsAddr:           w.MetricsAddr,
		Settings:              sc,
		Speech: SpeechConfig{
			APIKey:   sp.APIKey,
			BaseURL:  sp.BaseURL,
			Model:    sp.Model,
			Language: sp.Language,
			Recorder: sp.Recorder,
		},
	}
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.BotName == "" {
		c.BotName = DefaultBotName
	}
	if c.Placeholder == "" {
		c.Placeholder = DefaultPlaceholder
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Settings.Backend {
	case BackendFile, BackendRedis, BackendSQLite, BackendStatic:
	default:
		return errors.Errorf("unknown settings backend %q", c.Settings.Backend)
	}
	if c.ScrollDelay < 0 {
		return errors.New("scroll delay must not be negative")
	}
	if c.MaxInputLength < 0 {
		return errors.New("max input length must not be negative")
	}
	return nil
}

// Header is the configured header text, or "Conversation with <bot name>".
func (c Config) Header() string {
	if c.HeaderText != "" {
		return c.HeaderText
	}
	return fmt.Sprintf("Conversation with %s", c.BotName)
}

// Validator returns the submission validator, nil when input length is unlimited.
func (c Config) Validator() func(string) bool {
	if c.MaxInputLength == 0 {
		return nil
	}
	limit := c.MaxInputLength
	return func(text string) bool {
		return len([]rune(text)) <= limit
	}
}

func parseDuration(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid --%s", name)
	}
	return d, nil
}

func expand(p string) string {
	if p == "" {
		return ""
	}
	return os.ExpandEnv(p)
}
