package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv         = "NEWS_PUBLISHER_CONFIG"
	statePathEnv          = "NEWS_PUBLISHER_STATE_DB"
	telegramTokenEnv      = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv     = "TELEGRAM_CHAT_ID"
	twitterAPIKeyEnv      = "TWITTER_API_KEY"
	twitterAPISecretEnv   = "TWITTER_API_SECRET"
	twitterTokenEnv       = "TWITTER_ACCESS_TOKEN"
	twitterTokenSecretEnv = "TWITTER_ACCESS_TOKEN_SECRET"
	copywriterKeyEnv      = "COPYWRITER_API_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Twitter    TwitterConfig    `yaml:"twitter"`
	Copywriter CopywriterConfig `yaml:"copywriter"`
	Poller     PollerConfig     `yaml:"poller"`
	Selection  SelectionConfig  `yaml:"selection"`
	Briefing   BriefingConfig   `yaml:"briefing"`
	AutoDraft  AutoDraftConfig  `yaml:"autoDraft"`
	Feeds      []FeedConfig     `yaml:"feeds"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StorageConfig locates the embedded state database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// TelegramConfig wires the operator conversation.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// TwitterConfig carries the long-lived OAuth 1.0 credential pairs.
type TwitterConfig struct {
	APIKey            string        `yaml:"apiKey"`
	APISecret         string        `yaml:"apiSecret"`
	AccessToken       string        `yaml:"accessToken"`
	AccessTokenSecret string        `yaml:"accessTokenSecret"`
	Handle            string        `yaml:"handle"`
	ThreadPace        time.Duration `yaml:"threadPace"`
}

// CopywriterConfig defines how to contact the content generator.
type CopywriterConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	PickModel string `yaml:"pickModel"`
	APIKey    string `yaml:"apiKey"`
}

// PollerConfig tunes the inbound-event loop.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	LongPollSec int           `yaml:"longPollSec"`
}

// SelectionConfig bounds the pending selection batch.
type SelectionConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	MaxItems int           `yaml:"maxItems"`
}

// BriefingConfig drives the daily candidate-list job.
type BriefingConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// AutoDraftConfig drives the hourly auto-draft job.
type AutoDraftConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	SeenTTL  time.Duration `yaml:"seenTtl"`
}

// FeedConfig describes a single RSS source.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Lang string `yaml:"lang"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultConfig().Feeds
	}

	return cfg
}

// Validate rejects configurations that cannot drive the approval loop.
// Missing credentials are fatal at startup rather than at first use.
func (c Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram bot token and chat id are required")
	}
	if c.Twitter.APIKey == "" || c.Twitter.APISecret == "" ||
		c.Twitter.AccessToken == "" || c.Twitter.AccessTokenSecret == "" {
		return fmt.Errorf("twitter credential pairs are required")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(statePathEnv); v != "" {
		c.Storage.Path = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}

	if v := os.Getenv(twitterAPIKeyEnv); v != "" {
		c.Twitter.APIKey = v
	}
	if v := os.Getenv(twitterAPISecretEnv); v != "" {
		c.Twitter.APISecret = v
	}
	if v := os.Getenv(twitterTokenEnv); v != "" {
		c.Twitter.AccessToken = v
	}
	if v := os.Getenv(twitterTokenSecretEnv); v != "" {
		c.Twitter.AccessTokenSecret = v
	}

	if v := os.Getenv(copywriterKeyEnv); v != "" {
		c.Copywriter.APIKey = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}
	if override.Storage.Path != "" {
		base.Storage = override.Storage
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != "" {
		base.Telegram.ChatID = override.Telegram.ChatID
	}

	if override.Twitter.APIKey != "" {
		base.Twitter.APIKey = override.Twitter.APIKey
	}
	if override.Twitter.APISecret != "" {
		base.Twitter.APISecret = override.Twitter.APISecret
	}
	if override.Twitter.AccessToken != "" {
		base.Twitter.AccessToken = override.Twitter.AccessToken
	}
	if override.Twitter.AccessTokenSecret != "" {
		base.Twitter.AccessTokenSecret = override.Twitter.AccessTokenSecret
	}
	if override.Twitter.Handle != "" {
		base.Twitter.Handle = override.Twitter.Handle
	}
	if override.Twitter.ThreadPace != 0 {
		base.Twitter.ThreadPace = override.Twitter.ThreadPace
	}

	if override.Copywriter.Endpoint != "" {
		base.Copywriter.Endpoint = override.Copywriter.Endpoint
	}
	if override.Copywriter.Model != "" {
		base.Copywriter.Model = override.Copywriter.Model
	}
	if override.Copywriter.PickModel != "" {
		base.Copywriter.PickModel = override.Copywriter.PickModel
	}
	if override.Copywriter.APIKey != "" {
		base.Copywriter.APIKey = override.Copywriter.APIKey
	}

	if override.Poller.Interval != 0 {
		base.Poller.Interval = override.Poller.Interval
	}
	if override.Poller.LongPollSec != 0 {
		base.Poller.LongPollSec = override.Poller.LongPollSec
	}

	if override.Selection.TTL != 0 {
		base.Selection.TTL = override.Selection.TTL
	}
	if override.Selection.MaxItems != 0 {
		base.Selection.MaxItems = override.Selection.MaxItems
	}

	if override.Briefing.Interval != 0 {
		base.Briefing = override.Briefing
	}
	if override.AutoDraft.Interval != 0 {
		base.AutoDraft = override.AutoDraft
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Storage: StorageConfig{Path: "newspublisher.db"},
		Twitter: TwitterConfig{
			Handle:     "CryptoRizon",
			ThreadPace: time.Second,
		},
		Copywriter: CopywriterConfig{
			Endpoint:  "https://api.anthropic.com/v1/messages",
			Model:     "claude-sonnet-4-5",
			PickModel: "claude-haiku-4-5",
		},
		Poller: PollerConfig{
			Interval:    2 * time.Second,
			LongPollSec: 2,
		},
		Selection: SelectionConfig{
			TTL:      20 * time.Hour,
			MaxItems: 20,
		},
		Briefing:  BriefingConfig{Enabled: true, Interval: 24 * time.Hour},
		AutoDraft: AutoDraftConfig{Enabled: false, Interval: time.Hour, SeenTTL: 24 * time.Hour},
		Feeds: []FeedConfig{
			{Name: "CoinTelegraph", URL: "https://cointelegraph.com/rss", Lang: "EN"},
			{Name: "CoinDesk", URL: "https://www.coindesk.com/arc/outboundfeeds/rss", Lang: "EN"},
			{Name: "The Block", URL: "https://www.theblock.co/rss.xml", Lang: "EN"},
			{Name: "Decrypt", URL: "https://decrypt.co/feed", Lang: "EN"},
			{Name: "Cryptoast", URL: "https://cryptoast.fr/feed/", Lang: "FR"},
			{Name: "JournalDuCoin", URL: "https://journalducoin.com/feed/", Lang: "FR"},
		},
	}
}
