package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"worldclock-fx/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Display   DisplayConfig   `mapstructure:"display"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SchedulerConfig governs the two periodic ticks.
type SchedulerConfig struct {
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	AlignToStart    bool          `mapstructure:"align_to_start"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// ProviderConfig covers the FX rate endpoint.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AlertsConfig bounds the alert ledger.
type AlertsConfig struct {
	Max        int    `mapstructure:"max"`
	StorageKey string `mapstructure:"storage_key"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// NotifyConfig routes triggered alerts to channels.
type NotifyConfig struct {
	Channels []string       `mapstructure:"channels"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	MailTo   string         `mapstructure:"mail_to"`
	DraftDir string         `mapstructure:"draft_dir"`
	AudioGap time.Duration  `mapstructure:"audio_gap"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// TelegramConfig Telegram 通知の設定。
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// WebhookConfig describes a generic JSON webhook.
type WebhookConfig struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

// DisplayConfig controls the terminal board.
type DisplayConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Clear   bool `mapstructure:"clear"`
	Color   bool `mapstructure:"color"`
}

// Known storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var knownChannels = map[string]struct{}{
	"banner":    {},
	"audio":     {},
	"desktop":   {},
	"maildraft": {},
	"telegram":  {},
	"webhook":   {},
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WORLDCLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "worldclock")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("scheduler.tick_interval", "1s")
	v.SetDefault("scheduler.refresh_interval", "3s")
	v.SetDefault("scheduler.align_to_start", false)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("provider.base_url", "https://open.er-api.com/v6")
	v.SetDefault("provider.request_timeout", "10s")
	v.SetDefault("provider.user_agent", "worldclock/1.0")

	v.SetDefault("alerts.max", 50)
	v.SetDefault("alerts.storage_key", "worldclock_fx_alerts_v1")

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "data/worldclock.db")
	v.SetDefault("storage.max_open_conns", 10)
	v.SetDefault("storage.max_idle_conns", 2)
	v.SetDefault("storage.conn_max_lifetime", "30m")

	v.SetDefault("notify.channels", []string{"banner", "audio", "desktop", "maildraft"})
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.mail_to", "")
	v.SetDefault("notify.draft_dir", "data/drafts")
	v.SetDefault("notify.audio_gap", "220ms")
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("display.enabled", true)
	v.SetDefault("display.clear", true)
	v.SetDefault("display.color", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler.tick_interval must be greater than zero")
	}
	if c.Scheduler.RefreshInterval <= 0 {
		return fmt.Errorf("scheduler.refresh_interval must be greater than zero")
	}
	if c.Alerts.Max <= 0 {
		return fmt.Errorf("alerts.max must be greater than zero")
	}
	if strings.TrimSpace(c.Alerts.StorageKey) == "" {
		return fmt.Errorf("alerts.storage_key must not be empty")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver %q not supported", c.Storage.Driver)
	}

	for _, ch := range c.Notify.Channels {
		if _, ok := knownChannels[ch]; !ok {
			return fmt.Errorf("notify.channels: unknown channel %q", ch)
		}
		switch ch {
		case "telegram":
			if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
				return fmt.Errorf("notify.telegram.bot_token と chat_id を設定してください")
			}
		case "webhook":
			if c.Notify.Webhook.URL == "" {
				return fmt.Errorf("notify.webhook.url must be set when the webhook channel is enabled")
			}
		}
	}
	return nil
}

// HasChannel reports whether a notification channel is enabled.
func (c *Config) HasChannel(name string) bool {
	for _, ch := range c.Notify.Channels {
		if ch == name {
			return true
		}
	}
	return false
}
