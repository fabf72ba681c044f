// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	TelegramToken  string   `mapstructure:"telegram_token"`
	HyperliquidAPI string   `mapstructure:"hyperliquid_api"`
	MintAddress    string   `mapstructure:"mint_address"`
	RPCEndpoints   []string `mapstructure:"rpc_endpoints"`
	FeedAPI        string   `mapstructure:"feed_api"`
	FeedTokens     []string `mapstructure:"feed_tokens"`

	DataDir    string `mapstructure:"data_dir"`
	Timezone   string `mapstructure:"timezone"`
	HealthPort int    `mapstructure:"health_port"`

	PositionsInterval int `mapstructure:"positions_interval"`
	MintInterval      int `mapstructure:"mint_interval"`
	FeedInterval      int `mapstructure:"feed_interval"`
	SlotMinutes       int `mapstructure:"slot_minutes"`
	SlotWindowMinutes int `mapstructure:"slot_window_minutes"`

	DispatchPerSecond float64 `mapstructure:"dispatch_per_second"`
	DebugLogging      bool    `mapstructure:"debug_logging"`
	LogFile           string  `mapstructure:"log_file"`
}

const (
	DefaultHyperliquidAPI    = "https://api.hyperliquid.xyz"
	DefaultDataDir           = "data"
	DefaultTimezone          = "Asia/Taipei"
	DefaultHealthPort        = 8080
	DefaultPositionsInterval = 60
	DefaultMintInterval      = 30
	DefaultFeedInterval      = 900
	DefaultSlotMinutes       = 30
	DefaultSlotWindowMinutes = 5
	DefaultDispatchPerSec    = 25.0
	DefaultLogFile           = "bot.log"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"hyperliquid_api":     DefaultHyperliquidAPI,
		"data_dir":            DefaultDataDir,
		"timezone":            DefaultTimezone,
		"health_port":         DefaultHealthPort,
		"positions_interval":  DefaultPositionsInterval,
		"mint_interval":       DefaultMintInterval,
		"feed_interval":       DefaultFeedInterval,
		"slot_minutes":        DefaultSlotMinutes,
		"slot_window_minutes": DefaultSlotWindowMinutes,
		"dispatch_per_second": DefaultDispatchPerSec,
		"log_file":            DefaultLogFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

// MintEnabled reports whether the mint ledger watcher should run.
func (c *Config) MintEnabled() bool { return c.MintAddress != "" }

// FeedEnabled reports whether the post feed watcher should run.
func (c *Config) FeedEnabled() bool { return c.FeedAPI != "" }

func validateConfig(cfg *Config) error {
	if cfg.TelegramToken == "" {
		return errors.New("missing telegram_token in configuration")
	}
	if err := validateURL(cfg.HyperliquidAPI, "http"); err != nil {
		return errors.New("invalid hyperliquid_api URL")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return errors.New("invalid timezone")
	}
	if cfg.MintEnabled() && len(cfg.RPCEndpoints) == 0 {
		return errors.New("mint_address set but rpc_endpoints is empty")
	}
	for _, rpcURL := range cfg.RPCEndpoints {
		if err := validateURL(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if cfg.FeedEnabled() {
		if err := validateURL(cfg.FeedAPI, "http"); err != nil {
			return errors.New("invalid feed_api URL")
		}
		if len(cfg.FeedTokens) == 0 {
			return errors.New("feed_api set but feed_tokens is empty")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.PositionsInterval <= 0 {
		return errors.New("invalid positions_interval")
	}
	if cfg.MintInterval <= 0 {
		return errors.New("invalid mint_interval")
	}
	if cfg.FeedInterval <= 0 {
		return errors.New("invalid feed_interval")
	}
	if cfg.SlotMinutes <= 0 || cfg.SlotMinutes > 24*60 {
		return errors.New("invalid slot_minutes")
	}
	if cfg.SlotWindowMinutes <= 0 || cfg.SlotWindowMinutes > cfg.SlotMinutes {
		return errors.New("invalid slot_window_minutes")
	}
	if cfg.DispatchPerSecond <= 0 {
		return errors.New("invalid dispatch_per_second")
	}
	if cfg.HealthPort <= 0 || cfg.HealthPort > 65535 {
		return errors.New("invalid health_port")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("WHALE_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envToken := v.GetString("TELEGRAM_TOKEN")
	if envToken != "" {
		cfg.TelegramToken = envToken
	}

	if list := splitCommaList(v.GetString("RPC_ENDPOINTS")); len(list) > 0 {
		cfg.RPCEndpoints = list
	}
	if list := splitCommaList(v.GetString("FEED_TOKENS")); len(list) > 0 {
		cfg.FeedTokens = list
	}
	return nil
}

func splitCommaList(raw string) []string {
	if raw == "" {
		return nil
	}
	var clean []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	return clean
}
