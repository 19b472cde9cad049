// Package config loads simulator settings from an optional YAML file with
// environment overrides (MARKETSIM_*), falling back to defaults that run a
// self-contained simulation with no external services.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Engine struct {
	Symbol         string  `mapstructure:"symbol"`
	SlippageBand   float64 `mapstructure:"slippage_band"`
	MaxMatchRounds int     `mapstructure:"max_match_rounds"`
	MaxSliceVolume int64   `mapstructure:"max_slice_volume"`
	InitialPrice   float64 `mapstructure:"initial_price"`
}

type AgentGroup struct {
	Strategy string        `mapstructure:"strategy"`
	Count    int           `mapstructure:"count"`
	Funds    float64       `mapstructure:"funds"`
	Shares   int64         `mapstructure:"shares"`
	Interval time.Duration `mapstructure:"interval"`
}

type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type Postgres struct {
	DSN string `mapstructure:"dsn"`
}

type Config struct {
	LogLevel      string        `mapstructure:"log_level"`
	HTTPAddr      string        `mapstructure:"http_addr"`
	MatchInterval time.Duration `mapstructure:"match_interval"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	AuditBuffer   int           `mapstructure:"audit_buffer"`

	Engine   Engine       `mapstructure:"engine"`
	Agents   []AgentGroup `mapstructure:"agents"`
	Redis    Redis        `mapstructure:"redis"`
	Postgres Postgres     `mapstructure:"postgres"`
}

// Load reads path (optional) plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MARKETSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("simulator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("match_interval", "100ms")
	v.SetDefault("stale_after", "5s")
	v.SetDefault("audit_buffer", 4096)

	v.SetDefault("engine.symbol", "SIM")
	v.SetDefault("engine.slippage_band", 0.10)
	v.SetDefault("engine.max_match_rounds", 10)
	v.SetDefault("engine.max_slice_volume", 500)
	v.SetDefault("engine.initial_price", 100.0)

	v.SetDefault("redis.ttl", "5m")

	v.SetDefault("agents", []map[string]any{
		{"strategy": "random", "count": 6, "funds": 10000.0, "shares": 200, "interval": "200ms"},
		{"strategy": "momentum", "count": 3, "funds": 10000.0, "shares": 100, "interval": "300ms"},
		{"strategy": "contrarian", "count": 3, "funds": 10000.0, "shares": 100, "interval": "300ms"},
		{"strategy": "value", "count": 2, "funds": 20000.0, "shares": 200, "interval": "500ms"},
		{"strategy": "scalper", "count": 2, "funds": 5000.0, "shares": 50, "interval": "150ms"},
	})
}
