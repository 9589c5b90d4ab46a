package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode   `mapstructure:"mode"`
	HTTPAddr string `mapstructure:"http_addr"`
	SiteID   string `mapstructure:"site_id"`

	DBDriver string `mapstructure:"db_driver"`
	DBDSN    string `mapstructure:"db_dsn"`

	AuthHMACSecret string `mapstructure:"auth_hmac_secret"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json|text

	CORSOriginsOnline  []string `mapstructure:"cors_origins_online"`
	CORSOriginsOffline []string `mapstructure:"cors_origins_offline"`

	// autosave throttle, per attempt
	AutosaveRate  float64 `mapstructure:"autosave_rate"`
	AutosaveBurst int     `mapstructure:"autosave_burst"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

var keys = []string{
	"mode", "http_addr", "site_id", "db_driver", "db_dsn", "auth_hmac_secret",
	"log_level", "log_format", "cors_origins_online", "cors_origins_offline",
	"autosave_rate", "autosave_burst", "request_timeout",
}

// Load reads an optional config.yaml (working directory or ./config) and
// lets upper-case environment variables override it.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("mode", string(ModeOffline))
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("site_id", "local")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "")
	v.SetDefault("auth_hmac_secret", "supersecret-dev-key")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("cors_origins_online", "https://lms.mindengage.ai")
	v.SetDefault("cors_origins_offline", "http://localhost:3000,http://localhost:3010,http://localhost:3020")
	v.SetDefault("autosave_rate", 2.0)
	v.SetDefault("autosave_burst", 10)
	v.SetDefault("request_timeout", 30*time.Second)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, err
		}
	}

	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		Mode:               Mode(strings.ToLower(v.GetString("mode"))),
		HTTPAddr:           v.GetString("http_addr"),
		SiteID:             v.GetString("site_id"),
		DBDriver:           v.GetString("db_driver"),
		DBDSN:              v.GetString("db_dsn"),
		AuthHMACSecret:     v.GetString("auth_hmac_secret"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		CORSOriginsOnline:  csv(v.GetString("cors_origins_online")),
		CORSOriginsOffline: csv(v.GetString("cors_origins_offline")),
		AutosaveRate:       v.GetFloat64("autosave_rate"),
		AutosaveBurst:      v.GetInt("autosave_burst"),
		RequestTimeout:     v.GetDuration("request_timeout"),
	}
	if cfg.Mode != ModeOnline {
		cfg.Mode = ModeOffline
	}
	return cfg, nil
}

// CORSOrigins picks the allow-list for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
