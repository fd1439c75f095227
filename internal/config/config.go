package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Feed     FeedConfig     `yaml:"feed" mapstructure:"feed"`
	Scan     ScanConfig     `yaml:"scan" mapstructure:"scan"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Telegram TelegramConfig `yaml:"telegram" mapstructure:"telegram"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the prediction ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FeedConfig configures the live fixture feed client.
type FeedConfig struct {
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
	Token         string        `yaml:"token" mapstructure:"token"`
	TimeoutSecs   int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerMinute float64       `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	Retry         RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker       BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// RetryConfig tunes retry behavior for feed requests.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// BreakerConfig tunes the circuit breaker guarding the feed.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// LeagueConfig identifies one monitored competition.
type LeagueConfig struct {
	ID   int64  `yaml:"id" mapstructure:"id"`
	Name string `yaml:"name" mapstructure:"name"`
}

// ScanConfig configures the continuous scan loop.
type ScanConfig struct {
	Leagues          map[string]LeagueConfig `yaml:"leagues" mapstructure:"leagues"`
	LookAheadDays    int                     `yaml:"look_ahead_days" mapstructure:"look_ahead_days"`
	IntervalSecs     int                     `yaml:"interval_secs" mapstructure:"interval_secs"`
	FixtureDelaySecs int                     `yaml:"fixture_delay_secs" mapstructure:"fixture_delay_secs"`
	ErrorBackoffSecs int                     `yaml:"error_backoff_secs" mapstructure:"error_backoff_secs"`
	HistoryLimit     int                     `yaml:"history_limit" mapstructure:"history_limit"`
	Over25Min        float64                 `yaml:"over25_min" mapstructure:"over25_min"`
	BTTSMin          float64                 `yaml:"btts_min" mapstructure:"btts_min"`
}

// ScoringConfig configures the scoring engine and its model artifact.
type ScoringConfig struct {
	ModelPath       string  `yaml:"model_path" mapstructure:"model_path"`
	LeaguesPath     string  `yaml:"leagues_path" mapstructure:"leagues_path"`
	IntervalMargin  float64 `yaml:"interval_margin" mapstructure:"interval_margin"`
	BTTSDampening   float64 `yaml:"btts_dampening" mapstructure:"btts_dampening"`
	BTTSDampenBelow float64 `yaml:"btts_dampen_below" mapstructure:"btts_dampen_below"`
}

// TelegramConfig configures outbound prediction alerts.
type TelegramConfig struct {
	Enabled   bool    `yaml:"enabled" mapstructure:"enabled"`
	Token     string  `yaml:"token" mapstructure:"token"`
	ChatID    string  `yaml:"chat_id" mapstructure:"chat_id"`
	MinOver25 float64 `yaml:"min_over25" mapstructure:"min_over25"`
}

// ServerConfig configures the read-only dashboard API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path falls
// back to goalscan.yaml in the working directory; a missing file is fine,
// defaults and environment cover everything.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("goalscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("GOALSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Empty defaults register the secret keys so AutomaticEnv can fill them;
	// Unmarshal only sees keys viper already knows.
	v.SetDefault("feed.token", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("scoring.leagues_path", "")

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "goalscan.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("feed.base_url", "https://api.football-data.org/v4")
	v.SetDefault("feed.timeout_secs", 20)
	v.SetDefault("feed.rate_per_minute", 10)
	v.SetDefault("feed.retry.max_attempts", 3)
	v.SetDefault("feed.retry.initial_backoff_ms", 500)
	v.SetDefault("feed.retry.max_backoff_ms", 30000)
	v.SetDefault("feed.retry.multiplier", 2.0)
	v.SetDefault("feed.retry.jitter_fraction", 0.25)
	v.SetDefault("feed.breaker.failure_threshold", 5)
	v.SetDefault("feed.breaker.reset_timeout_secs", 30)
	v.SetDefault("scan.leagues", defaultLeagues())
	v.SetDefault("scan.look_ahead_days", 1)
	v.SetDefault("scan.interval_secs", 3600)
	v.SetDefault("scan.fixture_delay_secs", 6)
	v.SetDefault("scan.error_backoff_secs", 60)
	v.SetDefault("scan.history_limit", 15)
	v.SetDefault("scan.over25_min", 0.65)
	v.SetDefault("scan.btts_min", 0.60)
	v.SetDefault("scoring.model_path", "model.json")
	v.SetDefault("scoring.interval_margin", 0.08)
	v.SetDefault("scoring.btts_dampening", 0.92)
	v.SetDefault("scoring.btts_dampen_below", 1.0)
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.min_over25", 0.70)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// defaultLeagues lists the five monitored top-flight competitions with
// their feed identifiers.
func defaultLeagues() map[string]any {
	return map[string]any{
		"premier_league": map[string]any{"id": 2021, "name": "Premier League"},
		"la_liga":        map[string]any{"id": 2014, "name": "La Liga"},
		"serie_a":        map[string]any{"id": 2019, "name": "Serie A"},
		"bundesliga":     map[string]any{"id": 2002, "name": "Bundesliga"},
		"ligue_1":        map[string]any{"id": 2015, "name": "Ligue 1"},
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Scan.Over25Min < 0 || c.Scan.Over25Min > 1 {
		return eris.Errorf("config: scan.over25_min %.2f outside [0,1]", c.Scan.Over25Min)
	}
	if c.Scan.BTTSMin < 0 || c.Scan.BTTSMin > 1 {
		return eris.Errorf("config: scan.btts_min %.2f outside [0,1]", c.Scan.BTTSMin)
	}
	if c.Scan.LookAheadDays < 0 {
		return eris.Errorf("config: scan.look_ahead_days must not be negative")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
