// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Ops      OpsConfig      `mapstructure:"ops"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	DB       DBConfig       `mapstructure:"db"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Report   ReportConfig   `mapstructure:"report"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sources  []SourceConfig `mapstructure:"sources"`
}

// OpsConfig controls the health/metrics HTTP listener.
type OpsConfig struct {
	Port int `mapstructure:"port"`
}

// PipelineConfig governs orchestration behavior across sources.
type PipelineConfig struct {
	Concurrency     int `mapstructure:"concurrency"`
	IntervalSeconds int `mapstructure:"interval_seconds"`
	PersistTimeout  int `mapstructure:"persist_timeout_seconds"`
}

// HTTPConfig configures fetch retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	PerHostRPS       float64 `mapstructure:"per_host_rps"`
	UserAgent        string  `mapstructure:"user_agent"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// ProxyConfig governs outbound proxy rotation.
type ProxyConfig struct {
	Entries          []string `mapstructure:"entries"`
	Strategy         string   `mapstructure:"strategy"`
	FailureThreshold int      `mapstructure:"failure_threshold"`
	CooldownSeconds  int      `mapstructure:"cooldown_seconds"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory store.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	Table           string `mapstructure:"table"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	ConnLifetimeSec int    `mapstructure:"conn_lifetime_seconds"`
}

// ArchiveConfig sets where raw fetched payloads are preserved. GCSBucket
// takes precedence over Dir; both empty disables archiving.
type ArchiveConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Dir       string `mapstructure:"dir"`
	Prefix    string `mapstructure:"prefix"`
}

// ReportConfig holds metadata for run report publication.
type ReportConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceConfig describes one advisory source to ingest.
type SourceConfig struct {
	Name        string            `mapstructure:"name"`
	URL         string            `mapstructure:"url"`
	Kind        string            `mapstructure:"kind"`
	Render      bool              `mapstructure:"render"`
	DateLayout  string            `mapstructure:"date_layout"`
	RequireDate bool              `mapstructure:"require_date"`
	RiskVocab   map[string]string `mapstructure:"risk_vocab"`
	Headers     map[string]string `mapstructure:"headers"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ADVISORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ops.port", 8080)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.interval_seconds", 0)
	v.SetDefault("pipeline.persist_timeout_seconds", 30)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 30000)
	v.SetDefault("http.per_host_rps", 1.0)
	v.SetDefault("http.user_agent", "advisory-pipeline/0.1")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("proxy.strategy", "round_robin")
	v.SetDefault("proxy.failure_threshold", 3)
	v.SetDefault("proxy.cooldown_seconds", 300)
	v.SetDefault("db.table", "advisories")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Ops.Port <= 0 {
		return fmt.Errorf("ops.port must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Proxy.Strategy {
	case "", "round_robin", "random":
	default:
		return fmt.Errorf("proxy.strategy must be round_robin or random, got %q", c.Proxy.Strategy)
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = struct{}{}
		if src.URL == "" {
			return fmt.Errorf("source %q: url is required", src.Name)
		}
		switch advisory.SourceKind(src.Kind) {
		case advisory.KindStateDept, advisory.KindFCDO, advisory.KindSmartraveller,
			advisory.KindReliefWeb, advisory.KindFeed:
		default:
			return fmt.Errorf("source %q: unknown kind %q", src.Name, src.Kind)
		}
		if src.Render && !c.Headless.Enabled {
			return fmt.Errorf("source %q: render requires headless.enabled", src.Name)
		}
	}
	return nil
}

// ToSources converts the configured source list to domain descriptors.
func (c Config) ToSources() []advisory.Source {
	out := make([]advisory.Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		var vocab map[string]advisory.RiskLevel
		if len(src.RiskVocab) > 0 {
			vocab = make(map[string]advisory.RiskLevel, len(src.RiskVocab))
			for phrase, level := range src.RiskVocab {
				vocab[phrase] = advisory.RiskLevel(level)
			}
		}
		var headers http.Header
		if len(src.Headers) > 0 {
			headers = make(http.Header, len(src.Headers))
			for name, value := range src.Headers {
				headers.Set(name, value)
			}
		}
		out = append(out, advisory.Source{
			Name:         src.Name,
			URL:          src.URL,
			Kind:         advisory.SourceKind(src.Kind),
			Render:       src.Render,
			DateLayout:   src.DateLayout,
			RequireDate:  src.RequireDate,
			RiskVocab:    vocab,
			ExtraHeaders: headers,
		})
	}
	return out
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Interval reports the scheduler interval; zero means a single run.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Pipeline.IntervalSeconds) * time.Second
}
