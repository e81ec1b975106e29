// Package conf loads and validates service settings.
package conf

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// CAMPAIGNWATCH_ENGINE_CYCLE_INTERVAL=30s.
const EnvPrefix = "CAMPAIGNWATCH"

// Settings is the root configuration document.
type Settings struct {
	Main         MainSettings         `mapstructure:"main" yaml:"main"`
	Log          LogSettings          `mapstructure:"log" yaml:"log"`
	Database     DatabaseSettings     `mapstructure:"database" yaml:"database"`
	Engine       EngineSettings       `mapstructure:"engine" yaml:"engine"`
	Anomaly      AnomalySettings      `mapstructure:"anomaly" yaml:"anomaly"`
	MetricSource MetricSourceSettings `mapstructure:"metricsource" yaml:"metricsource"`
	Competitor   CompetitorSettings   `mapstructure:"competitor" yaml:"competitor"`
	Notification NotificationSettings `mapstructure:"notification" yaml:"notification"`
	HTTP         HTTPSettings         `mapstructure:"http" yaml:"http"`
	Sentry       SentrySettings       `mapstructure:"sentry" yaml:"sentry"`
}

type MainSettings struct {
	Name string `mapstructure:"name" yaml:"name"`
}

type LogSettings struct {
	Level      string `mapstructure:"level" yaml:"level"`
	JSON       bool   `mapstructure:"json" yaml:"json"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"maxsizemb" yaml:"maxsizemb"`
	MaxBackups int    `mapstructure:"maxbackups" yaml:"maxbackups"`
	MaxAgeDays int    `mapstructure:"maxagedays" yaml:"maxagedays"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseSettings selects the backing store for configurations,
// instances, metric samples and model metadata.
type DatabaseSettings struct {
	Type   string         `mapstructure:"type" yaml:"type"` // sqlite or mysql
	SQLite SQLiteSettings `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL  MySQLSettings  `mapstructure:"mysql" yaml:"mysql"`
}

type SQLiteSettings struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type MySQLSettings struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

// EngineSettings controls the evaluation scheduler.
type EngineSettings struct {
	CycleInterval         Duration `mapstructure:"cycleinterval" yaml:"cycleinterval"`
	FetchTimeout          Duration `mapstructure:"fetchtimeout" yaml:"fetchtimeout"`
	PersistTimeout        Duration `mapstructure:"persisttimeout" yaml:"persisttimeout"`
	NotifyTimeout         Duration `mapstructure:"notifytimeout" yaml:"notifytimeout"`
	CompetitorTimeout     Duration `mapstructure:"competitortimeout" yaml:"competitortimeout"`
	MaxConcurrentTenants  int      `mapstructure:"maxconcurrenttenants" yaml:"maxconcurrenttenants"`
	InstanceRetentionDays int      `mapstructure:"instanceretentiondays" yaml:"instanceretentiondays"`
}

// AnomalySettings parameterizes the per-metric isolation forest models.
type AnomalySettings struct {
	EnsembleSize      int      `mapstructure:"ensemblesize" yaml:"ensemblesize"`
	SubSampleSize     int      `mapstructure:"subsamplesize" yaml:"subsamplesize"`
	Contamination     float64  `mapstructure:"contamination" yaml:"contamination"`
	MinTrainingPoints int      `mapstructure:"mintrainingpoints" yaml:"mintrainingpoints"`
	ModelTTL          Duration `mapstructure:"modelttl" yaml:"modelttl"` // 0 keeps models until restart
	Seed              int64    `mapstructure:"seed" yaml:"seed"`
}

// MetricSourceSettings selects where metric series are read from.
type MetricSourceSettings struct {
	Type       string             `mapstructure:"type" yaml:"type"` // sql or prometheus
	Prometheus PrometheusSettings `mapstructure:"prometheus" yaml:"prometheus"`
}

type PrometheusSettings struct {
	URL     string   `mapstructure:"url" yaml:"url"`
	Timeout Duration `mapstructure:"timeout" yaml:"timeout"`
	Step    Duration `mapstructure:"step" yaml:"step"`
	// Queries maps a metric name to a PromQL template. {{tenant}} and
	// {{campaign}} are substituted before the query is sent.
	Queries   map[string]string `mapstructure:"queries" yaml:"queries"`
	RateLimit float64           `mapstructure:"ratelimit" yaml:"ratelimit"` // requests per second, 0 disables
	Burst     int               `mapstructure:"burst" yaml:"burst"`
}

// CompetitorSettings configures the optional competitor signal.
type CompetitorSettings struct {
	Type        string             `mapstructure:"type" yaml:"type"` // none, static or http
	Benchmarks  map[string]float64 `mapstructure:"benchmarks" yaml:"benchmarks"`
	MarketShare float64            `mapstructure:"marketshare" yaml:"marketshare"`
	HTTP        CompetitorHTTP     `mapstructure:"http" yaml:"http"`
}

type CompetitorHTTP struct {
	URL      string   `mapstructure:"url" yaml:"url"`
	Timeout  Duration `mapstructure:"timeout" yaml:"timeout"`
	CacheTTL Duration `mapstructure:"cachettl" yaml:"cachettl"`
}

// NotificationSettings configures alert delivery.
type NotificationSettings struct {
	QueueSize int `mapstructure:"queuesize" yaml:"queuesize"`
	// Channels maps a channel name used in alert configurations (slack,
	// email, ...) to one or more shoutrrr service URLs.
	Channels map[string][]string `mapstructure:"channels" yaml:"channels"`
	MQTT     MQTTSettings        `mapstructure:"mqtt" yaml:"mqtt"`
}

type MQTTSettings struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	Broker   string   `mapstructure:"broker" yaml:"broker"`
	ClientID string   `mapstructure:"clientid" yaml:"clientid"`
	Username string   `mapstructure:"username" yaml:"username"`
	Password string   `mapstructure:"password" yaml:"password"`
	Topic    string   `mapstructure:"topic" yaml:"topic"`
	QoS      int      `mapstructure:"qos" yaml:"qos"`
	Retain   bool     `mapstructure:"retain" yaml:"retain"`
	Timeout  Duration `mapstructure:"timeout" yaml:"timeout"`
}

type HTTPSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

type SentrySettings struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	DSN         string  `mapstructure:"dsn" yaml:"dsn"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRate  float64 `mapstructure:"samplerate" yaml:"samplerate"`
}

var (
	settings   *Settings
	settingsMu sync.RWMutex
)

// GetSettings returns the most recently loaded settings, or nil.
func GetSettings() *Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settings
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("main.name", "campaignwatch")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.maxsizemb", 50)
	v.SetDefault("log.maxbackups", 5)
	v.SetDefault("log.maxagedays", 30)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite.path", "campaignwatch.db")
	v.SetDefault("database.mysql.port", 3306)

	v.SetDefault("engine.cycleinterval", "1m")
	v.SetDefault("engine.fetchtimeout", "10s")
	v.SetDefault("engine.persisttimeout", "3s")
	v.SetDefault("engine.notifytimeout", "5s")
	v.SetDefault("engine.competitortimeout", "5s")
	v.SetDefault("engine.maxconcurrenttenants", 4)
	v.SetDefault("engine.instanceretentiondays", 0)

	v.SetDefault("anomaly.ensemblesize", 100)
	v.SetDefault("anomaly.subsamplesize", 256)
	v.SetDefault("anomaly.contamination", 0.1)
	v.SetDefault("anomaly.mintrainingpoints", 100)
	v.SetDefault("anomaly.modelttl", "0s")
	v.SetDefault("anomaly.seed", 42)

	v.SetDefault("metricsource.type", "sql")
	v.SetDefault("metricsource.prometheus.timeout", "10s")
	v.SetDefault("metricsource.prometheus.step", "1h")
	v.SetDefault("metricsource.prometheus.ratelimit", 5.0)
	v.SetDefault("metricsource.prometheus.burst", 5)

	v.SetDefault("competitor.type", "none")
	v.SetDefault("competitor.http.timeout", "5s")
	v.SetDefault("competitor.http.cachettl", "15m")

	v.SetDefault("notification.queuesize", 1000)
	v.SetDefault("notification.mqtt.topic", "campaignwatch/alerts")
	v.SetDefault("notification.mqtt.clientid", "campaignwatch")
	v.SetDefault("notification.mqtt.timeout", "5s")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.listen", ":8080")

	v.SetDefault("sentry.samplerate", 1.0)
	v.SetDefault("sentry.environment", "production")
}

// Load reads settings from configFile, or from config.yaml in the standard
// search paths when configFile is empty. Environment variables override
// file values. A missing config file is not an error when no explicit path
// is given.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/campaignwatch")
		v.AddConfigPath("/etc/campaignwatch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	settingsMu.Lock()
	settings = s
	settingsMu.Unlock()
	return s, nil
}

// Validate checks cross field constraints.
func (s *Settings) Validate() error {
	switch s.Database.Type {
	case "sqlite":
		if s.Database.SQLite.Path == "" {
			return invalidSetting("database.sqlite.path is required")
		}
	case "mysql":
		if s.Database.MySQL.Host == "" || s.Database.MySQL.Database == "" {
			return invalidSetting("database.mysql.host and database.mysql.database are required")
		}
	default:
		return invalidSetting("unsupported database.type %q", s.Database.Type)
	}

	switch s.MetricSource.Type {
	case "sql":
	case "prometheus":
		if s.MetricSource.Prometheus.URL == "" {
			return invalidSetting("metricsource.prometheus.url is required")
		}
	default:
		return invalidSetting("unsupported metricsource.type %q", s.MetricSource.Type)
	}

	switch s.Competitor.Type {
	case "", "none", "static":
	case "http":
		if s.Competitor.HTTP.URL == "" {
			return invalidSetting("competitor.http.url is required")
		}
	default:
		return invalidSetting("unsupported competitor.type %q", s.Competitor.Type)
	}

	if s.Anomaly.Contamination <= 0 || s.Anomaly.Contamination >= 0.5 {
		return invalidSetting("anomaly.contamination must be in (0, 0.5), got %v", s.Anomaly.Contamination)
	}
	if s.Anomaly.EnsembleSize <= 0 {
		return invalidSetting("anomaly.ensemblesize must be positive")
	}
	if s.Engine.CycleInterval.Std() < time.Second {
		return invalidSetting("engine.cycleinterval must be at least 1s")
	}
	if s.Engine.MaxConcurrentTenants <= 0 {
		s.Engine.MaxConcurrentTenants = 1
	}
	if s.Notification.MQTT.Enabled && s.Notification.MQTT.Broker == "" {
		return invalidSetting("notification.mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

// WriteYAML writes the effective settings as YAML.
func (s *Settings) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return enc.Close()
}

func invalidSetting(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("conf").
		Category(errors.CategoryValidation).
		Build()
}
