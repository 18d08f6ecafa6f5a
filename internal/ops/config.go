package ops

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gapscan/internal/ingest"
	"gapscan/internal/risk"
	"gapscan/internal/scanner"
	"gapscan/pkg/conn"
	"gapscan/pkg/exception"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. GAPSCAN_SCAN_MIN_PRICE.
const EnvPrefix = "GAPSCAN"

// Feed kinds.
const (
	FeedFile      = "file"
	FeedWebSocket = "websocket"
	FeedKafka     = "kafka"
)

// Config mirrors the YAML config layout.
type Config struct {
	Scan      ScanConfig      `yaml:"scan" envconfig:"scan"`
	Risk      risk.Config     `yaml:"risk" envconfig:"risk"`
	Feed      FeedConfig      `yaml:"feed" envconfig:"feed"`
	Session   SessionConfig   `yaml:"session" envconfig:"session"`
	Journal   JournalConfig   `yaml:"journal" envconfig:"journal"`
	Publish   PublishConfig   `yaml:"publish" envconfig:"publish"`
	Server    ServerConfig    `yaml:"server" envconfig:"server"`
	Profiling ProfilingConfig `yaml:"profiling" envconfig:"profiling"`
}

// ScanConfig holds the qualifier thresholds and the periodic scan interval.
type ScanConfig struct {
	scanner.Criteria `yaml:",inline"`
	Interval         time.Duration `yaml:"interval" envconfig:"interval"`
}

// FeedConfig selects and configures the update record source.
type FeedConfig struct {
	Kind         string              `yaml:"kind" envconfig:"kind"`
	PollInterval time.Duration       `yaml:"poll_interval" envconfig:"poll_interval"`
	File         FileFeedConfig      `yaml:"file" envconfig:"file"`
	WebSocket    WebSocketFeedConfig `yaml:"websocket" envconfig:"websocket"`
	Kafka        KafkaFeedConfig     `yaml:"kafka" envconfig:"kafka"`
}

// FileFeedConfig describes a tailed JSONL file.
type FileFeedConfig struct {
	Path          string `yaml:"path" envconfig:"path"`
	Follow        bool   `yaml:"follow" envconfig:"follow"`
	DisableNotify bool   `yaml:"disable_notify" envconfig:"disable_notify"`
}

// WebSocketFeedConfig describes a websocket feed.
type WebSocketFeedConfig struct {
	URL              string            `yaml:"url" envconfig:"url"`
	Headers          map[string]string `yaml:"headers" envconfig:"headers"`
	Subscribe        string            `yaml:"subscribe" envconfig:"subscribe"`
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout" envconfig:"handshake_timeout"`
}

// KafkaFeedConfig describes a kafka topic feed.
type KafkaFeedConfig struct {
	Brokers     []string      `yaml:"brokers" envconfig:"brokers"`
	Topic       string        `yaml:"topic" envconfig:"topic"`
	GroupID     string        `yaml:"group_id" envconfig:"group_id"`
	DialTimeout time.Duration `yaml:"dial_timeout" envconfig:"dial_timeout"`
}

// SessionConfig is the daily trading window periodic scans run in.
// StartHour == EndHour disables the window.
type SessionConfig struct {
	Timezone  string `yaml:"timezone" envconfig:"timezone"`
	StartHour int    `yaml:"start_hour" envconfig:"start_hour"`
	EndHour   int    `yaml:"end_hour" envconfig:"end_hour"`
}

// JournalConfig enables the postgres journal.
type JournalConfig struct {
	Enabled  bool        `yaml:"enabled" envconfig:"enabled"`
	Postgres conn.Option `yaml:"postgres" envconfig:"postgres"`
}

// PublishConfig enables the redis watchlist publisher.
type PublishConfig struct {
	Enabled  bool          `yaml:"enabled" envconfig:"enabled"`
	Addr     string        `yaml:"addr" envconfig:"addr"`
	Password string        `yaml:"password" envconfig:"password"`
	DB       int           `yaml:"db" envconfig:"db"`
	Key      string        `yaml:"key" envconfig:"key"`
	Channel  string        `yaml:"channel" envconfig:"channel"`
	TTL      time.Duration `yaml:"ttl" envconfig:"ttl"`
}

// ServerConfig enables the HTTP status API.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"enabled"`
	Addr    string `yaml:"addr" envconfig:"addr"`
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	PyroscopeAddress string `yaml:"pyroscope_address" envconfig:"pyroscope_address"`
	AppName          string `yaml:"app_name" envconfig:"app_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Scan: ScanConfig{
			Criteria: scanner.Criteria{
				MinPrice:          1,
				MaxPrice:          10,
				MaxFloat:          20_000_000,
				MinRelativeVolume: 5,
				MinGapRatio:       0.05,
			},
			Interval: 5 * time.Second,
		},
		Risk: risk.Config{
			DailyMaxLoss:         0.10,
			MaxConsecutiveLosses: 3,
			RiskPerTrade:         0.05,
		},
		Feed: FeedConfig{
			Kind:         FeedFile,
			PollInterval: 500 * time.Millisecond,
			File: FileFeedConfig{
				Path:   "updates.jsonl",
				Follow: true,
			},
		},
		Session: SessionConfig{
			Timezone:  "America/New_York",
			StartHour: 7,
			EndHour:   11,
		},
		Publish: PublishConfig{
			Addr:    "localhost:6379",
			Key:     "gapscan:watchlist",
			Channel: "gapscan:watchlist",
			TTL:     time.Minute,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Profiling: ProfilingConfig{
			AppName: "gapscan",
		},
	}
}

// Load applies the defaults, the YAML file at path (optional), the env files
// and finally the GAPSCAN_* environment. Without env files a .env in the working
// directory is used when present.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %w", exception.ErrConfigInvalid, path, err)
		}
		if err := Decode(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return Config{}, err
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: env: %w", exception.ErrConfigInvalid, err)
	}

	cfg.Feed.Kind = strings.ToLower(strings.TrimSpace(cfg.Feed.Kind))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode reads YAML on top of cfg. Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%w: yaml: %w", exception.ErrConfigInvalid, err)
	}
	return nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("%w: env file: %w", exception.ErrConfigInvalid, err)
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{exception.ErrConfigInvalid}, args...)...))
	}

	s := c.Scan
	if s.MinPrice < 0 || s.MaxPrice <= 0 || s.MinPrice > s.MaxPrice {
		invalid("scan price band [%v, %v]", s.MinPrice, s.MaxPrice)
	}
	if s.MaxFloat < 0 {
		invalid("scan max_float %v", s.MaxFloat)
	}
	if s.MinRelativeVolume < 0 {
		invalid("scan min_relative_volume %v", s.MinRelativeVolume)
	}
	if s.Interval <= 0 {
		invalid("scan interval %s", s.Interval)
	}

	if c.Risk.DailyMaxLoss < 0 || c.Risk.MaxConsecutiveLosses < 0 || c.Risk.RiskPerTrade < 0 || c.Risk.RiskPerTrade > 1 {
		invalid("risk limits %+v", c.Risk)
	}

	switch c.Feed.Kind {
	case FeedFile:
		if c.Feed.File.Path == "" {
			invalid("feed file path is empty")
		}
	case FeedWebSocket:
		if c.Feed.WebSocket.URL == "" {
			invalid("feed websocket url is empty")
		}
	case FeedKafka:
		if err := c.Feed.KafkaConfig().Validate(); err != nil {
			invalid("feed kafka: %v", err)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", exception.ErrConfigUnknownFeed, c.Feed.Kind))
	}
	if c.Feed.PollInterval < 0 {
		invalid("feed poll_interval %s", c.Feed.PollInterval)
	}

	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		invalid("session timezone %q: %v", c.Session.Timezone, err)
	}
	if c.Session.StartHour < 0 || c.Session.StartHour > 23 || c.Session.EndHour < 0 || c.Session.EndHour > 24 {
		invalid("session hours %d-%d", c.Session.StartHour, c.Session.EndHour)
	}

	if c.Publish.Enabled {
		if c.Publish.Addr == "" {
			invalid("publish addr is empty")
		}
		if c.Publish.Key == "" && c.Publish.Channel == "" {
			invalid("publish needs a key or a channel")
		}
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		invalid("server addr is empty")
	}

	return errors.Join(errs...)
}

// KafkaConfig converts the kafka section.
func (f FeedConfig) KafkaConfig() ingest.KafkaConfig {
	return ingest.KafkaConfig{
		Brokers:     f.Kafka.Brokers,
		Topic:       f.Kafka.Topic,
		GroupID:     f.Kafka.GroupID,
		DialTimeout: f.Kafka.DialTimeout,
	}
}
