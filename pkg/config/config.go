// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Database, Redis, Kafka, Crawler, Tokenizer, Indexer,
// Search, Logging, Metrics, Tracing).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists browser origins allowed to call the API; empty
	// disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// DatabaseConfig selects the SQL driver backing the document store and its
// connection pool. Driver is one of "sqlite", "postgres" or "mysql".
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings. When Enabled is false
// query events are not published and crawled listings are written straight
// to the store.
type KafkaConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Brokers         []string      `yaml:"brokers"`
	ConsumerGroup   string        `yaml:"consumerGroup"`
	AnalyticsTopic  string        `yaml:"analyticsTopic"`
	ListingsTopic   string        `yaml:"listingsTopic"`
	CollectorBuffer int           `yaml:"collectorBuffer"`
	BatchSize       int           `yaml:"batchSize"`
	FlushInterval   time.Duration `yaml:"flushInterval"`
}

// CrawlerConfig controls listing discovery and page fetching.
type CrawlerConfig struct {
	SeedURL          string        `yaml:"seedUrl"`
	BaseURL          string        `yaml:"baseUrl"`
	DetailPath       string        `yaml:"detailPath"`
	Language         string        `yaml:"language"`
	MaxApps          int           `yaml:"maxApps"`
	Workers          int           `yaml:"workers"`
	UserAgent        string        `yaml:"userAgent"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
	MaxBodyBytes     int64         `yaml:"maxBodyBytes"`
	RetryAttempts    int           `yaml:"retryAttempts"`
	FailureThreshold int           `yaml:"failureThreshold"`
	TitleClass       string        `yaml:"titleClass"`
	DescriptionClass string        `yaml:"descriptionClass"`
}

// TokenizerConfig selects the text processor shared by index build and
// query. Name is "standard", "whitespace" or "japanese".
type TokenizerConfig struct {
	Name      string `yaml:"name"`
	Lowercase bool   `yaml:"lowercase"`
	Stopwords bool   `yaml:"stopwords"`
	Stem      bool   `yaml:"stem"`
	MinLength int    `yaml:"minLength"`
	Reading   string `yaml:"reading"`
}

// IndexerConfig controls index construction and the snapshot location.
// RebuildDebounce is how long the listing consumer waits after the last
// stored listing before rebuilding.
type IndexerConfig struct {
	SnapshotPath    string        `yaml:"snapshotPath"`
	Workers         int           `yaml:"workers"`
	RebuildDebounce time.Duration `yaml:"rebuildDebounce"`
}

// SearchConfig controls query limits.
type SearchConfig struct {
	DefaultK int `yaml:"defaultK"`
	MaxK     int `yaml:"maxK"`
}

// AnalyticsConfig controls the analytics service.
type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	LatencyWindow    int           `yaml:"latencyWindow"`
	TopN             int           `yaml:"topN"`
}

// AuthConfig guards the search service. With Enabled set, routes that
// change state need an API key. AnonymousRateLimit caps requests per
// RateWindow from each client address that presents no valid key; 0
// disables the cap.
type AuthConfig struct {
	Enabled            bool          `yaml:"enabled"`
	RateWindow         time.Duration `yaml:"rateWindow"`
	AnonymousRateLimit int           `yaml:"anonymousRateLimit"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// TracingConfig toggles span logging for index builds.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config suitable for local development: sqlite storage,
// caching off, Play Store listing pages as the crawl target.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "data/appsearch.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			ConsumerGroup:   "appsearch",
			AnalyticsTopic:  "appsearch-queries",
			ListingsTopic:   "appsearch-listings",
			CollectorBuffer: 10000,
			BatchSize:       100,
			FlushInterval:   time.Second,
		},
		Crawler: CrawlerConfig{
			SeedURL:          "https://play.google.com/store/apps",
			BaseURL:          "https://play.google.com",
			DetailPath:       "/store/apps/details",
			Language:         "en",
			MaxApps:          1000,
			Workers:          8,
			UserAgent:        "appsearch-crawler/1.0",
			FetchTimeout:     15 * time.Second,
			MaxBodyBytes:     4 << 20,
			RetryAttempts:    3,
			FailureThreshold: 10,
			TitleClass:       "id-app-title",
			DescriptionClass: "show-more-content",
		},
		Tokenizer: TokenizerConfig{
			Name:      "standard",
			Lowercase: true,
			Stopwords: true,
			Stem:      true,
			MinLength: 2,
			Reading:   "surface",
		},
		Indexer: IndexerConfig{
			SnapshotPath:    "data/index.asix",
			Workers:         4,
			RebuildDebounce: 5 * time.Second,
		},
		Search: SearchConfig{
			DefaultK: 10,
			MaxK:     100,
		},
		Analytics: AnalyticsConfig{
			Port:             8083,
			SnapshotInterval: time.Minute,
			LatencyWindow:    10000,
			TopN:             10,
		},
		Auth: AuthConfig{
			RateWindow:         time.Minute,
			AnonymousRateLimit: 600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.driver %q: must be sqlite, postgres or mysql", c.Database.Driver)
	}
	switch c.Tokenizer.Name {
	case "standard", "whitespace", "japanese":
	default:
		return fmt.Errorf("tokenizer.name %q: must be standard, whitespace or japanese", c.Tokenizer.Name)
	}
	if c.Search.DefaultK < 0 || c.Search.MaxK < c.Search.DefaultK {
		return fmt.Errorf("search: need 0 <= defaultK (%d) <= maxK (%d)", c.Search.DefaultK, c.Search.MaxK)
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be positive, got %d", c.Crawler.Workers)
	}
	return nil
}

// applyEnvOverrides reads AS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AS_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("AS_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("AS_REDIS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = enabled
		}
	}
	if v := os.Getenv("AS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("AS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AS_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("AS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("AS_CRAWLER_SEED_URL"); v != "" {
		cfg.Crawler.SeedURL = v
	}
	if v := os.Getenv("AS_CRAWLER_MAX_APPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.MaxApps = n
		}
	}
	if v := os.Getenv("AS_TOKENIZER_NAME"); v != "" {
		cfg.Tokenizer.Name = v
	}
	if v := os.Getenv("AS_INDEXER_SNAPSHOT_PATH"); v != "" {
		cfg.Indexer.SnapshotPath = v
	}
	if v := os.Getenv("AS_AUTH_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Enabled = enabled
		}
	}
	if v := os.Getenv("AS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
