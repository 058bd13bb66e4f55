package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string     `yaml:"environment" default:"development"`
	Server      Server     `yaml:"server"`
	Logging     Logging    `yaml:"logging"`
	Metrics     Metrics    `yaml:"metrics"`
	Analysis    Analysis   `yaml:"analysis"`
	Market      Market     `yaml:"market"`
	Oracle      Oracle     `yaml:"oracle"`
	Redis       Redis      `yaml:"redis"`
	Kafka       Kafka      `yaml:"kafka"`
	ClickHouse  ClickHouse `yaml:"clickhouse"`
}

type Server struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"` // zero keeps streams open
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"30s"`
	CORS            bool          `yaml:"cors"`
	RatePerMinute   int           `yaml:"rate_per_minute" default:"30"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"2m"`
}

type Logging struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Output string `yaml:"output" default:"stdout"`
	// CollectorTopic ships aggregated error logs to Kafka when set.
	CollectorTopic    string        `yaml:"collector_topic"`
	CollectorInterval time.Duration `yaml:"collector_interval" default:"30s"`
	CollectorMax      int           `yaml:"collector_max" default:"100"`
}

type Metrics struct {
	Path string `yaml:"path" default:"/metrics"`
}

type Analysis struct {
	TieBreak       string        `yaml:"tie_break" default:"DOWN"`
	CandleLimit    int           `yaml:"candle_limit" default:"200"`
	MinCandles     int           `yaml:"min_candles" default:"50"`
	PublishTimeout time.Duration `yaml:"publish_timeout" default:"5s"`
}

type Market struct {
	Source   string        `yaml:"source" default:"binance"` // binance | clickhouse
	BaseURL  string        `yaml:"base_url" default:"https://api.binance.com"`
	Timeout  time.Duration `yaml:"timeout" default:"10s"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"30s"`
	// Record writes fetched candles to ClickHouse when the source is binance.
	Record bool `yaml:"record"`
}

type Oracle struct {
	Enabled    bool          `yaml:"enabled"`
	Endpoint   string        `yaml:"endpoint" default:"https://api.openai.com/v1"`
	APIKey     string        `yaml:"api_key"`
	Models     []string      `yaml:"models"`
	MaxTokens  int           `yaml:"max_tokens" default:"2000"`
	Timeout    time.Duration `yaml:"timeout" default:"60s"`
	Attempts   int           `yaml:"attempts" default:"2"`
	Backoff    time.Duration `yaml:"backoff" default:"500ms"`
	RatePerMin int           `yaml:"rate_per_min" default:"20"`
	CacheTTL   time.Duration `yaml:"cache_ttl" default:"5m"`
}

type Redis struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host" default:"localhost"`
	Port     int           `yaml:"port" default:"6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size" default:"10"`
	Timeout  time.Duration `yaml:"timeout" default:"3s"`
	L1TTL    time.Duration `yaml:"l1_ttl" default:"15s"`
}

type Kafka struct {
	Enabled          bool     `yaml:"enabled"`
	Brokers          []string `yaml:"brokers"`
	PredictionsTopic string   `yaml:"predictions_topic" default:"signalflow.predictions"`
	RequestsTopic    string   `yaml:"requests_topic" default:"signalflow.requests"`
	RequiredAcks     int      `yaml:"required_acks" default:"1"`
	Compression      string   `yaml:"compression" default:"snappy"`
	ClientID         string   `yaml:"client_id" default:"signalflow"`
	AutoCreateTopics bool     `yaml:"auto_create_topics"`
	Producer         struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"10ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled"`
		GroupID    string        `yaml:"group_id" default:"signalflow"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"64"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ClickHouse struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"signalflow"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

// Load reads and parses a YAML configuration file, filling unset fields with defaults.
func Load(path string) (*Config, error) {
	c, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present) and the YAML file, then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TIE_BREAK"); v != "" {
		c.Analysis.TieBreak = v
	}
	if v := os.Getenv("MARKET_SOURCE"); v != "" {
		c.Market.Source = v
	}
	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		c.Market.BaseURL = v
	}
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		c.Oracle.APIKey = v
		c.Oracle.Enabled = true
	}
	if v := os.Getenv("ORACLE_ENDPOINT"); v != "" {
		c.Oracle.Endpoint = v
	}
	if v := os.Getenv("ORACLE_MODELS"); v != "" {
		c.Oracle.Models = splitList(v)
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch strings.ToUpper(c.Analysis.TieBreak) {
	case "UP", "DOWN":
	default:
		return fmt.Errorf("analysis.tie_break must be 'UP' or 'DOWN', got '%s'", c.Analysis.TieBreak)
	}
	if c.Analysis.CandleLimit < c.Analysis.MinCandles {
		return fmt.Errorf("analysis.candle_limit (%d) must be >= analysis.min_candles (%d)", c.Analysis.CandleLimit, c.Analysis.MinCandles)
	}
	switch c.Market.Source {
	case "binance":
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("market.source 'clickhouse' requires clickhouse.enabled")
		}
	default:
		return fmt.Errorf("market.source must be 'binance' or 'clickhouse', got '%s'", c.Market.Source)
	}
	if c.Market.Record && !c.ClickHouse.Enabled {
		return fmt.Errorf("market.record requires clickhouse.enabled")
	}
	if c.Oracle.Enabled {
		if c.Oracle.APIKey == "" {
			return fmt.Errorf("oracle.api_key is required when oracle is enabled")
		}
		if len(c.Oracle.Models) == 0 {
			return fmt.Errorf("oracle.models cannot be empty when oracle is enabled")
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Consumer.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("kafka.consumer requires kafka.enabled")
	}
	if c.Logging.CollectorTopic != "" && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collector_topic requires kafka.enabled")
	}
	return nil
}
