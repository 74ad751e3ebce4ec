package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
		ReportCacheTTL  time.Duration `yaml:"report_cache_ttl" default:"30s"`
		StreamBuffer    int           `yaml:"stream_buffer" default:"64"`
		RateLimit       struct {
			Capacity     float64 `yaml:"capacity" default:"10"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"1"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Logging struct {
		Level   string `yaml:"level" default:"info"`
		Format  string `yaml:"format" default:"console"`
		Output  string `yaml:"output" default:"stdout"`
		Collect struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"ares.logs"`
			TimeInterval   time.Duration `yaml:"time_interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collect"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"ares"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		BarsTable        string        `yaml:"bars_table" default:"daily_bars"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled" default:"true"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"ares"`
		PoolSize int    `yaml:"pool_size" default:"10"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled" default:"true"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Topics       struct {
			Signals      string `yaml:"signals" default:"ares.signals"`
			ScanRequests string `yaml:"scan_requests" default:"ares.scan.requests"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id" default:"ares-scan"`
			StartOffset string        `yaml:"start_offset" default:"earliest"`
			Workers     int           `yaml:"workers" default:"2"`
			BufferSize  int           `yaml:"buffer_size" default:"16"`
			RetryMax    int           `yaml:"retry_max" default:"2"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic    string        `yaml:"dlq_topic" default:"ares.scan.dlq"`
			MinBytes    int           `yaml:"min_bytes" default:"1"`
			MaxBytes    int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Quant struct {
		RiskFreeRate    float64 `yaml:"risk_free_rate" default:"0.04"`
		TradingDays     int     `yaml:"trading_days" default:"252"`
		Benchmark       string  `yaml:"benchmark" default:"SPY"`
		LookbackDays    int     `yaml:"lookback_days" default:"504"`
		RSIPeriod       int     `yaml:"rsi_period" default:"14"`
		BollingerWindow int     `yaml:"bollinger_window" default:"20"`
		BollingerK      float64 `yaml:"bollinger_k" default:"2"`
	} `yaml:"quant"`
	Portfolio struct {
		LookbackDays         int        `yaml:"lookback_days" default:"504"`
		MaxIterations        int        `yaml:"max_iterations" default:"10000"`
		Tolerance            float64    `yaml:"tolerance" default:"1e-9"`
		FeasibilityTolerance float64    `yaml:"feasibility_tolerance" default:"1e-6"`
		MaxOuterIterations   int        `yaml:"max_outer_iterations" default:"40"`
		Scenarios            []Scenario `yaml:"scenarios"`
	} `yaml:"portfolio"`
	Backtest struct {
		InitialCapital float64 `yaml:"initial_capital" default:"10000"`
		LookbackDays   int     `yaml:"lookback_days" default:"1260"`
	} `yaml:"backtest"`
	Scan struct {
		Timeout time.Duration `yaml:"timeout" default:"2m"`
		LockTTL time.Duration `yaml:"lock_ttl" default:"10m"`
	} `yaml:"scan"`
}

// Scenario is one named allocation preset.
type Scenario struct {
	Name             string  `yaml:"name"`
	Objective        string  `yaml:"objective"`
	TargetVolatility float64 `yaml:"target_volatility"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, decodes YAML over them and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ARES_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if p, err := strconv.Atoi(port); ok && err == nil {
			c.Redis.Port = p
		}
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("ARES_BENCHMARK"); v != "" {
		c.Quant.Benchmark = strings.ToUpper(v)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Quant.Benchmark == "" {
		return fmt.Errorf("quant.benchmark is required")
	}
	if c.Quant.TradingDays <= 0 {
		return fmt.Errorf("quant.trading_days must be positive, got %d", c.Quant.TradingDays)
	}
	if c.Quant.BollingerWindow < 2 {
		return fmt.Errorf("quant.bollinger_window must be at least 2, got %d", c.Quant.BollingerWindow)
	}
	if c.Quant.RSIPeriod < 1 {
		return fmt.Errorf("quant.rsi_period must be positive, got %d", c.Quant.RSIPeriod)
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}
	for i, s := range c.Portfolio.Scenarios {
		switch s.Objective {
		case "max_sharpe", "min_volatility":
		case "target_risk":
			if s.TargetVolatility <= 0 {
				return fmt.Errorf("portfolio.scenarios[%d]: target_volatility must be positive", i)
			}
		default:
			return fmt.Errorf("portfolio.scenarios[%d]: unknown objective '%s'", i, s.Objective)
		}
	}
	return nil
}
