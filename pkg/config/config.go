package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the tradestream services
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

type AppConfig struct {
	Port        string `mapstructure:"port"`
	MetricsPort string `mapstructure:"metrics_port"`
	Env         string `mapstructure:"env"` // e.g., "local", "prod"
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type ProcessorConfig struct {
	NumWorkers        int `mapstructure:"num_workers"`
	AnalyticsWindowS  int `mapstructure:"analytics_window_s"`
	AnalyticsCadenceS int `mapstructure:"analytics_cadence_s"`
}

type GeneratorConfig struct {
	Symbols    []string `mapstructure:"symbols"`
	IntervalMs int      `mapstructure:"interval_ms"`
}

// DashboardConfig drives the streaming dashboard client
type DashboardConfig struct {
	APIBaseURL    string   `mapstructure:"api_base_url"`
	WSBaseURL     string   `mapstructure:"ws_base_url"`
	FocusSymbol   string   `mapstructure:"focus_symbol"`
	Watchlist     []string `mapstructure:"watchlist"`
	WindowMinutes int      `mapstructure:"window_minutes"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the system environment first (if it exists) so the
	// variables below are visible to viper as real env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	v.SetDefault("app.port", ":8000")
	v.SetDefault("app.metrics_port", ":9100")
	v.SetDefault("app.env", "local")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_ticks")
	v.SetDefault("kafka.group_id", "tradestream-processor-group")

	v.SetDefault("processor.num_workers", 4)
	v.SetDefault("processor.analytics_window_s", 300)
	v.SetDefault("processor.analytics_cadence_s", 2)

	v.SetDefault("generator.symbols", []string{"AAPL", "MSFT", "AMZN", "TSLA", "GOOG"})
	v.SetDefault("generator.interval_ms", 250)

	v.SetDefault("dashboard.api_base_url", "http://localhost:8000")
	v.SetDefault("dashboard.ws_base_url", "ws://localhost:8000")
	v.SetDefault("dashboard.focus_symbol", "AAPL")
	v.SetDefault("dashboard.watchlist", []string{"AAPL", "MSFT", "AMZN", "TSLA", "GOOG"})
	v.SetDefault("dashboard.window_minutes", 1)

	// Map dot-notation to underscores (e.g., "redis.addr" -> "REDIS_ADDR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper needs explicit binds to map flat env vars onto nested structs
	bindEnv(v, "app.port", "app.metrics_port", "app.env")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id")
	bindEnv(v, "processor.num_workers", "processor.analytics_window_s", "processor.analytics_cadence_s")
	bindEnv(v, "generator.symbols", "generator.interval_ms")
	bindEnv(v, "dashboard.api_base_url", "dashboard.ws_base_url", "dashboard.focus_symbol",
		"dashboard.watchlist", "dashboard.window_minutes")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if cfg.Processor.NumWorkers <= 0 {
		return nil, fmt.Errorf("processor num_workers must be positive")
	}
	if cfg.Dashboard.WindowMinutes <= 0 {
		return nil, fmt.Errorf("dashboard window_minutes must be positive")
	}

	return &cfg, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
