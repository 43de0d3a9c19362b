package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. TICKETFORGE_SERVER_ADDR.
const EnvPrefix = "TICKETFORGE"

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	LLM       LLMConfig      `mapstructure:"llm"`
	Store     StoreConfig    `mapstructure:"store"`
	Artifacts ArtifactConfig `mapstructure:"artifacts"`
	Events    EventsConfig   `mapstructure:"events"`
	Log       LogConfig      `mapstructure:"log"`
	Pipeline  PipelineConfig `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"apiKey"`
	RPS         float64       `mapstructure:"rps"`
	Burst       int           `mapstructure:"burst"`
	MaxAttempts int           `mapstructure:"maxAttempts"`
	RetryDelay  time.Duration `mapstructure:"retryDelay"`
	UsageLedger string        `mapstructure:"usageLedger"`
}

type StoreConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	DSN       string `mapstructure:"dsn"`
	CacheSize int    `mapstructure:"cacheSize"`
}

type ArtifactConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"useSSL"`
}

// EventsConfig selects where run events are published. With Embedded set
// an in-process NATS server is started and URL is ignored; with neither set
// events stay in-process.
type EventsConfig struct {
	URL      string `mapstructure:"url"`
	Prefix   string `mapstructure:"prefix"`
	Embedded bool   `mapstructure:"embedded"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type PipelineConfig struct {
	BatchSize      int   `mapstructure:"batchSize"`
	Concurrency    int   `mapstructure:"concurrency"`
	MaxUploadBytes int64 `mapstructure:"maxUploadBytes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8081")
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.rps", 1.0)
	v.SetDefault("llm.burst", 1)
	v.SetDefault("llm.maxAttempts", 3)
	v.SetDefault("llm.retryDelay", 2*time.Second)
	v.SetDefault("llm.usageLedger", "")
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.dir", "data/projects")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.cacheSize", 256)
	v.SetDefault("artifacts.enabled", false)
	v.SetDefault("artifacts.endpoint", "")
	v.SetDefault("artifacts.region", "us-east-1")
	v.SetDefault("artifacts.accessKey", "")
	v.SetDefault("artifacts.secretKey", "")
	v.SetDefault("artifacts.bucket", "ticketforge-artifacts")
	v.SetDefault("artifacts.useSSL", true)
	v.SetDefault("events.url", "")
	v.SetDefault("events.prefix", "ticketforge")
	v.SetDefault("events.embedded", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("pipeline.batchSize", 3)
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.maxUploadBytes", 10<<20)
}

// Load reads .env, then an optional YAML file at path, then TICKETFORGE_*
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM.APIKey = firstNonEmpty(
		strings.TrimSpace(cfg.LLM.APIKey),
		strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
	)
	// PORT is honoured for container platforms unless the address was set explicitly.
	explicit := v.InConfig("server.addr") || os.Getenv(EnvPrefix+"_SERVER_ADDR") != ""
	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" && !explicit {
		cfg.Server.Addr = normalizeAddr(envPort)
	}
	cfg.Server.Addr = normalizeAddr(cfg.Server.Addr)
	return &cfg, nil
}

func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
