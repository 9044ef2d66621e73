package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`

	MaxFileSize      int64    `yaml:"max_file_size"`
	SupportedFormats []string `yaml:"supported_formats"`

	RegistryBackend string `yaml:"registry_backend"` // memory or postgres
	DatabaseURL     string `yaml:"database_url"`
	MaxTasks        int    `yaml:"max_tasks"` // 0 = unbounded

	RedisAddr string        `yaml:"redis_addr"` // empty disables the mirror
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	KafkaBrokers string `yaml:"kafka_brokers"` // empty disables stage events
	KafkaTopic   string `yaml:"kafka_topic"`

	STTEndpoint    string        `yaml:"stt_endpoint"`
	NEREndpoint    string        `yaml:"ner_endpoint"` // empty selects the rule engine
	EngineTimeout  time.Duration `yaml:"engine_timeout"`
	STTConcurrency int           `yaml:"stt_concurrency"`
	NERConcurrency int           `yaml:"ner_concurrency"`

	MaxConcurrentTasks int    `yaml:"max_concurrent_tasks"`
	FFmpegPath         string `yaml:"ffmpeg_path"`
}

// Load builds the configuration from defaults, an optional YAML file named
// by CONFIG_PATH, and finally environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               "8081",
		Env:                "development",
		MaxFileSize:        100 * 1024 * 1024,
		SupportedFormats:   []string{"wav", "mp3", "ogg", "webm", "m4a", "flac"},
		RegistryBackend:    "memory",
		MaxTasks:           0,
		CacheTTL:           10 * time.Minute,
		KafkaTopic:         "transcription_events",
		STTEndpoint:        "http://localhost:8090",
		EngineTimeout:      2 * time.Minute,
		STTConcurrency:     1,
		NERConcurrency:     1,
		MaxConcurrentTasks: 5,
		FFmpegPath:         "ffmpeg",
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = getEnv("SERVICE_PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.MaxFileSize = getEnvAsInt64("MAX_FILE_SIZE", cfg.MaxFileSize)
	if v := os.Getenv("SUPPORTED_FORMATS"); v != "" {
		cfg.SupportedFormats = strings.Split(v, ",")
	}
	cfg.RegistryBackend = getEnv("REGISTRY_BACKEND", cfg.RegistryBackend)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.MaxTasks = getEnvAsInt("MAX_TASKS", cfg.MaxTasks)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.CacheTTL = getEnvAsDuration("CACHE_TTL", cfg.CacheTTL)
	cfg.KafkaBrokers = getEnv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.STTEndpoint = getEnv("STT_ENDPOINT", cfg.STTEndpoint)
	cfg.NEREndpoint = getEnv("NER_ENDPOINT", cfg.NEREndpoint)
	cfg.EngineTimeout = getEnvAsDuration("ENGINE_TIMEOUT", cfg.EngineTimeout)
	cfg.STTConcurrency = getEnvAsInt("STT_CONCURRENCY", cfg.STTConcurrency)
	cfg.NERConcurrency = getEnvAsInt("NER_CONCURRENCY", cfg.NERConcurrency)
	cfg.MaxConcurrentTasks = getEnvAsInt("MAX_CONCURRENT_TASKS", cfg.MaxConcurrentTasks)
	cfg.FFmpegPath = getEnv("FFMPEG_PATH", cfg.FFmpegPath)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
