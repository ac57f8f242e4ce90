package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// SchedulerConfig controls the reminder poller. Cadence is "interval"
// (poll every IntervalSeconds) or "daily_at" (one tick per day at
// DailyAt, HH:MM in Timezone).
type SchedulerConfig struct {
	Cadence         string `yaml:"cadence"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	DailyAt         string `yaml:"daily_at"`
	Timezone        string `yaml:"timezone"`
	RunInServer     bool   `yaml:"run_in_server"`
}

// Interval returns the poll interval, defaulting to one minute so
// minute-precision reminders are never skipped.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Location resolves the business timezone; reminder times are entered
// and compared in this zone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	tz := s.Timezone
	if tz == "" {
		tz = "Europe/Berlin"
	}
	return time.LoadLocation(tz)
}

type NotifyConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	WebhookURL     string `yaml:"webhook_url"`
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// secrets come from env when present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		cfg.Notify.SendGridAPIKey = key
	}
	return &cfg, nil
}
