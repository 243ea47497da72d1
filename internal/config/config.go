package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the restaurant system
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Events    EventsConfig    `yaml:"events"`
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Composer  ComposerConfig  `yaml:"composer"`
	Board     BoardConfig     `yaml:"board"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	URL      string `yaml:"url"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	OrdersTopic       string   `yaml:"orders_topic"`
	NotificationTopic string   `yaml:"notification_topic"`
	GroupID           string   `yaml:"group_id"`
}

// EventsConfig selects the broker used for order and status events.
type EventsConfig struct {
	Driver string `yaml:"driver"` // rabbitmq | kafka | none
}

type ServerConfig struct {
	Port     int `yaml:"port"`
	MinTable int `yaml:"min_table"`
	MaxTable int `yaml:"max_table"`
}

// APIConfig points terminal clients at the order service.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ComposerConfig struct {
	KeepLastClient bool `yaml:"keep_last_client"`
}

type BoardConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type AuthConfig struct {
	TokenTTL  time.Duration `yaml:"token_ttl"`
	DemoUsers []DemoUser    `yaml:"demo_users"`
}

// DemoUser is created on startup when no user with that username exists.
type DemoUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	FullName string `yaml:"full_name"`
	Role     string `yaml:"role"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Load reads configuration from a YAML file, fills defaults and applies environment overrides.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Host: "localhost", Port: 5432},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672},
		Kafka: KafkaConfig{
			Brokers:           []string{"localhost:9092"},
			OrdersTopic:       "orders",
			NotificationTopic: "order-notifications",
			GroupID:           "notification-subscriber",
		},
		Events: EventsConfig{Driver: "rabbitmq"},
		Server: ServerConfig{Port: 3000, MinTable: 1, MaxTable: 28},
		API:    APIConfig{BaseURL: "http://localhost:3000/api", Timeout: 10 * time.Second},
		Board:  BoardConfig{PollInterval: 30 * time.Second},
		Auth:   AuthConfig{TokenTTL: 12 * time.Hour},
	}
}

// applyEnv overrides file values with environment variables, typically loaded from .env
func (c *Config) applyEnv() error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("RESTAURANT_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("RESTAURANT_EVENTS_DRIVER"); v != "" {
		c.Events.Driver = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("RESTAURANT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RESTAURANT_PORT value: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks values that would otherwise fail far from where they were configured.
func (c *Config) Validate() error {
	if c.Server.MinTable < 1 || c.Server.MaxTable < c.Server.MinTable {
		return fmt.Errorf("invalid table range %d..%d", c.Server.MinTable, c.Server.MaxTable)
	}
	switch c.Events.Driver {
	case "rabbitmq", "kafka", "none":
	default:
		return fmt.Errorf("unknown events driver: %s", c.Events.Driver)
	}
	if c.Board.PollInterval <= 0 {
		return fmt.Errorf("board.poll_interval must be positive")
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
