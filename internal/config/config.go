package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the loyalty relay
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Loyalty  LoyaltyConfig  `yaml:"loyalty"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoyaltyConfig holds the digital loyalty card provider configuration
type LoyaltyConfig struct {
	BaseURL       string        `yaml:"base_url"`
	ProgramID     string        `yaml:"program_id"`
	Token         string        `yaml:"token"`
	LookupTimeout time.Duration `yaml:"lookup_timeout_seconds"`
	ActionTimeout time.Duration `yaml:"action_timeout_seconds"`
	SettleMargin  time.Duration `yaml:"settle_margin_ms"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// envOverrides holds values that may be supplied through the process environment.
// Unset variables leave the file value untouched.
type envOverrides struct {
	Port             int    `env:"PORT"`
	LoyaltyToken     string `env:"SMARTPASSES_TOKEN"`
	LoyaltyBaseURL   string `env:"LOYALTY_BASE_URL"`
	LoyaltyProgramID string `env:"LOYALTY_PROGRAM_ID"`
	DatabaseHost     string `env:"DATABASE_HOST"`
	DatabasePassword string `env:"DATABASE_PASSWORD"`
	RabbitMQHost     string `env:"RABBITMQ_HOST"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD"`
}

// Default returns the configuration used when a key is absent from the file
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000},
		Loyalty: LoyaltyConfig{
			BaseURL:       "https://pass.center",
			LookupTimeout: 15 * time.Second,
			ActionTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Host: "localhost", Port: 5432},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672},
	}
}

// Load reads configuration from a YAML file and applies environment overrides
func Load(filename string) (*Config, error) {
	cfg, err := LoadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := Default()
	scanner := bufio.NewScanner(file)

	var currentSection string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			currentSection = strings.TrimSuffix(line, ":")
			continue
		}

		if strings.Contains(line, ":") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

			if err := config.setValue(currentSection, key, value); err != nil {
				return nil, fmt.Errorf("failed to set config value %s.%s: %w", currentSection, key, err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides file values with any variables set in the environment
func (c *Config) ApplyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if overrides.Port != 0 {
		c.Server.Port = overrides.Port
	}
	if overrides.LoyaltyToken != "" {
		c.Loyalty.Token = overrides.LoyaltyToken
	}
	if overrides.LoyaltyBaseURL != "" {
		c.Loyalty.BaseURL = strings.TrimSuffix(overrides.LoyaltyBaseURL, "/")
	}
	if overrides.LoyaltyProgramID != "" {
		c.Loyalty.ProgramID = overrides.LoyaltyProgramID
	}
	if overrides.DatabaseHost != "" {
		c.Database.Host = overrides.DatabaseHost
	}
	if overrides.DatabasePassword != "" {
		c.Database.Password = overrides.DatabasePassword
	}
	if overrides.RabbitMQHost != "" {
		c.RabbitMQ.Host = overrides.RabbitMQHost
	}
	if overrides.RabbitMQPassword != "" {
		c.RabbitMQ.Password = overrides.RabbitMQPassword
	}
	return nil
}

// setValue sets a configuration value based on section and key
func (c *Config) setValue(section, key, value string) error {
	switch section {
	case "server":
		return c.setServerValue(key, value)
	case "loyalty":
		return c.setLoyaltyValue(key, value)
	case "database":
		return c.setDatabaseValue(key, value)
	case "rabbitmq":
		return c.setRabbitMQValue(key, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func (c *Config) setServerValue(key, value string) error {
	switch key {
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.Server.Port = port
	default:
		return fmt.Errorf("unknown server key: %s", key)
	}
	return nil
}

// setLoyaltyValue sets loyalty provider configuration values
func (c *Config) setLoyaltyValue(key, value string) error {
	switch key {
	case "base_url":
		c.Loyalty.BaseURL = strings.TrimSuffix(value, "/")
	case "program_id":
		c.Loyalty.ProgramID = value
	case "token":
		c.Loyalty.Token = value
	case "lookup_timeout_seconds":
		d, err := parseDuration(value, time.Second)
		if err != nil {
			return err
		}
		c.Loyalty.LookupTimeout = d
	case "action_timeout_seconds":
		d, err := parseDuration(value, time.Second)
		if err != nil {
			return err
		}
		c.Loyalty.ActionTimeout = d
	case "settle_margin_ms":
		d, err := parseDuration(value, time.Millisecond)
		if err != nil {
			return err
		}
		c.Loyalty.SettleMargin = d
	default:
		return fmt.Errorf("unknown loyalty key: %s", key)
	}
	return nil
}

// setDatabaseValue sets database configuration values
func (c *Config) setDatabaseValue(key, value string) error {
	switch key {
	case "enabled":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid enabled value: %w", err)
		}
		c.Database.Enabled = enabled
	case "host":
		c.Database.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.Database.Port = port
	case "user":
		c.Database.User = value
	case "password":
		c.Database.Password = value
	case "database":
		c.Database.Database = value
	default:
		return fmt.Errorf("unknown database key: %s", key)
	}
	return nil
}

// setRabbitMQValue sets RabbitMQ configuration values
func (c *Config) setRabbitMQValue(key, value string) error {
	switch key {
	case "enabled":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid enabled value: %w", err)
		}
		c.RabbitMQ.Enabled = enabled
	case "host":
		c.RabbitMQ.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.RabbitMQ.Port = port
	case "user":
		c.RabbitMQ.User = value
	case "password":
		c.RabbitMQ.Password = value
	default:
		return fmt.Errorf("unknown rabbitmq key: %s", key)
	}
	return nil
}

func parseDuration(value string, unit time.Duration) (time.Duration, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("duration must not be negative: %d", n)
	}
	return time.Duration(n) * unit, nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
