package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backend selection.
const (
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
	StorageMemory   = "memory"
)

// Device authentication modes for the ingest path.
const (
	// DeviceAuthShared compares the presented token against a single
	// fleet-wide secret.
	DeviceAuthShared = "shared"
	// DeviceAuthPerDevice verifies the presented token against the
	// device's own stored secret hash.
	DeviceAuthPerDevice = "perdevice"
)

// Default visibility for unauthenticated or unrecognized callers.
const (
	VisibilityAll  = "all"
	VisibilityNone = "none"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Database configuration (postgres backend)
	Database DatabaseConfig `json:"database"`

	// Mongo configuration (mongo backend)
	Mongo MongoConfig `json:"mongo"`

	// MQTT configuration (broker ingest path)
	MQTT MQTTConfig `json:"mqtt"`

	// Auth configuration
	Auth AuthConfig `json:"auth"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// StorageConfig selects the telemetry store backend
type StorageConfig struct {
	Backend string `json:"backend"` // postgres, mongo or memory
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// MongoConfig holds MongoDB-related configuration
type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	Enabled     bool          `json:"enabled"`
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Topic       string        `json:"topic"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// AuthConfig holds authentication-related configuration
type AuthConfig struct {
	JWTSecretKey  string        `json:"jwt_secret_key"`
	TokenDuration time.Duration `json:"token_duration"`

	// AdminToken gates all administrative endpoints. The process refuses
	// to start without it.
	AdminToken string `json:"admin_token"`

	// DeviceAuthMode is shared or perdevice; DeviceToken is the
	// fleet-wide secret used in shared mode.
	DeviceAuthMode string `json:"device_auth_mode"`
	DeviceToken    string `json:"device_token"`

	// DefaultVisibility controls what unauthenticated callers (or callers
	// whose token carries no usable identity) see on reads: all or none.
	DefaultVisibility string `json:"default_visibility"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// Load loads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	if err := godotenv.Load(); err != nil {
		// Silently ignore .env file loading errors
		// This allows the application to work with environment variables set directly
	}

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "9002"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", StoragePostgres),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", ""),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "telemetry"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DB", "telemetry"),
		},
		MQTT: MQTTConfig{
			Enabled:     getBool("MQTT_ENABLED", false),
			BrokerHost:  getEnv("BROKER_HOST", "localhost"),
			BrokerPort:  getInt("BROKER_PORT", 1883),
			BrokerUser:  getEnv("BROKER_USER", ""),
			BrokerPass:  getEnv("BROKER_PASS", ""),
			UseTLS:      getBool("BROKER_TLS", false),
			CACertPath:  getEnv("BROKER_CA_FILE", ""),
			Topic:       getEnv("MQTT_TOPIC", "telemetry/#"),
			ClientID:    getEnv("MQTT_CLIENT_ID", "telemetry-ingestor"),
			SharedGroup: getEnv("MQTT_SHARED_GROUP", ""),
			KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecretKey:      getEnv("JWT_SECRET", ""),
			TokenDuration:     getDuration("JWT_TOKEN_DURATION", 12*time.Hour),
			AdminToken:        getEnv("ADMIN_TOKEN", ""),
			DeviceAuthMode:    getEnv("DEVICE_AUTH_MODE", DeviceAuthShared),
			DeviceToken:       getEnv("DEVICE_TOKEN", ""),
			DefaultVisibility: getEnv("DEFAULT_VISIBILITY", VisibilityAll),
		},
		Logging: LoggingConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			Format:       getEnv("LOG_FORMAT", "text"),
			Output:       getEnv("LOG_OUTPUT", "stdout"),
			EnableCaller: getBool("LOG_ENABLE_CALLER", false),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration. Secrets are fail-closed: the
// process refuses to start when one that is needed is unset.
func (c *Config) Validate() error {
	if c.Auth.JWTSecretKey == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.AdminToken == "" {
		return fmt.Errorf("ADMIN_TOKEN is required")
	}
	switch c.Auth.DeviceAuthMode {
	case DeviceAuthShared:
		if c.Auth.DeviceToken == "" {
			return fmt.Errorf("DEVICE_TOKEN is required when DEVICE_AUTH_MODE=%s", DeviceAuthShared)
		}
	case DeviceAuthPerDevice:
		// Per-device secrets live in the store; nothing to require here.
	default:
		return fmt.Errorf("invalid DEVICE_AUTH_MODE: %q", c.Auth.DeviceAuthMode)
	}
	switch c.Auth.DefaultVisibility {
	case VisibilityAll, VisibilityNone:
	default:
		return fmt.Errorf("invalid DEFAULT_VISIBILITY: %q", c.Auth.DefaultVisibility)
	}
	switch c.Storage.Backend {
	case StoragePostgres:
		if c.Database.User == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("POSTGRES_PASSWORD is required")
		}
	case StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND: %q", c.Storage.Backend)
	}
	if c.Storage.Backend == StorageMemory {
		log.Println("WARNING: memory storage backend keeps no data across restarts")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *Config) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}
