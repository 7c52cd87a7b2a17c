package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted by STORAGE_DRIVER
const (
	StorageFile     = "file"
	StorageMemory   = "memory"
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Cache drivers accepted by CACHE_DRIVER
const (
	CacheNone      = "none"
	CacheMemcached = "memcached"
)

// Publisher drivers accepted by PUBLISHER_DRIVER
const (
	PublisherNone  = "none"
	PublisherMQTT  = "mqtt"
	PublisherKafka = "kafka"
)

// Config holds all configuration of the API service
type Config struct {
	Server     ServerConfig     `json:"server"`
	Storage    StorageConfig    `json:"storage"`
	Cache      CacheConfig      `json:"cache"`
	Publisher  PublisherConfig  `json:"publisher"`
	MQTT       MQTTConfig       `json:"mqtt"`
	Kafka      KafkaConfig      `json:"kafka"`
	Upload     UploadConfig     `json:"upload"`
	Identifier IdentifierConfig `json:"identifier"`
	Logging    LoggingConfig    `json:"logging"`
	CORS       CORSConfig       `json:"cors"`
	Tracing    TracingConfig    `json:"tracing"`

	// Shared secret the ingestor presents on /internal routes
	InternalAPISecret string `json:"-"`
	SensorSource      string `json:"sensor_source"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// StorageConfig selects and configures the reading store backend
type StorageConfig struct {
	Driver       string         `json:"driver"`
	ReadingsFile string         `json:"readings_file"`
	Mongo        MongoConfig    `json:"mongo"`
	Postgres     DatabaseConfig `json:"postgres"`
	Redis        RedisConfig    `json:"redis"`
}

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI              string        `json:"-"`
	Database         string        `json:"database"`
	Collection       string        `json:"collection"`
	ImageCollection  string        `json:"image_collection"`
	ConnectTimeout   time.Duration `json:"connect_timeout"`
	OperationTimeout time.Duration `json:"operation_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int    `json:"max_conns"`
	MinConns int    `json:"min_conns"`
}

// RedisConfig holds Redis / Valkey connection settings
type RedisConfig struct {
	Addrs       []string      `json:"addrs"`
	Password    string        `json:"-"`
	DB          int           `json:"db"`
	Key         string        `json:"key"`
	DialTimeout time.Duration `json:"dial_timeout"`
}

// CacheConfig configures the latest-readout cache
type CacheConfig struct {
	Driver        string        `json:"driver"`
	MemcachedAddr string        `json:"memcached_addr"`
	Key           string        `json:"key"`
	TTL           time.Duration `json:"ttl"`
}

// PublisherConfig selects where accepted readouts are published
type PublisherConfig struct {
	Driver        string `json:"driver"`
	AdvisoryTopic string `json:"advisory_topic"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"-"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Topic       string        `json:"topic"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// KafkaConfig holds Kafka producer settings
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// UploadConfig holds image upload settings
type UploadConfig struct {
	Dir          string `json:"dir"`
	MaxBytes     int64  `json:"max_bytes"`
	MetadataFile string `json:"metadata_file"`
}

// IdentifierConfig points at the external plant identification endpoint
type IdentifierConfig struct {
	URL     string        `json:"url"`
	Timeout time.Duration `json:"timeout"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout, stderr, or file path
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// TracingConfig configures the OTLP exporter; empty endpoint disables tracing
type TracingConfig struct {
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"service_name"`
}

// BatchConfig holds batch processing configuration
type BatchConfig struct {
	Size   int           `json:"size"`
	Window time.Duration `json:"window"`
}

// IngestorConfig holds configuration for the MQTT Ingestor service
type IngestorConfig struct {
	Server            ServerConfig  `json:"server"`
	MQTT              MQTTConfig    `json:"mqtt"`
	Batch             BatchConfig   `json:"batch"`
	Logging           LoggingConfig `json:"logging"`
	ApiServiceURL     string        `json:"api_service_url"`
	InternalAPISecret string        `json:"-"`
	ErrorTopicPrefix  string        `json:"error_topic_prefix"`
}

// MonitorConfig holds configuration for the terminal monitor
type MonitorConfig struct {
	ApiServiceURL string        `json:"api_service_url"`
	Interval      time.Duration `json:"interval"`
	Timeout       time.Duration `json:"timeout"`
}

// env reads typed environment values and remembers every parse failure
type env struct {
	errs []error
}

func loadDotEnv() {
	// A missing .env file is fine; variables may be set directly
	_ = godotenv.Load()
}

// LoadApiConfig loads configuration for the API service
func LoadApiConfig() (*Config, error) {
	loadDotEnv()
	e := &env{}

	cfg := &Config{
		Server: e.server("PORT", "5001"),
		Storage: StorageConfig{
			Driver:       strings.ToLower(e.str("STORAGE_DRIVER", StorageFile)),
			ReadingsFile: e.str("READINGS_FILE", "data/sensor_readings.json"),
			Mongo: MongoConfig{
				URI:              e.str("MONGODB_URI", ""),
				Database:         e.str("MONGODB_DB", "plantai"),
				Collection:       e.str("MONGODB_COLLECTION", "sensor_readings"),
				ImageCollection:  e.str("MONGODB_IMAGE_COLLECTION", "plant_images"),
				ConnectTimeout:   e.duration("MONGODB_CONNECT_TIMEOUT", 20*time.Second),
				OperationTimeout: e.duration("MONGODB_OPERATION_TIMEOUT", 5*time.Second),
			},
			Postgres: DatabaseConfig{
				Host:     e.str("POSTGRES_HOST", "localhost"),
				Port:     e.int("POSTGRES_PORT", 5432),
				User:     e.str("POSTGRES_USER", ""),
				Password: e.str("POSTGRES_PASSWORD", ""),
				DBName:   e.str("POSTGRES_DB", "plantai"),
				SSLMode:  e.str("POSTGRES_SSLMODE", "disable"),
				MaxConns: e.int("POSTGRES_MAX_CONNS", 10),
				MinConns: e.int("POSTGRES_MIN_CONNS", 2),
			},
			Redis: RedisConfig{
				Addrs:       e.strings("REDIS_ADDRS", []string{"localhost:6379"}),
				Password:    e.str("REDIS_PASSWORD", ""),
				DB:          e.int("REDIS_DB", 0),
				Key:         e.str("REDIS_KEY", "plantai:sensor_readings"),
				DialTimeout: e.duration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			},
		},
		Cache: CacheConfig{
			Driver:        strings.ToLower(e.str("CACHE_DRIVER", CacheNone)),
			MemcachedAddr: e.str("MEMCACHED_ADDR", "localhost:11211"),
			Key:           e.str("CACHE_KEY", "plantai:latest_reading"),
			TTL:           e.duration("CACHE_TTL", 5*time.Second),
		},
		Publisher: PublisherConfig{
			Driver:        strings.ToLower(e.str("PUBLISHER_DRIVER", PublisherNone)),
			AdvisoryTopic: e.str("MQTT_ADVISORY_TOPIC", "plants/advisory"),
		},
		MQTT: e.mqtt("plantai-api"),
		Kafka: KafkaConfig{
			Brokers: e.strings("KAFKA_BROKERS", nil),
			Topic:   e.str("KAFKA_TOPIC", "plant-advisories"),
		},
		Upload: UploadConfig{
			Dir:          e.str("UPLOAD_DIR", "uploads"),
			MaxBytes:     int64(e.int("UPLOAD_MAX_BYTES", 16*1024*1024)),
			MetadataFile: e.str("UPLOAD_METADATA_FILE", "metadata.json"),
		},
		Identifier: IdentifierConfig{
			URL:     e.str("IDENTIFIER_URL", ""),
			Timeout: e.duration("IDENTIFIER_TIMEOUT", 60*time.Second),
		},
		Logging: e.logging(),
		CORS: CORSConfig{
			AllowedOrigins:   e.strings("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   e.strings("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   e.strings("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			ExposedHeaders:   e.strings("CORS_EXPOSED_HEADERS", []string{"Content-Length"}),
			AllowCredentials: e.bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           e.int("CORS_MAX_AGE", 43200), // 12 hours
		},
		Tracing: TracingConfig{
			Endpoint:    e.str("TRACING_ENDPOINT", ""),
			ServiceName: e.str("TRACING_SERVICE_NAME", "plantai-api"),
		},
		InternalAPISecret: e.str("INTERNAL_API_SECRET", ""),
		SensorSource:      e.str("SENSOR_SOURCE", "sensor_api"),
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadIngestorConfig loads configuration for the MQTT Ingestor service
func LoadIngestorConfig() (*IngestorConfig, error) {
	loadDotEnv()
	e := &env{}

	cfg := &IngestorConfig{
		Server: e.server("INGESTOR_PORT", "9003"),
		MQTT:   e.mqtt("plantai-ingestor"),
		Batch: BatchConfig{
			Size:   e.int("BATCH_SIZE", 50),
			Window: e.duration("BATCH_WINDOW", time.Second),
		},
		Logging:           e.logging(),
		ApiServiceURL:     e.str("API_SERVICE_URL", "http://localhost:5001"),
		InternalAPISecret: e.str("INTERNAL_API_SECRET", ""),
		ErrorTopicPrefix:  e.str("MQTT_ERROR_TOPIC_PREFIX", "ingestor/errors"),
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if cfg.ApiServiceURL == "" {
		return nil, fmt.Errorf("API_SERVICE_URL is required")
	}
	if cfg.InternalAPISecret == "" {
		return nil, fmt.Errorf("INTERNAL_API_SECRET is required")
	}
	if cfg.Batch.Size <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive")
	}
	if cfg.Batch.Window <= 0 {
		return nil, fmt.Errorf("BATCH_WINDOW must be positive")
	}

	return cfg, nil
}

// LoadMonitorConfig loads configuration for the terminal monitor
func LoadMonitorConfig() (*MonitorConfig, error) {
	loadDotEnv()
	e := &env{}

	cfg := &MonitorConfig{
		ApiServiceURL: e.str("API_SERVICE_URL", "http://localhost:5001"),
		Interval:      e.duration("MONITOR_INTERVAL", 5*time.Second),
		Timeout:       e.duration("MONITOR_TIMEOUT", 3*time.Second),
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("MONITOR_INTERVAL must be positive")
	}
	return cfg, nil
}

// Validate checks that every selected driver has what it needs
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageFile:
		if c.Storage.ReadingsFile == "" {
			return fmt.Errorf("READINGS_FILE is required for the file store")
		}
	case StorageMemory:
	case StorageMongo:
		if c.Storage.Mongo.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for the mongo store")
		}
	case StoragePostgres:
		if c.Storage.Postgres.User == "" {
			return fmt.Errorf("POSTGRES_USER is required for the postgres store")
		}
		if c.Storage.Postgres.Password == "" {
			return fmt.Errorf("POSTGRES_PASSWORD is required for the postgres store")
		}
	case StorageRedis:
		if len(c.Storage.Redis.Addrs) == 0 {
			return fmt.Errorf("REDIS_ADDRS is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.Cache.Driver {
	case CacheNone:
	case CacheMemcached:
		if c.Cache.MemcachedAddr == "" {
			return fmt.Errorf("MEMCACHED_ADDR is required for the memcached cache")
		}
		if c.Cache.TTL < time.Second {
			return fmt.Errorf("CACHE_TTL must be at least 1s")
		}
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.Cache.Driver)
	}

	switch c.Publisher.Driver {
	case PublisherNone:
	case PublisherMQTT:
		if c.MQTT.BrokerHost == "" {
			return fmt.Errorf("BROKER_HOST is required for the mqtt publisher")
		}
	case PublisherKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for the kafka publisher")
		}
	default:
		return fmt.Errorf("unknown PUBLISHER_DRIVER %q", c.Publisher.Driver)
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// GetDatabaseDSN returns the PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	db := c.Storage.Postgres
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.User, db.Password, db.DBName, db.SSLMode)
}

// BrokerURL returns the MQTT broker URL
func (m MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if m.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.BrokerHost, m.BrokerPort)
}

// Subscription returns the topic filter, wrapped in $share when a group is set
func (m MQTTConfig) Subscription() string {
	if m.SharedGroup == "" {
		return m.Topic
	}
	return fmt.Sprintf("$share/%s/%s", m.SharedGroup, m.Topic)
}

func (e *env) server(portKey, defaultPort string) ServerConfig {
	return ServerConfig{
		Port:         e.str(portKey, defaultPort),
		ReadTimeout:  e.duration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: e.duration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:  e.duration("IDLE_TIMEOUT", 120*time.Second),
	}
}

func (e *env) mqtt(defaultClientID string) MQTTConfig {
	return MQTTConfig{
		BrokerHost:  e.str("BROKER_HOST", "localhost"),
		BrokerPort:  e.int("BROKER_PORT", 1883),
		BrokerUser:  e.str("BROKER_USER", ""),
		BrokerPass:  e.str("BROKER_PASS", ""),
		UseTLS:      e.bool("BROKER_TLS", false),
		CACertPath:  e.str("BROKER_CA_FILE", ""),
		Topic:       e.str("MQTT_TOPIC", "plants/+/sensors"),
		ClientID:    e.str("MQTT_CLIENT_ID", defaultClientID),
		SharedGroup: e.str("MQTT_SHARED_GROUP", ""),
		KeepAlive:   e.duration("MQTT_KEEP_ALIVE", 30*time.Second),
		PingTimeout: e.duration("MQTT_PING_TIMEOUT", 10*time.Second),
	}
}

func (e *env) logging() LoggingConfig {
	return LoggingConfig{
		Level:        e.str("LOG_LEVEL", "info"),
		Format:       e.str("LOG_FORMAT", "text"),
		Output:       e.str("LOG_OUTPUT", "stdout"),
		EnableCaller: e.bool("LOG_ENABLE_CALLER", false),
	}
}

// Helper functions for environment variable parsing

func (e *env) str(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e *env) int(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return intValue
}

func (e *env) bool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	switch value {
	case "":
		return defaultValue
	case "1", "true", "TRUE":
		return true
	case "0", "false", "FALSE":
		return false
	}
	e.errs = append(e.errs, fmt.Errorf("invalid %s: %q (expected true/false or 1/0)", key, value))
	return defaultValue
}

func (e *env) duration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return duration
}

func (e *env) strings(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
