// Package config loads the environment-variable configuration surface
// described in the specification, following the GetEnv*/ParseEnv* helper
// idiom rather than a generic struct-unmarshal-from-file approach.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of key, or def if unset/empty.
func GetEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// GetEnvInt parses key as an int, or returns def on absence/parse error.
func GetEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetEnvBool parses key as a bool, or returns def on absence/parse error.
func GetEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// ParseEnvDuration reads key as an integer number of seconds and returns it
// as a time.Duration, or def if unset/invalid.
func ParseEnvDuration(key string, defSeconds int) time.Duration {
	return time.Duration(GetEnvInt(key, defSeconds)) * time.Second
}

// ParseEnvDurationMillis reads key as an integer number of milliseconds.
func ParseEnvDurationMillis(key string, defMillis int) time.Duration {
	return time.Duration(GetEnvInt(key, defMillis)) * time.Millisecond
}

// SplitAndTrimCSV splits value on commas and trims whitespace from each
// part, dropping empty entries.
func SplitAndTrimCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DatabaseConfig holds DB_* options.
type DatabaseConfig struct {
	Host              string
	Port              int
	Name              string
	User              string
	Password          string
	PoolMin           int
	PoolMax           int
	ConnectionTimeout time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable connect_timeout=%d",
		d.Host, d.Port, d.Name, d.User, d.Password, int(d.ConnectionTimeout.Seconds()))
}

// RedisConfig holds REDIS_* options.
type RedisConfig struct {
	Host          string
	Port          int
	DB            int
	SocketTimeout time.Duration
	PoolMax       int
}

func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

// MongoConfig holds MONGODB_* options.
type MongoConfig struct {
	Host                       string
	Port                       int
	DB                         string
	User                      string
	Password                   string
	AuditCollection            string
	ConnectTimeout             time.Duration
	ServerSelectionTimeout     time.Duration
}

func (m MongoConfig) URI() string {
	if m.User == "" {
		return fmt.Sprintf("mongodb://%s:%d", m.Host, m.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%d", m.User, m.Password, m.Host, m.Port)
}

// KafkaConfig holds KAFKA_* options.
type KafkaConfig struct {
	BootstrapServers       []string
	RouteEventsTopic       string
	Acks                   string
	Retries                int
	Idempotent             bool
	RequestTimeout         time.Duration
	ConsumerGroupPrefix    string
	ConsumerAutoOffsetReset string
	ConsumerAutoCommit     bool
	ConsumerPollTimeout    time.Duration
}

// ResilienceConfig holds the RESILIENCE_*/BULKHEAD_*/RETRY_* options.
type ResilienceConfig struct {
	DBFailureThreshold    int
	DBTimeout             time.Duration
	DBWindow              time.Duration
	DBMinCalls            int
	CacheFailureThreshold int
	CacheTimeout          time.Duration
	CacheWindow           time.Duration
	CacheMinCalls         int
	AuditFailureThreshold int
	AuditTimeout          time.Duration
	AuditWindow           time.Duration
	AuditMinCalls         int

	ReadBulkheadMaxConcurrent  int
	WriteBulkheadMaxConcurrent int
	AuditBulkheadMaxConcurrent int
	BulkheadMaxWait            time.Duration

	RetryMaxRetries    int
	RetryWindow        time.Duration
	RetryMinInterval   time.Duration
}

// Config is the fully resolved configuration surface.
type Config struct {
	Environment string
	LogLevel    string
	LogFormat   string
	APIHost     string
	APIPort     int
	Debug       bool

	Database   DatabaseConfig
	Redis      RedisConfig
	Mongo      MongoConfig
	Kafka      KafkaConfig
	Resilience ResilienceConfig

	CachePositiveTTL time.Duration
	CacheNegativeTTL time.Duration
	DrainTimeout     time.Duration
}

var validEnvironments = map[string]bool{"development": true, "staging": true, "production": true, "test": true}
var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Load reads the full configuration surface from the environment and
// validates it per §6's startup-validation rule.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: strings.ToLower(GetEnv("ENVIRONMENT", "development")),
		LogLevel:    strings.ToLower(GetEnv("LOG_LEVEL", "INFO")),
		LogFormat:   GetEnv("LOG_FORMAT", "json"),
		APIHost:     GetEnv("API_HOST", "0.0.0.0"),
		APIPort:     GetEnvInt("API_PORT", 8000),
		Debug:       GetEnvBool("DEBUG", false),

		Database: DatabaseConfig{
			Host:              GetEnv("DB_HOST", "localhost"),
			Port:              GetEnvInt("DB_PORT", 5432),
			Name:              GetEnv("DB_NAME", ""),
			User:              GetEnv("DB_USER", ""),
			Password:          GetEnv("DB_PASSWORD", ""),
			PoolMin:           GetEnvInt("DB_POOL_MIN", 2),
			PoolMax:           GetEnvInt("DB_POOL_MAX", 10),
			ConnectionTimeout: ParseEnvDuration("DB_CONNECTION_TIMEOUT", 30),
		},
		Redis: RedisConfig{
			Host:          GetEnv("REDIS_HOST", "localhost"),
			Port:          GetEnvInt("REDIS_PORT", 6379),
			DB:            GetEnvInt("REDIS_DB", 0),
			SocketTimeout: ParseEnvDuration("REDIS_SOCKET_TIMEOUT", 5),
			PoolMax:       GetEnvInt("REDIS_POOL_MAX", 50),
		},
		Mongo: MongoConfig{
			Host:                   GetEnv("MONGODB_HOST", "localhost"),
			Port:                   GetEnvInt("MONGODB_PORT", 27017),
			DB:                     GetEnv("MONGODB_DB", "traffic_manager"),
			User:                   GetEnv("MONGODB_USER", ""),
			Password:               GetEnv("MONGODB_PASSWORD", ""),
			AuditCollection:        GetEnv("MONGODB_AUDIT_COLLECTION", "route_events"),
			ConnectTimeout:         ParseEnvDurationMillis("MONGODB_CONNECT_TIMEOUT_MS", 5000),
			ServerSelectionTimeout: ParseEnvDurationMillis("MONGODB_SERVER_SELECTION_TIMEOUT_MS", 5000),
		},
		Kafka: KafkaConfig{
			BootstrapServers:        SplitAndTrimCSV(GetEnv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092")),
			RouteEventsTopic:        GetEnv("KAFKA_ROUTE_EVENTS_TOPIC", "route-events"),
			Acks:                    GetEnv("KAFKA_ACKS", "all"),
			Retries:                 GetEnvInt("KAFKA_RETRIES", 3),
			Idempotent:              GetEnvBool("KAFKA_IDEMPOTENT", true),
			RequestTimeout:          ParseEnvDurationMillis("KAFKA_REQUEST_TIMEOUT_MS", 10000),
			ConsumerGroupPrefix:     GetEnv("KAFKA_CONSUMER_GROUP_PREFIX", "traffic-manager"),
			ConsumerAutoOffsetReset: GetEnv("KAFKA_CONSUMER_AUTO_OFFSET_RESET", "earliest"),
			ConsumerAutoCommit:      GetEnvBool("KAFKA_CONSUMER_AUTO_COMMIT", true),
			ConsumerPollTimeout:     ParseEnvDurationMillis("KAFKA_CONSUMER_POLL_TIMEOUT_MS", 1000),
		},
		Resilience: ResilienceConfig{
			DBFailureThreshold:    GetEnvInt("RESILIENCE_DB_FAILURE_THRESHOLD", 5),
			DBTimeout:             ParseEnvDuration("RESILIENCE_DB_TIMEOUT_SECONDS", 30),
			DBWindow:              ParseEnvDuration("RESILIENCE_DB_WINDOW_SECONDS", 60),
			DBMinCalls:            GetEnvInt("RESILIENCE_DB_MIN_CALLS", 10),
			CacheFailureThreshold: GetEnvInt("RESILIENCE_CACHE_FAILURE_THRESHOLD", 5),
			CacheTimeout:          ParseEnvDuration("RESILIENCE_CACHE_TIMEOUT_SECONDS", 15),
			CacheWindow:           ParseEnvDuration("RESILIENCE_CACHE_WINDOW_SECONDS", 60),
			CacheMinCalls:         GetEnvInt("RESILIENCE_CACHE_MIN_CALLS", 10),
			AuditFailureThreshold: GetEnvInt("RESILIENCE_AUDIT_FAILURE_THRESHOLD", 5),
			AuditTimeout:          ParseEnvDuration("RESILIENCE_AUDIT_TIMEOUT_SECONDS", 30),
			AuditWindow:           ParseEnvDuration("RESILIENCE_AUDIT_WINDOW_SECONDS", 60),
			AuditMinCalls:         GetEnvInt("RESILIENCE_AUDIT_MIN_CALLS", 10),

			ReadBulkheadMaxConcurrent:  GetEnvInt("BULKHEAD_READ_MAX_CONCURRENT", 128),
			WriteBulkheadMaxConcurrent: GetEnvInt("BULKHEAD_WRITE_MAX_CONCURRENT", 32),
			AuditBulkheadMaxConcurrent: GetEnvInt("BULKHEAD_AUDIT_MAX_CONCURRENT", 16),
			BulkheadMaxWait:            ParseEnvDurationMillis("BULKHEAD_MAX_WAIT_MS", 250),

			RetryMaxRetries:  GetEnvInt("RETRY_MAX_RETRIES", 3),
			RetryWindow:      ParseEnvDuration("RETRY_WINDOW_SECONDS", 60),
			RetryMinInterval: ParseEnvDurationMillis("RETRY_MIN_INTERVAL_MS", 100),
		},

		CachePositiveTTL: ParseEnvDuration("CACHE_POSITIVE_TTL", 60),
		CacheNegativeTTL: ParseEnvDuration("CACHE_NEGATIVE_TTL", 10),
		DrainTimeout:     ParseEnvDuration("DRAIN_TIMEOUT_SECONDS", 30),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !validEnvironments[c.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT %q", c.Environment)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid API_PORT %d", c.APIPort)
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid DB_PORT %d", c.Database.Port)
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid REDIS_PORT %d", c.Redis.Port)
	}
	if c.Mongo.Port <= 0 || c.Mongo.Port > 65535 {
		return fmt.Errorf("invalid MONGODB_PORT %d", c.Mongo.Port)
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		return fmt.Errorf("KAFKA_BOOTSTRAP_SERVERS is required")
	}
	return nil
}
