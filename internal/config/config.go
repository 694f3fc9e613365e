package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Model     ModelConfig
	Storage   StorageConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Analytics AnalyticsConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ModelConfig configures the hosted text generation endpoint.
type ModelConfig struct {
	APIKey   string
	Endpoint string
	Name     string
	Timeout  time.Duration
	// UseAgent is the feature flag that allows generation when a listing
	// arrives without a description.
	UseAgent bool
}

// GenerationEnabled reports whether blank descriptions may be generated:
// the feature flag must be on and a credential must be present.
func (m ModelConfig) GenerationEnabled() bool {
	return m.UseAgent && m.APIKey != ""
}

type StorageConfig struct {
	Bucket        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
	LocalDir      string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
	// Backend is "mongo" or "memory".
	Backend string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// AnalyticsConfig names the event sink destination.
type AnalyticsConfig struct {
	Project string
	Dataset string
	Table   string
}

// Stream returns the fully qualified sink name, project.dataset.table.
func (a AnalyticsConfig) Stream() string {
	parts := make([]string, 0, 3)
	if a.Project != "" {
		parts = append(parts, a.Project)
	}
	parts = append(parts, a.Dataset, a.Table)
	return strings.Join(parts, ".")
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	WindowSeconds int
	UseRedis      bool
}

type TracingConfig struct {
	Endpoint    string
	ServiceName string
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVICE_ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MODEL_ENDPOINT", "https://us-central1-aiplatform.googleapis.com/v1/publishers/google/models")
	viper.SetDefault("MODEL_NAME", "gemini-2.5-flash-lite")
	viper.SetDefault("MODEL_TIMEOUT", 30)
	viper.SetDefault("USE_AGENT", "true")
	viper.SetDefault("MONGODB_DATABASE", "thriftkids")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("STORE_BACKEND", "mongo")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("BQ_DATASET", "thriftkids_analytics")
	viper.SetDefault("BQ_TABLE", "events")
	viper.SetDefault("RATE_LIMIT_RPS", 5)
	viper.SetDefault("RATE_LIMIT_BURST", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("OTEL_SERVICE_NAME", "thriftkids-api")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVICE_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Model: ModelConfig{
			APIKey:   strings.TrimSpace(viper.GetString("VERTEX_API_KEY")),
			Endpoint: viper.GetString("MODEL_ENDPOINT"),
			Name:     viper.GetString("MODEL_NAME"),
			Timeout:  time.Duration(viper.GetInt("MODEL_TIMEOUT")) * time.Second,
			// only the literal "true" enables the agent
			UseAgent: strings.ToLower(strings.TrimSpace(viper.GetString("USE_AGENT"))) == "true",
		},
		Storage: StorageConfig{
			Bucket:        viper.GetString("BUCKET_NAME"),
			Endpoint:      viper.GetString("MINIO_ENDPOINT"),
			AccessKey:     viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey:     viper.GetString("MINIO_SECRET_KEY"),
			UseSSL:        viper.GetBool("MINIO_USE_SSL"),
			PublicBaseURL: viper.GetString("PUBLIC_BASE_URL"),
			LocalDir:      viper.GetString("LOCAL_UPLOAD_DIR"),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
			Backend:  strings.ToLower(viper.GetString("STORE_BACKEND")),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       0,
		},
		Analytics: AnalyticsConfig{
			Project: viper.GetString("GCP_PROJECT"),
			Dataset: viper.GetString("BQ_DATASET"),
			Table:   viper.GetString("BQ_TABLE"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
		},
		Tracing: TracingConfig{
			Endpoint:    viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName: viper.GetString("OTEL_SERVICE_NAME"),
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if cfg.Model.Timeout <= 0 {
		cfg.Model.Timeout = 30 * time.Second
	}
	if cfg.MongoDB.Timeout <= 0 {
		cfg.MongoDB.Timeout = 10 * time.Second
	}

	return cfg, nil
}
