package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server       ServerConfig
	ControlPlane ControlPlaneConfig
	Demo         DemoConfig
	Tracking     TrackingConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Sweeper      SweeperConfig
	RateLimit    RateLimitConfig
	App          AppConfig
}

type ServerConfig struct {
	Port               string
	CORSAllowedOrigins []string
	CleanupAPIKey      string
	MaxBodyBytes       int64
}

// ControlPlaneConfig points at the platform's project management API.
// AdminToken may be empty: the API still starts and answers demo requests
// with a configuration error.
type ControlPlaneConfig struct {
	BaseURL    string
	AdminToken string
	Timeout    time.Duration
}

type DemoConfig struct {
	ProjectPrefix   string
	TTL             time.Duration
	WarningLead     time.Duration
	MaxCodeBytes    int
	BoilerplateFile string
}

type TrackingConfig struct {
	Backend    string // rest, postgres, redis or empty for auto
	URL        string
	ServiceKey string
	QueueSize  int
	Workers    int
	Timeout    time.Duration
}

type DatabaseConfig struct {
	DSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SweeperConfig struct {
	Schedule  string // cron spec with seconds, or "off"
	BatchSize int
}

// Enabled reports whether the expired-demo sweeper should run.
func (s SweeperConfig) Enabled() bool {
	switch strings.ToLower(strings.TrimSpace(s.Schedule)) {
	case "", "off", "disabled", "false":
		return false
	}
	return true
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

const (
	TrackingBackendREST     = "rest"
	TrackingBackendPostgres = "postgres"
	TrackingBackendRedis    = "redis"
	TrackingBackendNone     = "none"
)

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
			CleanupAPIKey:      os.Getenv("DEMO_CLEANUP_API_KEY"),
			MaxBodyBytes:       int64(getEnvAsInt("DEMO_MAX_BODY_BYTES", 1<<20)),
		},
		ControlPlane: ControlPlaneConfig{
			BaseURL:    strings.TrimRight(getEnv("SLC_API_ENDPOINT", "https://api.slc.run"), "/"),
			AdminToken: os.Getenv("SLC_DEMO_ADMIN_TOKEN"),
			Timeout:    getEnvAsDuration("SLC_API_TIMEOUT", 30*time.Second),
		},
		Demo: DemoConfig{
			ProjectPrefix:   getEnv("SLC_DEMO_PROJECT_PREFIX", "demo"),
			TTL:             time.Duration(getEnvAsInt("DEMO_EXPIRY_MINUTES", 30)) * time.Minute,
			WarningLead:     time.Duration(getEnvAsInt("DEMO_WARNING_MINUTES", 5)) * time.Minute,
			MaxCodeBytes:    getEnvAsInt("DEMO_MAX_CODE_BYTES", 64*1024),
			BoilerplateFile: os.Getenv("BOILERPLATES_FILE"),
		},
		Tracking: TrackingConfig{
			Backend:    strings.ToLower(os.Getenv("TRACKING_BACKEND")),
			URL:        os.Getenv("SUPABASE_URL"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
			QueueSize:  getEnvAsInt("TRACKING_QUEUE_SIZE", 64),
			Workers:    getEnvAsInt("TRACKING_WORKERS", 2),
			Timeout:    getEnvAsDuration("TRACKING_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN: os.Getenv("DB_DSN"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Sweeper: SweeperConfig{
			Schedule:  getEnv("SWEEPER_SCHEDULE", "0 * * * * *"),
			BatchSize: getEnvAsInt("SWEEPER_BATCH_SIZE", 50),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvAsInt("DEMO_RATE_LIMIT_PER_MINUTE", 10),
			Burst:     getEnvAsInt("DEMO_RATE_LIMIT_BURST", 3),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if cfg.Tracking.Backend == "" {
		cfg.Tracking.Backend = cfg.detectTrackingBackend()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.ControlPlane.BaseURL == "" {
		return fmt.Errorf("SLC_API_ENDPOINT is required")
	}

	if c.Demo.TTL <= 0 {
		return fmt.Errorf("DEMO_EXPIRY_MINUTES must be positive")
	}

	if c.Demo.MaxCodeBytes <= 0 {
		return fmt.Errorf("DEMO_MAX_CODE_BYTES must be positive")
	}

	if c.Server.MaxBodyBytes < int64(c.Demo.MaxCodeBytes) {
		return fmt.Errorf("DEMO_MAX_BODY_BYTES must be at least DEMO_MAX_CODE_BYTES")
	}

	switch c.Tracking.Backend {
	case TrackingBackendREST:
		if c.Tracking.URL == "" || c.Tracking.ServiceKey == "" {
			return fmt.Errorf("TRACKING_BACKEND=rest requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
	case TrackingBackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("TRACKING_BACKEND=postgres requires DB_DSN")
		}
	case TrackingBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("TRACKING_BACKEND=redis requires REDIS_ADDR")
		}
	case TrackingBackendNone:
	default:
		return fmt.Errorf("unknown TRACKING_BACKEND %q", c.Tracking.Backend)
	}

	return nil
}

// detectTrackingBackend picks the first configured store. Missing tracking
// configuration is not an error, it just disables tracking.
func (c *Config) detectTrackingBackend() string {
	switch {
	case c.Tracking.URL != "" && c.Tracking.ServiceKey != "":
		return TrackingBackendREST
	case c.Database.DSN != "":
		return TrackingBackendPostgres
	case c.Redis.Addr != "":
		return TrackingBackendRedis
	default:
		return TrackingBackendNone
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
