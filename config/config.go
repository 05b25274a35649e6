package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string

	// Database config
	DatabaseURL string // full postgres connection string, overrides the DB_* parts
	DBDriver    string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DBPath      string // SQLite database file path

	// Auth config
	JWTSecret      string
	JWTExpiryHours int
	BcryptCost     int

	// Uploads
	UploadDir      string
	UploadMaxBytes int64

	CORSOrigins []string

	// WorkflowStrict rejects illegal status transitions instead of flagging them
	WorkflowStrict bool

	Redis     RedisConfig
	RateLimit RateLimitConfig

	// Events
	AMQPURL       string
	EventsQueue   string
	MongoURI      string
	MongoDatabase string

	// Bootstrap admin
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// RedisConfig describes the Redis connection used for rate limiting
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig configures the token bucket applied to the auth endpoints
type RateLimitConfig struct {
	Enabled        bool
	Prefix         string
	KeyStrategy    string
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
}

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "agrimarket")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_PATH", "./data/agrimarket.db")
	v.SetDefault("JWT_SECRET", "agrimarket_default_secret_key")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 20<<20)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("WORKFLOW_STRICT", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_PREFIX", "agrimarket:rl")
	v.SetDefault("RATE_LIMIT_KEY_STRATEGY", "ip_route")
	v.SetDefault("RATE_LIMIT_CAPACITY", 10)
	v.SetDefault("RATE_LIMIT_REFILL_TOKENS", 1)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", "6s")
	v.SetDefault("RATE_LIMIT_TTL", "10m")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("EVENTS_QUEUE", "agrimarket.events")
	v.SetDefault("MONGODB_URI", "")
	v.SetDefault("MONGODB_DATABASE", "agrimarket")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_EMAIL", "admin@agrimarket.local")
	v.SetDefault("ADMIN_PASSWORD", "admin123")
}

// InitConfig initializes the application configuration from .env and the process environment
func InitConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	// libpq style variables are honoured when the DB_* ones are absent
	_ = v.BindEnv("DB_HOST", "DB_HOST", "PGHOST")
	_ = v.BindEnv("DB_PORT", "DB_PORT", "PGPORT")
	_ = v.BindEnv("DB_USER", "DB_USER", "PGUSER")
	_ = v.BindEnv("DB_PASSWORD", "DB_PASSWORD", "PGPASSWORD")
	_ = v.BindEnv("DB_NAME", "DB_NAME", "PGDATABASE")
	_ = v.BindEnv("AMQP_URL", "AMQP_URL", "RABBITMQ_URL")

	AppConfig = fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Port:           v.GetString("PORT"),
		Environment:    v.GetString("ENVIRONMENT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		DBDriver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:         v.GetString("DB_HOST"),
		DBPort:         v.GetString("DB_PORT"),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBName:         v.GetString("DB_NAME"),
		DBSSLMode:      v.GetString("DB_SSLMODE"),
		DBPath:         v.GetString("DB_PATH"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		BcryptCost:     v.GetInt("BCRYPT_COST"),
		UploadDir:      v.GetString("UPLOAD_DIR"),
		UploadMaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		WorkflowStrict: v.GetBool("WORKFLOW_STRICT"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        v.GetBool("RATE_LIMIT_ENABLED"),
			Prefix:         v.GetString("RATE_LIMIT_PREFIX"),
			KeyStrategy:    v.GetString("RATE_LIMIT_KEY_STRATEGY"),
			Capacity:       v.GetInt("RATE_LIMIT_CAPACITY"),
			RefillTokens:   v.GetInt("RATE_LIMIT_REFILL_TOKENS"),
			RefillInterval: v.GetDuration("RATE_LIMIT_REFILL_INTERVAL"),
			TTL:            v.GetDuration("RATE_LIMIT_TTL"),
		},
		AMQPURL:       v.GetString("AMQP_URL"),
		EventsQueue:   v.GetString("EVENTS_QUEUE"),
		MongoURI:      v.GetString("MONGODB_URI"),
		MongoDatabase: v.GetString("MONGODB_DATABASE"),
		AdminUsername: v.GetString("ADMIN_USERNAME"),
		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
	}
}

// Defaults returns the configuration built from defaults only (used by tests)
func Defaults() Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetJWTExpiration returns JWT expiration time
func GetJWTExpiration() time.Duration {
	return time.Duration(AppConfig.JWTExpiryHours) * time.Hour
}

// IsDevelopment returns true if the application is running in development mode
func IsDevelopment() bool {
	return AppConfig.Environment == "development"
}
