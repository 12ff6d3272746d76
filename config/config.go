package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEmailRedirectURL is where confirmation links land after sign-up.
const DefaultEmailRedirectURL = "https://natively.dev/email-confirmed"

type Config struct {
	Port     string
	DBUrl    string
	LogLevel string
	GinMode  string
	// Supabase (auth + PostgREST)
	SupabaseUrl        string
	SupabaseKey        string
	SupabaseServiceKey string // server-side PostgREST access when no DATABASE_URL is set
	SupabaseJWTSecret  string
	EmailRedirectURL   string
	// Session core
	DefaultUserType      string
	ProfileWriteAttempts int
	ProfileWriteBackoff  time.Duration
	SessionRefreshMargin time.Duration
	SessionFile          string
	AutoRefreshInterval  time.Duration
	AllowedOrigins       []string
	AutoMigrate          bool
	// Redis/Upstash Configuration
	UpstashRedisURL      string
	UpstashRedisPassword string
	// Rate Limiting Configuration
	RateLimitWindowSeconds   int
	RateLimitLoginThreshold  int
	RateLimitGlobalThreshold int
	FailedLoginBlockMinutes  int
	FailedLoginMaxAttempts   int
	// Image storage (S3 compatible)
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string
	S3PublicBaseURL   string
}

func LoadConfig() (*Config, error) {
	// Load .env file when present; ignored in production
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		DBUrl:    getEnv("DATABASE_URL", ""),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		GinMode:  getEnv("GIN_MODE", "debug"),
		// Strip trailing slash to avoid double slashes (e.g. .co//auth)
		SupabaseUrl:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:        getEnv("SUPABASE_KEY", getEnv("SUPABASE_ANON_KEY", "")),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", getEnv("SUPABASE_JWT_KEY", "")),
		EmailRedirectURL:   getEnv("EMAIL_REDIRECT_URL", DefaultEmailRedirectURL),
		// Session core
		DefaultUserType:      getEnv("DEFAULT_USER_TYPE", "farmer"),
		ProfileWriteAttempts: getEnvInt("PROFILE_WRITE_ATTEMPTS", 3),
		ProfileWriteBackoff:  time.Duration(getEnvInt("PROFILE_WRITE_BACKOFF_MS", 200)) * time.Millisecond,
		SessionRefreshMargin: time.Duration(getEnvInt("SESSION_REFRESH_MARGIN_SECONDS", 90)) * time.Second,
		SessionFile:          getEnv("SESSION_FILE", defaultSessionFile()),
		AutoRefreshInterval:  time.Duration(getEnvInt("SESSION_AUTO_REFRESH_SECONDS", 30)) * time.Second,
		AllowedOrigins:       splitList(getEnv("ALLOWED_ORIGINS", "")),
		AutoMigrate:          getEnvBool("AUTO_MIGRATE", false),
		// Redis/Upstash Configuration
		UpstashRedisURL:      getEnv("UPSTASH_REDIS_URL", ""),
		UpstashRedisPassword: getEnv("UPSTASH_REDIS_PASSWORD", ""),
		// Rate Limiting Configuration
		RateLimitWindowSeconds:   getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitLoginThreshold:  getEnvInt("RATE_LIMIT_LOGIN_THRESHOLD", 10),
		RateLimitGlobalThreshold: getEnvInt("RATE_LIMIT_GLOBAL_THRESHOLD", 100),
		FailedLoginBlockMinutes:  getEnvInt("FAILED_LOGIN_BLOCK_MINUTES", 15),
		FailedLoginMaxAttempts:   getEnvInt("FAILED_LOGIN_MAX_ATTEMPTS", 5),
		// Image storage
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Endpoint:        strings.TrimRight(getEnv("S3_ENDPOINT", ""), "/"),
		S3PublicBaseURL:   strings.TrimRight(getEnv("S3_PUBLIC_BASE_URL", ""), "/"),
	}

	if cfg.SupabaseUrl == "" {
		log.Println("WARNING: SUPABASE_URL is missing. Authentication calls will fail.")
	}

	if cfg.DBUrl == "" {
		log.Println("WARNING: DATABASE_URL not configured. Using in-memory catalog and Supabase REST for profiles.")
	}

	if cfg.UpstashRedisURL == "" {
		log.Println("WARNING: UPSTASH_REDIS_URL not configured. Rate limiting will use in-memory fallback.")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns an integer environment variable or fallback if not set/invalid
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool returns a boolean environment variable or fallback if not set/invalid
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agribid-session.json"
	}
	return filepath.Join(home, ".agribid", "session.json")
}
