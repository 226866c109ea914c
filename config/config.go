// Package config loads the server configuration from environment variables.
// A .env file in the working directory is read first when present, which is
// how local development is set up; production uses real env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every server setting, grouped by concern.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	LiveKit   LiveKitConfig
	Upload    UploadConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Rooms     RoomsConfig
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host      string
	Port      int
	PublicURL string // base for upload URLs handed back to clients
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  int // minutes
	RefreshTokenExpiry int // days
}

// LiveKitConfig is used to mint live-lecture viewer tokens.
// Live tokens are disabled when APIKey is empty.
type LiveKitConfig struct {
	URL       string
	APIKey    string
	APISecret string
}

// UploadConfig controls the blob buckets on local disk.
type UploadConfig struct {
	Dir     string
	MaxSize int64
	Buckets []string
}

// EmailConfig enables attendance summary mail when ResendAPIKey is set.
type EmailConfig struct {
	ResendAPIKey string
	FromEmail    string
	AppName      string
}

// RateLimitConfig tunes the login and chat limiters.
type RateLimitConfig struct {
	LoginAttempts   int
	LoginWindow     time.Duration
	MessageMax      int
	MessageWindow   time.Duration
	MessageCooldown time.Duration
}

// CORSConfig lists the allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string
}

// RoomsConfig controls the course-room existence cache used by the hub.
type RoomsConfig struct {
	CacheTTL time.Duration
}

// Load builds a Config from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	accessExpiry, err := strconv.Atoi(getEnv("JWT_ACCESS_EXPIRY_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRY_MINUTES: %w", err)
	}

	refreshExpiry, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRY_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRY_DAYS: %w", err)
	}

	maxSize, err := strconv.ParseInt(getEnv("UPLOAD_MAX_SIZE", "26214400"), 10, 64) // 25MB
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_SIZE: %w", err)
	}

	loginAttempts, err := strconv.Atoi(getEnv("RATE_LIMIT_LOGIN_ATTEMPTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_LOGIN_ATTEMPTS: %w", err)
	}

	messageMax, err := strconv.Atoi(getEnv("RATE_LIMIT_MESSAGE_MAX", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_MESSAGE_MAX: %w", err)
	}

	loginWindow, err := getDuration("RATE_LIMIT_LOGIN_WINDOW", "2m")
	if err != nil {
		return nil, err
	}
	messageWindow, err := getDuration("RATE_LIMIT_MESSAGE_WINDOW", "5s")
	if err != nil {
		return nil, err
	}
	messageCooldown, err := getDuration("RATE_LIMIT_MESSAGE_COOLDOWN", "15s")
	if err != nil {
		return nil, err
	}
	roomTTL, err := getDuration("ROOM_CACHE_TTL", "1m")
	if err != nil {
		return nil, err
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	host := getEnv("SERVER_HOST", "0.0.0.0")

	cfg := &Config{
		Server: ServerConfig{
			Host:      host,
			Port:      port,
			PublicURL: strings.TrimRight(getEnv("PUBLIC_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/classroom.db"),
		},
		JWT: JWTConfig{
			Secret:             jwtSecret,
			AccessTokenExpiry:  accessExpiry,
			RefreshTokenExpiry: refreshExpiry,
		},
		LiveKit: LiveKitConfig{
			URL:       getEnv("LIVEKIT_URL", "ws://localhost:7880"),
			APIKey:    getEnv("LIVEKIT_API_KEY", ""),
			APISecret: getEnv("LIVEKIT_API_SECRET", ""),
		},
		Upload: UploadConfig{
			Dir:     getEnv("UPLOAD_DIR", "./data/uploads"),
			MaxSize: maxSize,
			Buckets: splitList(getEnv("UPLOAD_BUCKETS", "materials-file,images,audio")),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("EMAIL_FROM", "noreply@example.com"),
			AppName:      getEnv("APP_NAME", "Rural Classroom"),
		},
		RateLimit: RateLimitConfig{
			LoginAttempts:   loginAttempts,
			LoginWindow:     loginWindow,
			MessageMax:      messageMax,
			MessageWindow:   messageWindow,
			MessageCooldown: messageCooldown,
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Rooms: RoomsConfig{
			CacheTTL: roomTTL,
		},
	}

	return cfg, nil
}

// Addr returns host:port for the listener.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LiveEnabled reports whether live tokens can be minted.
func (c *LiveKitConfig) LiveEnabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
