package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Recovery RecoveryConfig
	MFA      MFAConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	StorageBackend  string // "memory" or "postgres"
	TrustedProxies  []string
	AllowedOrigins  []string
	CookieDomain    string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	ClientIdleTTL   time.Duration
	SeedDemoUsers   bool
}

type AuthConfig struct {
	ClientTokenSecret      string
	ClientTokenExpiry      time.Duration
	SessionTimeout         time.Duration
	MaxFailedAttempts      int
	LockoutDuration        time.Duration
	MinPasswordLength      int
	BcryptCost             int
	LatencyBaseMs          int
	LatencyJitterMs        int
	LoginRequestsPerMinute int
}

type RecoveryConfig struct {
	CodeTTL            time.Duration
	MaxAttempts        int
	ResendCooldown     time.Duration
	ResetRequestLimit  int
	ResetRequestWindow time.Duration
	ExposeCode         bool // echo issued codes in API responses (never in production)
}

type MFAConfig struct {
	Issuer        string
	EncryptionKey []byte // 32 bytes, AES-256
	PendingTTL    time.Duration
	MaxAttempts   int
}

type EmailConfig struct {
	Provider    string // "log" or "ses"
	AWSRegion   string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	secret := getEnv("CLIENT_TOKEN_SECRET", "")
	if secret == "" {
		return nil, fmt.Errorf("CLIENT_TOKEN_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "clinicauth"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Env:             env,
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", "memory")),
			TrustedProxies:  splitList(getEnv("TRUSTED_PROXIES", "")),
			AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
			CookieDomain:    getEnv("COOKIE_DOMAIN", ""),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", 10*time.Minute),
			ClientIdleTTL:   getEnvAsDuration("CLIENT_IDLE_TTL", 2*time.Hour),
			SeedDemoUsers:   getEnvAsBool("SEED_DEMO_USERS", env != "production"),
		},
		Auth: AuthConfig{
			ClientTokenSecret:      secret,
			ClientTokenExpiry:      getEnvAsDuration("CLIENT_TOKEN_EXPIRY", 30*24*time.Hour),
			SessionTimeout:         getEnvAsDuration("SESSION_TIMEOUT", 30*time.Minute),
			MaxFailedAttempts:      getEnvAsInt("LOGIN_MAX_FAILED_ATTEMPTS", 5),
			LockoutDuration:        getEnvAsDuration("LOGIN_LOCKOUT_DURATION", 30*time.Minute),
			MinPasswordLength:      getEnvAsInt("MIN_PASSWORD_LENGTH", 6),
			BcryptCost:             getEnvAsInt("BCRYPT_COST", 12),
			LatencyBaseMs:          getEnvAsInt("LATENCY_BASE_MS", 0),
			LatencyJitterMs:        getEnvAsInt("LATENCY_JITTER_MS", 0),
			LoginRequestsPerMinute: getEnvAsInt("LOGIN_REQUESTS_PER_MINUTE", 20),
		},
		Recovery: RecoveryConfig{
			CodeTTL:            getEnvAsDuration("RECOVERY_CODE_TTL", 15*time.Minute),
			MaxAttempts:        getEnvAsInt("RECOVERY_MAX_ATTEMPTS", 5),
			ResendCooldown:     getEnvAsDuration("RECOVERY_RESEND_COOLDOWN", 2*time.Minute),
			ResetRequestLimit:  getEnvAsInt("RESET_REQUEST_LIMIT", 3),
			ResetRequestWindow: getEnvAsDuration("RESET_REQUEST_WINDOW", 24*time.Hour),
			ExposeCode:         env != "production" && getEnvAsBool("RECOVERY_EXPOSE_CODE", true),
		},
		MFA: MFAConfig{
			Issuer:      getEnv("MFA_ISSUER", "Clinica"),
			PendingTTL:  getEnvAsDuration("MFA_PENDING_TTL", 5*time.Minute),
			MaxAttempts: getEnvAsInt("MFA_MAX_ATTEMPTS", 5),
		},
		Email: EmailConfig{
			Provider:    strings.ToLower(getEnv("EMAIL_PROVIDER", "log")),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM", "no-reply@clinica.local"),
		},
	}

	if err := validateSecret(secret, env); err != nil {
		return nil, err
	}

	key, err := parseEncryptionKey(getEnv("MFA_ENCRYPTION_KEY", ""), env)
	if err != nil {
		return nil, err
	}
	cfg.MFA.EncryptionKey = key

	if cfg.Server.StorageBackend != "memory" && cfg.Server.StorageBackend != "postgres" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", cfg.Server.StorageBackend)
	}
	if cfg.Server.StorageBackend == "postgres" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required when STORAGE_BACKEND=postgres")
	}
	if cfg.Email.Provider != "log" && cfg.Email.Provider != "ses" {
		return nil, fmt.Errorf("EMAIL_PROVIDER must be log or ses, got %q", cfg.Email.Provider)
	}

	return cfg, nil
}

// validateSecret enforces minimum strength for the client token signing secret
func validateSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("CLIENT_TOKEN_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}
	return nil
}

// parseEncryptionKey decodes a hex AES-256 key. Outside production a fixed
// development key is used when none is configured.
func parseEncryptionKey(raw, env string) ([]byte, error) {
	if raw == "" {
		if env == "production" {
			return nil, fmt.Errorf("MFA_ENCRYPTION_KEY is required in production")
		}
		return []byte("dev-only-mfa-encryption-key-32b!"), nil
	}

	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
