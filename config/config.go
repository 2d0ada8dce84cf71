// Package config provides configuration management for the blog API.
// It handles loading and validation of configuration values from environment variables,
// with support for required variables, default values, and collective error reporting.
package config

import (
	"fmt"
	// `os` package provides operating system functionalities, like reading environment variables.
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// PoolConfig represents configuration for the PostgreSQL connection pool.
type PoolConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxSize  int
}

// MongoConfig holds the document-store connection settings.
type MongoConfig struct {
	URL      string
	Database string
}

// StoreConfig selects and configures the persistent store backend.
type StoreConfig struct {
	Driver         string
	Postgres       *PoolConfig
	MigrationsPath string
	Mongo          *MongoConfig
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	JWTSecret             string        // Secret key for signing JWTs
	TokenDuration         time.Duration // Validity window of bearer tokens
	PasswordResetDuration time.Duration // Validity window of password-reset tokens
	BcryptCost            int
}

// MailConfig holds SMTP settings. An empty Host selects the logging mailer.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port               string // Port for the HTTP server
	FrontendURL        string // Base URL used to build password-reset links
	UploadsDir         string
	CORSAllowedOrigins []string
	ResetSweepInterval time.Duration
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	Store  *StoreConfig
	Auth   *AuthConfig
	Mail   *MailConfig
	Server *ServerConfig
}

// Helper function to get a required environment variable.
// Appends an error to the errors slice if the variable is not set.
func getRequiredEnv(key string, errors *[]string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		*errors = append(*errors, fmt.Sprintf("missing required environment variable: %s", key))
		return "" // Return empty string, error is collected
	}
	return value
}

// Helper function to get an optional environment variable with a default string value.
func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get an optional environment variable parsed as an int.
// Uses defaultValue if not set or if parsing fails. Appends an error if parsing fails.
func getOptionalEnvInt(key string, defaultValue int, errors *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err))
		return defaultValue // Return default, error is collected
	}
	return valueInt
}

// Helper function to get an optional environment variable parsed as time.Duration.
// `time.ParseDuration` expects a string like "15m", "1h30s".
func getOptionalEnvDuration(key string, defaultValue time.Duration, errors *[]string) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected duration string, got '%s': %v", key, valueStr, err))
		return defaultValue // Return default, error is collected
	}
	if valueDuration <= 0 {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: duration must be positive, got '%s'", key, valueStr))
		return defaultValue
	}
	return valueDuration
}

// clampPoolSize keeps the pool size between 5 and 100, recording a note when it had to clamp.
func clampPoolSize(size int, varName string, errors *[]string) int {
	if size < 5 {
		*errors = append(*errors, fmt.Sprintf("pool size for %s (%d) is less than minimum 5", varName, size))
		return 5
	}
	if size > 100 {
		*errors = append(*errors, fmt.Sprintf("pool size for %s (%d) is greater than maximum 100", varName, size))
		return 100
	}
	return size
}

// splitList turns "a, b,c" into ["a" "b" "c"], dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadStoreConfig(errors *[]string) *StoreConfig {
	driver := strings.ToLower(getOptionalEnv("STORE_DRIVER", StoreDriverPostgres))
	storeCfg := &StoreConfig{
		Driver:         driver,
		MigrationsPath: getOptionalEnv("MIGRATIONS_PATH", "./migrations"),
	}

	switch driver {
	case StoreDriverPostgres:
		storeCfg.Postgres = &PoolConfig{
			Host:     getOptionalEnv("DB_HOST", "localhost"),
			Port:     getOptionalEnvInt("DB_PORT", 5432, errors),
			User:     getRequiredEnv("DB_USER", errors),
			Password: getRequiredEnv("DB_PASSWORD", errors),
			DBName:   getRequiredEnv("DB_NAME", errors),
			MaxSize:  clampPoolSize(getOptionalEnvInt("DB_POOL_SIZE", 10, errors), "DB_POOL_SIZE", errors),
		}
	case StoreDriverMongo:
		storeCfg.Mongo = &MongoConfig{
			URL:      getRequiredEnv("MONGODB_URL", errors),
			Database: getOptionalEnv("MONGODB_DATABASE", "blog"),
		}
	case StoreDriverMemory:
		// Nothing to configure; data lives for the lifetime of the process.
	default:
		*errors = append(*errors, fmt.Sprintf("invalid value for STORE_DRIVER: %q (expected postgres, mongo or memory)", driver))
	}
	return storeCfg
}

// LoadConfig creates and returns an AppConfig by reading and validating environment variables.
// It collects all errors encountered during loading and returns a single error if any exist.
func LoadConfig() (*AppConfig, error) {
	// `errors` slice collects all validation/parsing errors during config loading.
	var errors []string

	storeCfg := loadStoreConfig(&errors)

	// Auth Configuration
	authConfig := &AuthConfig{
		JWTSecret:             getRequiredEnv("JWT_SECRET", &errors),
		TokenDuration:         getOptionalEnvDuration("JWT_TOKEN_DURATION", 30*24*time.Hour, &errors), // 30 days
		PasswordResetDuration: getOptionalEnvDuration("PASSWORD_RESET_DURATION", 10*time.Minute, &errors),
		BcryptCost:            getOptionalEnvInt("BCRYPT_COST", 10, &errors),
	}
	if authConfig.BcryptCost < 4 || authConfig.BcryptCost > 31 {
		errors = append(errors, fmt.Sprintf("invalid value for BCRYPT_COST: %d is outside 4..31", authConfig.BcryptCost))
	}

	// Mail Configuration
	mailConfig := &MailConfig{
		Host:     getOptionalEnv("SMTP_HOST", ""),
		Port:     getOptionalEnvInt("SMTP_PORT", 587, &errors),
		Username: getOptionalEnv("SMTP_USERNAME", ""),
		Password: getOptionalEnv("SMTP_PASSWORD", ""),
		From:     getOptionalEnv("MAIL_FROM", "no-reply@localhost"),
	}

	// Server Configuration
	serverConfig := &ServerConfig{
		// Server port is a string because it's used directly in the listen address (e.g., ":5000").
		Port:               getOptionalEnv("PORT", "5000"),
		FrontendURL:        strings.TrimRight(getOptionalEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		UploadsDir:         getOptionalEnv("UPLOADS_DIR", "./uploads"),
		CORSAllowedOrigins: splitList(getOptionalEnv("CORS_ALLOWED_ORIGINS", "*")),
		ResetSweepInterval: getOptionalEnvDuration("RESET_SWEEP_INTERVAL", 5*time.Minute, &errors),
	}

	// If any errors were collected during loading, return a single aggregated error message.
	if len(errors) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return &AppConfig{
		Store:  storeCfg,
		Auth:   authConfig,
		Mail:   mailConfig,
		Server: serverConfig,
	}, nil
}
