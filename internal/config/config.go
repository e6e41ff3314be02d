package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"ckd-egfr-server/internal/batch"
)

// Supported database drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for our application
type Config struct {
	Port        string
	Origin      string
	Environment string
	LogLevel    string
	Database    DatabaseConfig
	Batch       BatchConfig
	History     HistoryConfig
	Export      ExportConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	Path     string
	DSN      string
}

// BatchConfig controls CSV uploads
type BatchConfig struct {
	DefaultSchema string
	MaxUploadMB   int
}

// HistoryConfig controls how long calculation history is kept.
// RetentionDays of 0 keeps entries forever.
type HistoryConfig struct {
	RetentionDays     int
	RetentionSchedule string
}

// ExportConfig holds the optional S3 archive for exported batches
type ExportConfig struct {
	Bucket string
	Prefix string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	schemaName := getEnv("BATCH_DEFAULT_SCHEMA", "A")
	if _, err := batch.ParseSchema(schemaName); err != nil {
		return nil, fmt.Errorf("invalid BATCH_DEFAULT_SCHEMA: %w", err)
	}

	maxUploadMB, err := strconv.Atoi(getEnv("BATCH_MAX_UPLOAD_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid BATCH_MAX_UPLOAD_MB: %w", err)
	}
	if maxUploadMB <= 0 {
		return nil, fmt.Errorf("invalid BATCH_MAX_UPLOAD_MB: must be positive, got %d", maxUploadMB)
	}

	retentionDays, err := strconv.Atoi(getEnv("HISTORY_RETENTION_DAYS", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_RETENTION_DAYS: %w", err)
	}
	if retentionDays < 0 {
		return nil, fmt.Errorf("invalid HISTORY_RETENTION_DAYS: must not be negative, got %d", retentionDays)
	}

	return &Config{
		Port:        getEnv("PORT", "3001"),
		Origin:      getEnv("ORIGIN", "http://localhost:4200"),
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database:    dbConfig,
		Batch: BatchConfig{
			DefaultSchema: schemaName,
			MaxUploadMB:   maxUploadMB,
		},
		History: HistoryConfig{
			RetentionDays:     retentionDays,
			RetentionSchedule: getEnv("HISTORY_RETENTION_SCHEDULE", "@daily"),
		},
		Export: ExportConfig{
			Bucket: getEnv("EXPORT_BUCKET", ""),
			Prefix: getEnv("EXPORT_PREFIX", "exports/"),
		},
	}, nil
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	driver := strings.ToLower(getEnv("DB_DRIVER", DriverMySQL))

	defaultPort := "3306"
	if driver == DriverPostgres {
		defaultPort = "5432"
	}

	dbConfig := DatabaseConfig{
		Driver:   driver,
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", defaultPort),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "ckd"),
		Path:     getEnv("DB_PATH", "data/ckd.db"),
	}

	// Build DSN (Data Source Name) for the selected driver
	switch driver {
	case DriverMySQL:
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	case DriverPostgres:
		dbConfig.DSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			dbConfig.Host, dbConfig.Username, dbConfig.Password, dbConfig.Name, dbConfig.Port)
	case DriverSQLite:
		dbConfig.DSN = dbConfig.Path
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid DB_DRIVER: %q is not one of mysql, postgres, sqlite", driver)
	}

	return dbConfig, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
