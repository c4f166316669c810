package config

import (
	"os"
	"strconv"
	"time"

	"goresearch/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Pipeline  PipelineConfig
	Artifacts ArtifactConfig
	Sources   SourceConfig
	LogLevel  string

	// Policy holds the gate tables and thresholds every stage reads
	Policy *Policy
}

// DatabaseConfig holds database connection settings. An empty URL selects
// no-op knowledge and retrain hooks.
type DatabaseConfig struct {
	URL    string
	Driver string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// PipelineConfig holds per-run execution settings
type PipelineConfig struct {
	Timeout        time.Duration
	ExtractWorkers int
	PolicyFile     string
}

// ArtifactConfig selects the artifact sink. S3 wins when a bucket is set.
type ArtifactConfig struct {
	Dir        string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
}

// SourceConfig configures the optional HTTP connector for papers
type SourceConfig struct {
	PaperURL      string
	PaperDataPath string
	HTTPTimeout   time.Duration
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:  *loadDatabaseConfig(),
		Server:    *loadServerConfig(),
		Pipeline:  *loadPipelineConfig(),
		Artifacts: *loadArtifactConfig(),
		Sources:   *loadSourceConfig(),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	policy, err := LoadPolicy(config.Pipeline.PolicyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load policy tables")
	}
	config.Policy = policy

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:    getEnvOrDefault("DATABASE_URL", ""),
		Driver: getEnvOrDefault("DATABASE_DRIVER", "postgres"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Timeout:        getEnvDurationOrDefault("PIPELINE_TIMEOUT", 60*time.Second),
		ExtractWorkers: getEnvIntOrDefault("EXTRACT_WORKERS", 4),
		PolicyFile:     getEnvOrDefault("POLICY_FILE", ""),
	}
}

func loadArtifactConfig() *ArtifactConfig {
	return &ArtifactConfig{
		Dir:        getEnvOrDefault("ARTIFACT_DIR", ""),
		S3Bucket:   getEnvOrDefault("ARTIFACT_S3_BUCKET", ""),
		S3Region:   getEnvOrDefault("ARTIFACT_S3_REGION", "us-east-1"),
		S3Endpoint: getEnvOrDefault("ARTIFACT_S3_ENDPOINT", ""),
		S3Prefix:   getEnvOrDefault("ARTIFACT_S3_PREFIX", ""),
	}
}

func loadSourceConfig() *SourceConfig {
	return &SourceConfig{
		PaperURL:      getEnvOrDefault("SOURCE_PAPER_URL", ""),
		PaperDataPath: getEnvOrDefault("SOURCE_PAPER_DATA_PATH", "results"),
		HTTPTimeout:   getEnvDurationOrDefault("SOURCE_HTTP_TIMEOUT", 10*time.Second),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if config.Pipeline.Timeout <= 0 {
		return errors.ConfigInvalid("PIPELINE_TIMEOUT must be positive")
	}
	if config.Pipeline.ExtractWorkers < 1 {
		return errors.ConfigInvalid("EXTRACT_WORKERS must be at least 1")
	}
	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite3" {
		return errors.ConfigInvalid("DATABASE_DRIVER must be postgres or sqlite3")
	}
	return config.Policy.Validate()
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
