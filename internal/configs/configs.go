/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures server parameters by reading operating system environment variables,
including the running environment, port, CORS allowed origins, the data directory
for the entity store, and optional S3-compatible avatar storage.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// DataDir is the directory holding the entity store's collection files.
	DataDir string

	// Security Settings
	AllowedOrigins []string

	// S3 Avatar Storage Settings. Avatar offloading is enabled only when
	// S3BucketName is set; otherwise avatars are stored inline.
	S3BucketName      string
	S3Endpoint        string
	S3PublicBaseURL   string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// S3Enabled reports whether avatar object storage is configured.
func (c *AppConfig) S3Enabled() bool {
	return c.S3BucketName != ""
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	cfg.DataDir = os.Getenv("DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}

	// --- Security Settings ---
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{}
	}

	// --- S3 Avatar Storage Settings (optional) ---
	cfg.S3BucketName = os.Getenv("S3_BUCKET_NAME")
	if cfg.S3BucketName != "" {
		cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
		if cfg.S3Endpoint == "" {
			return nil, fmt.Errorf("S3_ENDPOINT environment variable is required when S3_BUCKET_NAME is set")
		}

		cfg.S3AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
		if cfg.S3AccessKeyID == "" {
			return nil, fmt.Errorf("S3_ACCESS_KEY_ID environment variable is required when S3_BUCKET_NAME is set")
		}

		cfg.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")
		if cfg.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_SECRET_ACCESS_KEY environment variable is required when S3_BUCKET_NAME is set")
		}

		cfg.S3PublicBaseURL = os.Getenv("S3_PUBLIC_BASE_URL")
	}

	return cfg, nil
}
