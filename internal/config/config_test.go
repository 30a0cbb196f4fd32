package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Save original env and restore after test
	originalEnv := os.Environ()
	defer func() {
		os.Clearenv()
		for _, env := range originalEnv {
			for i, c := range env {
				if c == '=' {
					os.Setenv(env[:i], env[i+1:])
					break
				}
			}
		}
	}()

	// Clear env to test defaults
	os.Clearenv()

	cfg := Load()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port", cfg.Port, 8080},
		{"LogLevel", cfg.LogLevel, "info"},
		{"StoreProvider", cfg.StoreProvider, "postgres"},
		{"QueueProvider", cfg.QueueProvider, "nats"},
		{"CacheProvider", cfg.CacheProvider, "none"},
		{"Region", cfg.Region, "us-east-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s=%v, got %v", tt.name, tt.expected, tt.got)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	originalBucket := os.Getenv("UPLOAD_BUCKET")
	originalLogLevel := os.Getenv("LOG_LEVEL")
	defer func() {
		os.Setenv("UPLOAD_BUCKET", originalBucket)
		os.Setenv("LOG_LEVEL", originalLogLevel)
	}()

	os.Setenv("UPLOAD_BUCKET", "claims-uploads")
	os.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.UploadBucket != "claims-uploads" {
		t.Errorf("expected upload bucket 'claims-uploads', got %s", cfg.UploadBucket)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}
}
