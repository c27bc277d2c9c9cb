package config

import (
	"os"
	"strings"
	"testing"

	"github.com/opscart/k8s-replica-scaler/pkg/models"
)

func TestNewConfigDefaults(t *testing.T) {
	os.Unsetenv("STORAGE_ENABLED")
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("PROMETHEUS_URL")

	cfg := NewConfig()

	if cfg.DefaultReplicas != 1 {
		t.Errorf("Expected default replicas 1, got %d", cfg.DefaultReplicas)
	}
	if !cfg.ReleaseCheck {
		t.Error("Expected release check enabled by default")
	}
	if cfg.ReleaseLabel != "release" {
		t.Errorf("Expected default release label 'release', got %q", cfg.ReleaseLabel)
	}
	if cfg.TimeoutSeconds != 60 {
		t.Errorf("Expected default timeout 60s, got %d", cfg.TimeoutSeconds)
	}
	if cfg.ListLimit != DefaultListLimit {
		t.Errorf("Expected list limit %d, got %d", DefaultListLimit, cfg.ListLimit)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %q", cfg.LogLevel)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://test")
	os.Setenv("PROMETHEUS_URL", "http://prometheus:9090")
	defer os.Unsetenv("DATABASE_URL")
	defer os.Unsetenv("PROMETHEUS_URL")

	cfg := NewConfig()

	if cfg.DatabaseURL != "postgres://test" {
		t.Errorf("Expected custom database URL, got %q", cfg.DatabaseURL)
	}
	if cfg.PrometheusURL != "http://prometheus:9090" {
		t.Errorf("Expected custom Prometheus URL, got %q", cfg.PrometheusURL)
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		name     string
		scaleOut bool
		scaleIn  bool
		expected models.Direction
	}{
		{"dry run", false, false, models.DirectionNone},
		{"scale out", true, false, models.DirectionOut},
		{"scale in", false, true, models.DirectionIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.ScaleOut = tt.scaleOut
			cfg.ScaleIn = tt.scaleIn
			if d := cfg.Direction(); d != tt.expected {
				t.Errorf("Expected direction %s, got %s", tt.expected, d)
			}
		})
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name          string
		setupConfig   func(*Config)
		expectError   bool
		errorContains string
	}{
		{
			name: "valid dry run",
			setupConfig: func(c *Config) {
				c.Namespace = "default"
			},
			expectError: false,
		},
		{
			name:          "missing namespace",
			setupConfig:   func(c *Config) {},
			expectError:   true,
			errorContains: "namespace",
		},
		{
			name: "conflicting scale flags",
			setupConfig: func(c *Config) {
				c.Namespace = "default"
				c.ScaleIn = true
				c.ScaleOut = true
			},
			expectError:   true,
			errorContains: "scale-in and scale-out",
		},
		{
			name: "no replicas without release check",
			setupConfig: func(c *Config) {
				c.Namespace = "default"
				c.ReleaseCheck = false
			},
			expectError:   true,
			errorContains: "replicas must be specified",
		},
		{
			name: "release check disabled with explicit replicas",
			setupConfig: func(c *Config) {
				c.Namespace = "default"
				c.ReleaseCheck = false
				c.UserOverrode = true
			},
			expectError: false,
		},
		{
			name: "scaling without deployments or namespace-wide",
			setupConfig: func(c *Config) {
				c.Namespace = "default"
				c.ScaleOut = true
			},
			expectError:   true,
			errorContains: "namespace-wide",
		},
		{
			name: "scaling with namespace-wide",
			setupConfig: func(c *Config) {
				c.Namespace = "default"
				c.ScaleOut = true
				c.NamespaceWide = true
			},
			expectError: false,
		},
		{
			name: "scaling with explicit deployments",
			setupConfig: func(c *Config) {
				c.Namespace = "default"
				c.ScaleIn = true
				c.Deployments = []string{"example-deployment"}
			},
			expectError: false,
		},
		{
			name: "dry run needs no deployment list",
			setupConfig: func(c *Config) {
				c.Namespace = "default"
			},
			expectError: false,
		},
		{
			name: "negative replicas",
			setupConfig: func(c *Config) {
				c.Namespace = "default"
				c.DefaultReplicas = -1
			},
			expectError:   true,
			errorContains: "non-negative",
		},
		{
			name: "bad output format",
			setupConfig: func(c *Config) {
				c.Namespace = "default"
				c.Output = "yaml"
			},
			expectError:   true,
			errorContains: "output",
		},
		{
			name: "save without database URL",
			setupConfig: func(c *Config) {
				c.Namespace = "default"
				c.SaveResults = true
				c.DatabaseURL = ""
			},
			expectError:   true,
			errorContains: "DATABASE_URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("DATABASE_URL")
			cfg := NewConfig()
			tt.setupConfig(cfg)

			err := cfg.Validate()

			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
			if tt.expectError && err != nil && tt.errorContains != "" {
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error containing %q, got %q", tt.errorContains, err.Error())
				}
			}
		})
	}
}
