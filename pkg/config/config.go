package config

import (
	"fmt"
	"os"

	"github.com/opscart/k8s-replica-scaler/pkg/models"
)

// DefaultListLimit bounds a namespace-wide deployment listing.
const DefaultListLimit = 60

// Config holds the full configuration for one reconciliation run. It is
// populated from flags and environment at startup and passed explicitly into
// every component constructor; there is no process-wide mutable state.
type Config struct {
	// Target selection
	Namespace     string
	Deployments   []string
	NamespaceWide bool

	// Scaling
	ScaleOut        bool
	ScaleIn         bool
	DefaultReplicas int32
	UserOverrode    bool

	// Release inspection
	ReleaseCheck bool
	ReleaseLabel string

	// API calls
	TimeoutSeconds int64
	ListLimit      int64

	// Output
	LogLevel  string
	Output    string // text, json
	ShowUsage bool
	ReportCSV string

	// Storage
	SaveResults    bool
	StorageEnabled bool
	DatabaseURL    string
	ClusterID      string

	// Usage annotation
	PrometheusURL string
}

// NewConfig creates a configuration with defaults matching the CLI defaults.
func NewConfig() *Config {
	return &Config{
		DefaultReplicas: 1,
		ReleaseCheck:    true,
		ReleaseLabel:    "release",
		TimeoutSeconds:  60,
		ListLimit:       DefaultListLimit,
		LogLevel:        "info",
		Output:          "text",
		ClusterID:       "default",
		StorageEnabled:  getEnvBool("STORAGE_ENABLED", true),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		PrometheusURL:   getEnv("PROMETHEUS_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

// Direction returns the scale direction selected by the run's flags.
func (c *Config) Direction() models.Direction {
	switch {
	case c.ScaleOut:
		return models.DirectionOut
	case c.ScaleIn:
		return models.DirectionIn
	default:
		return models.DirectionNone
	}
}

// Validate checks the configuration before any cluster call is made. Every
// error returned here is a fatal configuration error.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace not supplied")
	}
	if c.ScaleIn && c.ScaleOut {
		return fmt.Errorf("cannot specify both a scale-in and scale-out event")
	}
	if !c.ReleaseCheck && !c.UserOverrode {
		return fmt.Errorf("replicas must be specified when not running a release check")
	}
	if (c.ScaleIn || c.ScaleOut) && !c.NamespaceWide && len(c.Deployments) == 0 {
		return fmt.Errorf("deployments must be passed in as arguments unless --namespace-wide is used or no scaling is occurring")
	}
	if c.DefaultReplicas < 0 {
		return fmt.Errorf("replicas must be non-negative, got %d", c.DefaultReplicas)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutSeconds)
	}
	if c.Output != "text" && c.Output != "json" {
		return fmt.Errorf("output must be text or json, got %q", c.Output)
	}
	if c.SaveResults && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when saving results")
	}
	return nil
}
