package landmark

import (
	"fmt"
	"time"
)

const (
	DefaultBinary  = "hand-landmarks"
	DefaultTimeout = 200 * time.Millisecond

	// ParseErrorsThreshold is the number of consecutive malformed responses
	// after which the estimator is considered broken
	ParseErrorsThreshold = 5
)

// Config describes the landmark estimator sidecar. The sidecar reads frame
// requests on stdin and answers each with a JSON line on stdout.
type Config struct {
	Binary  string        `yaml:"binary" json:"binary"`   // Estimator executable
	Args    []string      `yaml:"args" json:"args"`       // Extra arguments
	Timeout time.Duration `yaml:"timeout" json:"timeout"` // Longest wait for one response
	Mirror  bool          `yaml:"mirror" json:"mirror"`   // Mirror landmarks horizontally before classifying
}

func DefaultConfig() Config {
	return Config{
		Binary:  DefaultBinary,
		Timeout: DefaultTimeout,
		Mirror:  true,
	}
}

func (c *Config) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("landmark.Config: binary is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("landmark.Config: timeout must be positive: %s", c.Timeout)
	}
	return nil
}
