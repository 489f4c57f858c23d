package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables read for defaults.
const (
	EnvToken       = "GITHUB_TOKEN"
	EnvAPIURL      = "GHD_API_URL"
	EnvEnvironment = "GHD_ENVIRONMENT"
	EnvTimeout     = "GHD_TIMEOUT"
)

// ErrInvalid marks missing or malformed user input.
var ErrInvalid = errors.New("invalid configuration")

// Config holds everything one invocation needs.
type Config struct {
	Repository  string
	Credential  Credential
	APIURL      string
	Environment string
	Timeout     time.Duration
	TrustOrder  bool
	SkipFailed  bool
	Verbose     bool
}

// Validate checks the settings that must hold before any request is made.
func (c *Config) Validate() error {
	if err := validateRepo(c.Repository); err != nil {
		return err
	}
	if c.Credential.Empty() {
		return fmt.Errorf("%w: no token provided (use --token, %s or the OS keyring)", ErrInvalid, EnvToken)
	}
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("%w: api url is empty", ErrInvalid)
	}
	if strings.TrimSpace(c.Environment) == "" {
		return fmt.Errorf("%w: environment is empty", ErrInvalid)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalid, c.Timeout)
	}
	return nil
}

// validateRepo checks that the repository string is in "owner/repo" format.
// Character legality is left to URL construction.
func validateRepo(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: no repository provided", ErrInvalid)
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: invalid repository %q: must be in owner/repo format", ErrInvalid, s)
	}
	return nil
}

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// GetDuration retrieves an environment variable as a duration or returns
// fallback when unset. A malformed value is an error rather than a silent
// fallback.
func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return d, nil
}
