package splitrpc

import "time"

const defaultTimeout = 8 * time.Second

// Config represents the configuration for the remote split procedure client
type Config struct {
	// BaseURL is the base URL of the deployment hosting POST /split-order
	BaseURL string

	// APIKey is sent as X-API-Key; empty disables the header
	APIKey string

	// Timeout bounds a single call; on expiry the caller falls back to the local split
	Timeout time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig
	}
	if c.Timeout < 0 {
		return ErrInvalidConfig
	}
	return nil
}
