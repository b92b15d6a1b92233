package marketplace

import "errors"

// BrickOwlConfig holds per-tenant API-key credentials for the BrickOwl API
type BrickOwlConfig struct {
	// APIKey is the seller's API key, sent as the key request parameter
	APIKey string
	// APIBaseURL is the base URL for the BrickOwl API
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// BrickOwlAPIBaseURL is the production API endpoint
const BrickOwlAPIBaseURL = "https://api.brickowl.com/v1"

// ErrBrickOwlMissingAPIKey indicates the API key was not provided
var ErrBrickOwlMissingAPIKey = errors.New("brickowl: api key is required")

// NewBrickOwlConfig creates a new BrickOwl configuration with defaults
func NewBrickOwlConfig(apiKey string) *BrickOwlConfig {
	return &BrickOwlConfig{
		APIKey:         apiKey,
		APIBaseURL:     BrickOwlAPIBaseURL,
		TimeoutSeconds: 30,
	}
}

// Validate validates the BrickOwl configuration
func (c *BrickOwlConfig) Validate() error {
	if c.APIKey == "" {
		return ErrBrickOwlMissingAPIKey
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = BrickOwlAPIBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
