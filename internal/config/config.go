package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	DefaultReapInterval    = 60 * time.Second
	DefaultRoomGracePeriod = 5 * time.Minute
	DefaultTurnTTL         = 4 * time.Hour
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string

	// ReapInterval is how often empty rooms are swept from the registry.
	ReapInterval time.Duration
	// RoomGracePeriod is how long a room may sit empty before it is swept.
	RoomGracePeriod time.Duration

	StunURLs   []string
	TurnURLs   []string
	TurnSecret string
	TurnTTL    time.Duration
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:     databaseDSN,
		ServerAddr:      serverAddr,
		SigningKey:      signingKey,
		AllowedOrigins:  allowedOrigins,
		ReapInterval:    DefaultReapInterval,
		RoomGracePeriod: DefaultRoomGracePeriod,
		TurnTTL:         DefaultTurnTTL,
	}, nil
}

// Validate checks the fields that may be overridden after NewConfig.
func (c *Config) Validate() error {
	if c.ReapInterval <= 0 {
		return fmt.Errorf("reap interval must be positive")
	}
	if c.RoomGracePeriod <= 0 {
		return fmt.Errorf("room grace period must be positive")
	}
	if len(c.TurnURLs) > 0 {
		if c.TurnSecret == "" {
			return fmt.Errorf("turn secret is required when turn urls are set")
		}
		if c.TurnTTL <= 0 {
			return fmt.Errorf("turn ttl must be positive")
		}
	}
	return nil
}

// TurnEnabled reports whether time-limited TURN credentials can be issued.
func (c *Config) TurnEnabled() bool {
	return len(c.TurnURLs) > 0 && c.TurnSecret != ""
}
