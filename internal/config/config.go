// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// secretKeyLen is the AES-256 key size in bytes.
const secretKeyLen = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string

	// SecretKey encrypts credential secrets at rest. Nil when
	// SHAREDLOGIN_SECRET_KEY is unset; credential reads and writes then fail
	// with driven.ErrEncryptionKeyNotSet.
	SecretKey []byte

	// DemoPhones are phone prefixes served a synthetic demo credential.
	DemoPhones []string

	// HealthInterval is how often credential health is re-classified.
	HealthInterval time.Duration
}

// HasSecretKey reports whether credential secrets can be read and written.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) == secretKeyLen
}

// Load reads configuration from environment variables and returns a validated Config.
// Optional variables with defaults: SHAREDLOGIN_LISTEN_ADDR (127.0.0.1:8080),
// SHAREDLOGIN_DB_PATH (sharedlogin.db), SHAREDLOGIN_DEMO_PHONES
// (00000000000,99999), SHAREDLOGIN_HEALTH_INTERVAL (1h).
// SHAREDLOGIN_SECRET_KEY must be 64 hex characters when set.
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("SHAREDLOGIN_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "sharedlogin.db"
	if v, ok := os.LookupEnv("SHAREDLOGIN_DB_PATH"); ok {
		dbPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("SHAREDLOGIN_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("SHAREDLOGIN_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != secretKeyLen {
			return nil, fmt.Errorf("SHAREDLOGIN_SECRET_KEY must decode to %d bytes, got %d", secretKeyLen, len(key))
		}
		secretKey = key
	}

	demoPhones := []string{"00000000000", "99999"}
	if v, ok := os.LookupEnv("SHAREDLOGIN_DEMO_PHONES"); ok {
		demoPhones = []string{}
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				demoPhones = append(demoPhones, p)
			}
		}
	}

	healthInterval := time.Hour
	if v, ok := os.LookupEnv("SHAREDLOGIN_HEALTH_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SHAREDLOGIN_HEALTH_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("SHAREDLOGIN_HEALTH_INTERVAL must be positive, got %s", parsed)
		}
		healthInterval = parsed
	}

	return &Config{
		ListenAddr:     listenAddr,
		DBPath:         dbPath,
		SecretKey:      secretKey,
		DemoPhones:     demoPhones,
		HealthInterval: healthInterval,
	}, nil
}
