package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/susu3304/pokerledger/internal/settlement"
)

type Config struct {
	// Discord Bot
	DiscordToken string

	// Discord OAuth2
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string

	// Database
	DatabaseURL string

	// Web Server
	WebBind string
	// WebUIBaseURL is the only browser origin allowed by CORS.
	WebUIBaseURL string

	// Session
	JWTSecret string

	// Settlement
	UnresolvedPolicy settlement.UnresolvedPolicy
	RoundingUnit     float64

	// Default interval for unpaid transfer reminders
	ReminderIntervalMinutes int
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, defaultValue string) string {
		if value := getenv(key); value != "" {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		DiscordToken:        getenv("DISCORD_TOKEN"),
		DatabaseURL:         getenv("DATABASE_URL"),
		WebBind:             get("WEB_BIND", "0.0.0.0:3000"),
		DiscordClientID:     getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret: getenv("DISCORD_CLIENT_SECRET"),
		DiscordRedirectURI:  get("DISCORD_REDIRECT_URI", "http://localhost:3000/api/auth/callback"),
		JWTSecret:           getenv("JWT_SECRET"),
	}

	// The web UI is served next to the OAuth callback unless configured otherwise.
	cfg.WebUIBaseURL = get("WEB_UI_BASE_URL", extractBaseURL(cfg.DiscordRedirectURI))

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	policy, ok := settlement.ParsePolicy(getenv("UNRESOLVED_POLICY"))
	if !ok {
		return nil, fmt.Errorf("UNRESOLVED_POLICY must be %q or %q", settlement.PolicyReport, settlement.PolicySplitEven)
	}
	cfg.UnresolvedPolicy = policy

	unit, err := strconv.ParseFloat(get("ROUNDING_UNIT", "1"), 64)
	if err != nil || unit <= 0 {
		return nil, fmt.Errorf("ROUNDING_UNIT must be a positive number")
	}
	cfg.RoundingUnit = unit

	interval, err := strconv.Atoi(get("REMINDER_INTERVAL_MINUTES", "60"))
	if err != nil || interval <= 0 {
		return nil, fmt.Errorf("REMINDER_INTERVAL_MINUTES must be a positive integer")
	}
	cfg.ReminderIntervalMinutes = interval

	if cfg.JWTSecret == "" {
		if cfg.OAuthEnabled() {
			return nil, fmt.Errorf("JWT_SECRET is required when Discord login is configured")
		}
		// No token can be issued without login.
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate JWT secret: %w", err)
		}
		cfg.JWTSecret = secret
		log.Printf("JWT_SECRET not set, web API is closed until Discord login is configured")
	}

	return cfg, nil
}

// OAuthEnabled reports whether Discord login is configured for the web API.
func (c *Config) OAuthEnabled() bool {
	return c.DiscordClientID != "" && c.DiscordClientSecret != ""
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func extractBaseURL(redirectURI string) string {
	// e.g., "http://localhost:3000/api/auth/callback" -> "http://localhost:3000"
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "http://localhost:3000"
	}

	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}
