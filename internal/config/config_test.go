package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/pokerledger/internal/settlement"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func base() map[string]string {
	return map[string]string{
		"DISCORD_TOKEN": "token",
		"DATABASE_URL":  "postgres://localhost/poker",
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(base()))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.WebBind)
	assert.Equal(t, "http://localhost:3000", cfg.WebUIBaseURL)
	assert.Equal(t, settlement.PolicyReport, cfg.UnresolvedPolicy)
	assert.Equal(t, 1.0, cfg.RoundingUnit)
	assert.Equal(t, 60, cfg.ReminderIntervalMinutes)
	assert.False(t, cfg.OAuthEnabled())

	// Each boot without a secret gets a fresh random one.
	again, err := FromEnv(envOf(base()))
	require.NoError(t, err)
	assert.Len(t, cfg.JWTSecret, 64)
	assert.NotEqual(t, cfg.JWTSecret, again.JWTSecret)
}

func TestFromEnv_Overrides(t *testing.T) {
	env := base()
	env["DISCORD_REDIRECT_URI"] = "https://poker.example.com/api/auth/callback"
	env["DISCORD_CLIENT_ID"] = "id"
	env["DISCORD_CLIENT_SECRET"] = "secret"
	env["JWT_SECRET"] = "jwt"
	env["UNRESOLVED_POLICY"] = "split"
	env["ROUNDING_UNIT"] = "100"
	env["REMINDER_INTERVAL_MINUTES"] = "15"

	cfg, err := FromEnv(envOf(env))
	require.NoError(t, err)

	assert.Equal(t, "https://poker.example.com", cfg.WebUIBaseURL)
	assert.Equal(t, "jwt", cfg.JWTSecret)
	assert.Equal(t, settlement.PolicySplitEven, cfg.UnresolvedPolicy)
	assert.Equal(t, 100.0, cfg.RoundingUnit)
	assert.Equal(t, 15, cfg.ReminderIntervalMinutes)
	assert.True(t, cfg.OAuthEnabled())

	env["WEB_UI_BASE_URL"] = "https://ui.example.com"
	cfg, err = FromEnv(envOf(env))
	require.NoError(t, err)
	assert.Equal(t, "https://ui.example.com", cfg.WebUIBaseURL)
}

func TestFromEnv_OAuthNeedsJWTSecret(t *testing.T) {
	env := base()
	env["DISCORD_CLIENT_ID"] = "id"
	env["DISCORD_CLIENT_SECRET"] = "secret"

	_, err := FromEnv(envOf(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"missing token", "DISCORD_TOKEN", ""},
		{"missing database", "DATABASE_URL", ""},
		{"unknown policy", "UNRESOLVED_POLICY", "ignore"},
		{"zero unit", "ROUNDING_UNIT", "0"},
		{"bad unit", "ROUNDING_UNIT", "abc"},
		{"negative interval", "REMINDER_INTERVAL_MINUTES", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := base()
			env[tt.key] = tt.val
			_, err := FromEnv(envOf(env))
			assert.Error(t, err)
		})
	}
}

func TestExtractBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", extractBaseURL("::bad"))
	assert.Equal(t, "http://a.b:8080", extractBaseURL("http://a.b:8080/x/y"))
}
