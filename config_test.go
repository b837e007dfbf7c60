package authcore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Issuer = "authcore-test"
	cfg.Token.Audience = "api"
	cfg.Token.AccessSecret = "access-secret-key-0123456789abcdef"
	cfg.Token.RefreshSecret = "refresh-secret-key-0123456789abcdef"
	cfg.TwoFactor.Issuer = "authcore-test"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validTestConfig().Validate())

	cases := map[string]func(*Config){
		"missing issuer":         func(c *Config) { c.Token.Issuer = "" },
		"missing audience":       func(c *Config) { c.Token.Audience = "" },
		"shared secrets":         func(c *Config) { c.Token.RefreshSecret = c.Token.AccessSecret },
		"refresh not longer":     func(c *Config) { c.Token.RefreshTTL = c.Token.AccessTTL },
		"zero attempts":          func(c *Config) { c.Limiter.MaxAttempts = 0 },
		"zero window":            func(c *Config) { c.Limiter.Window = 0 },
		"bad signing method":     func(c *Config) { c.Token.SigningMethod = "rs256" },
		"excessive leeway":       func(c *Config) { c.Token.Leeway = 5 * time.Minute },
		"min over max length":    func(c *Config) { c.Password.MinLength = 200; c.Password.MaxLength = 100 },
		"weak argon2 memory":     func(c *Config) { c.Password.Memory = 1024 },
		"sliding past absolute":  func(c *Config) { c.Session.SlidingLifetime = 48 * time.Hour },
		"oversized totp skew":    func(c *Config) { c.TwoFactor.Skew = 10 },
		"zero session lifetime":  func(c *Config) { c.Session.AbsoluteLifetime = 0 },
		"zero reset ttl":         func(c *Config) { c.OneTime.ResetTTL = 0 },
		"seven digit totp codes": func(c *Config) { c.TwoFactor.Digits = 7 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validTestConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
token:
  issuer: file-issuer
  audience: api
  access_secret: access-secret-key-0123456789abcdef
  refresh_secret: refresh-secret-key-0123456789abcdef
two_factor:
  issuer: file-issuer
limiter:
  max_attempts: 7
session:
  absolute_lifetime: 12h
`), 0o600))

	t.Setenv("AUTHCORE_TOKEN__ISSUER", "env-issuer")
	t.Setenv("AUTHCORE_LIMITER__WINDOW", "30m")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// File overrides defaults; environment overrides the file.
	assert.Equal(t, "env-issuer", cfg.Token.Issuer)
	assert.Equal(t, 7, cfg.Limiter.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Limiter.Window)
	assert.Equal(t, 12*time.Hour, cfg.Session.AbsoluteLifetime)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10, cfg.Password.MinLength)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
token:
  issuer: file-issuer
`), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
