package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), FilePermissions))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	v := New()
	v.Set(KeyScript, "plan.yaml")
	v.Set(KeyDomain, "https://shop.example")

	cfg, err := Load(v, "", "")
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Users)
	assert.Equal(t, -1, cfg.Loops)
	assert.True(t, cfg.Iterations().IsUnbounded())
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 500*time.Second, cfg.ReadTimeout)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.SummaryInterval)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeFile(t, "frontloader.yaml", `
script: flows/checkout.lua
domain: https://shop.example
users: 5
loops: 100
basic_auth:
  user: admin
  password: secret
default_params:
  locale: en
default_headers:
  X-Load-Test: "1"
read_timeout: 30s
`)

	cfg, err := Load(New(), path, "")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Users)
	assert.Equal(t, 100, cfg.Iterations().Count())
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)

	opts := cfg.TransportOptions()
	assert.Equal(t, "https://shop.example", opts.BaseURL)
	assert.Equal(t, "admin", opts.BasicAuthUser)
	assert.Equal(t, "secret", opts.BasicAuthPass)
	assert.Equal(t, map[string]string{"locale": "en"}, opts.DefaultParams)
	assert.Equal(t, "1", opts.DefaultHeaders["x-load-test"])
	assert.Equal(t, 5, opts.MaxConns)
}

func TestLoad_Precedence(t *testing.T) {
	envFile := writeFile(t, ".env", `
FRONTLOADER_DOMAIN=https://from-dotenv.example
FRONTLOADER_READ_TIMEOUT=45s
FRONTLOADER_DEBUG_FILE=debug.log
UNRELATED=ignored
`)
	configFile := writeFile(t, "frontloader.yaml", `
script: plan.yaml
domain: https://from-config.example
users: 5
loops: 10
`)
	t.Setenv("FRONTLOADER_USERS", "25")
	t.Setenv("FRONTLOADER_BASIC_AUTH_USER", "env-user")
	t.Setenv("FRONTLOADER_LOOPS", "20")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int(FlagName(KeyLoops), -1, "")
	flags.String(FlagName(KeyLogLevel), "info", "")
	require.NoError(t, flags.Parse([]string{"--loops=50"}))

	v := New()
	require.NoError(t, BindFlags(v, flags))

	cfg, err := Load(v, configFile, envFile)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Loops, "flag beats env")
	assert.Equal(t, 25, cfg.Users, "env beats config file")
	assert.Equal(t, "env-user", cfg.BasicAuth.User)
	assert.Equal(t, "https://from-config.example", cfg.Domain, "config file beats .env")
	assert.Equal(t, 45*time.Second, cfg.ReadTimeout, ".env beats defaults")
	assert.Equal(t, "debug.log", cfg.DebugFile)
	assert.Equal(t, "info", cfg.LogLevel, "unchanged flag keeps its default")
}

func TestLoad_MissingFiles(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)

	_, err = Load(New(), "", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() RunConfig {
		return RunConfig{
			Script:          "plan.yaml",
			Domain:          "http://localhost:8080",
			Users:           2,
			Loops:           -1,
			ConnectTimeout:  time.Second,
			ReadTimeout:     time.Second,
			SummaryInterval: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr bool
	}{
		{"valid", func(*RunConfig) {}, false},
		{"zero loops", func(c *RunConfig) { c.Loops = 0 }, false},
		{"no script", func(c *RunConfig) { c.Script = "" }, true},
		{"no domain", func(c *RunConfig) { c.Domain = "" }, true},
		{"relative domain", func(c *RunConfig) { c.Domain = "localhost:8080/api" }, true},
		{"no users", func(c *RunConfig) { c.Users = 0 }, true},
		{"loops below -1", func(c *RunConfig) { c.Loops = -2 }, true},
		{"zero connect timeout", func(c *RunConfig) { c.ConnectTimeout = 0 }, true},
		{"zero read timeout", func(c *RunConfig) { c.ReadTimeout = 0 }, true},
		{"two debug sinks", func(c *RunConfig) { c.DebugFile, c.DebugDB = "a", "b" }, true},
		{"zero summary interval", func(c *RunConfig) { c.SummaryInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, "basic-auth-user", FlagName(KeyBasicAuthUser))
	assert.Equal(t, "read-timeout", FlagName(KeyReadTimeout))
	assert.Equal(t, "FRONTLOADER_BASIC_AUTH_USER", EnvName(KeyBasicAuthUser))
	assert.Equal(t, "FRONTLOADER_DASHBOARD_ADDR", EnvName(KeyDashboardAddr))
}
