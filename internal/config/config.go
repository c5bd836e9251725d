// Package config resolves the run configuration from flags, environment,
// a YAML config file and a .env file, in that order of precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/studiowebux/frontloader/internal/experiment"
	"github.com/studiowebux/frontloader/internal/transport"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. FRONTLOADER_USERS.
	EnvPrefix = "FRONTLOADER"

	// FilePermissions is the default permission mode for files the tool writes
	FilePermissions = 0644
)

// Configuration keys
const (
	KeyScript          = "script"
	KeyDomain          = "domain"
	KeyUsers           = "users"
	KeyLoops           = "loops"
	KeyBasicAuthUser   = "basic_auth.user"
	KeyBasicAuthPass   = "basic_auth.password"
	KeyDefaultParams   = "default_params"
	KeyDefaultHeaders  = "default_headers"
	KeyConnectTimeout  = "connect_timeout"
	KeyReadTimeout     = "read_timeout"
	KeyInsecure        = "insecure"
	KeyDebugFile       = "debug_file"
	KeyDebugDB         = "debug_db"
	KeyDashboardAddr   = "dashboard_addr"
	KeyLogLevel        = "log_level"
	KeyLogFile         = "log_file"
	KeyHeadless        = "headless"
	KeyKeybindsFile    = "keybinds_file"
	KeySummaryInterval = "summary_interval"
)

// Keys lists every configuration key.
var Keys = []string{
	KeyScript, KeyDomain, KeyUsers, KeyLoops,
	KeyBasicAuthUser, KeyBasicAuthPass, KeyDefaultParams, KeyDefaultHeaders,
	KeyConnectTimeout, KeyReadTimeout, KeyInsecure,
	KeyDebugFile, KeyDebugDB, KeyDashboardAddr,
	KeyLogLevel, KeyLogFile, KeyHeadless, KeyKeybindsFile, KeySummaryInterval,
}

// BasicAuth holds optional HTTP basic credentials.
type BasicAuth struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RunConfig is the resolved configuration of one run.
type RunConfig struct {
	Script         string            `mapstructure:"script"`
	Domain         string            `mapstructure:"domain"`
	Users          int               `mapstructure:"users"`
	Loops          int               `mapstructure:"loops"` // -1 runs until quit
	BasicAuth      BasicAuth         `mapstructure:"basic_auth"`
	DefaultParams  map[string]string `mapstructure:"default_params"`
	DefaultHeaders map[string]string `mapstructure:"default_headers"`
	ConnectTimeout time.Duration     `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration     `mapstructure:"read_timeout"`
	Insecure       bool              `mapstructure:"insecure"`

	DebugFile     string `mapstructure:"debug_file"`
	DebugDB       string `mapstructure:"debug_db"`
	DashboardAddr string `mapstructure:"dashboard_addr"`

	LogLevel        string        `mapstructure:"log_level"`
	LogFile         string        `mapstructure:"log_file"`
	Headless        bool          `mapstructure:"headless"`
	KeybindsFile    string        `mapstructure:"keybinds_file"`
	SummaryInterval time.Duration `mapstructure:"summary_interval"`
}

// SetDefaults registers the default of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyUsers, 1)
	v.SetDefault(KeyLoops, -1)
	v.SetDefault(KeyConnectTimeout, 10*time.Second)
	v.SetDefault(KeyReadTimeout, 500*time.Second)
	v.SetDefault(KeyInsecure, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeySummaryInterval, 5*time.Second)
}

// FlagName returns the command-line flag bound to key, e.g. basic-auth-user.
func FlagName(key string) string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(key)
}

// EnvName returns the environment variable bound to key, e.g. FRONTLOADER_BASIC_AUTH_USER.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// BindFlags binds every flag of flags named after a key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range Keys {
		flag := flags.Lookup(FlagName(key))
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}
	return nil
}

// LoadEnvFile reads FRONTLOADER_* entries of a .env file. They rank below
// every other source.
func LoadEnvFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read .env file %s: %w", path, err)
	}

	envMap, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse .env file %s: %w", path, err)
	}

	for _, key := range Keys {
		if value, ok := envMap[EnvName(key)]; ok {
			v.SetDefault(key, value)
		}
	}
	return nil
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range Keys {
		// Unmarshal only sees keys viper knows about.
		_ = v.BindEnv(key)
	}
	return v
}

// Load resolves the configuration. configFile and envFile are optional.
func Load(v *viper.Viper, configFile, envFile string) (*RunConfig, error) {
	if envFile != "" {
		if err := LoadEnvFile(v, envFile); err != nil {
			return nil, err
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration.
func (c *RunConfig) Validate() error {
	if c.Script == "" {
		return fmt.Errorf("a script is required")
	}
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	u, err := url.Parse(c.Domain)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("domain must be an absolute URL, got %q", c.Domain)
	}
	if c.Users < 1 {
		return fmt.Errorf("users must be at least 1, got %d", c.Users)
	}
	if c.Loops < -1 {
		return fmt.Errorf("loops must be -1 (unbounded) or at least 0, got %d", c.Loops)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.DebugFile != "" && c.DebugDB != "" {
		return fmt.Errorf("debug file and debug db are mutually exclusive")
	}
	if c.SummaryInterval <= 0 {
		return fmt.Errorf("summary interval must be positive")
	}
	return nil
}

// Iterations returns the per-worker loop budget.
func (c *RunConfig) Iterations() experiment.Iterations {
	return experiment.IterationsFromInt(c.Loops)
}

// TransportOptions returns the transport settings of the run.
func (c *RunConfig) TransportOptions() transport.Options {
	return transport.Options{
		BaseURL:        c.Domain,
		DefaultParams:  c.DefaultParams,
		DefaultHeaders: c.DefaultHeaders,
		BasicAuthUser:  c.BasicAuth.User,
		BasicAuthPass:  c.BasicAuth.Password,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		Insecure:       c.Insecure,
		MaxConns:       c.Users,
	}
}
