package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/tally/pkg/channel"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/records"
	"github.com/agentstation/tally/pkg/store"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "TALLY"

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Backend
	BackendURL  string
	HTTPTimeout time.Duration

	// Controller
	Target int

	Store   StoreConfig
	Redis   RedisConfig
	Channel ChannelConfig

	// Aliases extends the default payload aliases.
	Aliases records.Aliases

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// StoreConfig selects where the record slot lives.
type StoreConfig struct {
	Driver string
	Dir    string
	Key    string
}

// RedisConfig holds the Redis connection settings of the redis driver.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// ChannelConfig configures the push channel.
type ChannelConfig struct {
	Transport         string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (TALLY_ prefix)
// 3. .env files
// 4. Config file (~/.tally.yaml or ./.tally.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".tally")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit file must exist and parse
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "cannot read config file", err)
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		BackendURL:  strings.TrimSpace(v.GetString("backend_url")),
		HTTPTimeout: v.GetDuration("http.timeout"),
		Target:      v.GetInt("target"),

		Store: StoreConfig{
			Driver: v.GetString("store.driver"),
			Dir:    v.GetString("store.dir"),
			Key:    v.GetString("store.key"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		Channel: ChannelConfig{
			Transport:         v.GetString("channel.transport"),
			ReconnectAttempts: v.GetInt("channel.reconnect_attempts"),
			ReconnectDelay:    v.GetDuration("channel.reconnect_delay"),
		},

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}

	if err := v.UnmarshalKey("aliases", &config.Aliases); err != nil {
		return nil, errors.NewConfigError("config", "invalid aliases", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("no_color", false)
	v.SetDefault("format", "")
	v.SetDefault("backend_url", "")
	v.SetDefault("http.timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("target", constants.DefaultTarget)
	v.SetDefault("store.driver", string(store.DriverFile))
	v.SetDefault("store.dir", DefaultStateDir())
	v.SetDefault("store.key", constants.DefaultStoreKey)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", store.DefaultRedisPrefix)
	v.SetDefault("channel.transport", string(channel.TransportSocketIO))
	v.SetDefault("channel.reconnect_attempts", constants.DefaultReconnectAttempts)
	v.SetDefault("channel.reconnect_delay", constants.DefaultReconnectDelay)
	v.SetDefault("log_level", "")
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Target <= 0 {
		return errors.NewConfigError("target", "must be positive", nil)
	}
	if _, ok := store.ParseDriver(c.Store.Driver); !ok {
		return errors.NewConfigError("store.driver", "must be one of file, redis, memory; got "+c.Store.Driver, nil)
	}
	switch channel.Transport(c.Channel.Transport) {
	case channel.TransportSocketIO, channel.TransportSSE, channel.TransportNone:
	default:
		return errors.NewConfigError("channel.transport", "must be one of socketio, sse, none; got "+c.Channel.Transport, nil)
	}
	if c.HTTPTimeout < 0 || c.Channel.ReconnectDelay < 0 {
		return errors.NewConfigError("config", "durations cannot be negative", nil)
	}
	return nil
}

// RequireBackend reports a configuration error when no backend URL is set.
func (c *Config) RequireBackend() error {
	if c.BackendURL == "" {
		return errors.NewConfigError("backend_url", "not set; use --backend or "+EnvPrefix+"_BACKEND_URL", nil)
	}
	return nil
}

// StoreOpenConfig converts the slot settings for store.Open.
func (c *Config) StoreOpenConfig() store.Config {
	driver, _ := store.ParseDriver(c.Store.Driver)
	return store.Config{
		Driver: driver,
		Dir:    c.Store.Dir,
		Redis: store.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		},
	}
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel, backendURL string) {
	c.Verbose = c.Verbose || verbose
	c.Quiet = c.Quiet || quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if backendURL != "" {
		c.BackendURL = strings.TrimSpace(backendURL)
	}
}

// DefaultStateDir is $XDG_STATE_HOME/tally, falling back to
// ~/.local/state/tally.
func DefaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "tally")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "tally")
	}
	return filepath.Join(os.TempDir(), "tally")
}

// loadEnvFiles loads environment variables from .env files.
// Variables already set in the environment are not overridden.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
