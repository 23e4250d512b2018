package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/store"
)

// isolate keeps LoadConfig away from the developer's home and state dirs.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	t.Setenv(EnvPrefix+"_CONFIG", "")
	return home
}

// TestLoadConfig verifies defaults.
func TestLoadConfig(t *testing.T) {
	home := isolate(t)

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.Target != constants.DefaultTarget {
		t.Errorf("Target = %d, want %d", config.Target, constants.DefaultTarget)
	}
	if config.Store.Driver != string(store.DriverFile) {
		t.Errorf("Store.Driver = %q, want file", config.Store.Driver)
	}
	if want := filepath.Join(home, "state", "tally"); config.Store.Dir != want {
		t.Errorf("Store.Dir = %q, want %q", config.Store.Dir, want)
	}
	if config.Store.Key != constants.DefaultStoreKey {
		t.Errorf("Store.Key = %q, want %q", config.Store.Key, constants.DefaultStoreKey)
	}
	if config.Channel.Transport != "socketio" {
		t.Errorf("Channel.Transport = %q, want socketio", config.Channel.Transport)
	}
	if config.Channel.ReconnectAttempts != constants.DefaultReconnectAttempts {
		t.Errorf("ReconnectAttempts = %d", config.Channel.ReconnectAttempts)
	}
	if config.LogFormat == "" {
		t.Error("LogFormat not set to default")
	}
	if config.BackendURL != "" {
		t.Errorf("BackendURL = %q, want empty", config.BackendURL)
	}
}

// TestConfig_EnvironmentVariables verifies TALLY_ environment variables.
func TestConfig_EnvironmentVariables(t *testing.T) {
	isolate(t)
	t.Setenv("TALLY_BACKEND_URL", " https://forms.example.com ")
	t.Setenv("TALLY_TARGET", "250")
	t.Setenv("TALLY_STORE_DRIVER", "memory")
	t.Setenv("TALLY_CHANNEL_TRANSPORT", "sse")
	t.Setenv("TALLY_CHANNEL_RECONNECT_DELAY", "3s")
	t.Setenv("TALLY_VERBOSE", "true")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.BackendURL != "https://forms.example.com" {
		t.Errorf("BackendURL = %q", config.BackendURL)
	}
	if config.Target != 250 {
		t.Errorf("Target = %d, want 250", config.Target)
	}
	if config.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want memory", config.Store.Driver)
	}
	if config.Channel.Transport != "sse" {
		t.Errorf("Channel.Transport = %q, want sse", config.Channel.Transport)
	}
	if config.Channel.ReconnectDelay != 3*time.Second {
		t.Errorf("ReconnectDelay = %v, want 3s", config.Channel.ReconnectDelay)
	}
	if !config.Verbose {
		t.Error("TALLY_VERBOSE not loaded")
	}
}

// TestConfig_File verifies an explicit config file, aliases included.
func TestConfig_File(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "tally.yaml")
	content := `backend_url: https://forms.example.com
target: 40
store:
  driver: redis
redis:
  addr: localhost:6379
  prefix: "test:"
aliases:
  name: ["Responsável"]
  value: ["Montante"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", config.ConfigFile, path)
	}
	if config.Target != 40 {
		t.Errorf("Target = %d, want 40", config.Target)
	}
	open := config.StoreOpenConfig()
	if open.Driver != store.DriverRedis || open.Redis.Addr != "localhost:6379" || open.Redis.Prefix != "test:" {
		t.Errorf("StoreOpenConfig() = %+v", open)
	}
	if len(config.Aliases.Name) != 1 || config.Aliases.Name[0] != "Responsável" {
		t.Errorf("Aliases.Name = %v", config.Aliases.Name)
	}
	if len(config.Aliases.Value) != 1 || config.Aliases.Value[0] != "Montante" {
		t.Errorf("Aliases.Value = %v", config.Aliases.Value)
	}
}

// TestConfig_MissingFile verifies that an explicit file must exist.
func TestConfig_MissingFile(t *testing.T) {
	isolate(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() succeeded for a missing file")
	}
	var configErr *errors.ConfigError
	if !errors.As(err, &configErr) {
		t.Errorf("error = %T, want *errors.ConfigError", err)
	}
}

// TestConfig_Validate verifies rejected values.
func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Target:  10,
			Store:   StoreConfig{Driver: "file"},
			Channel: ChannelConfig{Transport: "socketio"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero target", mutate: func(c *Config) { c.Target = 0 }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "sqlite" }, wantErr: true},
		{name: "unknown transport", mutate: func(c *Config) { c.Channel.Transport = "grpc" }, wantErr: true},
		{name: "no transport", mutate: func(c *Config) { c.Channel.Transport = "none" }},
		{name: "negative delay", mutate: func(c *Config) { c.Channel.ReconnectDelay = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestConfig_UpdateFromFlags verifies flag precedence.
func TestConfig_UpdateFromFlags(t *testing.T) {
	c := &Config{Format: "yaml", LogLevel: "warn", BackendURL: "https://a.example.com"}

	c.UpdateFromFlags(true, false, true, "", "", "")
	if !c.Verbose || !c.NoColor || c.Format != "yaml" || c.LogLevel != "warn" || c.BackendURL != "https://a.example.com" {
		t.Errorf("empty flags changed config: %+v", c)
	}

	c.UpdateFromFlags(false, false, false, "json", "debug", " https://b.example.com")
	if c.Format != "json" || c.LogLevel != "debug" || c.BackendURL != "https://b.example.com" {
		t.Errorf("flags not applied: %+v", c)
	}
}

// TestConfig_RequireBackend verifies the missing backend error.
func TestConfig_RequireBackend(t *testing.T) {
	c := &Config{}
	if err := c.RequireBackend(); err == nil {
		t.Error("RequireBackend() = nil with no URL")
	}
	c.BackendURL = "https://forms.example.com"
	if err := c.RequireBackend(); err != nil {
		t.Errorf("RequireBackend() = %v", err)
	}
}
