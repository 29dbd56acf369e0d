// Package config handles the configuration directory, the optional
// config.toml file and the paths derived from them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// AppName is the application directory name.
	AppName = "todo"

	// ConfigFile is the optional settings filename.
	ConfigFile = "config.toml"

	// CredentialsFile is the file-backed key store filename.
	CredentialsFile = "credentials.json"

	// DatabaseFile is the SQLite-backed key store filename.
	DatabaseFile = "todo.db"

	// IdentityFile holds the age identity used to seal stored credentials.
	IdentityFile = "identity.age"

	// DefaultGoogleClientFile is the Google OAuth client credentials filename.
	DefaultGoogleClientFile = "google_client.json"

	// DefaultAPIURL is used when neither the file, the environment nor a
	// flag provides one.
	DefaultAPIURL = "http://localhost:8000"

	// DefaultTimeout bounds each API request.
	DefaultTimeout = 10 * time.Second

	// APIURLEnv overrides api_url from the config file.
	APIURLEnv = "TODO_API_URL"
)

// Storage backends for the persisted session token.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// APIURL is the base URL of the todo API.
	APIURL string

	// Storage selects the key store backend: "file" or "sqlite".
	Storage string

	// EncryptToken seals the stored token with an age identity.
	EncryptToken bool

	// Timeout bounds each API request. Zero disables the bound.
	Timeout time.Duration

	// GoogleClientFile is the OAuth client credentials file, relative to Dir
	// unless absolute.
	GoogleClientFile string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool
}

// fileConfig mirrors config.toml.
type fileConfig struct {
	APIURL       string       `toml:"api_url"`
	Storage      string       `toml:"storage"`
	EncryptToken bool         `toml:"encrypt_token"`
	Timeout      *string      `toml:"timeout"`
	Google       googleConfig `toml:"google"`
}

type googleConfig struct {
	ClientFile string `toml:"client_file"`
}

// New creates a Config for the default or specified config directory and
// loads config.toml from it if present.
// If configDir is empty, uses XDG_CONFIG_HOME/todo or $HOME/.config/todo.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{
		Dir:              dir,
		APIURL:           DefaultAPIURL,
		Storage:          StorageFile,
		Timeout:          DefaultTimeout,
		GoogleClientFile: DefaultGoogleClientFile,
	}
	if err := cfg.load(); err != nil {
		return nil, err
	}
	if env := strings.TrimSpace(os.Getenv(APIURLEnv)); env != "" {
		cfg.APIURL = env
	}
	return cfg, nil
}

// load merges config.toml into c. A missing file leaves the defaults.
func (c *Config) load() error {
	data, err := os.ReadFile(c.Path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if fc.APIURL != "" {
		c.APIURL = fc.APIURL
	}
	switch fc.Storage {
	case "":
	case StorageFile, StorageSQLite:
		c.Storage = fc.Storage
	default:
		return fmt.Errorf("parse config: unknown storage %q", fc.Storage)
	}
	c.EncryptToken = fc.EncryptToken
	if fc.Timeout != nil {
		d, err := time.ParseDuration(*fc.Timeout)
		if err != nil || d < 0 {
			return fmt.Errorf("parse config: invalid timeout %q", *fc.Timeout)
		}
		c.Timeout = d
	}
	if fc.Google.ClientFile != "" {
		c.GoogleClientFile = fc.Google.ClientFile
	}
	return nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// Path returns the path to config.toml.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// CredentialsPath returns the path of the file-backed key store.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.Dir, CredentialsFile)
}

// DatabasePath returns the path of the SQLite-backed key store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Dir, DatabaseFile)
}

// IdentityPath returns the path of the age identity file.
func (c *Config) IdentityPath() string {
	return filepath.Join(c.Dir, IdentityFile)
}

// GoogleClientPath returns the path to the Google OAuth client credentials.
func (c *Config) GoogleClientPath() string {
	if filepath.IsAbs(c.GoogleClientFile) {
		return c.GoogleClientFile
	}
	return filepath.Join(c.Dir, c.GoogleClientFile)
}

// HasGoogleClient checks if the Google OAuth client credentials file exists.
func (c *Config) HasGoogleClient() bool {
	_, err := os.Stat(c.GoogleClientPath())
	return err == nil
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}
