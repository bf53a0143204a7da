// Package config loads the appwatch configuration with the precedence
// defaults < config file < environment. The config file is optional YAML
// at {data-dir}/config.yaml; environment variables use the APPWATCH_
// prefix with dots and dashes mapped to underscores (e.g.
// APPWATCH_WATCH_INTERVAL).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyMaxConcurrentChecks = "max-concurrent-checks"
	KeyGitHubToken         = "github.token"
	KeyHTTPTimeout         = "timeouts.http"
	KeyWingetTimeout       = "timeouts.winget"
	KeyBrewTimeout         = "timeouts.brew"
	KeyWatchInterval       = "watch.interval"
	KeyWatchNotify         = "watch.notify"
	KeyHistoryEnabled      = "history.enabled"
	KeyLogLevel            = "log.level"
	KeyLogFile             = "log.file"
)

const (
	envPrefix      = "APPWATCH"
	configFileName = "config.yaml"

	// DefaultWatchInterval is how often the watch daemon re-checks when
	// the config does not say otherwise.
	DefaultWatchInterval = 6 * time.Hour
)

// Config is the resolved configuration for one process.
type Config struct {
	// DataDir holds the registry, history database, config file, and
	// daemon pid file.
	DataDir string

	MaxConcurrentChecks int

	// GitHubToken raises the GitHub API rate limit. Optional.
	GitHubToken string

	HTTPTimeout   time.Duration
	WingetTimeout time.Duration
	BrewTimeout   time.Duration

	WatchInterval time.Duration
	WatchNotify   bool

	HistoryEnabled bool

	LogLevel string
	LogFile  string
}

// DefaultDir returns ~/.appwatch, the default data directory.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".appwatch"), nil
}

// Load resolves the configuration for the given data directory. A missing
// config file is not an error; a malformed one is.
func Load(dataDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path := filepath.Join(dataDir, configFileName)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	cfg := &Config{
		DataDir:             dataDir,
		MaxConcurrentChecks: v.GetInt(KeyMaxConcurrentChecks),
		GitHubToken:         v.GetString(KeyGitHubToken),
		HTTPTimeout:         v.GetDuration(KeyHTTPTimeout),
		WingetTimeout:       v.GetDuration(KeyWingetTimeout),
		BrewTimeout:         v.GetDuration(KeyBrewTimeout),
		WatchInterval:       v.GetDuration(KeyWatchInterval),
		WatchNotify:         v.GetBool(KeyWatchNotify),
		HistoryEnabled:      v.GetBool(KeyHistoryEnabled),
		LogLevel:            v.GetString(KeyLogLevel),
		LogFile:             v.GetString(KeyLogFile),
	}

	// GITHUB_TOKEN is the conventional variable name; honor it when the
	// prefixed form is absent.
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	}
	return cfg, nil
}

// RegistryPath returns the path of the app registry file.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "apps.json")
}

// HistoryPath returns the path of the check history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// PIDFilePath returns the path of the watch daemon's pid file.
func (c *Config) PIDFilePath() string {
	return filepath.Join(c.DataDir, "watch.pid")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyMaxConcurrentChecks, 5)
	v.SetDefault(KeyGitHubToken, "")
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)
	v.SetDefault(KeyWingetTimeout, 60*time.Second)
	v.SetDefault(KeyBrewTimeout, 30*time.Second)
	v.SetDefault(KeyWatchInterval, DefaultWatchInterval)
	v.SetDefault(KeyWatchNotify, true)
	v.SetDefault(KeyHistoryEnabled, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
}
