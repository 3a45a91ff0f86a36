package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/viper"
	"github.com/sysmanage-labs/projbuilder/internal/branding"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Recognized configuration keys.
const (
	KeyTemplateDir = "template_dir"
	KeyFrontendDir = "frontend_dir"
	KeySkipInstall = "skip_install"
	KeyAssumeYes   = "assume_yes"
	KeyLogLevel    = "log_level"
	KeyLogFormat   = "log_format"
)

// Keys lists every recognized key in display order.
var Keys = []string{KeyTemplateDir, KeyFrontendDir, KeySkipInstall, KeyAssumeYes, KeyLogLevel, KeyLogFormat}

// IsKnown reports whether key is a recognized configuration key.
func IsKnown(key string) bool {
	return slices.Contains(Keys, key)
}

// Settings is the resolved configuration for a single build.
type Settings struct {
	TemplateDir string // relative to the repository root unless absolute
	FrontendDir string // relative to the target directory
	SkipInstall bool
	AssumeYes   bool
	LogLevel    string
	LogFormat   string
}

func init() {
	setDefaults()
}

func setDefaults() {
	viper.SetDefault(KeyTemplateDir, "example")
	viper.SetDefault(KeyFrontendDir, "")
	viper.SetDefault(KeySkipInstall, false)
	viper.SetDefault(KeyAssumeYes, false)
	viper.SetDefault(KeyLogLevel, "warn")
	viper.SetDefault(KeyLogFormat, "text")
}

// Dir returns the path to the config directory (~/.projbuilder/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.projbuilder/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Current returns the resolved settings.
func Current() Settings {
	return Settings{
		TemplateDir: viper.GetString(KeyTemplateDir),
		FrontendDir: viper.GetString(KeyFrontendDir),
		SkipInstall: viper.GetBool(KeySkipInstall),
		AssumeYes:   viper.GetBool(KeyAssumeYes),
		LogLevel:    viper.GetString(KeyLogLevel),
		LogFormat:   viper.GetString(KeyLogFormat),
	}
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
