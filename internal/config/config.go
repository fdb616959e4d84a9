// This file defines the configuration structure for the application.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	// use godotenv so that secrets such as the GitHub token can live in .env
	"github.com/joho/godotenv"
	// use Viper for loading the config.yml file.
	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port            int    `mapstructure:"port"`
	RefreshInterval int    `mapstructure:"refresh_interval"`
	PageSize        int    `mapstructure:"page_size"`
	LogLevel        string `mapstructure:"log_level"`
	Database        struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Registry struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"registry"`
	BrowserState struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"browser_state"`
	Plugins struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"plugins"`
	Patches struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"patches"`
	GitHub struct {
		APIURL         string `mapstructure:"api_url"`
		RawURL         string `mapstructure:"raw_url"`
		Token          string `mapstructure:"token"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
		RetryCount     int    `mapstructure:"retry_count"`
	} `mapstructure:"github"`
	Catalog struct {
		PluginQuery     string `mapstructure:"plugin_query"`
		PatchQuery      string `mapstructure:"patch_query"`
		PerPage         int    `mapstructure:"per_page"`
		MaxPages        int    `mapstructure:"max_pages"`
		IndexPatchFiles bool   `mapstructure:"index_patch_files"`
	} `mapstructure:"catalog"`
}

// Timeout is the bounded duration of a single remote request.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.GitHub.TimeoutSeconds) * time.Second
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	// A missing .env is fine; a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")    // or "yaml"
	v.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with an "APPSTORE_" prefix.
	// e.g., APPSTORE_GITHUB_TOKEN will override the `github.token` key.
	v.SetEnvPrefix("APPSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	v.SetDefault("port", 8080)
	v.SetDefault("refresh_interval", 360)
	v.SetDefault("page_size", 20)
	v.SetDefault("log_level", "info")
	v.SetDefault("database.path", "./appstore.db")
	v.SetDefault("registry.path", "./appstore_registry.json")
	v.SetDefault("browser_state.path", "./appstore_browser.json")
	v.SetDefault("plugins.path", "./plugins")
	v.SetDefault("patches.path", "./patches")
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("github.raw_url", "https://raw.githubusercontent.com")
	v.SetDefault("github.token", "")
	v.SetDefault("github.timeout_seconds", 30)
	v.SetDefault("github.retry_count", 2)
	v.SetDefault("catalog.plugin_query", "topic:koreader-plugin")
	v.SetDefault("catalog.patch_query", "topic:koreader-user-patch")
	v.SetDefault("catalog.per_page", 100)
	v.SetDefault("catalog.max_pages", 10)
	v.SetDefault("catalog.index_patch_files", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
