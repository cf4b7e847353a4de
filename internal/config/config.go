// Package config loads settings from .env, an optional YAML file and
// TRIAGE_-prefixed environment variables, in increasing precedence.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "TRIAGE"

type Config struct {
	API     APIConfig
	UI      UIConfig
	Log     LogConfig
	OAuth   OAuthConfig
	Storage StorageConfig
	Stub    StubConfig
	Gmail   GmailConfig
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type UIConfig struct {
	PageSize        int
	SearchDebounce  time.Duration
	StepBackOnEmpty bool
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// OAuthConfig enables client-credentials auth against the service when
// TokenURL is set.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

type StorageConfig struct {
	ConfigDir string
	DBPath    string
}

type StubConfig struct {
	Addr   string
	Prefix string
}

type GmailConfig struct {
	CredentialsPath string
}

// Load reads configuration. configFile may be empty; when set it must exist.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	cfg := &Config{}

	cfg.API = APIConfig{
		BaseURL: strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("HTTP_TIMEOUT"), 15*time.Second),
	}

	cfg.UI = UIConfig{
		PageSize:        v.GetInt("PAGE_SIZE"),
		SearchDebounce:  parseDuration(v.GetString("SEARCH_DEBOUNCE"), 300*time.Millisecond),
		StepBackOnEmpty: v.GetBool("STEP_BACK_ON_EMPTY"),
	}
	if cfg.UI.PageSize <= 0 {
		cfg.UI.PageSize = 5
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
		File:   v.GetString("LOG_FILE"),
	}

	cfg.OAuth = OAuthConfig{
		TokenURL:     v.GetString("OAUTH_TOKEN_URL"),
		ClientID:     v.GetString("OAUTH_CLIENT_ID"),
		ClientSecret: v.GetString("OAUTH_CLIENT_SECRET"),
		Scopes:       splitAndTrim(v.GetString("OAUTH_SCOPES")),
	}

	configDir := v.GetString("CONFIG_DIR")
	if configDir == "" {
		configDir = defaultConfigDir()
	}
	cfg.Storage = StorageConfig{
		ConfigDir: configDir,
		DBPath:    v.GetString("DB_PATH"),
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(configDir, "triageterm.db")
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(configDir, "triageterm.log")
	}

	cfg.Stub = StubConfig{
		Addr:   v.GetString("STUB_ADDR"),
		Prefix: v.GetString("STUB_PREFIX"),
	}

	cfg.Gmail = GmailConfig{CredentialsPath: v.GetString("GMAIL_CREDENTIALS")}
	if cfg.Gmail.CredentialsPath == "" {
		cfg.Gmail.CredentialsPath = filepath.Join(configDir, "client_secret.json")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_BASE_URL", "http://localhost:8000/api/v1")
	v.SetDefault("HTTP_TIMEOUT", "15s")

	v.SetDefault("PAGE_SIZE", 5)
	v.SetDefault("SEARCH_DEBOUNCE", "300ms")
	v.SetDefault("STEP_BACK_ON_EMPTY", true)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("OAUTH_TOKEN_URL", "")
	v.SetDefault("OAUTH_CLIENT_ID", "")
	v.SetDefault("OAUTH_CLIENT_SECRET", "")
	v.SetDefault("OAUTH_SCOPES", "")

	v.SetDefault("CONFIG_DIR", "")
	v.SetDefault("DB_PATH", "")

	v.SetDefault("STUB_ADDR", "127.0.0.1:8000")
	v.SetDefault("STUB_PREFIX", "/api/v1")

	v.SetDefault("GMAIL_CREDENTIALS", "")
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".triageterm"
	}
	return filepath.Join(home, ".config", "triageterm")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
