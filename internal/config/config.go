package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Provider    string         `mapstructure:"provider" yaml:"provider"`
	Gemini      ProviderConfig `mapstructure:"gemini" yaml:"gemini"`
	HuggingFace ProviderConfig `mapstructure:"huggingface" yaml:"huggingface"`
	Together    ProviderConfig `mapstructure:"together" yaml:"together"`
	Serve       ServeConfig    `mapstructure:"serve" yaml:"serve"`
	Sessions    SessionsConfig `mapstructure:"sessions" yaml:"sessions,omitempty"`
}

type ProviderConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model  string `mapstructure:"model" yaml:"model"`
}

type ServeConfig struct {
	Addr  string `mapstructure:"addr" yaml:"addr"`
	Token string `mapstructure:"token" yaml:"token,omitempty"`
}

type SessionsConfig struct {
	// Path overrides the sqlite snapshot database location.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:    "Gemini",
		Gemini:      ProviderConfig{Model: "gemini-2.5-flash"},
		HuggingFace: ProviderConfig{Model: "mistralai/Mistral-7B-Instruct-v0.2"},
		Together:    ProviderConfig{Model: "mistralai/Mixtral-8x7B-Instruct-v0.1"},
		Serve:       ServeConfig{Addr: "localhost:8914"},
	}
}

func Load() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "agenthub")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath(".")

	// Set defaults
	def := Default()
	viper.SetDefault("provider", def.Provider)
	viper.SetDefault("gemini.model", def.Gemini.Model)
	viper.SetDefault("huggingface.model", def.HuggingFace.Model)
	viper.SetDefault("together.model", def.Together.Model)
	viper.SetDefault("serve.addr", def.Serve.Addr)

	// Read config file (optional - won't error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand environment variables in API keys
	cfg.Gemini.APIKey = expandEnv(cfg.Gemini.APIKey)
	cfg.HuggingFace.APIKey = expandEnv(cfg.HuggingFace.APIKey)
	cfg.Together.APIKey = expandEnv(cfg.Together.APIKey)

	// Fall back to environment variables if API keys not set
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.HuggingFace.APIKey == "" {
		cfg.HuggingFace.APIKey = os.Getenv("HUGGING_FACE_TOKEN")
	}
	if cfg.Together.APIKey == "" {
		cfg.Together.APIKey = os.Getenv("TOGETHER_API_KEY")
	}

	return &cfg, nil
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "agenthub", "config.yaml"), nil
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes the config to disk
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, content, 0600)
}
