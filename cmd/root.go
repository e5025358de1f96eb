package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agenthub/agenthub/internal/chat"
	"github.com/agenthub/agenthub/internal/config"
	"github.com/agenthub/agenthub/internal/llm"
	"github.com/agenthub/agenthub/internal/observability"
	"github.com/agenthub/agenthub/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "agenthub",
	Short: "Multi-provider AI chat with preset agent personas",
	Long: `agenthub is a terminal chat client for multiple LLM providers
(Gemini, Hugging Face, Together.AI) with preset agent personas,
persistent per-provider sessions, and image generation.

Examples:
  agenthub chat                     # interactive chat
  agenthub chat --provider Gemini   # pick the backend
  agenthub serve                    # expose chat over WebSocket
  agenthub sessions                 # list stored sessions`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		observability.Setup(flagLogLevel)
	},
}

var flagProvider string
var flagLogLevel string

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "Provider to use (Gemini, Hugging Face, Together.AI)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	return cfg, nil
}

// providerFactory builds real providers from configuration.
func providerFactory(cfg *config.Config) chat.ProviderFactory {
	return func(ctx context.Context, id chat.ProviderID) (llm.Provider, error) {
		switch id {
		case chat.ProviderGemini:
			return llm.NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		case chat.ProviderHuggingFace:
			if cfg.HuggingFace.APIKey == "" {
				return nil, &llm.ConfigError{
					Provider: "Hugging Face",
					Message:  "API key not set. Please set the HUGGING_FACE_TOKEN environment variable.",
				}
			}
			return llm.NewHuggingFaceProvider(cfg.HuggingFace.APIKey, cfg.HuggingFace.Model), nil
		case chat.ProviderTogether:
			if cfg.Together.APIKey == "" {
				return nil, &llm.ConfigError{
					Provider: "Together.AI",
					Message:  "API key not set. Please set the TOGETHER_API_KEY environment variable.",
				}
			}
			return llm.NewTogetherProvider(cfg.Together.APIKey, cfg.Together.Model), nil
		}
		return nil, fmt.Errorf("unknown provider %q", id)
	}
}

func openBridge(cfg *config.Config) (*session.Bridge, error) {
	path := cfg.Sessions.Path
	if path == "" {
		var err error
		path, err = session.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return session.NewBridge(path)
}

func resolveProvider(cfg *config.Config) (chat.ProviderID, error) {
	if cfg.Provider == "" {
		return chat.ProviderGemini, nil
	}
	id := chat.ProviderID(cfg.Provider)
	if !chat.ValidProvider(id) {
		return "", fmt.Errorf("unknown provider %q (choose Gemini, Hugging Face, or Together.AI)", cfg.Provider)
	}
	return id, nil
}
