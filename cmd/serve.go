package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agenthub/agenthub/internal/chat"
	servechat "github.com/agenthub/agenthub/internal/serve/chat"
)

var serveAddr string
var serveToken string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose chat over a WebSocket endpoint",
	Long: `Run a WebSocket server so remote frontends can drive conversations.

Connect to ws://<addr>/chat. When a token is configured, clients must send
an "Authorization: Bearer <token>" header.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to serve.addr from config)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Bearer token required from clients")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	providerID, err := resolveProvider(cfg)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Serve.Addr = serveAddr
	}
	if serveToken != "" {
		cfg.Serve.Token = serveToken
	}

	bridge, err := openBridge(cfg)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer bridge.Close()

	factory := providerFactory(cfg)
	srv := servechat.NewServer(cfg.Serve, func(ctx context.Context) (*chat.Controller, error) {
		ctrl := chat.NewController(chat.Options{
			Provider: providerID,
			Factory:  factory,
			Bridge:   bridge,
		})
		ctrl.StartAutosave(ctx, chat.DefaultAutosaveInterval)
		return ctrl, nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("chat server listening", "addr", cfg.Serve.Addr)
	return srv.ListenAndServe(ctx)
}
