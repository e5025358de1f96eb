package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agenthub/agenthub/internal/chat"
	"github.com/agenthub/agenthub/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored chat sessions",
	Long: `List, export, and delete the per-provider session snapshots.

Examples:
  agenthub sessions                          # list everything
  agenthub sessions list --provider Gemini
  agenthub sessions export <id> [path.md]
  agenthub sessions reset --provider Gemini  # drop one provider's snapshot`,
	RunE: runSessionsList, // Default to list
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	RunE:  runSessionsList,
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id> [path]",
	Short: "Export a session as markdown",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSessionsExport,
}

var sessionsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a provider's stored snapshot",
	RunE:  runSessionsReset,
}

var sessionsProvider string

func init() {
	sessionsListCmd.Flags().StringVar(&sessionsProvider, "provider", "", "Filter by provider")
	sessionsResetCmd.Flags().StringVar(&sessionsProvider, "provider", "", "Provider whose snapshot to delete")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsResetCmd)

	rootCmd.AddCommand(sessionsCmd)
}

func getBridge() (*session.Bridge, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openBridge(cfg)
}

// storedProviders returns the providers with a persisted snapshot,
// optionally narrowed by the --provider flag.
func storedProviders(b *session.Bridge) ([]string, error) {
	providers, err := b.Providers()
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	if sessionsProvider == "" {
		return providers, nil
	}
	for _, p := range providers {
		if p == sessionsProvider {
			return []string{p}, nil
		}
	}
	return nil, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	b, err := getBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	providers, err := storedProviders(b)
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Printf("%-24s %-14s %-20s %s\n", "ID", "Provider", "Agent", "Title")
	fmt.Println(strings.Repeat("-", 80))
	for _, provider := range providers {
		snap := b.Load(provider, chat.PersonasFor(chat.ProviderID(provider)))
		for persona, list := range snap.Sessions {
			for _, sess := range list {
				title := sess.Title
				if len(title) > 30 {
					title = title[:27] + "..."
				}
				fmt.Printf("%-24s %-14s %-20s %s\n", sess.ID, provider, persona, title)
			}
		}
	}
	return nil
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	b, err := getBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	providers, err := storedProviders(b)
	if err != nil {
		return err
	}

	id := args[0]
	for _, provider := range providers {
		snap := b.Load(provider, chat.PersonasFor(chat.ProviderID(provider)))
		for _, list := range snap.Sessions {
			for _, sess := range list {
				if sess.ID != id {
					continue
				}
				doc := session.ExportToMarkdown(sess)
				path := session.ExportFilename(sess.Title, time.Now())
				if len(args) == 2 {
					path = args[1]
				}
				if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				fmt.Printf("Exported to %s\n", path)
				return nil
			}
		}
	}
	return fmt.Errorf("session %s not found", id)
}

func runSessionsReset(cmd *cobra.Command, args []string) error {
	if sessionsProvider == "" {
		return fmt.Errorf("--provider is required")
	}
	b, err := getBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.Delete(sessionsProvider); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	fmt.Printf("Deleted stored sessions for %s\n", sessionsProvider)
	return nil
}
