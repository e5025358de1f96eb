package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agenthub/agenthub/internal/agents"
	"github.com/agenthub/agenthub/internal/chat"
	"github.com/agenthub/agenthub/internal/llm"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session",
	Long: `Start an interactive chat with the active provider.

In-chat commands:
  /new                 start a fresh session
  /sessions            list sessions for the active agent
  /select <id>         switch to a session
  /delete <id>         delete a session
  /provider <name>     switch provider (Gemini, Hugging Face, Together.AI)
  /agent <name>        switch agent persona (Gemini only)
  /imagine <prompt>    generate an image (Gemini only)
  /export [path]       export the active session as markdown
  /quit                exit`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	providerID, err := resolveProvider(cfg)
	if err != nil {
		return err
	}
	bridge, err := openBridge(cfg)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer bridge.Close()

	ctrl := chat.NewController(chat.Options{
		Provider: providerID,
		Factory:  providerFactory(cfg),
		Bridge:   bridge,
		Listener: chat.Listener{
			OnDelta: func(text string) { fmt.Print(text) },
			OnBanner: func(message string) {
				fmt.Fprintf(os.Stderr, "\n! %s\n", message)
			},
			OnTitle: func(sessionID, title string) {
				fmt.Printf("\n(session titled %q)\n", title)
			},
			OnImages: func(sessionID string, urls []string) {
				fmt.Printf("generated %d image(s); use /export to save them\n", len(urls))
			},
		},
	})
	defer ctrl.Close()

	// Autosave runs for the whole REPL lifetime, independent of interrupts.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctrl.StartAutosave(ctx, chat.DefaultAutosaveInterval)

	// Each Ctrl-C interrupts the in-flight turn instead of killing the REPL.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go forwardInterrupts(sigCh, ctrl.Stop)

	printWelcome(ctrl)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Printf("\n[%s/%s]> ", ctrl.Provider(), ctrl.Agent())
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}
		if handled := runReplCommand(ctrl, line); handled {
			continue
		}

		if err := ctrl.Send(context.Background(), line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println()
	}
	return scanner.Err()
}

// forwardInterrupts calls stop once per delivered signal until the channel
// closes.
func forwardInterrupts(sigs <-chan os.Signal, stop func()) {
	for range sigs {
		stop()
	}
}

func printWelcome(ctrl *chat.Controller) {
	if active, ok := ctrl.ActiveSession(); ok {
		fmt.Printf("%s\n", active.Messages[0].Content)
	}
	if banner := ctrl.Banner(); banner != "" {
		fmt.Fprintf(os.Stderr, "! %s\n", banner)
	}
}

// runReplCommand handles slash commands other than /imagine, which flows
// through the controller like a normal turn. It reports whether the line
// was consumed.
func runReplCommand(ctrl *chat.Controller, line string) bool {
	if !strings.HasPrefix(line, "/") || strings.HasPrefix(strings.ToLower(line), "/imagine ") {
		return false
	}
	fields := strings.Fields(line)
	command, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch command {
	case "/new":
		ctrl.NewChat()
		if active, ok := ctrl.ActiveSession(); ok {
			fmt.Printf("%s\n", active.Messages[0].Content)
		}
	case "/sessions":
		printSessions(ctrl)
	case "/select":
		if rest == "" {
			fmt.Println("usage: /select <id>")
			return true
		}
		if err := ctrl.SelectSession(rest); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return true
		}
		printTranscript(ctrl)
	case "/delete":
		if rest == "" {
			fmt.Println("usage: /delete <id>")
			return true
		}
		ctrl.DeleteSession(rest)
		fmt.Println("deleted")
	case "/provider":
		if rest == "" {
			fmt.Printf("active provider: %s\n", ctrl.Provider())
			return true
		}
		if err := ctrl.SwitchProvider(context.Background(), chat.ProviderID(rest)); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return true
		}
		fmt.Printf("switched to %s\n", ctrl.Provider())
	case "/agent":
		if rest == "" {
			fmt.Printf("active agent: %s\nagents: %s\n", ctrl.Agent(), joinAgents())
			return true
		}
		if err := ctrl.SwitchAgent(agents.ID(rest)); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return true
		}
		if active, ok := ctrl.ActiveSession(); ok {
			fmt.Printf("%s\n", active.Messages[0].Content)
		}
	case "/export":
		exportActive(ctrl, rest)
	case "/stop":
		ctrl.Stop()
	default:
		fmt.Printf("unknown command %s\n", command)
	}
	return true
}

func printSessions(ctrl *chat.Controller) {
	activeID := ""
	if active, ok := ctrl.ActiveSession(); ok {
		activeID = active.ID
	}
	for _, s := range ctrl.Sessions() {
		marker := " "
		if s.ID == activeID {
			marker = "*"
		}
		fmt.Printf("%s %s  %s (%d messages)\n", marker, s.ID, s.Title, len(s.Messages))
	}
}

func printTranscript(ctrl *chat.Controller) {
	active, ok := ctrl.ActiveSession()
	if !ok {
		return
	}
	fmt.Printf("-- %s --\n", active.Title)
	for _, m := range active.Messages {
		switch m.Role {
		case llm.RoleUser:
			fmt.Printf("you: %s\n", m.Content)
		case llm.RoleError:
			fmt.Printf("error: %s\n", m.Content)
		default:
			if len(m.ImageURLs) > 0 {
				fmt.Printf("%s: [%d image(s)]\n", m.Agent, len(m.ImageURLs))
			} else {
				fmt.Printf("%s: %s\n", m.Agent, m.Content)
			}
		}
	}
}

func exportActive(ctrl *chat.Controller, path string) {
	doc, filename, err := ctrl.ExportActive()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if path == "" {
		path = filename
	}
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Printf("exported to %s\n", path)
}

func joinAgents() string {
	ids := agents.All()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}
