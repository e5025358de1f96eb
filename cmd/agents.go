package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthub/agenthub/internal/agents"
)

var agentsShowInstruction bool

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the preset agent personas",
	Long: `List the preset agent personas available under the Gemini provider.

Each agent pairs a system instruction with an introductory message.

Examples:
  agenthub agents
  agenthub agents show "Systems Architect"`,
	RunE: runAgentsList,
}

var agentsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Display an agent's instruction and intro",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsShow,
}

func init() {
	agentsShowCmd.Flags().BoolVar(&agentsShowInstruction, "instruction", true, "Include the system instruction")
	agentsCmd.AddCommand(agentsShowCmd)
	rootCmd.AddCommand(agentsCmd)
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	for _, id := range agents.All() {
		fmt.Println(id)
	}
	return nil
}

func runAgentsShow(cmd *cobra.Command, args []string) error {
	agent, ok := agents.Get(agents.ID(args[0]))
	if !ok {
		return fmt.Errorf("unknown agent %q", args[0])
	}
	fmt.Printf("%s\n\n%s\n", agent.ID, agent.IntroMessage)
	if agentsShowInstruction {
		fmt.Printf("\nSystem instruction:\n%s\n", agent.SystemInstruction)
	}
	return nil
}
