package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaiaops/gaia/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and clean resumable agent sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agent sessions, newest first",
	Long: `List agent sessions, newest first.

Example:
  gaia sessions list
  gaia sessions list --resumable`,
	Args: cobra.NoArgs,
	RunE: listAgentSessions,
}

var sessionsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove sessions not updated within the retention window",
	Args:  cobra.NoArgs,
	RunE:  cleanAgentSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsCleanCmd)

	sessionsListCmd.Flags().Bool("resumable", false, "only sessions eligible for resume")
	sessionsListCmd.Flags().String("agent", "", "filter by agent name")
	sessionsCleanCmd.Flags().Int("hours", 24, "retention window in hours")
}

func listAgentSessions(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	resumable, _ := cmd.Flags().GetBool("resumable")
	agent, _ := cmd.Flags().GetString("agent")

	filters := session.Filters{AgentName: agent}
	if resumable {
		filters.ResumeReady = true
	}
	sessions, err := rt.sessions.ListSessions(filters)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Printf("%-32s %-22s %-14s %-7s %s\n", "AGENT ID", "AGENT", "PHASE", "RESUME", "PURPOSE")
	fmt.Println(strings.Repeat("-", 100))
	for _, s := range sessions {
		resume := "no"
		if s.ResumeReady {
			resume = "yes"
		}
		fmt.Printf("%-32s %-22s %-14s %-7s %s\n", s.AgentID, s.AgentName, s.Phase, resume, truncate(s.Purpose, 40))
	}
	return nil
}

func cleanAgentSessions(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	hours, _ := cmd.Flags().GetInt("hours")
	if hours <= 0 {
		return fmt.Errorf("%w: --hours must be positive", errUsage)
	}
	removed, err := rt.sessions.CleanupOldSessions(hours)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d session(s) older than %d hours\n", removed, hours)
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
