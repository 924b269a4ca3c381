package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaiaops/gaia/internal/pending"
)

var updatesCmd = &cobra.Command{
	Use:   "updates",
	Short: "Review pending project-context updates",
	Long: `Pending updates are deduplicated suggestions from agents to mutate the
project context document. Each must be approved before it can be applied.`,
}

var updatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending updates",
	Args:  cobra.NoArgs,
	RunE:  listUpdates,
}

var updatesApproveCmd = &cobra.Command{
	Use:   "approve <update-id>",
	Short: "Approve a pending update",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		if err := rt.updates.Approve(args[0]); err != nil {
			return err
		}
		fmt.Printf("Approved %s\n", args[0])
		return nil
	},
}

var updatesRejectCmd = &cobra.Command{
	Use:   "reject <update-id>",
	Short: "Reject a pending update",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		if err := rt.updates.Reject(args[0]); err != nil {
			return err
		}
		fmt.Printf("Rejected %s\n", args[0])
		return nil
	},
}

var updatesApplyCmd = &cobra.Command{
	Use:   "apply <update-id>",
	Short: "Apply an approved update to the project context document",
	Args:  cobra.ExactArgs(1),
	RunE:  applyUpdate,
}

func init() {
	rootCmd.AddCommand(updatesCmd)
	updatesCmd.AddCommand(updatesListCmd, updatesApproveCmd, updatesRejectCmd, updatesApplyCmd)

	updatesListCmd.Flags().String("status", "pending", "filter by status (pending, approved, rejected, applied; empty for all)")
}

func listUpdates(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	statusFlag, _ := cmd.Flags().GetString("status")
	status := pending.Status(statusFlag)
	if statusFlag != "" && !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", errUsage, statusFlag)
	}

	updates, err := rt.updates.List(status)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		fmt.Println("No updates found.")
		return nil
	}

	fmt.Printf("%-26s %-22s %-24s %-5s %s\n", "UPDATE", "CATEGORY", "SECTION", "SEEN", "SUMMARY")
	fmt.Println(strings.Repeat("-", 110))
	for _, u := range updates {
		fmt.Printf("%-26s %-22s %-24s %-5d %s\n",
			u.UpdateID, u.Category, u.TargetSection, u.SeenCount, truncate(u.Summary, 40))
	}
	return nil
}

func applyUpdate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	contextPath, err := rt.resolver.ContextDocument()
	if err != nil {
		return err
	}
	if err := rt.updates.Apply(args[0], contextPath); err != nil {
		return err
	}
	fmt.Printf("Applied %s to %s\n", args[0], contextPath)
	return nil
}
