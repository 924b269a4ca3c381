package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gaiaops/gaia/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Pre/post tool-invocation hooks for the agent host",
	Long: `The hook commands are invoked by the agent host around every tool call.
"pre" reads the invocation JSON from stdin and prints a permission decision;
"post" records the outcome of the call in the audit trail.`,
}

var hookPreCmd = &cobra.Command{
	Use:   "pre",
	Short: "Gate a tool invocation (reads JSON from stdin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newHookRunner()
		if err != nil {
			return err
		}
		return runner.Pre(cmd.InOrStdin(), os.Stdout)
	},
}

var hookPostCmd = &cobra.Command{
	Use:   "post",
	Short: "Record a completed tool invocation (reads JSON from stdin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newHookRunner()
		if err != nil {
			return err
		}
		return runner.Post(cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(hookCmd)
	hookCmd.AddCommand(hookPreCmd, hookPostCmd)
}

func newHookRunner() (*hooks.Runner, error) {
	rt, err := newRuntime()
	if err != nil {
		return nil, err
	}
	statePath, err := rt.resolver.HookStateFile()
	if err != nil {
		return nil, err
	}
	return &hooks.Runner{
		Policy:         rt.engine,
		Audit:          rt.sink,
		States:         hooks.NewStateFile(statePath),
		SessionID:      rt.sessionID,
		Log:            rt.log,
		RevokeApproval: rt.approvals.Revoke,
	}, nil
}
