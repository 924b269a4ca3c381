package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaiaops/gaia/internal/agentexec"
	"github.com/gaiaops/gaia/internal/asker"
	"github.com/gaiaops/gaia/internal/clarify"
	"github.com/gaiaops/gaia/internal/config"
	"github.com/gaiaops/gaia/internal/routing"
	"github.com/gaiaops/gaia/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Drive a request through the full workflow pipeline",
	Long: `Run one natural-language request through all phases: clarification,
routing, context assembly, planning, approval, realization, and the
post-run context update. Planned commands are passed with --op; without
any the request completes as a pure investigation.

Example:
  gaia run "investigate pods in the staging cluster"
  gaia run --op "flux reconcile kustomization apps" "reconcile the gitops apps"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWorkflow,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArray("op", nil, "planned command for the realization phase (repeatable)")
	runCmd.Flags().String("profile", "", "execution profile for all planned commands")
	runCmd.Flags().StringArray("root", nil, "artifact discovery root (repeatable)")
	runCmd.Flags().Bool("skip-clarify", false, "treat the prompt as already unambiguous")
	runCmd.Flags().Bool("live-probes", false, "run read-only validation probes for real")
	runCmd.Flags().String("agent-output", "", "file holding the sub-agent's raw output")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ops, _ := cmd.Flags().GetStringArray("op")
	profile, _ := cmd.Flags().GetString("profile")
	roots, _ := cmd.Flags().GetStringArray("root")
	skipClarify, _ := cmd.Flags().GetBool("skip-clarify")
	liveProbes, _ := cmd.Flags().GetBool("live-probes")
	outputPath, _ := cmd.Flags().GetString("agent-output")

	doc, _, err := rt.contextDocument()
	if err != nil {
		return err
	}

	configDir, err := rt.resolver.ConfigDir()
	if err != nil {
		return err
	}
	agents, err := routing.LoadAgents(configDir)
	if err != nil {
		return err
	}

	statePath, err := rt.resolver.WorkflowStateFile()
	if err != nil {
		return err
	}

	var agentOutput string
	if outputPath != "" {
		raw, err := os.ReadFile(outputPath)
		if err != nil {
			return fmt.Errorf("failed to read agent output: %w", err)
		}
		agentOutput = string(raw)
	}

	terminal := asker.NewTerminal()
	orch := &workflow.Orchestrator{
		Clarifier:  clarify.NewEngine(terminal),
		Router:     routing.NewRouter(agents, nil),
		Policy:     rt.engine,
		Episodes:   rt.episodes,
		Sessions:   rt.sessions,
		Updates:    rt.updates,
		Approvals:  rt.approvals,
		Executor:   agentexec.NewExecutor(agentexec.ExecRunner{}, cfg.Execution.TransientPatterns),
		Runner:     agentexec.ExecRunner{},
		Asker:      terminal,
		Config:     rt.loader,
		Log:        rt.log,
		StatePath:  statePath,
		LiveProbes: liveProbes,
	}

	req := workflow.Request{
		Prompt:            strings.Join(args, " "),
		ContextDoc:        doc,
		DiscoveryRoots:    roots,
		AgentOutput:       agentOutput,
		SkipClarification: skipClarify,
	}
	for _, op := range ops {
		req.Operations = append(req.Operations, workflow.Operation{Command: op, Profile: profile})
	}

	report, runErr := orch.Run(cmd.Context(), req)
	printReport(report)
	if runErr != nil {
		var failure *workflow.Failure
		if errors.As(runErr, &failure) {
			fmt.Printf("\nStopped in %s: %s\n", failure.Phase, failure.Reason)
			for _, s := range failure.Suggestions {
				fmt.Printf("  try: %s\n", s)
			}
		}
		return runErr
	}
	return nil
}

func printReport(r *workflow.Report) {
	if r == nil {
		return
	}
	if r.Agent != "" {
		fmt.Printf("Agent: %s (confidence %.2f)\n", r.Agent, r.Confidence)
	}
	if r.EpisodeID != "" {
		fmt.Printf("Episode: %s\n", r.EpisodeID)
	}
	fmt.Printf("Tier: %s\n", r.Tier)
	if len(r.CommandsExecuted) > 0 {
		fmt.Println("Commands executed:")
		for _, c := range r.CommandsExecuted {
			fmt.Printf("  %s\n", c)
		}
	}
	if len(r.PendingUpdateIDs) > 0 {
		fmt.Printf("Pending context updates: %s\n", strings.Join(r.PendingUpdateIDs, ", "))
	}
	if r.Outcome != "" {
		fmt.Printf("Outcome: %s\n", r.Outcome)
	}
	if len(r.PhasesCompleted) > 0 {
		fmt.Printf("Phases: %s\n", strings.Join(r.PhasesCompleted, " -> "))
	}
}
