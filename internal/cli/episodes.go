package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaiaops/gaia/internal/audit"
	"github.com/gaiaops/gaia/internal/jsonio"
	"github.com/gaiaops/gaia/internal/memory"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded episodes",
	Long: `List the episodes in the episodic memory index, newest first.

Example:
  gaia list
  gaia list --type deployment --outcome failed`,
	Args: cobra.NoArgs,
	RunE: listEpisodes,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show execution metrics and episode distribution",
	Args:  cobra.NoArgs,
	RunE:  showStats,
}

var exportCmd = &cobra.Command{
	Use:   "export <episode-id> <path>",
	Short: "Export one episode as a JSON file",
	Args:  cobra.ExactArgs(2),
	RunE:  exportEpisode,
}

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import an episode JSON file, preserving its id",
	Args:  cobra.ExactArgs(1),
	RunE:  importEpisode,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove episodes older than the retention window",
	Args:  cobra.NoArgs,
	RunE:  cleanEpisodes,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rebuild the episode index from the canonical episode files",
	Long: `Rebuild index.json by re-reading every episode file. This is the
recovery path after index corruption.`,
	Args: cobra.NoArgs,
	RunE: migrateEpisodes,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search episodes by relevance",
	Args:  cobra.MinimumNArgs(1),
	RunE:  searchEpisodes,
}

func init() {
	rootCmd.AddCommand(listCmd, statsCmd, exportCmd, importCmd, cleanCmd, migrateCmd, searchCmd)

	listCmd.Flags().String("type", "", "filter by episode type")
	listCmd.Flags().String("outcome", "", "filter by outcome")
	statsCmd.Flags().Int("days", 7, "trailing window for execution metrics")
	cleanCmd.Flags().Int("days", 90, "retention window in days")
	searchCmd.Flags().Int("max", memory.DefaultMaxResults, "maximum results")
}

func listEpisodes(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	typeFilter, _ := cmd.Flags().GetString("type")
	outcomeFilter, _ := cmd.Flags().GetString("outcome")

	idx := rt.episodes.Index()
	if len(idx.Episodes) == 0 {
		fmt.Println("No episodes recorded.")
		return nil
	}

	fmt.Printf("%-28s %-16s %-10s %s\n", "EPISODE", "TYPE", "OUTCOME", "TITLE")
	fmt.Println(strings.Repeat("-", 90))
	for _, e := range idx.Episodes {
		if typeFilter != "" && string(e.Type) != typeFilter {
			continue
		}
		if outcomeFilter != "" && string(e.Outcome) != outcomeFilter {
			continue
		}
		fmt.Printf("%-28s %-16s %-10s %s\n", e.ID, e.Type, e.Outcome, e.Title)
	}
	return nil
}

func showStats(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	days, _ := cmd.Flags().GetInt("days")

	summary, err := audit.Summarize(rt.logsDir, days)
	if err != nil {
		return fmt.Errorf("failed to summarize metrics: %w", err)
	}
	fmt.Printf("Executions (last %d days): %d\n", summary.Days, summary.Total)
	fmt.Printf("Success rate: %.1f%%\n", summary.SuccessRate*100)
	fmt.Printf("Avg duration: %.0f ms\n", summary.AvgDurationMs)
	if len(summary.TierDistribution) > 0 {
		fmt.Println("Tiers:")
		for tier, n := range summary.TierDistribution {
			fmt.Printf("  %-4s %d\n", tier, n)
		}
	}
	if len(summary.TopTypes) > 0 {
		fmt.Println("Top command types:", strings.Join(summary.TopTypes, ", "))
	}

	idx := rt.episodes.Index()
	types := map[string]int{}
	outcomes := map[string]int{}
	for _, e := range idx.Episodes {
		types[string(e.Type)]++
		outcomes[string(e.Outcome)]++
	}
	fmt.Printf("\nEpisodes: %d\n", len(idx.Episodes))
	for name, n := range types {
		fmt.Printf("  type %-16s %d\n", name, n)
	}
	for name, n := range outcomes {
		fmt.Printf("  outcome %-13s %d\n", name, n)
	}
	return nil
}

func exportEpisode(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	ep, err := rt.episodes.GetEpisode(args[0])
	if err != nil {
		return err
	}
	if err := jsonio.WriteAtomic(args[1], ep); err != nil {
		return err
	}
	fmt.Printf("Exported %s to %s\n", ep.EpisodeID, args[1])
	return nil
}

func importEpisode(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	var ep memory.Episode
	if err := json.Unmarshal(raw, &ep); err != nil {
		return fmt.Errorf("%w: %s is not an episode document", errUsage, args[0])
	}
	id, err := rt.episodes.StoreEpisode(&ep)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %s\n", id)
	return nil
}

func cleanEpisodes(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		return fmt.Errorf("%w: --days must be positive", errUsage)
	}
	removed, err := rt.episodes.CleanupOld(days)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d episode(s) older than %d days\n", removed, days)
	return nil
}

func migrateEpisodes(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	count, err := rt.episodes.RebuildIndex()
	if err != nil {
		return err
	}
	fmt.Printf("Rebuilt index with %d episode(s)\n", count)
	return nil
}

func searchEpisodes(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	max, _ := cmd.Flags().GetInt("max")

	results, err := rt.episodes.SearchEpisodes(strings.Join(args, " "), max, memory.DefaultMinScore)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matching episodes.")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%.2f  %-28s %-16s %s\n", r.Score, r.Episode.EpisodeID, r.Episode.Type, r.Episode.OriginalPrompt)
	}
	return nil
}
