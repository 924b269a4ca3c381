package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gaiaops/gaia/internal/version"
)

var (
	cfgFile    string
	projectDir string
)

// errUsage marks argument and flag mistakes so Execute can map them to the
// dedicated exit code.
var errUsage = errors.New("invalid arguments")

var rootCmd = &cobra.Command{
	Use:   "gaia",
	Short: "Gaia - workflow orchestration and policy enforcement for agent-driven operations",
	Long: `Gaia drives natural-language infrastructure requests through a guarded
pipeline: clarify intent, route to a sub-agent, gate state-mutating
operations behind approval, execute under retry profiles, and record every
outcome as reusable episodic memory.

Example:
  gaia run "investigate pods in the staging cluster"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code:
// 0 success, 1 recoverable error, 2 invalid arguments.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	if isUsageError(err) {
		return 2
	}
	return 1
}

func isUsageError(err error) bool {
	if errors.Is(err, errUsage) {
		return true
	}
	// Cobra reports its own arg and flag mistakes as plain errors.
	msg := err.Error()
	for _, marker := range []string{"unknown command", "unknown flag", "accepts ", "requires "} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .gaia.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "project directory (default: search upward for .claude)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error getting working directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".gaia")
	}

	viper.SetEnvPrefix("GAIA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
