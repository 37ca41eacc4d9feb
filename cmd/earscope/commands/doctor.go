package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/earscope/internal/config"
	"github.com/l3aro/earscope/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on configuration and tools",
	Long: `Checks the configuration and verifies that the javap disassembler, the
scratch directory and the cache directory are usable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = effectiveConfigPath()
		}

		result, err := healthcheck.Check(cfg, configPath, configPath)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(cmd.OutOrStdout(), result)

		if !result.Healthy() {
			return fmt.Errorf("health check failed: analyses cannot run with this configuration")
		}
		return nil
	},
}

// effectiveConfigPath returns the highest-priority config file that exists.
func effectiveConfigPath() string {
	for _, path := range []string{config.ProjectConfigFilePath(), config.GlobalConfigFilePath()} {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func displayDoctorResult(w io.Writer, result *healthcheck.HealthCheckResult) {
	if result.EffectivePath != "" {
		fmt.Fprintf(w, "Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
	} else {
		fmt.Fprintln(w, "Using config: defaults (run 'earscope init' to create a config file)")
	}
	fmt.Fprintf(w, "Strategy: %s\n\n", result.Strategy)

	fmt.Fprintln(w, "javap:")
	fmt.Fprintf(w, "  Executable: %s\n", result.Javap.Name)
	if result.Javap.Path != "" {
		fmt.Fprintf(w, "  Path: %s\n", result.Javap.Path)
	}
	if result.Javap.Version != "" {
		fmt.Fprintf(w, "  Version: %s\n", result.Javap.Version)
	}
	printStatus(w, result.Javap.Status, result.Javap.Error)
	if !result.Javap.Required && result.Javap.Status != "ready" {
		fmt.Fprintln(w, "  (not required: class files are parsed directly)")
	}

	fmt.Fprintln(w, "\nScratch directory:")
	fmt.Fprintf(w, "  Path: %s\n", result.Scratch.Path)
	printStatus(w, result.Scratch.Status, result.Scratch.Error)

	fmt.Fprintln(w, "\nCache directory:")
	if result.Cache.Path != "" {
		fmt.Fprintf(w, "  Path: %s\n", result.Cache.Path)
	}
	printStatus(w, result.Cache.Status, result.Cache.Error)
}

func printStatus(w io.Writer, status string, errMsg string) {
	fmt.Fprintf(w, "  Status: %s %s\n", formatStatusIcon(status), status)
	if errMsg != "" && status != "ready" {
		fmt.Fprintf(w, "  Error: %s\n", errMsg)
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case "ready":
		return "✓"
	case "disabled":
		return "-"
	case "missing":
		return "◐"
	case "error":
		return "✗"
	default:
		return "?"
	}
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}
