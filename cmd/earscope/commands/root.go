package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/earscope/internal/config"
	"github.com/l3aro/earscope/internal/log"
)

var (
	// cfg is loaded once per invocation by the root pre-run hook.
	cfg    *config.Config
	logger log.Logger
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "earscope",
	Short: "earscope - Static structure and flow analysis of Java EE archives",
	Long: `earscope opens an enterprise archive (EAR) without deploying it and reports
its modules, declared components, class inventories and the calls inferred
between components.

Commands:
  analyze     Full structural report of an archive
  flows       Call flows reachable from each entry point
  cache       Inspect or clear cached results
  doctor      Check javap, scratch and cache directories
  init        Create a configuration file interactively

Use "earscope [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		var err error
		if configPath != "" {
			cfg, err = config.LoadFromFile(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if cmd.Flags().Changed("verbose") {
			cfg.Verbose, _ = cmd.Flags().GetBool("verbose")
		}
		if cmd.Flags().Changed("json-logs") {
			cfg.JSONLogs, _ = cmd.Flags().GetBool("json-logs")
		}

		logger = newLogger(cfg)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func newLogger(c *config.Config) log.Logger {
	opts := log.Options{Level: log.InfoLevel, JSON: c.JSONLogs, Colors: !c.JSONLogs && log.ColorsEnabled()}
	if c.Verbose {
		opts.Level = log.DebugLevel
	}
	return log.New(opts)
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (overrides the global and project files)")
	RootCmd.PersistentFlags().BoolP("verbose", "V", false, "Debug logging")
	RootCmd.PersistentFlags().Bool("json-logs", false, "Log as JSON lines on stderr")
}
