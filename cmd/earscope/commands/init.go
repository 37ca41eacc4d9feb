package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/earscope/internal/config"
	"github.com/l3aro/earscope/internal/healthcheck"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize earscope configuration interactively",
	Long: `Guides you through setting up earscope configuration step by step.
Creates a config file with the inspection strategy, scratch and cache settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	c := config.DefaultConfig()

	// === SECTION 1: Inspection ===
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Method extraction strategy").
				Description("How class method inventories are recovered").
				Options(
					huh.NewOption("Auto (parse class files, fall back to javap)", "auto"),
					huh.NewOption("Class files only (no JDK needed)", "classfile"),
					huh.NewOption("javap only (requires a JDK)", "javap"),
				).
				Value(&c.Strategy),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	if c.Strategy != "classfile" {
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("javap executable (press Enter to look it up on PATH)").
					Placeholder("javap").
					Value(&c.JavapPath),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
	}

	var excludes string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Inspect bundled libraries").
				Description("Also inspect the jars under WEB-INF/lib of web modules?").
				Affirmative("Yes").
				Negative("No").
				Value(&c.IncludeLibraries),
			huh.NewInput().
				Title("Excluded class paths (comma separated, optional)").
				Placeholder("com/acme/generated/**").
				Value(&excludes),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	for _, p := range strings.Split(excludes, ",") {
		if p = strings.TrimSpace(p); p != "" {
			c.Exclude = append(c.Exclude, p)
		}
	}

	// === SECTION 2: Working directories ===
	concurrency := strconv.Itoa(c.Concurrency)
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Scratch directory (press Enter for the system temp dir)").
				Placeholder(os.TempDir()).
				Value(&c.ScratchDir),
			huh.NewInput().
				Title("Modules inspected at once").
				Value(&concurrency).
				Validate(func(s string) error {
					if n, err := strconv.Atoi(s); err != nil || n <= 0 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Cache results").
				Description("Reuse results for archives analyzed before?").
				Affirmative("Yes").
				Negative("No").
				Value(&c.CacheEnabled),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	c.Concurrency, _ = strconv.Atoi(concurrency)

	// === SECTION 3: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.earscope/config.yaml)", "global"),
					huh.NewOption("Project (./.earscope/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Strategy: %s\n", c.Strategy)
	if c.JavapPath != "" {
		fmt.Printf("javap: %s\n", c.JavapPath)
	}
	fmt.Printf("Include libraries: %v\n", c.IncludeLibraries)
	if len(c.Exclude) > 0 {
		fmt.Printf("Exclude: %s\n", strings.Join(c.Exclude, ", "))
	}
	fmt.Printf("Concurrency: %d\n", c.Concurrency)
	fmt.Printf("Cache: %v (%s)\n", c.CacheEnabled, c.CacheDir)
	fmt.Println("================================")

	if err := c.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)

	// === SECTION 4: Health Check ===
	fmt.Println("\n=== Running Health Check ===")

	loadedCfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}

	result, err := healthcheck.Check(loadedCfg, configPath, configPath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Printf("\nConfig Scope: %s\n", result.SavedScope)
	if result.SavedScope == "global" {
		fmt.Printf("Config Path: %s\n", configPath)
	} else {
		absPath, _ := filepath.Abs(configPath)
		fmt.Printf("Config Path: %s\n", absPath)
	}
	fmt.Println()
	displayDoctorResult(os.Stdout, result)

	fmt.Println("\n=== Initialization Complete ===")
	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
