package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/earscope/pkg/archive"
	"github.com/l3aro/earscope/pkg/cache"
	"github.com/l3aro/earscope/pkg/inspector"
	"github.com/l3aro/earscope/pkg/report"
	"github.com/l3aro/earscope/pkg/types"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <archive>",
	Short: "Analyze an enterprise archive",
	Long: `Extracts the archive into a scratch directory, parses its deployment
descriptors, inspects every module's classes and traces calls between the
declared components. Problems that only affect part of the archive are
reported as diagnostics; only an unreadable archive fails the command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := analyzeArchive(cmd, args[0])
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), result)
		}
		printReport(cmd.OutOrStdout(), result)
		return nil
	},
}

// addAnalysisFlags registers the flags shared by commands that run an analysis.
func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cmd.Flags().StringP("strategy", "s", "", "Method extraction strategy (auto, classfile or javap)")
	cmd.Flags().String("javap", "", "Path to the javap executable")
	cmd.Flags().String("scratch-dir", "", "Parent directory for extracted archives")
	cmd.Flags().Bool("keep-scratch", false, "Keep extracted files after the run")
	cmd.Flags().Bool("include-libraries", false, "Also inspect jars under WEB-INF/lib")
	cmd.Flags().StringSlice("exclude", nil, "Class path pattern to skip (repeatable)")
	cmd.Flags().IntP("concurrency", "c", 0, "Modules inspected at once")
	cmd.Flags().Bool("no-cache", false, "Neither read nor write cached results")
}

// analysisOptions merges command flags over the loaded configuration.
func analysisOptions(cmd *cobra.Command) (report.Options, error) {
	flags := cmd.Flags()
	if flags.Changed("strategy") {
		cfg.Strategy, _ = flags.GetString("strategy")
	}
	if flags.Changed("javap") {
		cfg.JavapPath, _ = flags.GetString("javap")
	}
	if flags.Changed("scratch-dir") {
		cfg.ScratchDir, _ = flags.GetString("scratch-dir")
	}
	if flags.Changed("keep-scratch") {
		cfg.KeepScratch, _ = flags.GetBool("keep-scratch")
	}
	if flags.Changed("include-libraries") {
		cfg.IncludeLibraries, _ = flags.GetBool("include-libraries")
	}
	if flags.Changed("exclude") {
		cfg.Exclude, _ = flags.GetStringSlice("exclude")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		cfg.CacheEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		return report.Options{}, err
	}

	opts := report.Options{
		Strategy:         inspector.Strategy(cfg.Strategy),
		JavapPath:        cfg.JavapPath,
		ScratchDir:       cfg.ScratchDir,
		KeepScratch:      cfg.KeepScratch,
		Concurrency:      cfg.Concurrency,
		IncludeLibraries: cfg.IncludeLibraries,
		Excludes:         cfg.Exclude,
		Logger:           logger,
	}

	// kept scratch output is for inspection, so it should not be served from cache
	if cfg.CacheEnabled && !cfg.KeepScratch {
		store, err := cache.NewResultStore(cache.StoreOptions{Dir: cfg.CacheDir, MaxEntries: cfg.CacheEntries})
		if err != nil {
			logger.Warn("result cache disabled", "dir", cfg.CacheDir, "error", err)
		} else {
			opts.Cache = store
		}
	}
	return opts, nil
}

func analyzeArchive(cmd *cobra.Command, path string) (*types.Result, error) {
	opts, err := analysisOptions(cmd)
	if err != nil {
		return nil, err
	}
	analyzer, err := report.New(opts)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := analyzer.Analyze(ctx, path)
	if err != nil {
		if errors.Is(err, archive.ErrCorruptArchive) {
			return nil, fmt.Errorf("cannot analyze %s: %w", path, err)
		}
		return nil, err
	}
	return result, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printReport(w io.Writer, r *types.Result) {
	fmt.Fprintf(w, "=== Archive: %s ===\n\n", filepath.Base(r.Archive.Path))

	fmt.Fprintf(w, "Statistics:\n")
	fmt.Fprintf(w, "  Modules: %d\n", r.Stats.Modules)
	fmt.Fprintf(w, "  Components: %d\n", r.Stats.Components)
	fmt.Fprintf(w, "  Classes: %d\n", r.Stats.Classes)
	fmt.Fprintf(w, "  Methods: %d\n", r.Stats.Methods)
	fmt.Fprintf(w, "  JNDI references: %d\n", r.Stats.JndiRefs)
	fmt.Fprintf(w, "  Vendor bindings: %d\n", r.Stats.Bindings)
	fmt.Fprintf(w, "  Edges: %d\n", r.Stats.Edges)
	fmt.Fprintf(w, "  Diagnostics: %d\n", r.Stats.Diagnostics)

	if !r.Archive.DescriptorFound {
		fmt.Fprintln(w, "\nNo application descriptor found.")
	}

	for _, m := range r.Archive.Modules {
		fmt.Fprintf(w, "\n%s [%s]", m.Name, m.Kind)
		if m.ContextRoot != "" {
			fmt.Fprintf(w, " context-root=%s", m.ContextRoot)
		}
		fmt.Fprintf(w, " inspection=%s\n", m.Inspection)
		if m.Path != "" {
			fmt.Fprintf(w, "  Extracted to: %s\n", m.Path)
		}

		for _, c := range m.Components {
			fmt.Fprintf(w, "  %s\n", describeComponent(c))
		}
		for _, c := range m.Classes {
			fmt.Fprintf(w, "    %s (%d methods)\n", c.Name, len(c.Methods))
			for _, ref := range c.Jndi {
				fmt.Fprintf(w, "      jndi %s\n", ref.Name)
			}
		}
		for _, b := range m.Bindings {
			fmt.Fprintf(w, "  %s\n", describeBinding(b))
		}
	}

	if len(r.Edges) > 0 {
		fmt.Fprintln(w, "\nEdges:")
		for _, e := range r.Edges {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if diags := r.AllDiagnostics(); len(diags) > 0 {
		fmt.Fprintln(w, "\nDiagnostics:")
		for _, d := range diags {
			fmt.Fprintf(w, "  %s\n", describeDiagnostic(d))
		}
	}
}

func describeBinding(b types.VendorBinding) string {
	if b.Name != "" {
		return fmt.Sprintf("binding %s -> %s (%s, %s)", b.Name, b.Value, b.Rule, b.File)
	}
	return fmt.Sprintf("binding %s (%s, %s)", b.Value, b.Rule, b.File)
}

func describeComponent(c types.ComponentNode) string {
	var sb strings.Builder
	sb.WriteString(string(c.Kind))
	sb.WriteString(" ")
	sb.WriteString(c.Name)
	if c.BeanKind != "" {
		fmt.Fprintf(&sb, " (%s", c.BeanKind)
		if c.SessionType != "" {
			fmt.Fprintf(&sb, ", %s", c.SessionType)
		}
		sb.WriteString(")")
	}
	if len(c.Paths) > 0 {
		fmt.Fprintf(&sb, " %s", strings.Join(c.Paths, ","))
	} else if c.Path != "" {
		fmt.Fprintf(&sb, " %s", c.Path)
	}
	if c.Class != "" {
		fmt.Fprintf(&sb, " -> %s", c.Class)
	}
	if c.Link != "" {
		fmt.Fprintf(&sb, " link=%s", c.Link)
	}
	if c.Origin == types.FromAnnotation {
		sb.WriteString(" [annotation]")
	}
	return sb.String()
}

func describeDiagnostic(d types.Diagnostic) string {
	where := string(d.Scope)
	if d.Module != "" {
		where += " " + d.Module
	}
	if d.Subject != "" && d.Subject != d.Module {
		where += " " + d.Subject
	}
	return fmt.Sprintf("%s [%s]: %s", d.Kind, where, d.Message)
}

func init() {
	addAnalysisFlags(analyzeCmd)
	RootCmd.AddCommand(analyzeCmd)
}
