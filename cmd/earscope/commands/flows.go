package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/earscope/pkg/types"
)

// FlowsOutput represents the output of the flows command
type FlowsOutput struct {
	Archive string           `json:"archive"`
	Paths   []types.FlowPath `json:"paths"`
	// Unresolved lists components that could not take part in tracing.
	Unresolved []types.Diagnostic `json:"unresolved,omitempty"`
}

// flowsCmd represents the flows command
var flowsCmd = &cobra.Command{
	Use:   "flows <archive>",
	Short: "Show call flows from each entry point",
	Long: `Runs a full analysis and prints, for every servlet and message-driven
bean, the component calls reachable from it in breadth-first order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := analyzeArchive(cmd, args[0])
		if err != nil {
			return err
		}

		entry, _ := cmd.Flags().GetString("entry")
		output := FlowsOutput{
			Archive:    result.Archive.Path,
			Paths:      filterPaths(result.Paths, entry),
			Unresolved: result.DiagnosticsOf(types.UnresolvedComponent),
		}
		if entry != "" && len(output.Paths) == 0 {
			return fmt.Errorf("no entry point named %q", entry)
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), output)
		}
		printFlows(cmd.OutOrStdout(), output)
		return nil
	},
}

// filterPaths keeps the flows of the named entry point, matched by
// component name or exposed path.
func filterPaths(paths []types.FlowPath, entry string) []types.FlowPath {
	if entry == "" {
		return paths
	}
	var out []types.FlowPath
	for _, p := range paths {
		if p.EntryPoint == entry || (p.Path != "" && p.Path == entry) {
			out = append(out, p)
		}
	}
	return out
}

func printFlows(w io.Writer, output FlowsOutput) {
	fmt.Fprintf(w, "=== Flows: %s ===\n", output.Archive)

	for _, p := range output.Paths {
		fmt.Fprintf(w, "\n%s/%s", p.Module, p.EntryPoint)
		if p.Path != "" {
			fmt.Fprintf(w, " (%s)", p.Path)
		}
		fmt.Fprintln(w)
		if len(p.Edges) == 0 {
			fmt.Fprintln(w, "  (no outgoing calls)")
			continue
		}
		for _, e := range p.Edges {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if len(output.Unresolved) > 0 {
		fmt.Fprintln(w, "\nUnresolved components:")
		for _, d := range output.Unresolved {
			fmt.Fprintf(w, "  %s/%s: %s\n", d.Module, d.Subject, d.Message)
		}
	}
}

func init() {
	addAnalysisFlags(flowsCmd)
	flowsCmd.Flags().StringP("entry", "e", "", "Only show the flow of this entry point (name or path)")
	RootCmd.AddCommand(flowsCmd)
}
