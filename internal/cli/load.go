package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/harun/cortex/pkg/loader"
	"github.com/spf13/cobra"
)

var loadPriority string

var loadCmd = &cobra.Command{
	Use:   "load <id>...",
	Short: "Load modules with their dependencies",
	Long: `Load modules and their dependencies into the hot tier, evicting
other modules when the budget requires it. Loaded content is demoted to the
warm tier when the command exits.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadPriority, "priority", "", "load priority (low, normal, high, critical)")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	priority := a.cortex.DefaultPriority()
	if loadPriority != "" {
		if priority, err = loader.ParsePriority(loadPriority); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	var failed []string
	for _, id := range args {
		result, err := a.cortex.Loader().Load(id, priority)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", id, err)
			failed = append(failed, id)
			continue
		}
		printLoadResult(out, result)
	}

	printMemoryUsage(out, a.cortex.Loader().GetMemoryUsage())
	if len(failed) > 0 {
		return fmt.Errorf("failed to load %s", strings.Join(failed, ", "))
	}
	return nil
}

func printLoadResult(out io.Writer, result *loader.LoadResult) {
	if result.AlreadyLoaded {
		fmt.Fprintf(out, "%s: already loaded\n", result.ModuleID)
		return
	}
	fmt.Fprintf(out, "%s: loaded %s", result.ModuleID, strings.Join(result.Loaded, ", "))
	if len(result.Evicted) > 0 {
		fmt.Fprintf(out, " (evicted %s)", strings.Join(result.Evicted, ", "))
	}
	fmt.Fprintln(out)
}

func printMemoryUsage(out io.Writer, usage loader.MemoryUsage) {
	fmt.Fprintf(out, "Memory: %d/%d tokens (%.1f%%), %d free\n", usage.Used, usage.Limit, usage.Percentage, usage.Free)
	for _, m := range usage.Modules {
		fmt.Fprintf(out, "  %s\t%d tokens\t%s\n", m.ID, m.SizeTokens, m.Priority)
	}
}
