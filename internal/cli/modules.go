package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/harun/cortex/pkg/module"
	"github.com/spf13/cobra"
)

var (
	listType   string
	listStatus string
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Inspect the module catalog",
}

var modulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered modules",
	Args:  cobra.NoArgs,
	RunE:  runModulesList,
}

var modulesSearchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Find modules by id, name or trigger keyword",
	Args:  cobra.ExactArgs(1),
	RunE:  runModulesSearch,
}

var modulesDepsCmd = &cobra.Command{
	Use:   "deps <id>",
	Short: "Show the dependency load order of a module",
	Args:  cobra.ExactArgs(1),
	RunE:  runModulesDeps,
}

func init() {
	modulesListCmd.Flags().StringVar(&listType, "type", "", "filter by module type")
	modulesListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")

	modulesCmd.AddCommand(modulesListCmd, modulesSearchCmd, modulesDepsCmd)
	rootCmd.AddCommand(modulesCmd)
}

func runModulesList(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	records := a.cortex.Registry().List(module.Filter{
		Type:   module.ModuleType(listType),
		Status: module.ModuleStatus(listStatus),
	})
	printRecords(cmd.OutOrStdout(), records)
	return nil
}

func runModulesSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	printRecords(cmd.OutOrStdout(), a.cortex.Registry().FindByKeyword(args[0]))
	return nil
}

func runModulesDeps(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	deps, err := a.cortex.Registry().GetDependencies(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(deps) == 0 {
		fmt.Fprintf(out, "%s has no dependencies\n", args[0])
		return nil
	}
	fmt.Fprintf(out, "Load order: %s -> %s\n", strings.Join(deps, " -> "), args[0])
	return nil
}

func printRecords(out io.Writer, records []module.ModuleRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No modules found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tTYPE\tTOKENS\tSTATUS\tTIER\tDEPENDENCIES")
	for _, r := range records {
		deps := strings.Join(r.Dependencies, ",")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n", r.ID, r.Version, r.Type, r.SizeTokens, r.Status, r.Tier, deps)
	}
	w.Flush()
}
