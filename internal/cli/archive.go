package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var archiveIdle time.Duration

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move idle warm modules to cold storage",
	Args:  cobra.NoArgs,
	RunE:  runArchive,
}

func init() {
	archiveCmd.Flags().DurationVar(&archiveIdle, "idle", 0, "minimum idle time (default from maintenance.archive_idle_minutes)")
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	idle := archiveIdle
	if idle == 0 {
		idle = a.config.Maintenance.ArchiveIdle()
	}

	result, err := a.cortex.Loader().Archive(idle)
	fmt.Fprintf(cmd.OutOrStdout(), "Archived %d modules\n", len(result.Archived))
	for _, id := range result.Archived {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
	}
	return err
}
