package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/harun/cortex/pkg/module"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service and storage status",
	Long:  `Show whether the cortex service is running and how module content is spread across the storage tiers.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	pidFile := pidFilePath(a.config)
	if isRunning(pidFile) {
		pid, _ := readPID(pidFile)
		fmt.Fprintf(out, "Service: running (PID %d", pid)
		if info, err := os.Stat(pidFile); err == nil {
			fmt.Fprintf(out, ", uptime %s", formatDuration(time.Since(info.ModTime())))
		}
		fmt.Fprintln(out, ")")
	} else {
		fmt.Fprintln(out, "Service: stopped")
	}

	records := a.cortex.Registry().List(module.Filter{})
	tiers := make(map[module.Tier]int)
	tokens := make(map[module.Tier]int)
	for _, r := range records {
		tiers[r.Tier]++
		tokens[r.Tier] += r.SizeTokens
	}

	fmt.Fprintf(out, "Modules: %d registered\n", len(records))
	fmt.Fprintf(out, "Budget: %d tokens (%s eviction)\n", a.config.Memory.HotCapacity(), a.cortex.Loader().Policy())
	for _, tier := range []module.Tier{module.TierWarm, module.TierCold, module.TierNone} {
		fmt.Fprintf(out, "  %-5s %3d modules  %8d tokens\n", tier, tiers[tier], tokens[tier])
	}
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
