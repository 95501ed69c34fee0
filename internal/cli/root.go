package cli

import (
	"github.com/harun/cortex/internal/config"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X ...cli.version=..."
var version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "Tiered module working-set manager",
	Long: `cortex keeps a working set of knowledge and capability modules inside a
token budget. Modules are discovered from manifest directories and loaded
with their dependencies into the hot tier. When the budget runs short they
are evicted to warm storage, and idle ones are archived to cold storage.`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: checkGlobalFlags,
}

// Execute runs the command line
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file, JSON or YAML (default $HOME/.cortex/cortex.json)")
	flags.StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")
}

// checkGlobalFlags rejects a bad --log-level before any config is read
func checkGlobalFlags(cmd *cobra.Command, args []string) error {
	if logLevel == "" {
		return nil
	}
	return config.NewValidator().ValidateLogLevel(logLevel)
}

// GetRootCmd returns the root command
func GetRootCmd() *cobra.Command {
	return rootCmd
}
