package cli

import (
	"fmt"

	"github.com/harun/cortex/internal/config"
	"github.com/spf13/cobra"
)

var (
	configureLimit  int
	configureBuffer int
	configurePolicy string
	configureDirs   []string
	configureForce  bool
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write a configuration file",
	Long: `Write a configuration file with the default settings, adjusted by the
given flags. An existing file is only replaced with --force.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().IntVar(&configureLimit, "memory-limit", 0, "token budget")
	configureCmd.Flags().IntVar(&configureBuffer, "memory-buffer", -1, "tokens kept free below the budget")
	configureCmd.Flags().StringVar(&configurePolicy, "policy", "", "eviction policy (lru, lfu, priority)")
	configureCmd.Flags().StringSliceVar(&configureDirs, "modules-dir", nil, "module directory, repeatable")
	configureCmd.Flags().BoolVar(&configureForce, "force", false, "overwrite an existing configuration")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	configPath := loader.GetConfigPath()

	cfg := config.DefaultConfig()
	if !configureForce {
		existing, err := loader.Load()
		if err != nil {
			return fmt.Errorf("failed to read existing configuration: %w", err)
		}
		cfg = existing
	}

	if configureLimit > 0 {
		cfg.Memory.Limit = configureLimit
	}
	if configureBuffer >= 0 {
		cfg.Memory.Buffer = configureBuffer
	}
	if configurePolicy != "" {
		cfg.Eviction.Policy = configurePolicy
	}
	if len(configureDirs) > 0 {
		cfg.Modules.Dirs = configureDirs
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to: %s\n", configPath)
	return nil
}
