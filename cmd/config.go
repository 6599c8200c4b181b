package cmd

import (
	"fmt"
	"text/tabwriter"

	"media-harvest/infrastructure/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration entries",
	Long: `Manage Supadata API keys and the Nitter instance in the configuration file.

Examples:
  media-harvest config add-key sd_1234567890
  media-harvest config list-keys
  media-harvest config remove-key 2
  media-harvest config set-strategy random
  media-harvest config set-nitter https://nitter.example.com`,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configAddKeyCmd)
	configCmd.AddCommand(configListKeysCmd)
	configCmd.AddCommand(configRemoveKeyCmd)
	configCmd.AddCommand(configSetStrategyCmd)
	configCmd.AddCommand(configSetNitterCmd)
}

// --- ADD-KEY command ---

var configAddKeyCmd = &cobra.Command{
	Use:   "add-key <key>",
	Short: "Add a Supadata API key",
	Long: `Appends a Supadata API key. Keys are rotated per request, so adding keys
spreads quota across accounts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigAddKeyWithDependencies(cfg, cfgFile, args[0], DefaultOutput)
	},
}

// RunConfigAddKeyWithDependencies runs the add-key command with injected dependencies
func RunConfigAddKeyWithDependencies(cfg *config.Config, configPath, key string, out OutputWriter) error {
	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.AddAPIKey(key); err != nil {
		return err
	}
	fmt.Fprintf(out, "Added API key %s (%d configured)\n", config.MaskKey(key), len(cfg.Supadata.APIKeys))
	return nil
}

// --- LIST-KEYS command ---

var configListKeysCmd = &cobra.Command{
	Use:   "list-keys",
	Short: "List Supadata API keys (masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigListKeysWithDependencies(cfg, cfgFile, DefaultOutput)
	},
}

// RunConfigListKeysWithDependencies runs the list-keys command with injected dependencies
func RunConfigListKeysWithDependencies(cfg *config.Config, configPath string, out OutputWriter) error {
	mgr := config.NewConfigManager(cfg, configPath)
	keys := mgr.ListAPIKeys()
	if len(keys) == 0 {
		fmt.Fprintln(out, "No API keys configured.")
		fmt.Fprintf(out, "Add one with: %s\n", config.SuggestAddKeyCommand())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tKEY")
	for _, k := range keys {
		fmt.Fprintf(w, "%d\t%s\n", k.Index, k.Masked)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	strategy := cfg.Supadata.KeyStrategy
	if cfg.Supadata.SingleKey {
		strategy += " (single key mode)"
	}
	fmt.Fprintf(out, "Strategy: %s\n", strategy)
	return nil
}

// --- REMOVE-KEY command ---

var configRemoveKeyCmd = &cobra.Command{
	Use:   "remove-key <key|index>",
	Short: "Remove a Supadata API key",
	Long: `Removes a key by its full value or by the index shown in list-keys.

Examples:
  media-harvest config remove-key 2
  media-harvest config remove-key sd_1234567890`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigRemoveKeyWithDependencies(cfg, cfgFile, args[0], DefaultOutput)
	},
}

// RunConfigRemoveKeyWithDependencies runs the remove-key command with injected dependencies
func RunConfigRemoveKeyWithDependencies(cfg *config.Config, configPath, ref string, out OutputWriter) error {
	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.RemoveAPIKey(ref); err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed API key (%d remaining)\n", len(cfg.Supadata.APIKeys))
	return nil
}

// --- SET-STRATEGY command ---

var configSetStrategyCmd = &cobra.Command{
	Use:   "set-strategy <round_robin|random>",
	Short: "Set how Supadata keys are rotated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigSetStrategyWithDependencies(cfg, cfgFile, args[0], DefaultOutput)
	},
}

// RunConfigSetStrategyWithDependencies runs the set-strategy command with injected dependencies
func RunConfigSetStrategyWithDependencies(cfg *config.Config, configPath, strategy string, out OutputWriter) error {
	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.SetKeyStrategy(strategy); err != nil {
		return err
	}
	fmt.Fprintf(out, "Key strategy set to %s\n", cfg.Supadata.KeyStrategy)
	return nil
}

// --- SET-NITTER command ---

var configSetNitterCmd = &cobra.Command{
	Use:   "set-nitter <url>",
	Short: "Set the Nitter instance used for Twitter timelines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		return RunConfigSetNitterWithDependencies(cfg, cfgFile, args[0], DefaultOutput)
	},
}

// RunConfigSetNitterWithDependencies runs the set-nitter command with injected dependencies
func RunConfigSetNitterWithDependencies(cfg *config.Config, configPath, url string, out OutputWriter) error {
	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.SetNitterURL(url); err != nil {
		return err
	}
	fmt.Fprintf(out, "Nitter instance set to %s\n", cfg.Nitter.URL)
	return nil
}
