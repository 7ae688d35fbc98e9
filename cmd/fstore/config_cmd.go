package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fstore/internal/config"
)

func newConfigCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change configuration",
		Long:  "Inspect or change configuration. Values come from the config file (FSTORE_CONFIG_DIR or ~/.fstore.toml) overridden by FSTORE_* environment variables; secrets are masked.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>...",
			Short: "Print effective config values",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return printConfigKeys(cfg, args, len(args) > 1)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print every effective config value",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return printConfigKeys(cfg, config.AllowedKeys(), true)
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Write one value to the config file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := config.GlobalPath()
				if err != nil {
					return err
				}
				if err := config.SetKey(path, args[0], args[1]); err != nil {
					return err
				}
				return writePlain("%s updated in %s\n", args[0], path)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := config.GlobalPath()
				if err != nil {
					return err
				}
				return writePlain("%s\n", path)
			},
		},
	)
	return cmd
}

func printConfigKeys(cfg *config.Config, keys []string, labelled bool) error {
	for _, key := range keys {
		if !config.IsAllowedKey(key) {
			return fmt.Errorf("unknown key: %s (allowed: %v)", key, config.AllowedKeys())
		}
	}
	for _, key := range keys {
		value, err := cfg.Get(key)
		if err != nil {
			return err
		}
		if labelled {
			err = writePlain("%s = %s\n", key, value)
		} else {
			err = writePlain("%s\n", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
