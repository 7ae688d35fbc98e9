package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fstore/internal/config"
	"fstore/internal/format"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	output   string
	logLevel string
	user     string
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "fstore",
		Short:         "fstore is a per-owner file storage service with public download links",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(opts.logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			if opts.output != "" && opts.output != outputTable {
				formatter, err := format.ForName(opts.output)
				if err != nil {
					return err
				}
				outputFormatter = formatter
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "output format: table, json or yaml")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&opts.user, "user", "u", "", "act as this user id (default: FSTORE_USER)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newUploadCmd(cfg, opts),
		newListCmd(cfg, opts),
		newPublicCmd(cfg, opts),
		newGetCmd(cfg, opts),
		newMoveCmd(cfg, opts),
		newRemoveCmd(cfg, opts),
		newGCCmd(cfg, opts),
		newConfigCmd(cfg),
		newAdminCmd(),
		newMigrateCmd(cfg, opts),
	)

	return cmd
}

func (o *rootOptions) structured() bool {
	return o.output != "" && o.output != outputTable
}
