package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fstore/internal/api"
	"fstore/internal/config"
)

const adminTokenEnvKey = "FSTORE_ADMIN_TOKEN"

func newGCCmd(cfg *config.Config, opts *rootOptions) *cobra.Command {
	var (
		apply bool
		yes   bool
		grace time.Duration
		token string
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Garbage-collect blobs no file record references",
		Long:  "Garbage-collect blobs no file record references. Runs as a dry run unless --apply and --yes are both given. Requires the admin token (--token or FSTORE_ADMIN_TOKEN).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apply && !yes {
				return fmt.Errorf("--apply deletes blobs; confirm with --yes")
			}
			if grace < 0 {
				return fmt.Errorf("--grace must be >= 0")
			}
			if token == "" {
				token = os.Getenv(adminTokenEnvKey)
			}

			return withClient(cfg, opts, func(client *api.Client) error {
				req := api.GCRequest{DryRun: !apply}
				if grace > 0 {
					req.GracePeriod = grace.String()
				}
				resp, err := client.WithAdminToken(token).GC(cmd.Context(), req, apply)
				if err != nil {
					return err
				}
				if opts.structured() {
					return writeStructured(resp)
				}
				return writeGCSummary(resp)
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete unreferenced blobs instead of reporting them")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm --apply")
	cmd.Flags().DurationVar(&grace, "grace", 0, "skip blobs younger than this (default: server gc.grace_period)")
	cmd.Flags().StringVar(&token, "token", "", "admin token (default: FSTORE_ADMIN_TOKEN)")
	return cmd
}
