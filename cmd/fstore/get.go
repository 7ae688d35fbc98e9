package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fstore/internal/api"
	"fstore/internal/config"
)

func newGetCmd(cfg *config.Config, opts *rootOptions) *cobra.Command {
	var (
		outPath string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "get <token>",
		Short: "Download a file by its public token",
		Long:  "Download a file by its public token. PUBLIC files need no user; PRIVATE files only download for their owner. Use -O - to write to stdout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, opts, func(client *api.Client) error {
				dl, err := client.Download(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				defer dl.Body.Close()

				if outPath == "-" {
					_, err := io.Copy(stdout, dl.Body)
					return err
				}

				target := outPath
				if target == "" {
					target = filepath.Base(dl.Filename)
				}
				if target == "" || target == "." || target == string(filepath.Separator) {
					return fmt.Errorf("server sent no usable filename; pass -O")
				}
				written, err := saveDownload(target, dl.Body, force)
				if err != nil {
					return err
				}
				if opts.structured() {
					return writeStructured(map[string]any{
						"path":         target,
						"bytes":        written,
						"content_type": dl.ContentType,
					})
				}
				return writePlain("saved %s (%s, %s)\n", target, humanize.IBytes(uint64(written)), dl.ContentType)
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output-file", "O", "", "destination path (default: stored filename, - for stdout)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing destination")
	return cmd
}

// saveDownload streams body into a temp file next to target and renames it
// into place once the copy completes.
func saveDownload(target string, body io.Reader, force bool) (int64, error) {
	if !force {
		if _, err := os.Stat(target); err == nil {
			return 0, fmt.Errorf("%s already exists (use --force to overwrite)", target)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".fstore-get-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	written, err := io.Copy(tmp, body)
	if err != nil {
		_ = tmp.Close()
		return written, fmt.Errorf("download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return written, err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return written, err
	}
	return written, nil
}
