package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fstore/internal/api"
	"fstore/internal/config"
)

func newUploadCmd(cfg *config.Config, opts *rootOptions) *cobra.Command {
	var (
		visibility  string
		tags        []string
		name        string
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			filename := strings.TrimSpace(name)
			if filename == "" {
				filename = filepath.Base(path)
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(filename))
			}

			return withClient(cfg, opts, func(client *api.Client) error {
				resp, err := client.Upload(cmd.Context(), api.UploadRequest{
					Filename:    filename,
					ContentType: contentType,
					Visibility:  visibility,
					Tags:        splitTagFlags(tags),
				}, f)
				if err != nil {
					return err
				}
				if opts.structured() {
					return writeStructured(resp)
				}
				return writeFileDetail(resp)
			})
		},
	}

	cmd.Flags().StringVar(&visibility, "visibility", "", "PUBLIC or PRIVATE (default PRIVATE)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag to attach (repeatable, comma separated)")
	cmd.Flags().StringVar(&name, "name", "", "stored filename (default: base name of path)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "declared content type (default: from extension)")
	return cmd
}

func newListCmd(cfg *config.Config, opts *rootOptions) *cobra.Command {
	var query api.ListQuery

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List files",
		Long:    "List files. With a user the listing covers that owner's files of any visibility; anonymous listings only see PUBLIC files.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if query.Page < 0 {
				return fmt.Errorf("--page must be >= 0")
			}
			return withClient(cfg, opts, func(client *api.Client) error {
				resp, err := client.List(cmd.Context(), query)
				if err != nil {
					return err
				}
				if opts.structured() {
					return writeStructured(resp)
				}
				if err := writeFileTable(resp.Files); err != nil {
					return err
				}
				return writePlain("page %d, %d of %d files\n", resp.Page, len(resp.Files), resp.Total)
			})
		},
	}

	cmd.Flags().StringVar(&query.Visibility, "visibility", "", "filter by visibility (PUBLIC or PRIVATE)")
	cmd.Flags().StringVar(&query.Tag, "tag", "", "filter by tag substring (case-insensitive)")
	cmd.Flags().StringVar(&query.SortBy, "sort", "", "sort by filename, uploadedAt, size, contentType or visibility")
	cmd.Flags().StringVar(&query.Direction, "direction", "", "ASC or DESC")
	cmd.Flags().IntVar(&query.Page, "page", 0, "zero-based page")
	cmd.Flags().IntVar(&query.Size, "size", 0, "page size (default: server default)")
	return cmd
}

func newPublicCmd(cfg *config.Config, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "public",
		Short: "List every PUBLIC file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, opts, func(client *api.Client) error {
				files, err := client.ListPublic(cmd.Context())
				if err != nil {
					return err
				}
				if opts.structured() {
					return writeStructured(files)
				}
				return writeFileTable(files)
			})
		},
	}
}

func newMoveCmd(cfg *config.Config, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "mv <id> <new-filename>",
		Aliases: []string{"rename"},
		Short:   "Rename a file you own",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, opts, func(client *api.Client) error {
				resp, err := client.Rename(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if opts.structured() {
					return writeStructured(resp)
				}
				return writePlain("renamed %s to %s\n", resp.ID, resp.Filename)
			})
		},
	}
}

func newRemoveCmd(cfg *config.Config, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete files you own",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, opts, func(client *api.Client) error {
				for _, id := range args {
					if err := client.Delete(cmd.Context(), id); err != nil {
						return fmt.Errorf("delete %s: %w", id, err)
					}
					if !opts.structured() {
						if err := writePlain("deleted %s\n", id); err != nil {
							return err
						}
					}
				}
				if opts.structured() {
					return writeStructured(map[string]any{"deleted": args})
				}
				return nil
			})
		},
	}
}

// splitTagFlags trims each tag and drops empties; the server does the rest
// of the normalization.
func splitTagFlags(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
