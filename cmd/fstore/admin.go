package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fstore/internal/auth"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newAdminHashTokenCmd())
	return cmd
}

func newAdminHashTokenCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash of an admin token for admin.token_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			switch {
			case len(args) == 1:
				token = args[0]
			case fromStdin:
				line, err := readTokenLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				token = line
			default:
				token = os.Getenv(adminTokenEnvKey)
			}
			if token == "" {
				return fmt.Errorf("token is required (argument, --stdin or %s)", adminTokenEnvKey)
			}

			hash, err := auth.HashAdminToken(token)
			if err != nil {
				return err
			}
			return writePlain("%s\n", hash)
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the token from the first line of stdin")
	return cmd
}

func readTokenLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
