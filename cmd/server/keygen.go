package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpggio/interview/internal/auth"
)

func newKeygenCmd() *cobra.Command {
	var (
		tenant string
		role   string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an API key and the config entry holding its hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := auth.GenerateKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key: %s\n\n", key)
			fmt.Fprintln(out, "auth:")
			fmt.Fprintln(out, "  keys:")
			fmt.Fprintf(out, "    - hash: %s\n", auth.HashKey(key))
			fmt.Fprintf(out, "      tenant: %q\n", tenant)
			fmt.Fprintf(out, "      role: %s\n", role)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", auth.AnyTenant, "tenant the key is bound to")
	cmd.Flags().StringVar(&role, "role", "viewer", "role granted to the key")
	return cmd
}
