package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type aclEntry struct {
	PubKeyHex    string
	Permissions  uint8
	LastActivity int64
}

func aclCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acl",
		Short: "Manage the access control list",
	}
	cmd.AddCommand(aclListCmd())
	cmd.AddCommand(aclSetCmd())
	return cmd
}

func aclListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List ACL entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var entries []aclEntry
			if err := apiGet(cmd.Context(), "/v1/acl", &entries); err != nil {
				return fmt.Errorf("list acl: %w", err)
			}
			return printResult(outputFormat, entries, func() (string, error) {
				return formatACLTable(entries), nil
			})
		},
	}
}

func formatACLTable(entries []aclEntry) string {
	var buf strings.Builder
	w := newTabwriter(&buf)
	fmt.Fprintln(w, "PUBKEY\tPERMISSIONS\tLAST-ACTIVITY")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t0x%02x\t%d\n", e.PubKeyHex, e.Permissions, e.LastActivity)
	}
	_ = w.Flush()
	return buf.String()
}

func aclSetCmd() *cobra.Command {
	var permsStr string

	cmd := &cobra.Command{
		Use:   "set <pubkey-hex>",
		Short: "Set a client's permission bits (0 tombstones the record)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			perms, err := strconv.ParseUint(permsStr, 0, 8)
			if err != nil {
				return fmt.Errorf("parse --permissions: %w", err)
			}

			req := map[string]any{
				"pub_key_hex": args[0],
				"permissions": uint8(perms),
			}
			var resp map[string]bool
			if err := apiPost(cmd.Context(), "/v1/acl/permissions", req, &resp); err != nil {
				return fmt.Errorf("set acl permissions: %w", err)
			}
			fmt.Println("OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&permsStr, "permissions", "0", "permission bits, decimal or 0x-prefixed hex")
	return cmd
}
