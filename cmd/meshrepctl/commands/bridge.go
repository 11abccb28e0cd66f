package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errBridgePrefixRequired = errors.New("a 4-byte hex sender prefix is required")

func bridgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Manage the MQTT bridge's ban list",
	}
	cmd.AddCommand(bridgeBanCmd())
	cmd.AddCommand(bridgeUnbanCmd())
	return cmd
}

func bridgeBanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ban <prefix-hex>",
		Short: "Ban a sender prefix from the bridge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postBanRequest(cmd, "/v1/bridge/ban", args[0])
		},
	}
}

func bridgeUnbanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unban <prefix-hex>",
		Short: "Remove a sender prefix from the bridge ban list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postBanRequest(cmd, "/v1/bridge/unban", args[0])
		},
	}
}

func postBanRequest(cmd *cobra.Command, path, prefixHex string) error {
	if prefixHex == "" {
		return errBridgePrefixRequired
	}
	req := map[string]string{"prefix_hex": prefixHex}
	var resp map[string]bool
	if err := apiPost(cmd.Context(), path, req, &resp); err != nil {
		return fmt.Errorf("bridge request: %w", err)
	}
	if resp["ok"] {
		fmt.Println("OK")
	} else {
		fmt.Println("no change")
	}
	return nil
}
