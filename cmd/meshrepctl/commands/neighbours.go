package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type neighbourEntry struct {
	PubKeyHex string
	SecsAgo   uint32
	SNRQ2     int8
}

func neighboursCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "neighbours",
		Short: "List known neighbours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/v1/neighbours"
			if limit > 0 {
				path = fmt.Sprintf("%s?limit=%d", path, limit)
			}
			var entries []neighbourEntry
			if err := apiGet(cmd.Context(), path, &entries); err != nil {
				return fmt.Errorf("list neighbours: %w", err)
			}
			return printResult(outputFormat, entries, func() (string, error) {
				return formatNeighboursTable(entries), nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of neighbours to return (0 for all)")
	return cmd
}

func formatNeighboursTable(entries []neighbourEntry) string {
	var buf strings.Builder
	w := newTabwriter(&buf)
	fmt.Fprintln(w, "PUBKEY\tSECS-AGO\tSNR-Q2")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%d\n", e.PubKeyHex, e.SecsAgo, e.SNRQ2)
	}
	_ = w.Flush()
	return buf.String()
}
