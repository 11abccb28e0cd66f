package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type regionEntry struct {
	ID        uint16
	Name      string
	ParentID  uint16
	DenyFlood bool
	Home      bool
}

func regionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "Manage the region map",
	}
	cmd.AddCommand(regionsListCmd())
	cmd.AddCommand(regionsReloadCmd())
	return cmd
}

func regionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List regions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var entries []regionEntry
			if err := apiGet(cmd.Context(), "/v1/regions", &entries); err != nil {
				return fmt.Errorf("list regions: %w", err)
			}
			return printResult(outputFormat, entries, func() (string, error) {
				return formatRegionsTable(entries), nil
			})
		},
	}
}

func formatRegionsTable(entries []regionEntry) string {
	var buf strings.Builder
	w := newTabwriter(&buf)
	fmt.Fprintln(w, "ID\tNAME\tPARENT\tDENY-FLOOD\tHOME")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%t\t%t\n", e.ID, e.Name, e.ParentID, e.DenyFlood, e.Home)
	}
	_ = w.Flush()
	return buf.String()
}

func regionsReloadCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Replace the region map from a line-oriented definition file (- for stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines, err := readLines(file)
			if err != nil {
				return fmt.Errorf("read region definition: %w", err)
			}

			req := map[string]any{"lines": lines}
			var resp struct {
				Accepted int `json:"accepted"`
			}
			if err := apiPost(cmd.Context(), "/v1/regions/reload", req, &resp); err != nil {
				return fmt.Errorf("reload regions: %w", err)
			}
			fmt.Printf("%d lines accepted.\n", resp.Accepted)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "-", "path to the region definition file, or - for stdin")
	return cmd
}

func readLines(path string) ([]string, error) {
	f := os.Stdin
	if path != "-" {
		opened, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer opened.Close()
		f = opened
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
