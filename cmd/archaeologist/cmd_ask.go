package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var askPath string

func init() {
	askCmd.Flags().StringVar(&askPath, "path", "",
		"Ingest this local directory before asking (useful with --mock)")
}

// runAsk answers a natural-language question from the knowledge graph.
func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close(ctx)

	if askPath != "" {
		if _, err := svc.IngestDirectory(ctx, askPath); err != nil {
			return fmt.Errorf("ingest %s: %w", askPath, err)
		}
	}

	question := strings.Join(args, " ")

	resp, err := svc.Query(ctx, question)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Response)
	if len(resp.NodeIDs) > 0 {
		fmt.Printf("\nGrounded on %d entities:\n", len(resp.NodeIDs))
		for _, id := range resp.NodeIDs {
			fmt.Printf("  %s\n", id)
		}
	}
	return nil
}
