package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	retrieveBranch string
	retrieveJSON   bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [user input]",
	Short: "Run a retrieval pass against a branch (debug)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringVar(&retrieveBranch, "branch", "", "branch ID (required)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "print the full result as JSON")
	retrieveCmd.MarkFlagRequired("branch")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	_, db, svc, err := openService()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	res, err := svc.RetrieveForBranch(ctx, retrieveBranch, args[0])
	if err != nil {
		return err
	}

	if retrieveJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("tier 1: %d  tier 2: %d  tier 3: %d\n\n", len(res.Tier1), len(res.Tier2), len(res.Tier3))
	for _, re := range res.All {
		fmt.Printf("  [%d] p%-3d %-10s %-24s %s\n", re.Tier, re.Priority, re.Entry.Type, re.Entry.Name, re.MatchReason)
	}
	fmt.Printf("\n%s\n", res.ContextBlock)
	return nil
}
