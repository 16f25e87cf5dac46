package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aventura-app/aventura/internal/story"
)

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "Manage story branches",
}

var branchesListCmd = &cobra.Command{
	Use:   "list [story ID]",
	Short: "List branches of a story",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, _, err := openService()
		if err != nil {
			return err
		}
		defer db.Close()

		branches, err := db.ListBranches(args[0])
		if err != nil {
			return err
		}
		for _, b := range branches {
			fork := ""
			if b.ParentBranchID != "" {
				fork = fmt.Sprintf("  (forked from %s at turn %d)", b.ParentBranchID, b.ForkedAtTurn)
			}
			fmt.Printf("%s  %s%s\n", b.ID, b.Name, fork)
		}
		return nil
	},
}

var branchesCreateCmd = &cobra.Command{
	Use:   "create [story ID] [name]",
	Short: "Create a new branch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, _, err := openService()
		if err != nil {
			return err
		}
		defer db.Close()

		b := &story.Branch{StoryID: args[0], Name: args[1]}
		if err := db.CreateBranch(b); err != nil {
			return err
		}
		fmt.Println(b.ID)
		return nil
	},
}

var branchesForkCmd = &cobra.Command{
	Use:   "fork [branch ID] [name] [at turn]",
	Short: "Fork a branch at a turn, copying world state and chapters",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		atTurn, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid turn %q", args[2])
		}

		_, db, _, err := openService()
		if err != nil {
			return err
		}
		defer db.Close()

		fork, err := db.ForkBranch(args[0], args[1], atTurn)
		if err != nil {
			return err
		}
		fmt.Println(fork.ID)
		return nil
	},
}

var branchesDeleteCmd = &cobra.Command{
	Use:   "delete [branch ID]",
	Short: "Delete a branch and everything it owns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, _, err := openService()
		if err != nil {
			return err
		}
		defer db.Close()

		return db.DeleteBranch(args[0])
	},
}

func init() {
	branchesCmd.AddCommand(branchesListCmd)
	branchesCmd.AddCommand(branchesCreateCmd)
	branchesCmd.AddCommand(branchesForkCmd)
	branchesCmd.AddCommand(branchesDeleteCmd)
}
