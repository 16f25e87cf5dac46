package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var chaptersBranch string

var chaptersCmd = &cobra.Command{
	Use:   "chapters",
	Short: "Inspect and maintain chapter memory",
}

var chaptersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chapters of a branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, _, err := openService()
		if err != nil {
			return err
		}
		defer db.Close()

		chapters, err := db.ListChapters(chaptersBranch)
		if err != nil {
			return err
		}
		if len(chapters) == 0 {
			fmt.Println("no chapters yet")
			return nil
		}
		for _, c := range chapters {
			title := c.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%3d. %-32s turns %d-%d  [%s]\n", c.Seq, title, c.StartIndex, c.EndIndex, c.EmotionalTone)
			fmt.Printf("     %s\n", c.Summary)
		}
		return nil
	},
}

var chaptersAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Check token pressure and cut a chapter if one is due",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, svc, err := openService()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
		defer cancel()

		chapter, err := svc.MaybeCreateChapter(ctx, chaptersBranch)
		if err != nil {
			return err
		}
		if chapter == nil {
			fmt.Println("no chapter due")
			return nil
		}
		fmt.Printf("created chapter %d: %s (turns %d-%d)\n",
			chapter.Seq, chapter.Title, chapter.StartIndex, chapter.EndIndex)
		return nil
	},
}

var chaptersResummarizeCmd = &cobra.Command{
	Use:   "resummarize [seq]",
	Short: "Regenerate one chapter's summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid chapter sequence %q", args[0])
		}

		_, db, svc, err := openService()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
		defer cancel()

		chapter, err := svc.ResummarizeChapter(ctx, chaptersBranch, seq)
		if err != nil {
			return err
		}
		fmt.Printf("chapter %d: %s\n%s\n", chapter.Seq, chapter.Title, chapter.Summary)
		return nil
	},
}

func init() {
	chaptersCmd.PersistentFlags().StringVar(&chaptersBranch, "branch", "", "branch ID (required)")
	chaptersCmd.MarkPersistentFlagRequired("branch")
	chaptersCmd.AddCommand(chaptersListCmd)
	chaptersCmd.AddCommand(chaptersAnalyzeCmd)
	chaptersCmd.AddCommand(chaptersResummarizeCmd)
}
