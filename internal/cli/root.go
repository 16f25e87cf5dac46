package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "aventura",
	Short: "Context-assembly engine for AI interactive fiction",
	Long: "Aventura decides which fragments of a growing story world — tracked entities,\n" +
		"lorebook entries, and summarized chapters — are worth a fixed token budget\n" +
		"when prompting the narrator model.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(chaptersCmd)
	rootCmd.AddCommand(branchesCmd)
}
