package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cuebase",
	Short: "Cuebase is a personal audio track library manager.",
	Long: `Cuebase ingests audio files into a content-addressed library,
analyzes them for tempo, key and loudness, and keeps ordered playlists.`,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
