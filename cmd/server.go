package cmd

import (
	"cuebase/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the cuebase HTTP server",
	Long:  `Start the API server, the analysis dispatcher and, if configured, the import watcher.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
