package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/tubeqa/internal/cli"
	"github.com/cloo-solutions/tubeqa/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tubeqad",
		Short: "tubeqa server and transcript admin",
		Long:  "tubeqa daemon for running the API server and managing stored transcripts",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.TranscriptsCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
