package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "gemrelay",
		Short: "Chat platform to Gemini relay bot",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Credentials may come from a local .env in development;
			// absence is fine.
			_ = godotenv.Load()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
