package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/nself-org/flowcore/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "flowcore"}

func main() {
	_ = godotenv.Load()
	rootCmd.PersistentFlags().String("db", os.Getenv("DATABASE_URL"), "Archive database connection string (optional for serve)")
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
