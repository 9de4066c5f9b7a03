package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Mark attendance by recognising faces from a camera",
	Long: `Face Attendance recognises people in camera frames by comparing their face
embeddings with a gallery of reference photos, and records at most one
attendance mark per person per day.

Configuration comes from environment variables (optionally read from a .env
file in the working directory).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
