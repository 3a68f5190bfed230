package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var databasePath string

var rootCmd = &cobra.Command{
	Use:   "face-auth",
	Short: "A CLI tool for face-based identity enrollment and authentication",
	Long: `Face Auth manages a registry of enrolled identities, each backed by one
or more face encoding samples. Probe images are scored against every
enrolled identity using a weighted Euclidean distance blend and accepted
or rejected against a configurable tolerance.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "", "Path to the JSON registry file (overrides FACE_AUTH_DB)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
