package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rekognizer",
	Short: "Face verification, identification and enrollment service",
	Long: `Rekognizer compares faces found in images against each other and against
a store of enrolled users. It serves an HTTP API and offers commands to
migrate the embedding store and enroll users from the command line.`,
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
	// .env is optional
	_ = godotenv.Load()
}
