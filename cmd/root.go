package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var captureDir string

var rootCmd = &cobra.Command{
	Use:   "facerec",
	Short: "Face recognition service for attendance rosters",
	Long: `facerec keeps a catalog of known faces, one picture per person in a
directory, and tells which of them appear in an uploaded picture.

It runs as an HTTP service (serve) and offers the same operations offline
against the faces directory.`,
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
	rootCmd.PersistentFlags().StringVar(&captureDir, "capture", "", "Directory to save attendance API responses for testing")
	rootCmd.PersistentFlags().String("faces-dir", "", "Directory with one picture per known face (overrides FACES_DIR)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
