package cli

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Liveness-driven owner pruning for a multi-owner wallet",
	Long: "Vigil records when each wallet owner last proved they were alive and lets anyone " +
		"remove owners who have been silent longer than the liveness interval, keeping the " +
		"signing threshold at 75% of the owner count.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.vigil/vigil.toml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "server URL (default $VIGIL_URL or http://127.0.0.1:37877)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(thresholdCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(keygenCmd)
}
