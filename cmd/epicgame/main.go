// Package main is the entry point for the epicgame CLI and API server
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// timeout bounds one-shot commands, confirmations included
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "epicgame",
	Short: "NFT boss battle client",
	Long: `epicgame drives the NFT boss battle game from the command line: it loads the
game state of your account, runs game actions and can serve both over HTTP.

Configuration is read from EPICGAME_* environment variables.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Timeout for one-shot commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(specialAttacksCmd)

	rootCmd.AddCommand(faucetCmd)
	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(attackCmd)
	rootCmd.AddCommand(specialAttackCmd)
	rootCmd.AddCommand(claimHealthCmd)
	rootCmd.AddCommand(buySpecialAttackCmd)
}
