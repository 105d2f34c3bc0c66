// Package cli wires the boostd commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "boostd",
	Short: "Order verification and payment reconciliation daemon",
	Long: `boostd is the order pipeline behind the storefront: it re-prices
checkout carts from the catalog, resolves discounts and stored credit,
verifies captured payments against the computed total, writes orders
exactly once per payment intent, and reconciles order status from
processor webhooks.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "boostd.toml", "path to TOML config file")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
