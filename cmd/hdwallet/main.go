// Command hdwallet derives and hands out multi-chain receive addresses.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Fantasim/hdwallet/internal/api"
)

var version = "dev"

var (
	flagDBPath       string
	flagMnemonicFile string
)

func main() {
	api.Version = version

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hdwallet",
		Short: "Deterministic ETH, BTC and TRON receive addresses from BIP39 mnemonics",
		Long: `Deterministic ETH, BTC and TRON receive addresses from BIP39 mnemonics.

Every user owns one mnemonic, stored encrypted with HDWALLET_KEYSTORE_PASSPHRASE.
Addresses follow m/44'/60'/0'/0/N (ETH, ERC-20), m/84'/0'/0'/0/N (BTC) and
m/44'/195'/0'/0/N (TRX, TRC-20).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagDBPath, "db", "", "Database path (default: from HDWALLET_DB_PATH)")
	root.PersistentFlags().StringVar(&flagMnemonicFile, "mnemonic-file", "", "Mnemonic file for derive (default: from HDWALLET_MNEMONIC_FILE)")

	root.AddCommand(
		newServeCmd(),
		newInitUserCmd(),
		newNextCmd(),
		newVerifyCmd(),
		newExportCmd(),
		newDeriveCmd(),
		newMnemonicCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "hdwallet %s\n", version)
			},
		},
	)
	return root
}
