package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Fantasim/hdwallet/internal/config"
	"github.com/Fantasim/hdwallet/internal/models"
	"github.com/Fantasim/hdwallet/internal/wallet"
)

func newDeriveCmd() *cobra.Command {
	var (
		asset string
		index uint32
		count int
	)

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive addresses from a mnemonic file without touching the database",
		Example: `  hdwallet derive --mnemonic-file ./mnemonic.txt --asset BTC --index 3
  hdwallet derive --mnemonic-file ./mnemonic.txt --index 0
  hdwallet derive --mnemonic-file ./mnemonic.txt --asset ETH --count 1000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateDeriveFlags(asset, count); err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logCloser, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer logCloser.Close()

			path, err := requireMnemonicFile(cfg)
			if err != nil {
				return err
			}
			mnemonic, err := wallet.ReadMnemonicFromFile(path)
			if err != nil {
				return fmt.Errorf("read mnemonic: %w", err)
			}

			d, err := wallet.NewDeriver(mnemonic, nil)
			if err != nil {
				return err
			}
			defer d.Close()

			var out []models.DerivedAddress
			switch {
			case asset == "":
				out, err = d.Batch(index)
			case count > 1:
				progress := func(a models.Asset, generated, total int) {
					slog.Info("address generation progress",
						"asset", a,
						"generated", generated,
						"total", total,
						"progress", fmt.Sprintf("%.1f%%", float64(generated)/float64(total)*100),
					)
				}
				out, err = d.GenerateRange(cmd.Context(), asset, index, count, progress)
			default:
				var a models.DerivedAddress
				a, err = d.Derive(asset, index)
				out = []models.DerivedAddress{a}
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&asset, "asset", "", "Asset symbol (default: every supported asset)")
	cmd.Flags().Uint32Var(&index, "index", 0, "Address index, or the first index with --count")
	cmd.Flags().IntVar(&count, "count", 1, fmt.Sprintf("Number of consecutive indices (max %d, needs --asset)", config.MaxGenerateRange))
	return cmd
}

// validateDeriveFlags rejects flag combinations derive would otherwise ignore.
func validateDeriveFlags(asset string, count int) error {
	if count < 1 || count > config.MaxGenerateRange {
		return fmt.Errorf("--count must be in 1..%d, got %d", config.MaxGenerateRange, count)
	}
	if count > 1 && asset == "" {
		return fmt.Errorf("--count %d needs --asset", count)
	}
	return nil
}

func newMnemonicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mnemonic",
		Short: "Create or check BIP39 mnemonics",
	}

	var words int
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Print a new random mnemonic",
		Long: `Print a new random mnemonic.

The phrase is written to stdout only. Redirect it to a file with
restrictive permissions; it is never logged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var bits int
			switch words {
			case config.MnemonicWords:
				bits = config.MnemonicEntropyBits
			case config.MnemonicWordsLong:
				bits = config.MnemonicEntropyBitsLong
			default:
				return fmt.Errorf("--words must be %d or %d", config.MnemonicWords, config.MnemonicWordsLong)
			}

			mnemonic, err := wallet.GenerateMnemonic(bits)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mnemonic)
			return nil
		},
	}
	newCmd.Flags().IntVar(&words, "words", config.MnemonicWords, "Word count: 12 or 24")

	checkCmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a mnemonic from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				mnemonic string
				err      error
			)
			if len(args) == 1 {
				mnemonic, err = wallet.ReadMnemonicFromFile(args[0])
			} else {
				mnemonic, err = readMnemonicFromStdin()
				if err == nil {
					err = wallet.ValidateMnemonic(mnemonic)
				}
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "valid %d-word mnemonic\n", len(strings.Fields(mnemonic)))
			return nil
		},
	}

	cmd.AddCommand(newCmd, checkCmd)
	return cmd
}

func readMnemonicFromStdin() (string, error) {
	sc := bufio.NewScanner(os.Stdin)
	var parts []string
	for sc.Scan() {
		parts = append(parts, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return wallet.NormalizeMnemonic(strings.Join(parts, " ")), nil
}
