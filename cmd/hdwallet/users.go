package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Fantasim/hdwallet/internal/config"
	"github.com/Fantasim/hdwallet/internal/db"
	"github.com/Fantasim/hdwallet/internal/models"
)

func newInitUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-user <user-id>",
		Short: "Create a user's wallet and its index-0 addresses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			alloc, err := a.ledger.Initialize(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("initialize %s: %w", args[0], err)
			}
			return printAllocation(cmd.OutOrStdout(), alloc)
		},
	}
}

func newNextCmd() *cobra.Command {
	var family string

	cmd := &cobra.Command{
		Use:   "next <user-id>",
		Short: "Allocate the next address index for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var alloc *db.Allocation
			if family == "" {
				alloc, err = a.ledger.Next(cmd.Context(), args[0])
			} else {
				alloc, err = a.ledger.NextFamily(cmd.Context(), args[0], models.Family(family))
			}
			if err != nil {
				return fmt.Errorf("next index for %s: %w", args[0], err)
			}
			return printAllocation(cmd.OutOrStdout(), alloc)
		},
	}
	cmd.Flags().StringVar(&family, "family", "", "Limit to one asset family: ethereum, bitcoin or tron")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "verify [user-id]",
		Short: "Re-derive stored addresses and report mismatches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("give a user id or --all")
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			users := args
			if all {
				users, err = a.db.ListUserIDs(cmd.Context())
				if err != nil {
					return err
				}
			}

			failed := 0
			for _, userID := range users {
				mismatches, checked, err := a.ledger.Verify(cmd.Context(), userID)
				if err != nil {
					return fmt.Errorf("verify %s: %w", userID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d checked, %d mismatches\n", userID, checked, len(mismatches))
				for _, m := range mismatches {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s/%d stored=%s derived=%s (%s)\n",
						m.Asset, m.AddressIndex, m.Stored, m.Derived, m.Reason)
				}
				if len(mismatches) > 0 {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d users have mismatching addresses", failed, len(users))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Verify every user")
	return cmd
}

func newExportCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export <user-id>",
		Short: "Export a user's addresses to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if dir == "" {
				dir = a.cfg.ExportDir
			}
			path, err := a.ledger.Export(cmd.Context(), args[0], dir)
			if err != nil {
				return fmt.Errorf("export %s: %w", args[0], err)
			}

			slog.Info("export written", "userID", args[0], "path", path)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default: from HDWALLET_EXPORT_DIR)")
	return cmd
}

func printAllocation(w io.Writer, alloc *db.Allocation) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(alloc)
}

// requireMnemonicFile returns the configured mnemonic file or an error naming both sources.
func requireMnemonicFile(cfg *config.Config) (string, error) {
	if cfg.MnemonicFile == "" {
		return "", fmt.Errorf("%w: pass --mnemonic-file or set HDWALLET_MNEMONIC_FILE", config.ErrMnemonicFileNotSet)
	}
	return cfg.MnemonicFile, nil
}
