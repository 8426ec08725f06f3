package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Fantasim/hdwallet/internal/models"
)

// AddressStreamer streams a user's stored addresses.
type AddressStreamer interface {
	StreamUserAddresses(ctx context.Context, userID string, fn func(addr models.StoredAddress) error) error
	CountUserAddresses(ctx context.Context, userID string) (int, error)
}

// ExportUserAddresses writes every stored address of userID to
// <outputDir>/<userID>_addresses.json and returns the file path.
// The file is written incrementally, one row at a time.
func ExportUserAddresses(ctx context.Context, db AddressStreamer, userID string, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory %q: %w", outputDir, err)
	}

	count, err := db.CountUserAddresses(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("count addresses for export: %w", err)
	}
	if count == 0 {
		return "", fmt.Errorf("no addresses found for user %s", userID)
	}

	filename := filepath.Join(outputDir, fmt.Sprintf("%s_addresses.json", userID))
	slog.Info("exporting addresses",
		"userID", userID,
		"count", count,
		"file", filename,
	)

	f, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("create export file %q: %w", filename, err)
	}
	defer f.Close()

	if err := writeExport(ctx, f, db, userID); err != nil {
		return "", err
	}

	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync export file: %w", err)
	}
	return filename, nil
}

// writeExport streams the rows, then writes the number of rows actually
// written as count.
func writeExport(ctx context.Context, w io.Writer, db AddressStreamer, userID string) error {
	userJSON, err := json.Marshal(userID)
	if err != nil {
		return fmt.Errorf("marshal user id: %w", err)
	}

	header := fmt.Sprintf(`{"user_id":%s,"generated_at":"%s","addresses":[`,
		userJSON, time.Now().UTC().Format(time.RFC3339))
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}

	first := true
	exported := 0
	err = db.StreamUserAddresses(ctx, userID, func(addr models.StoredAddress) error {
		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		first = false

		entry, err := json.Marshal(models.AddressExportItem{
			Asset:          addr.Asset,
			Index:          addr.AddressIndex,
			Address:        addr.Address,
			DerivationPath: addr.DerivationPath,
		})
		if err != nil {
			return fmt.Errorf("marshal address entry: %w", err)
		}
		if _, err := w.Write(entry); err != nil {
			return err
		}

		exported++
		return nil
	})
	if err != nil {
		return fmt.Errorf("stream addresses for export: %w", err)
	}

	if _, err := fmt.Fprintf(w, `],"count":%d}`, exported); err != nil {
		return fmt.Errorf("write export footer: %w", err)
	}

	slog.Info("export complete", "userID", userID, "exported", exported)
	return nil
}
