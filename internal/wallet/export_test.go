package wallet

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fantasim/hdwallet/internal/models"
)

// mockStreamer implements AddressStreamer for testing.
type mockStreamer struct {
	addresses map[string][]models.StoredAddress
	// staleCount, when set, is returned by CountUserAddresses instead of the real count.
	staleCount int
}

func (m *mockStreamer) CountUserAddresses(_ context.Context, userID string) (int, error) {
	if m.staleCount > 0 {
		return m.staleCount, nil
	}
	return len(m.addresses[userID]), nil
}

func (m *mockStreamer) StreamUserAddresses(_ context.Context, userID string, fn func(addr models.StoredAddress) error) error {
	for _, addr := range m.addresses[userID] {
		if err := fn(addr); err != nil {
			return err
		}
	}
	return nil
}

func stored(userID string, asset models.Asset, index uint32, address, path string) models.StoredAddress {
	return models.StoredAddress{
		UserID: userID,
		DerivedAddress: models.DerivedAddress{
			Asset:          asset,
			Address:        address,
			DerivationPath: path,
			AddressIndex:   index,
		},
		CreatedAt: "2026-01-01T00:00:00Z",
	}
}

func TestExportUserAddresses(t *testing.T) {
	mock := &mockStreamer{
		addresses: map[string][]models.StoredAddress{
			"user-1": {
				stored("user-1", models.AssetETH, 0, "0xaaaa", "m/44'/60'/0'/0/0"),
				stored("user-1", models.AssetBTC, 0, "bc1qtest0", "m/84'/0'/0'/0/0"),
				stored("user-1", models.AssetTRX, 1, "Ttest1", "m/44'/195'/0'/0/1"),
			},
		},
	}

	outputDir := t.TempDir()

	path, err := ExportUserAddresses(context.Background(), mock, "user-1", outputDir)
	if err != nil {
		t.Fatalf("ExportUserAddresses() error = %v", err)
	}
	if path != filepath.Join(outputDir, "user-1_addresses.json") {
		t.Errorf("path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var export models.AddressExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}

	if export.UserID != "user-1" {
		t.Errorf("export.UserID = %s, want user-1", export.UserID)
	}
	if export.Count != 3 || len(export.Addresses) != 3 {
		t.Fatalf("export count = %d, addresses = %d, want 3", export.Count, len(export.Addresses))
	}
	if export.GeneratedAt == "" {
		t.Error("export.GeneratedAt is empty")
	}

	last := export.Addresses[2]
	if last.Asset != models.AssetTRX || last.Index != 1 || last.Address != "Ttest1" || last.DerivationPath != "m/44'/195'/0'/0/1" {
		t.Errorf("export.Addresses[2] = %+v", last)
	}
}

func TestExportUserAddresses_Empty(t *testing.T) {
	mock := &mockStreamer{addresses: map[string][]models.StoredAddress{}}

	if _, err := ExportUserAddresses(context.Background(), mock, "nobody", t.TempDir()); err == nil {
		t.Error("ExportUserAddresses() expected error for user without addresses")
	}
}

func TestExportUserAddresses_CountMatchesRows(t *testing.T) {
	// Rows added between the count and the stream still end up in the count.
	mock := &mockStreamer{
		addresses: map[string][]models.StoredAddress{
			"user-1": {
				stored("user-1", models.AssetETH, 0, "0xaaaa", "m/44'/60'/0'/0/0"),
				stored("user-1", models.AssetETH, 1, "0xbbbb", "m/44'/60'/0'/0/1"),
				stored("user-1", models.AssetETH, 2, "0xcccc", "m/44'/60'/0'/0/2"),
			},
		},
		staleCount: 1,
	}

	path, err := ExportUserAddresses(context.Background(), mock, "user-1", t.TempDir())
	if err != nil {
		t.Fatalf("ExportUserAddresses() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var export models.AddressExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if export.Count != len(export.Addresses) || export.Count != 3 {
		t.Errorf("export count = %d, addresses = %d, want 3 and 3", export.Count, len(export.Addresses))
	}
}
