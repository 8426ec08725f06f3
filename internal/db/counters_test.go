package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Fantasim/hdwallet/internal/models"
)

// fakeDerive returns one row per family with an address unique to (userID, family, index).
func fakeDerive(userID string, families []models.Family) AllocateFunc {
	assets := map[models.Family]models.Asset{
		models.FamilyEthereum: models.AssetETH,
		models.FamilyBitcoin:  models.AssetBTC,
		models.FamilyTron:     models.AssetTRX,
	}
	return func(index uint32) ([]models.DerivedAddress, error) {
		out := make([]models.DerivedAddress, 0, len(families))
		for _, f := range families {
			out = append(out, models.DerivedAddress{
				Asset:          assets[f],
				Family:         f,
				Address:        fmt.Sprintf("%s-%s-%d", userID, f, index),
				DerivationPath: fmt.Sprintf("m/0/%d", index),
				AddressIndex:   index,
			})
		}
		return out, nil
	}
}

func TestAllocateNext_Sequence(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, d, "user-1")
	fams := models.AllFamilies

	for want := uint32(0); want < 3; want++ {
		alloc, err := d.AllocateNext(ctx, "user-1", fams, fakeDerive("user-1", fams))
		if err != nil {
			t.Fatalf("AllocateNext() error = %v", err)
		}
		if alloc.Index != want {
			t.Errorf("AllocateNext() index = %d, want %d", alloc.Index, want)
		}
		if !alloc.Created {
			t.Error("AllocateNext() Created = false")
		}
		if len(alloc.Addresses) != 3 {
			t.Errorf("AllocateNext() returned %d rows, want 3", len(alloc.Addresses))
		}
	}

	counters, err := d.Counters(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range fams {
		if counters[f] != 2 {
			t.Errorf("counter[%s] = %d, want 2", f, counters[f])
		}
	}
}

func TestAllocateFirst_Idempotent(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, d, "user-1")
	fams := models.AllFamilies

	first, err := d.AllocateFirst(ctx, "user-1", fams, fakeDerive("user-1", fams))
	if err != nil {
		t.Fatalf("AllocateFirst() error = %v", err)
	}
	if first.Index != 0 || !first.Created {
		t.Errorf("AllocateFirst() = index %d created %v, want 0 true", first.Index, first.Created)
	}

	called := false
	again, err := d.AllocateFirst(ctx, "user-1", fams, func(uint32) ([]models.DerivedAddress, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("second AllocateFirst() error = %v", err)
	}
	if called {
		t.Error("second AllocateFirst() derived again")
	}
	if again.Created || again.Index != 0 || len(again.Addresses) != 3 {
		t.Errorf("second AllocateFirst() = %+v, want existing index-0 rows", again)
	}

	idx, ok, err := d.CurrentIndex(ctx, "user-1", models.FamilyBitcoin)
	if err != nil || !ok || idx != 0 {
		t.Errorf("CurrentIndex() = %d, %v, %v; want 0, true, nil", idx, ok, err)
	}
}

func TestAllocateNext_FamilySubset(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, d, "user-1")

	all := models.AllFamilies
	if _, err := d.AllocateNext(ctx, "user-1", all, fakeDerive("user-1", all)); err != nil {
		t.Fatal(err)
	}

	btc := []models.Family{models.FamilyBitcoin}
	alloc, err := d.AllocateNext(ctx, "user-1", btc, fakeDerive("user-1", btc))
	if err != nil {
		t.Fatalf("AllocateNext(bitcoin) error = %v", err)
	}
	if alloc.Index != 1 || len(alloc.Addresses) != 1 {
		t.Errorf("AllocateNext(bitcoin) = index %d rows %d, want 1 and 1", alloc.Index, len(alloc.Addresses))
	}

	idx, _, _ := d.CurrentIndex(ctx, "user-1", models.FamilyEthereum)
	if idx != 0 {
		t.Errorf("ethereum counter = %d, want 0", idx)
	}

	// The next full allocation follows the highest family counter.
	alloc, err = d.AllocateNext(ctx, "user-1", all, fakeDerive("user-1", all))
	if err != nil {
		t.Fatal(err)
	}
	if alloc.Index != 2 {
		t.Errorf("AllocateNext(all) index = %d, want 2", alloc.Index)
	}

	if _, ok, _ := d.CurrentIndex(ctx, "user-2", models.FamilyTron); ok {
		t.Error("CurrentIndex() for unknown user ok = true")
	}
}

func TestAllocateNext_RollbackOnError(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, d, "user-1")
	fams := models.AllFamilies

	boom := errors.New("derivation failed")
	_, err := d.AllocateNext(ctx, "user-1", fams, func(uint32) ([]models.DerivedAddress, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("AllocateNext() error = %v, want %v", err, boom)
	}

	_, err = d.AllocateNext(ctx, "user-1", fams, func(index uint32) ([]models.DerivedAddress, error) {
		rows, _ := fakeDerive("user-1", fams)(index)
		rows[0].AddressIndex = index + 7
		return rows, nil
	})
	if err == nil {
		t.Fatal("AllocateNext() with a row at the wrong index succeeded")
	}

	count, _ := d.CountUserAddresses(ctx, "user-1")
	if count != 0 {
		t.Errorf("CountUserAddresses() = %d after failed allocations, want 0", count)
	}
	if _, ok, _ := d.CurrentIndex(ctx, "user-1", models.FamilyEthereum); ok {
		t.Error("counter advanced after failed allocation")
	}

	if _, err := d.AllocateNext(ctx, "user-1", nil, fakeDerive("user-1", nil)); err == nil {
		t.Error("AllocateNext() with no families succeeded")
	}
}

func TestAllocateNext_Concurrent(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	seedUser(t, d, "user-1")
	fams := models.AllFamilies

	const workers = 20
	indices := make(chan uint32, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alloc, err := d.AllocateNext(ctx, "user-1", fams, fakeDerive("user-1", fams))
			if err != nil {
				errs <- err
				return
			}
			indices <- alloc.Index
		}()
	}
	wg.Wait()
	close(indices)
	close(errs)

	for err := range errs {
		t.Errorf("concurrent AllocateNext() error = %v", err)
	}

	seen := make(map[uint32]bool)
	for idx := range indices {
		if seen[idx] {
			t.Errorf("index %d allocated twice", idx)
		}
		seen[idx] = true
	}
	for i := uint32(0); i < workers; i++ {
		if !seen[i] {
			t.Errorf("index %d never allocated", i)
		}
	}

	count, _ := d.CountUserAddresses(ctx, "user-1")
	if count != workers*len(fams) {
		t.Errorf("CountUserAddresses() = %d, want %d", count, workers*len(fams))
	}
}
