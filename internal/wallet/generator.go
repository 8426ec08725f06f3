package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"golang.org/x/sync/errgroup"

	"github.com/Fantasim/hdwallet/internal/config"
	"github.com/Fantasim/hdwallet/internal/models"
)

// ProgressCallback is called during range generation to report progress.
type ProgressCallback func(asset models.Asset, generated int, total int)

// GenerateRange derives count addresses of asset starting at from, using
// runtime.NumCPU() workers over a shared pre-derived parent key.
// The first error cancels the remaining workers.
func (d *Deriver) GenerateRange(ctx context.Context, asset string, from uint32, count int, progress ProgressCallback) ([]models.DerivedAddress, error) {
	spec, err := d.registry.Lookup(asset)
	if err != nil {
		return nil, err
	}
	if count <= 0 || count > config.MaxGenerateRange {
		return nil, fmt.Errorf("generate range: count must be in 1..%d, got %d", config.MaxGenerateRange, count)
	}
	if uint64(from)+uint64(count) > hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("generate range: index %d+%d out of range: %w", from, count, ErrDerivation)
	}

	// Warm the parent once so workers only derive the last segment.
	if _, err := d.parentFor(spec.PathTemplate); err != nil {
		return nil, fmt.Errorf("derive %s parent: %w", spec.Asset, err)
	}

	numWorkers := runtime.NumCPU()
	slog.Info("generating address range",
		"asset", spec.Asset,
		"from", from,
		"count", count,
		"workers", numWorkers,
	)
	start := time.Now()

	addresses := make([]models.DerivedAddress, count)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	chunkSize := (count + numWorkers - 1) / numWorkers

	for chunkStart := 0; chunkStart < count; chunkStart += chunkSize {
		chunkEnd := min(chunkStart+chunkSize, count)

		g.Go(func() error {
			for i := chunkStart; i < chunkEnd; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				index := from + uint32(i)
				addr, err := d.deriveSpec(spec, index)
				if err != nil {
					return fmt.Errorf("generate %s address at index %d: %w", spec.Asset, index, err)
				}
				addresses[i] = addr

				if n := done.Add(1); progress != nil && n%config.GenerateProgressMod == 0 {
					progress(spec.Asset, int(n), count)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("address range generation complete",
		"asset", spec.Asset,
		"count", len(addresses),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return addresses, nil
}
