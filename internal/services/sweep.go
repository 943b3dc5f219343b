package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adboard/apiserver/internal/mq"
	"github.com/adboard/apiserver/internal/store"
	"github.com/adboard/apiserver/types"
)

// DefaultSweepMinAge keeps the sweep away from blobs whose catalog row may
// still be in flight.
const DefaultSweepMinAge = 15 * time.Minute

// SweepReport summarizes one sweep.
type SweepReport struct {
	Scanned int      `json:"scanned"`
	Orphans []string `json:"orphans"`
	Removed int      `json:"removed"`
}

// Sweeper removes blobs that have no media catalog row. Such blobs are left
// behind when a catalog write fails after the blob write, when an owner's
// image moves to a new path, and when an ad is deleted.
type Sweeper struct {
	blobs   BlobStorage
	catalog MediaRepository

	// MinAge is the grace period before an uncatalogued blob counts as an
	// orphan.
	MinAge time.Duration

	now func() time.Time
}

func NewSweeper(blobs BlobStorage, catalog MediaRepository) *Sweeper {
	return &Sweeper{
		blobs:   blobs,
		catalog: catalog,
		MinAge:  DefaultSweepMinAge,
		now:     time.Now,
	}
}

// Sweep lists every media blob and deletes those without a catalog row.
// With dryRun set it only reports them. Running it twice is harmless.
func (s *Sweeper) Sweep(ctx context.Context, dryRun bool) (SweepReport, error) {
	paths, err := s.catalog.ListPaths(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list catalog: %w", err)
	}
	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}

	report := SweepReport{Orphans: []string{}}
	cutoff := s.now().Add(-s.MinAge)
	for _, kind := range []types.OwnerKind{types.OwnerAd, types.OwnerUser} {
		objects, err := s.blobs.List(ctx, kind.Dir()+"/")
		if err != nil {
			return report, fmt.Errorf("list %s blobs: %w", kind.Dir(), err)
		}
		for _, obj := range objects {
			report.Scanned++
			if _, ok := known[obj.Key]; ok {
				continue
			}
			if !obj.LastModified.IsZero() && obj.LastModified.After(cutoff) {
				continue
			}
			report.Orphans = append(report.Orphans, obj.Key)
			if dryRun {
				continue
			}
			if err := s.blobs.Delete(ctx, obj.Key); err != nil {
				return report, fmt.Errorf("delete %s: %w", obj.Key, err)
			}
			report.Removed++
		}
	}

	slog.InfoContext(ctx, "media sweep finished",
		"scanned", report.Scanned,
		"orphans", len(report.Orphans),
		"removed", report.Removed,
		"dry_run", dryRun,
	)
	return report, nil
}

// HandleAdDeleted removes the blobs named by an ad.deleted event, skipping
// any path that has been catalogued again since.
func (s *Sweeper) HandleAdDeleted(ctx context.Context, msg mq.Message) error {
	var event mq.AdDeleted
	if err := mq.DecodeEvent(msg, &event); err != nil {
		return err
	}
	for _, p := range event.MediaPaths {
		_, err := s.catalog.GetByPath(ctx, p)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("check %s: %w", p, err)
		}
		if err := s.blobs.Delete(ctx, p); err != nil {
			return fmt.Errorf("delete %s: %w", p, err)
		}
		slog.InfoContext(ctx, "removed media of deleted ad", "ad_id", event.AdID, "path", p)
	}
	return nil
}
