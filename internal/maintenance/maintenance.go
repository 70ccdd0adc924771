// Package maintenance provides one-shot database tasks: statistics, failover replay dump and retention.
package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/alphahub/internal/clock"
	"github.com/woozymasta/alphahub/internal/config"
	"github.com/woozymasta/alphahub/internal/models"
)

// Store is the part of the storage layer maintenance needs.
type Store interface {
	Stats(ctx context.Context) (models.Stats, error)
	ReplayPackets(ctx context.Context, since time.Time, fn func(models.Packet) error) error
	PrunePackets(ctx context.Context, before time.Time) (int64, error)
}

// Run checks if any maintenance flags are set and executes the corresponding task,
// writing machine readable output to out. clk must be the clock the store stamps rows with.
// Returns true if a maintenance task was executed (indicating the program should exit)
// and the task error, if any.
func Run(ctx context.Context, cfg *config.Config, store Store, clk clock.Clock, out io.Writer) (bool, error) {
	var err error

	switch {
	case cfg.Storage.Stats:
		err = printStats(ctx, store, out)
	case cfg.Storage.ReplayFailover != "":
		err = replay(ctx, store, cfg.Storage.ReplayFailover, out)
	case cfg.Storage.PruneFailover > 0:
		err = prune(ctx, store, clk.Now().UTC().Add(-cfg.Storage.PruneFailover))
	default:
		return false, nil
	}

	return true, err
}

func printStats(ctx context.Context, store Store, out io.Writer) error {
	st, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

// replay writes packets as JSON lines in arrival order, the order a recovering hub
// has to feed them back in.
func replay(ctx context.Context, store Store, sinceArg string, out io.Writer) error {
	var since time.Time
	if sinceArg != config.ReplayAll {
		t, err := time.Parse(time.RFC3339, sinceArg)
		if err != nil {
			return fmt.Errorf("replay: invalid lower bound %q: %w", sinceArg, err)
		}
		since = t
	}

	log.Info().Time("since", since).Msg("Replaying failover log...")

	enc := json.NewEncoder(out)
	var n int
	err := store.ReplayPackets(ctx, since, func(p models.Packet) error {
		n++
		return enc.Encode(p)
	})
	if err != nil {
		return err
	}

	log.Info().Int("packets", n).Msg("Replay finished")
	return nil
}

func prune(ctx context.Context, store Store, cutoff time.Time) error {
	log.Info().Time("before", cutoff).Msg("Pruning failover log...")

	n, err := store.PrunePackets(ctx, cutoff)
	if err != nil {
		return err
	}

	log.Info().Int64("deleted", n).Msg("Prune finished")
	return nil
}
