package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/alphahub/internal/clock"
	"github.com/woozymasta/alphahub/internal/config"
	"github.com/woozymasta/alphahub/internal/models"
	"github.com/woozymasta/alphahub/internal/storage"
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*storage.Repository, *clock.Manual) {
	t.Helper()

	c := clock.NewManual(epoch, 0)
	repo, err := storage.New(storage.Options{Path: filepath.Join(t.TempDir(), "hub.db"), Clock: c})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo, c
}

func TestRunNothingRequested(t *testing.T) {
	repo, _ := newStore(t)

	ran, err := Run(context.Background(), &config.Config{}, repo, clock.System{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestRunStats(t *testing.T) {
	repo, c := newStore(t)
	ctx := context.Background()

	_, err := repo.RecordSighting(ctx, models.SightingKey{IP: "1.2.3.4", Server: "srv1", Port: "27960"})
	require.NoError(t, err)

	var out bytes.Buffer
	cfg := &config.Config{Storage: config.Storage{Stats: true}}
	ran, err := Run(ctx, cfg, repo, c, &out)
	require.NoError(t, err)
	require.True(t, ran)

	var st models.Stats
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.EqualValues(t, 1, st.Sightings)
	assert.True(t, epoch.Equal(st.LastSighting))
}

func TestRunReplay(t *testing.T) {
	repo, c := newStore(t)
	ctx := context.Background()

	for _, payload := range []string{"a", "b", "c"} {
		_, err := repo.AppendPacket(ctx, "srv1", "27960", []byte(payload))
		require.NoError(t, err)
		c.Advance(time.Hour)
	}

	var out bytes.Buffer
	cfg := &config.Config{Storage: config.Storage{ReplayFailover: config.ReplayAll}}
	ran, err := Run(ctx, cfg, repo, c, &out)
	require.NoError(t, err)
	require.True(t, ran)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	var p models.Packet
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &p))
	assert.Equal(t, "a", string(p.Payload))

	out.Reset()
	cfg.Storage.ReplayFailover = epoch.Add(90 * time.Minute).Format(time.RFC3339)
	_, err = Run(ctx, cfg, repo, c, &out)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 1)
}

func TestRunReplayBadBound(t *testing.T) {
	repo, c := newStore(t)

	var out bytes.Buffer
	cfg := &config.Config{Storage: config.Storage{ReplayFailover: "last tuesday"}}
	ran, err := Run(context.Background(), cfg, repo, c, &out)
	assert.True(t, ran)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRunPruneUsesStoreClock(t *testing.T) {
	repo, c := newStore(t)
	ctx := context.Background()

	_, err := repo.AppendPacket(ctx, "srv1", "27960", []byte("old"))
	require.NoError(t, err)
	c.Advance(2 * time.Hour)
	_, err = repo.AppendPacket(ctx, "srv1", "27960", []byte("fresh"))
	require.NoError(t, err)

	// Rows are stamped in 2020, so a wall-clock cutoff would remove both.
	cfg := &config.Config{Storage: config.Storage{PruneFailover: time.Hour}}
	ran, err := Run(ctx, cfg, repo, c, &bytes.Buffer{})
	require.NoError(t, err)
	require.True(t, ran)

	st, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Packets)
}

type failingStore struct{ Store }

func (failingStore) PrunePackets(context.Context, time.Time) (int64, error) {
	return 0, storage.ErrUnavailable
}

func TestRunReturnsTaskError(t *testing.T) {
	cfg := &config.Config{Storage: config.Storage{PruneFailover: time.Hour}}

	ran, err := Run(context.Background(), cfg, failingStore{}, clock.System{}, &bytes.Buffer{})
	assert.True(t, ran)
	require.ErrorIs(t, err, storage.ErrUnavailable)
}
