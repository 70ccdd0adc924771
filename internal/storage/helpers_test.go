package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/alphahub/internal/clock"
	"github.com/woozymasta/alphahub/internal/models"
)

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestRepository opens a file-backed SQLite store driven by a manual clock.
func newTestRepository(t *testing.T) (*Repository, *clock.Manual) {
	t.Helper()

	c := clock.NewManual(testEpoch, 0)
	repo, err := New(Options{
		Path:  filepath.Join(t.TempDir(), "hub.db"),
		Clock: c,
	})
	require.NoError(t, err, "failed to open store")
	t.Cleanup(func() { _ = repo.Close() })

	return repo, c
}

func assertSameTime(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "want %s, got %s", want, got)
}

var aliceKey = models.SightingKey{
	IP:     "1.2.3.4",
	Name:   "Alice",
	GUID:   "GUID1",
	Server: "srv1",
	Port:   "27960",
}
