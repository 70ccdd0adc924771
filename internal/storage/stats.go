package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/woozymasta/alphahub/internal/models"
)

// Stats returns row counts of all three tables and the newest sighting time.
func (r *Repository) Stats(ctx context.Context) (models.Stats, error) {
	var st models.Stats

	counts := []struct {
		dst   *int64
		table string
	}{
		{&st.Sightings, "players"},
		{&st.Gossips, "gossips"},
		{&st.Packets, "failover"},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return st, fmt.Errorf("stats %s: %w", c.table, err)
		}
	}

	err := r.db.QueryRowContext(ctx, `SELECT last FROM players ORDER BY last DESC LIMIT 1`).
		Scan(timestamp{&st.LastSighting})
	if err != nil && err != sql.ErrNoRows {
		return st, fmt.Errorf("stats players: %w", err)
	}

	return st, nil
}
