package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/woozymasta/alphahub/internal/models"
)

// RecordGossip stores a peer hub report. The first report for a key starts with count 0;
// every repeat increments the stored count by one and moves last forward.
// Gossip is kept apart from trusted sightings and is never promoted into them.
func (r *Repository) RecordGossip(ctx context.Context, key models.GossipKey) (models.Gossip, error) {
	if !key.Valid() {
		return models.Gossip{}, fmt.Errorf("record gossip: %w", ErrInvalidKey)
	}

	query := r.q(fmt.Sprintf(`
	INSERT INTO gossips (ip, name, guid, server, port, origin, count, first, last)
	VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	ON CONFLICT (ip, name, guid, server, port, origin) DO UPDATE SET
		count = gossips.count + 1,
		last = %s(gossips.last, excluded.last)
	RETURNING count, first, last
	`, r.dialect.greatest))

	now := r.now()
	g := models.Gossip{GossipKey: key}
	err := r.db.QueryRowContext(ctx, query,
		key.IP, key.Name, key.GUID, key.Server, key.Port, key.Origin, now, now,
	).Scan(&g.Count, timestamp{&g.First}, timestamp{&g.Last})
	if err != nil {
		return models.Gossip{}, fmt.Errorf("record gossip: %w", err)
	}

	return g, nil
}

// GetGossip retrieves a gossip row by its full key. It returns nil, nil when the key is unknown.
func (r *Repository) GetGossip(ctx context.Context, key models.GossipKey) (*models.Gossip, error) {
	query := r.q(`
		SELECT ip, name, guid, server, port, origin, count, first, last
		FROM gossips
		WHERE ip = ? AND name = ? AND guid = ? AND server = ? AND port = ? AND origin = ?
	`)
	row := r.db.QueryRowContext(ctx, query,
		key.IP, key.Name, key.GUID, key.Server, key.Port, key.Origin,
	)

	g, err := scanGossip(row)
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("get gossip: %w", err)
	}

	return &g, nil
}

// ListGossips returns gossip rows matching the filter, most recently reported first.
func (r *Repository) ListGossips(ctx context.Context, f models.GossipFilter) ([]models.Gossip, error) {
	query := `
		SELECT ip, name, guid, server, port, origin, count, first, last
		FROM gossips
		WHERE 1=1
	`
	var args []any

	if f.GUID != "" {
		query += " AND guid = ?"
		args = append(args, f.GUID)
	}
	if f.Origin != "" {
		query += " AND origin = ?"
		args = append(args, f.Origin)
	}
	if f.Server != "" {
		query += " AND server = ?"
		args = append(args, f.Server)
	}

	query += " ORDER BY last DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list gossips: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var gossips []models.Gossip
	for rows.Next() {
		g, err := scanGossip(rows)
		if err != nil {
			return nil, fmt.Errorf("list gossips: %w", err)
		}
		gossips = append(gossips, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list gossips: %w", err)
	}

	return gossips, nil
}

func scanGossip(row scanner) (models.Gossip, error) {
	var g models.Gossip
	err := row.Scan(
		&g.IP, &g.Name, &g.GUID, &g.Server, &g.Port, &g.Origin,
		&g.Count, timestamp{&g.First}, timestamp{&g.Last},
	)

	return g, err
}
