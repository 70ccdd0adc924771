package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/woozymasta/alphahub/internal/models"
)

// RecordSighting stores a trusted sighting. A new key gets first = last = now; a known key
// only has last moved forward, first is never touched. The whole operation is one upsert
// statement, so concurrent calls for the same key end up with exactly one row.
func (r *Repository) RecordSighting(ctx context.Context, key models.SightingKey) (models.Sighting, error) {
	if !key.Valid() {
		return models.Sighting{}, fmt.Errorf("record sighting: %w", ErrInvalidKey)
	}

	query := r.q(fmt.Sprintf(`
	INSERT INTO players (ip, name, guid, server, port, first, last)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (ip, name, guid, server, port) DO UPDATE SET
		last = %s(players.last, excluded.last)
	RETURNING first, last
	`, r.dialect.greatest))

	now := r.now()
	s := models.Sighting{SightingKey: key}
	err := r.db.QueryRowContext(ctx, query,
		key.IP, key.Name, key.GUID, key.Server, key.Port, now, now,
	).Scan(timestamp{&s.First}, timestamp{&s.Last})
	if err != nil {
		return models.Sighting{}, fmt.Errorf("record sighting: %w", err)
	}

	return s, nil
}

// GetSighting retrieves a sighting by its full key. It returns nil, nil when the key is unknown.
func (r *Repository) GetSighting(ctx context.Context, key models.SightingKey) (*models.Sighting, error) {
	query := r.q(`
		SELECT ip, name, guid, server, port, first, last
		FROM players
		WHERE ip = ? AND name = ? AND guid = ? AND server = ? AND port = ?
	`)
	row := r.db.QueryRowContext(ctx, query, key.IP, key.Name, key.GUID, key.Server, key.Port)

	s, err := scanSighting(row)
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("get sighting: %w", err)
	}

	return &s, nil
}

// ListSightings returns sightings matching the filter, most recently seen first.
func (r *Repository) ListSightings(ctx context.Context, f models.SightingFilter) ([]models.Sighting, error) {
	query := `
		SELECT ip, name, guid, server, port, first, last
		FROM players
		WHERE 1=1
	`
	var args []any

	if f.IP != "" {
		query += " AND ip = ?"
		args = append(args, f.IP)
	}
	if f.GUID != "" {
		query += " AND guid = ?"
		args = append(args, f.GUID)
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
		return nil, fmt.Errorf("list sightings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sightings []models.Sighting
	for rows.Next() {
		s, err := scanSighting(rows)
		if err != nil {
			return nil, fmt.Errorf("list sightings: %w", err)
		}
		sightings = append(sightings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sightings: %w", err)
	}

	return sightings, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSighting(row scanner) (models.Sighting, error) {
	var s models.Sighting
	err := row.Scan(
		&s.IP, &s.Name, &s.GUID, &s.Server, &s.Port,
		timestamp{&s.First}, timestamp{&s.Last},
	)

	return s, err
}
