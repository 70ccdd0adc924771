package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/alphahub/internal/models"
)

// AppendPacket adds a raw trusted packet to the failover log. Every call inserts
// exactly one new row, identical payloads included.
func (r *Repository) AppendPacket(ctx context.Context, server, port string, payload []byte) (models.Packet, error) {
	if payload == nil {
		payload = []byte{}
	}

	p := models.Packet{
		Server:  server,
		Port:    port,
		Payload: payload,
		Digest:  xxhash.Sum64(payload),
		Time:    r.now(),
	}

	query := r.q(`
	INSERT INTO failover (server, port, packet, digest, time)
	VALUES (?, ?, ?, ?, ?)
	RETURNING id
	`)
	err := r.db.QueryRowContext(ctx, query,
		p.Server, p.Port, p.Payload, formatDigest(p.Digest), p.Time,
	).Scan(&p.ID)
	if err != nil {
		return models.Packet{}, fmt.Errorf("append packet: %w", err)
	}

	return p, nil
}

// ReplayPackets calls fn for every packet received at or after since, in arrival order.
// A zero since replays the whole log. Replay stops at the first error from fn, and with
// ErrCorruptPacket when a payload does not match its stored digest.
func (r *Repository) ReplayPackets(ctx context.Context, since time.Time, fn func(models.Packet) error) error {
	rows, err := r.queryPackets(ctx, since, 0)
	if err != nil {
		return fmt.Errorf("replay packets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		p, err := scanPacket(rows)
		if err != nil {
			return fmt.Errorf("replay packets: %w", err)
		}
		if p.Corrupt {
			return fmt.Errorf("replay packets: id %d: %w", p.ID, ErrCorruptPacket)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("replay packets: %w", err)
	}

	return nil
}

// ListPackets returns up to limit packets received at or after since, in arrival order.
// Packets failing the digest check are returned with Corrupt set so they can still be acknowledged.
func (r *Repository) ListPackets(ctx context.Context, since time.Time, limit int) ([]models.Packet, error) {
	rows, err := r.queryPackets(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list packets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var packets []models.Packet
	for rows.Next() {
		p, err := scanPacket(rows)
		if err != nil {
			return nil, fmt.Errorf("list packets: %w", err)
		}
		packets = append(packets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list packets: %w", err)
	}

	return packets, nil
}

func (r *Repository) queryPackets(ctx context.Context, since time.Time, limit int) (*sql.Rows, error) {
	query := `SELECT id, server, port, packet, digest, time FROM failover`
	var args []any

	if !since.IsZero() {
		query += " WHERE time >= ?"
		args = append(args, since.UTC())
	}
	query += " ORDER BY time, id"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.db.QueryContext(ctx, r.q(query), args...)
}

// DeletePacket removes one packet after a peer hub acknowledged it.
// It reports whether a row was removed.
func (r *Repository) DeletePacket(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM failover WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("delete packet: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete packet: %w", err)
	}

	return n > 0, nil
}

// PrunePackets removes packets received before the cutoff and returns how many were removed.
func (r *Repository) PrunePackets(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM failover WHERE time < ?`), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune packets: %w", err)
	}

	return res.RowsAffected()
}

func scanPacket(row scanner) (models.Packet, error) {
	var (
		p      models.Packet
		digest string
	)
	if err := row.Scan(&p.ID, &p.Server, &p.Port, &p.Payload, &digest, timestamp{&p.Time}); err != nil {
		return p, err
	}

	d, err := strconv.ParseUint(digest, 16, 64)
	if err != nil {
		return p, fmt.Errorf("bad digest %q: %w", digest, err)
	}
	p.Digest = d
	p.Corrupt = xxhash.Sum64(p.Payload) != d

	return p, nil
}

// formatDigest renders the digest as fixed-width hex, the full uint64 range does not fit a signed column.
func formatDigest(d uint64) string {
	return fmt.Sprintf("%016x", d)
}
