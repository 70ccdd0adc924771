package storage

import "errors"

var (
	// ErrUnavailable is returned when the database cannot be opened or reached.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrInvalidKey is returned when a record key misses a required field.
	ErrInvalidKey = errors.New("invalid record key")

	// ErrCorruptPacket is returned by replay when a stored payload no longer matches its digest.
	ErrCorruptPacket = errors.New("failover packet digest mismatch")

	// ErrUnknownDriver is returned for an unsupported storage driver name.
	ErrUnknownDriver = errors.New("unknown storage driver")
)
