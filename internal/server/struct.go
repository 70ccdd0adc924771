package server

import (
	"context"
	"sync"
	"time"

	"github.com/woozymasta/alphahub/internal/models"
)

// Store is the part of the storage layer the admin API reads from.
type Store interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (models.Stats, error)
	GetSighting(ctx context.Context, key models.SightingKey) (*models.Sighting, error)
	ListSightings(ctx context.Context, f models.SightingFilter) ([]models.Sighting, error)
	GetGossip(ctx context.Context, key models.GossipKey) (*models.Gossip, error)
	ListGossips(ctx context.Context, f models.GossipFilter) ([]models.Gossip, error)
	ListPackets(ctx context.Context, since time.Time, limit int) ([]models.Packet, error)
	DeletePacket(ctx context.Context, id int64) (bool, error)
}

// CountryResolver maps an IP address to an ISO country code.
type CountryResolver interface {
	Country(ip string) string
}

// Server holds the dependencies and configuration of the admin API.
type Server struct {
	// store provides read access to sightings, gossip and the failover log.
	store Store

	// geoip annotates sightings with a country code. It can be nil.
	geoip CountryResolver

	// shutdown stops background goroutines started by middleware.
	shutdown chan struct{}

	// authToken is the bearer token required on every /api route.
	authToken string

	// maxList caps the limit parameter of list endpoints.
	maxList int

	// limiter enforces the per-IP request budget on /api routes.
	limiter *ipLimiter

	wg        sync.WaitGroup
	closeOnce sync.Once

	// trustProxy makes GetRealIP honour CF-Connecting-IP and X-Forwarded-For.
	trustProxy bool
}
