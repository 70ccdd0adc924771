// Package fake provides utilities for generating random hub data for testing and development purposes.
package fake

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/alphahub/internal/models"
)

// Store is the write side of the storage layer.
type Store interface {
	RecordSighting(ctx context.Context, key models.SightingKey) (models.Sighting, error)
	RecordGossip(ctx context.Context, key models.GossipKey) (models.Gossip, error)
	AppendPacket(ctx context.Context, server, port string, payload []byte) (models.Packet, error)
}

// Result counts what GenerateData wrote.
type Result struct {
	Sightings int
	Gossips   int
	Packets   int
	Failed    int
}

// GenerateData simulates count userinfo reports from game servers: every report is
// logged to the failover log and recorded as a sighting, and some are also gossiped
// by peer hubs. Timestamps come from the store's clock.
func GenerateData(ctx context.Context, store Store, count int) Result {
	names := []string{"|ALPHA| CCCP", "|ALPHA| Mad Professor", "Sarge", "Major", "Doom", "Hunter", "Klesk", "Orbb"}
	servers := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	ports := []string{"27960", "27961", "27964"}
	hubs := []string{"hub.alpha.example", "hub.beta.example"}

	// Cache for player reuse
	type player struct {
		name string
		ip   string
		guid string
	}
	var players []player

	var res Result
	for i := 0; i < count; i++ {
		var p player

		// 60% chance for a returning player
		if len(players) > 0 && rand.Float32() < 0.6 {
			p = players[rand.Intn(len(players))]
		} else {
			p = player{
				name: names[rand.Intn(len(names))],
				ip:   fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(255)),
				guid: randomGUID(),
			}
			players = append(players, p)
		}

		key := models.SightingKey{
			IP:     p.ip,
			Name:   p.name,
			GUID:   p.guid,
			Server: servers[rand.Intn(len(servers))],
			Port:   ports[rand.Intn(len(ports))],
		}

		if _, err := store.AppendPacket(ctx, key.Server, key.Port, userinfo(key)); err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake packet")
			res.Failed++
			continue
		}
		res.Packets++

		if _, err := store.RecordSighting(ctx, key); err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake sighting")
			res.Failed++
			continue
		}
		res.Sightings++

		if rand.Float32() < 0.3 { // 30% chance a peer hub reports it too
			gk := models.GossipKey{SightingKey: key, Origin: hubs[rand.Intn(len(hubs))]}
			if _, err := store.RecordGossip(ctx, gk); err != nil {
				log.Warn().Err(err).Msg("Failed to generate fake gossip")
				res.Failed++
				continue
			}
			res.Gossips++
		}
	}

	return res
}

func randomGUID() string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < 32; i++ {
		b.WriteByte(hex[rand.Intn(len(hex))])
	}
	return b.String()
}

// userinfo renders a connectionless ioq3 userinfo packet for key.
func userinfo(key models.SightingKey) []byte {
	return []byte(fmt.Sprintf("\xff\xff\xff\xffuserinfo\n\\name\\%s\\ip\\%s\\cl_guid\\%s",
		key.Name, key.IP, key.GUID))
}
