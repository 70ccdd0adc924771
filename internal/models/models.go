// Package models defines the records kept by the hub storage layer.
package models

import "time"

// SightingKey identifies one player on one game server endpoint.
type SightingKey struct {
	IP     string `json:"ip"`
	Name   string `json:"name"`
	GUID   string `json:"guid"`
	Server string `json:"server"`
	Port   string `json:"port"`
}

// Valid reports whether the key carries the fields needed to address a row.
// Name and GUID may be blank, ioq3 clients are allowed to omit cl_guid.
func (k SightingKey) Valid() bool {
	return k.IP != "" && k.Server != "" && k.Port != ""
}

// Sighting is a directly trusted record of a player seen on a game server (table players).
type Sighting struct {
	First   time.Time `json:"first"`
	Last    time.Time `json:"last"`
	Country string    `json:"country,omitempty"`
	SightingKey
}

// GossipKey identifies a sighting as reported by one peer hub.
type GossipKey struct {
	Origin string `json:"origin"`
	SightingKey
}

// Valid reports whether the key is complete.
func (k GossipKey) Valid() bool {
	return k.Origin != "" && k.SightingKey.Valid()
}

// Gossip is a peer hub report of a sighting (table gossips).
// Count is the number of repeated reports since the row was created.
type Gossip struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
	GossipKey
	Count int64 `json:"count"`
}

// Packet is a raw trusted packet kept for replay (table failover).
type Packet struct {
	Time    time.Time `json:"time"`
	Server  string    `json:"server"`
	Port    string    `json:"port"`
	Payload []byte    `json:"payload"`
	ID      int64     `json:"id"`
	Digest  uint64    `json:"digest"`

	// Corrupt is set when Payload does not match Digest.
	Corrupt bool `json:"corrupt,omitempty"`
}

// SightingFilter narrows ListSightings. Blank fields match everything.
type SightingFilter struct {
	IP     string
	GUID   string
	Server string
	Limit  int
}

// GossipFilter narrows ListGossips. Blank fields match everything.
type GossipFilter struct {
	GUID   string
	Origin string
	Server string
	Limit  int
}

// Stats summarizes the store contents.
type Stats struct {
	LastSighting time.Time `json:"last_sighting,omitzero"`
	Sightings    int64     `json:"sightings"`
	Gossips      int64     `json:"gossips"`
	Packets      int64     `json:"packets"`
}
