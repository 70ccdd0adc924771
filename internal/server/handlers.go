package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/alphahub/internal/models"
	"github.com/woozymasta/alphahub/internal/vars"
)

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth reports whether the database answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// handleStats returns row counts of all tables.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch stats")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// sightingKey reads the full 5-tuple. Name and GUID may legitimately be blank,
// so only presence of the remaining fields is checked.
func sightingKey(q url.Values) (models.SightingKey, bool) {
	key := models.SightingKey{
		IP:     q.Get("ip"),
		Name:   q.Get("name"),
		GUID:   q.Get("guid"),
		Server: q.Get("server"),
		Port:   q.Get("port"),
	}

	return key, key.Valid()
}

// handleGetSighting returns one sighting.
// Query params: ?ip=1.2.3.4&name=Alice&guid=GUID1&server=srv1&port=27960
func (s *Server) handleGetSighting(w http.ResponseWriter, r *http.Request) {
	key, ok := sightingKey(r.URL.Query())
	if !ok {
		writeError(w, http.StatusBadRequest, "missing required params (ip, server, port)")
		return
	}

	sighting, err := s.store.GetSighting(r.Context(), key)
	if err != nil {
		log.Error().Err(err).Str("guid", key.GUID).Msg("Failed to fetch sighting")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if sighting == nil {
		writeError(w, http.StatusNotFound, "sighting not found")
		return
	}

	s.annotate(sighting)
	writeJSON(w, http.StatusOK, sighting)
}

// handleListSightings answers "where has this player been seen".
// Query params: ?guid=GUID1&server=srv1&ip=1.2.3.4&limit=50
func (s *Server) handleListSightings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := s.parseLimit(q)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	sightings, err := s.store.ListSightings(r.Context(), models.SightingFilter{
		IP:     q.Get("ip"),
		GUID:   q.Get("guid"),
		Server: q.Get("server"),
		Limit:  limit,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sightings")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if sightings == nil {
		sightings = []models.Sighting{}
	}
	for i := range sightings {
		s.annotate(&sightings[i])
	}

	writeJSON(w, http.StatusOK, sightings)
}

// handleGetGossip returns one gossip row.
// Query params: the sighting key plus &origin=hub2
func (s *Server) handleGetGossip(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sk, _ := sightingKey(q)
	key := models.GossipKey{SightingKey: sk, Origin: q.Get("origin")}
	if !key.Valid() {
		writeError(w, http.StatusBadRequest, "missing required params (ip, server, port, origin)")
		return
	}

	gossip, err := s.store.GetGossip(r.Context(), key)
	if err != nil {
		log.Error().Err(err).Str("origin", key.Origin).Msg("Failed to fetch gossip")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if gossip == nil {
		writeError(w, http.StatusNotFound, "gossip not found")
		return
	}

	writeJSON(w, http.StatusOK, gossip)
}

// handleListGossips lists gossip rows.
// Query params: ?guid=GUID1&origin=hub2&server=srv1&limit=50
func (s *Server) handleListGossips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := s.parseLimit(q)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	gossips, err := s.store.ListGossips(r.Context(), models.GossipFilter{
		GUID:   q.Get("guid"),
		Origin: q.Get("origin"),
		Server: q.Get("server"),
		Limit:  limit,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list gossips")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if gossips == nil {
		gossips = []models.Gossip{}
	}

	writeJSON(w, http.StatusOK, gossips)
}

// handleListPackets returns failover packets in arrival order.
// Query params: ?since=2024-05-01T12:00:00Z&limit=100
func (s *Server) handleListPackets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := s.parseLimit(q)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	var since time.Time
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since, expected RFC3339")
			return
		}
		since = t
	}

	packets, err := s.store.ListPackets(r.Context(), since, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list failover packets")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if packets == nil {
		packets = []models.Packet{}
	}

	writeJSON(w, http.StatusOK, packets)
}

// handleDeletePacket acknowledges a failover packet.
// Query params: ?id=17
func (s *Server) handleDeletePacket(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	removed, err := s.store.DeletePacket(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Failed to delete failover packet")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "packet not found")
		return
	}

	log.Info().Int64("id", id).Msg("Failover packet acknowledged")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseLimit reads ?limit, defaulting to and capping at maxList.
func (s *Server) parseLimit(q url.Values) (int, bool) {
	v := q.Get("limit")
	if v == "" {
		return s.maxList, true
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}

	return min(n, s.maxList), true
}

func (s *Server) annotate(sighting *models.Sighting) {
	if s.geoip != nil {
		sighting.Country = s.geoip.Country(sighting.IP)
	}
}
