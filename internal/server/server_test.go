package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/alphahub/internal/clock"
	"github.com/woozymasta/alphahub/internal/config"
	"github.com/woozymasta/alphahub/internal/models"
	"github.com/woozymasta/alphahub/internal/storage"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testToken = "secret"

var alice = models.SightingKey{IP: "1.2.3.4", Name: "Alice", GUID: "GUID1", Server: "srv1", Port: "27960"}

type staticGeo map[string]string

func (g staticGeo) Country(ip string) string { return g[ip] }

type fixture struct {
	repo    *storage.Repository
	handler http.Handler
}

func newFixture(t *testing.T, rateCount int) *fixture {
	t.Helper()

	repo, err := storage.New(storage.Options{
		Path:  filepath.Join(t.TempDir(), "hub.db"),
		Clock: clock.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), time.Second),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	cfg := &config.Config{
		Server:    config.Server{AuthToken: testToken, MaxList: 2},
		RateLimit: config.RateLimit{Count: rateCount, Window: time.Minute},
	}
	srv := New(repo, staticGeo{"1.2.3.4": "DE"}, cfg)
	t.Cleanup(srv.Close)

	return &fixture{repo: repo, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, target string, auth bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPIRequiresToken(t *testing.T) {
	f := newFixture(t, 100)

	rec := f.do(t, http.MethodGet, "/api/stats", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, 100)

	rec := f.do(t, http.MethodGet, "/healthz", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSighting(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.repo.RecordSighting(ctx, alice)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/sighting?ip=1.2.3.4&name=Alice&guid=GUID1&server=srv1&port=27960", true)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[models.Sighting](t, rec)
	assert.Equal(t, alice, got.SightingKey)
	assert.Equal(t, "DE", got.Country)
	assert.False(t, got.First.IsZero())

	rec = f.do(t, http.MethodGet, "/api/sighting?ip=1.2.3.4&name=Bob&guid=GUID1&server=srv1&port=27960", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/sighting?name=Alice", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSightingsCapsLimit(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	for _, port := range []string{"1", "2", "3"} {
		k := alice
		k.Port = port
		_, err := f.repo.RecordSighting(ctx, k)
		require.NoError(t, err)
	}

	rec := f.do(t, http.MethodGet, "/api/sightings?guid=GUID1&limit=50", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Sighting](t, rec), 2)

	rec = f.do(t, http.MethodGet, "/api/sightings?guid=nobody", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/sightings?limit=-1", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGossipEndpoints(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	key := models.GossipKey{SightingKey: alice, Origin: "hub2"}

	for i := 0; i < 3; i++ {
		_, err := f.repo.RecordGossip(ctx, key)
		require.NoError(t, err)
	}

	rec := f.do(t, http.MethodGet, "/api/gossip?ip=1.2.3.4&name=Alice&guid=GUID1&server=srv1&port=27960&origin=hub2", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode[models.Gossip](t, rec).Count)

	rec = f.do(t, http.MethodGet, "/api/gossip?ip=1.2.3.4&server=srv1&port=27960", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/gossips?origin=hub2", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Gossip](t, rec), 1)
}

func TestFailoverEndpoints(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	p, err := f.repo.AppendPacket(ctx, "srv1", "27960", []byte("raw"))
	require.NoError(t, err)
	_, err = f.repo.AppendPacket(ctx, "srv1", "27960", []byte("raw"))
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/failover", true)
	require.Equal(t, http.StatusOK, rec.Code)
	packets := decode[[]models.Packet](t, rec)
	require.Len(t, packets, 2)
	assert.Equal(t, []byte("raw"), packets[0].Payload)

	rec = f.do(t, http.MethodGet, "/api/failover?since=yesterday", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/failover?id="+strconv.FormatInt(p.ID, 10), true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/failover?id="+strconv.FormatInt(p.ID, 10), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/failover?id=abc", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/stats", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[models.Stats](t, rec).Packets)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, 2)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/version", true).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/stats", true).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodGet, "/api/stats", true).Code)
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")

	assert.Equal(t, "10.0.0.1", GetRealIP(req, false))
	assert.Equal(t, "9.9.9.9", GetRealIP(req, true))

	req.Header.Set("CF-Connecting-IP", "8.8.8.8")
	assert.Equal(t, "8.8.8.8", GetRealIP(req, true))
}

func TestLimiterForget(t *testing.T) {
	l := newIPLimiter(1, time.Minute)
	now := time.Now()

	assert.True(t, l.allow("a", now))
	assert.False(t, l.allow("a", now))

	l.forget(now.Add(time.Second))
	assert.True(t, l.allow("a", now))
}
