package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestSetupJSONFile(t *testing.T) {
	restoreGlobals(t)
	path := filepath.Join(t.TempDir(), "hub.log")

	closer := Setup(Config{Level: "debug", Format: "json", Output: path})
	log.Debug().Str("guid", "GUID1").Msg("sighting recorded")
	log.Trace().Msg("filtered out")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "GUID1", entry["guid"])
	assert.Equal(t, "sighting recorded", entry["message"])
}

func TestSetupBadLevelFallsBackToInfo(t *testing.T) {
	restoreGlobals(t)

	closer := Setup(Config{Level: "loud", Output: "stderr"})
	defer func() { _ = closer.Close() }()

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestOpenOutputFallback(t *testing.T) {
	w, c := openOutput(filepath.Join(t.TempDir(), "missing", "dir", "hub.log"))
	assert.Equal(t, os.Stderr, w)
	assert.NoError(t, c.Close())
}
