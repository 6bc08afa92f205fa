package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/openstandia/connector-csv/csvconn/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("object_class", "__ACCOUNT__").Msg("sync finished")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "sync finished", record["message"])
	assert.Equal(t, "__ACCOUNT__", record["object_class"])
	assert.Contains(t, record, "time")
}

func TestNewWritesRotatingFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "csvconn.log")
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "console", File: logFile, MaxSizeMB: 1}, &buf)

	logger.Warn().Msg("lock is stale")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lock is stale")
	assert.Contains(t, buf.String(), "lock is stale")
}
