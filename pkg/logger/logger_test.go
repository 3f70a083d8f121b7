package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitRejectsBadSettings(t *testing.T) {
	assert.ErrorContains(t, Init("loud", "json", "stdout"), "invalid log level")
	assert.ErrorContains(t, Init("info", "xml", "stdout"), "invalid log format")
	assert.ErrorContains(t, Init("info", "json", filepath.Join(t.TempDir(), "missing", "app.log")), "failed to open log file")
}

func TestInitWritesJSONToFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Init("info", "json", path))

	Debug("dropped below level")
	Named("ingestion").Info("File processed", zap.String("doc_id", "doc-1"))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ingestion", entry["logger"])
	assert.Equal(t, "File processed", entry["message"])
	assert.Equal(t, "doc-1", entry["doc_id"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}
