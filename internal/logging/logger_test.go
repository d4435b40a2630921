package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tagc/internal/logging"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("info", "json", &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("[BUILD] done", zap.Int("tags", 2))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[BUILD] done", entry["msg"])
	assert.Equal(t, float64(2), entry["tags"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("debug", "console", &buf)
	require.NoError(t, err)

	logger.Debug("[WATCH] change", zap.String("path", "tags.csv"))

	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "[WATCH] change")
	assert.Contains(t, buf.String(), "tags.csv")
}

func TestNew_Invalid(t *testing.T) {
	_, err := logging.New("loud", "console", &bytes.Buffer{})
	assert.Error(t, err)

	_, err = logging.New("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}
