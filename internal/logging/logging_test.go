package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", "json", &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("activity full", "activity", "Chess Club")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "activity full", record["msg"])
	require.Equal(t, "WARN", record["level"])
	require.Equal(t, "Chess Club", record["activity"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("DEBUG", "", &buf)
	require.NoError(t, err)
	logger.Debug("seeded", "activities", 9)
	require.Contains(t, buf.String(), "activities=9")
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New("loud", "text", &bytes.Buffer{})
	require.Error(t, err)

	_, err = New("info", "xml", &bytes.Buffer{})
	require.Error(t, err)
}
