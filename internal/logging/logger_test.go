package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewWithWriter(&buf, "debug", "json"), "grant")
	logger.Debug("token redeemed", "code", "epr-abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "token redeemed", entry["msg"])
	require.Equal(t, "grant", entry["component"])
	require.Equal(t, "epr-abc", entry["code"])
}

func TestNewWithWriterInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "loud", "text")
	logger.Debug("hidden")
	require.Zero(t, buf.Len())

	logger.Info("shown")
	require.Contains(t, buf.String(), "msg=shown")
}
