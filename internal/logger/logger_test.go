package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestInitializeWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "info", "json")

	WithTenant(42).Info("evaluated", "state", "OVERDUE")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "evaluated", entry["msg"])
	assert.Equal(t, float64(42), entry["tenant_id"])
	assert.Equal(t, "OVERDUE", entry["state"])
	assert.Equal(t, "teambilling", entry["app"])
}

func TestDebugHelpersRespectLevel(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "info", "text")

	EnterMethod("invoiceRepository.Create", "memberID", 1)
	DatabaseResult("INSERT", 1, nil)
	assert.Empty(t, buf.String())

	DatabaseResult("INSERT", 0, errors.New("boom"))
	assert.Contains(t, buf.String(), "Database call failed")
}
