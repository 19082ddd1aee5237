package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DEBUG)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	})
	return &buf
}

func TestLogEmitsJSONFields(t *testing.T) {
	buf := capture(t)

	Info("cycle finished", "cycle_id", "c-1", "records", 12)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "cycle finished", entry["msg"])
	assert.Equal(t, "c-1", entry["cycle_id"])
	assert.Equal(t, "12", entry["records"])
}

func TestReservedKeysAreNotOverwritten(t *testing.T) {
	buf := capture(t)

	Warn("cycle started", "level", "ad", "msg", "other")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "cycle started", entry["msg"])
	assert.Equal(t, "ad", entry["field_level"])
	assert.Equal(t, "other", entry["field_msg"])
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)

	Info("dropped")
	Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "kept")
}

func TestRedact(t *testing.T) {
	tests := []struct {
		key, val, want string
	}{
		{"meta_access_token", "EAAGsecret", "EA***"},
		{"password", "pw", "***"},
		{"url", "https://graph.facebook.com/v19.0/act_1/insights?access_token=EAAGsecret&level=ad",
			"https://graph.facebook.com/v19.0/act_1/insights?access_token=EA***&level=ad"},
		{"ad_id", "120210", "120210"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.key, tt.val))
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" ERROR "))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}
