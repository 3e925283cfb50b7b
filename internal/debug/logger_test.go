package debug

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(""))
	assert.Equal(t, slog.LevelWarn, ParseLevel("verbose"))
}

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Options{Level: "info", Format: "json", Writer: &buf})
		l.Debug("hidden")
		l.Info("rewrite", "key", "abc")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), `"msg":"rewrite"`)
		assert.Contains(t, buf.String(), `"key":"abc"`)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Options{Level: "debug", Writer: &buf})
		l.Debug("statement", "query", "SELECT 1")
		assert.Contains(t, buf.String(), "msg=statement")
	})
}

func TestInit(t *testing.T) {
	prev := Logger()
	defer func() {
		mu.Lock()
		logger = prev
		enabled = false
		mu.Unlock()
	}()

	var buf bytes.Buffer
	Init(Options{Level: "debug", Writer: &buf})
	assert.True(t, Enabled())

	Debug("poisoned", "sqlstate", "40001")
	With("conn", 1).Warn("doomed")
	assert.Contains(t, buf.String(), "sqlstate=40001")
	assert.Contains(t, buf.String(), "conn=1")
}
