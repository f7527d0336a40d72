package logx

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, Debug, ParseLevel("debug"))
	assert.Equal(t, Warn, ParseLevel("WARN"))
	assert.Equal(t, Error, ParseLevel("error"))
	assert.Equal(t, Info, ParseLevel("unknown"))
	assert.Equal(t, Info, ParseLevel(""))
}

func TestLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: Warn, Component: "test", Output: &buf})

	l.Debug("should not appear")
	l.Info("should not appear either")
	assert.Empty(t, buf.String())

	l.Warn("this one shows")
	assert.Contains(t, buf.String(), "this one shows")
}

func TestLoggerWithScopesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: Debug, Component: "node", Output: &buf})
	sub := l.With("replication")

	sub.Info("hello")
	assert.Contains(t, buf.String(), "[node.replication]")
}

func TestFieldFormatting(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: Debug, Component: "test", Output: &buf})

	l.Info("event", String("key", "val"), Err(errors.New("boom")), Int("n", 3))
	out := buf.String()
	assert.Contains(t, out, `key="val"`)
	assert.Contains(t, out, `error="boom"`)
	assert.Contains(t, out, "n=3")
}
