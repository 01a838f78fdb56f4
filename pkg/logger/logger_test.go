package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := GetLevel()
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})
	return &buf
}

func TestInfoCF_IncludesComponentAndFields(t *testing.T) {
	buf := capture(t)
	SetLevel(INFO)

	InfoCF("session", "Reconnecting", map[string]any{"attempt": 2, "delay": "5s"})

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "Reconnecting")
	assert.Contains(t, out, `"component": "session"`)
	assert.Contains(t, out, `"attempt": 2`)
	assert.Less(t, strings.Index(out, `"attempt"`), strings.Index(out, `"delay"`))
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	buf := capture(t)
	SetLevel(INFO)

	DebugC("session", "hidden")
	assert.Empty(t, buf.String())

	SetLevel(DEBUG)
	DebugC("session", "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetLevelRoundTrip(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)

	for _, l := range []LogLevel{DEBUG, INFO, WARN, ERROR} {
		SetLevel(l)
		assert.Equal(t, l, GetLevel())
	}
}

func TestErrorAlwaysWrittenAtWarn(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)

	InfoC("bridge", "quiet")
	WarnC("bridge", "careful")
	ErrorCF("bridge", "broken", map[string]any{"error": "eof"})

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "careful")
	assert.Contains(t, out, "broken")
}
