package obslog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestInitCLIModeWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	ch := Init("cli", LevelInfo, &buf)
	assert.Nil(t, ch)

	Info("test", "hello %s", "world")

	assert.Contains(t, buf.String(), "hello world")
	assert.Contains(t, buf.String(), `"subsystem":"test"`)
}

func TestInitCLIModeRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Init("cli", LevelWarn, &buf)

	Debug("test", "should not appear")
	Info("test", "also should not appear")
	Warn("test", "this one appears")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "this one appears")
}

func TestInitTUIModeFeedsChannel(t *testing.T) {
	ch := Init("tui", LevelDebug, nil)
	require.NotNil(t, ch)

	Error("test", assertErr{"boom"}, "failure: %s", "oops")

	select {
	case e := <-ch:
		assert.Equal(t, LevelError, e.Level)
		assert.Equal(t, "test", e.Subsystem)
		assert.Equal(t, "failure: oops", e.Message)
		assert.Equal(t, "boom", e.Err.Error())
	default:
		t.Fatal("expected an entry on the feed channel")
	}
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", TruncateID("short"))
	assert.Equal(t, "12345678...", TruncateID("123456789012"))
}

func TestAuditLineFormatting(t *testing.T) {
	var buf bytes.Buffer
	Init("cli", LevelInfo, &buf)

	Audit(AuditLine{Action: "call_tool", Outcome: "denied", SessionID: "session-123456789", Target: "delete_cluster"})

	out := buf.String()
	assert.True(t, strings.Contains(out, "action=call_tool"))
	assert.True(t, strings.Contains(out, "outcome=denied"))
	assert.True(t, strings.Contains(out, "target=delete_cluster"))
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
