package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/asecn/memcore/pkg/color"
	"github.com/asecn/memcore/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

type panickingWriter struct{}

func (panickingWriter) Write([]byte) (int, error) { panic("boom") }

func decode(t *testing.T, line string) LogEntry {
	t.Helper()
	var e LogEntry
	require.NoError(t, json.Unmarshal([]byte(line), &e))
	return e
}

func TestLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelDebug)
	logger.SetOutput(&buf)

	logger.Debug("test message", map[string]any{"key": "value"})

	output := buf.String()
	assert.Contains(t, output, `"level":"debug"`)
	assert.Contains(t, output, `"message":"test message"`)
	assert.Contains(t, output, `"key":"value"`)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelWarn)
	logger.SetOutput(&buf)

	logger.Debug("d")
	logger.Info("i")
	assert.Zero(t, buf.Len())

	logger.Warn("w")
	logger.Error("e")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestLogger_LogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(&buf)

	var sink Sink = logger
	sink.Log(LevelError, "memory-core", "write failed", map[string]any{"id": "a1"},
		errclass.ErrDuplicateID.WithMessage("id a1 exists"))

	e := decode(t, buf.String())
	assert.Equal(t, LevelError, e.Level)
	assert.Equal(t, "memory-core", e.Source)
	assert.Equal(t, "a1", e.Fields["id"])
	require.NotNil(t, e.Error)
	assert.Equal(t, "E_DUPLICATE_ID", e.Error.Code)
}

func TestLogger_ErrorErr_WithAdditionalFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(&buf)

	logger.ErrorErr("restore failed", errors.New("not found"), map[string]any{"backup": "b1"}, map[string]any{"attempt": 2})

	e := decode(t, buf.String())
	assert.Equal(t, "not found", e.Error.Message)
	assert.Equal(t, "b1", e.Fields["backup"])
	assert.Equal(t, float64(2), e.Fields["attempt"])
}

func TestLogger_WithFields_OriginalUnmodified(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(&buf)

	child := logger.WithFields(map[string]any{"component": "store"})
	logger.Info("parent")
	child.Info("child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Nil(t, decode(t, lines[0]).Fields)
	assert.Equal(t, "store", decode(t, lines[1]).Fields["component"])
}

func TestLogger_WriteFailureReportedNotRaised(t *testing.T) {
	var secondary bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(failingWriter{})
	logger.SetErrorOutput(&secondary)

	assert.NotPanics(t, func() { logger.Info("lost") })
	assert.Contains(t, secondary.String(), "disk full")
}

func TestLogger_PanickingWriterRecovered(t *testing.T) {
	var secondary bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(panickingWriter{})
	logger.SetErrorOutput(&secondary)

	assert.NotPanics(t, func() { logger.Warn("boom") })
	assert.Contains(t, secondary.String(), "panic while logging")
}

func TestLogger_ErrorLog(t *testing.T) {
	var out, errLog bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(&out)
	logger.SetErrorLog(&errLog)

	logger.Info("fine")
	assert.Zero(t, errLog.Len())

	logger.Log(LevelFatal, "memory-core", "store unusable", nil, errors.New("eio"))
	assert.Contains(t, errLog.String(), "FATAL - memory-core: store unusable")
	assert.Contains(t, errLog.String(), "Error: eio")
}

func TestLogger_TextFormat(t *testing.T) {
	color.Disable()
	defer color.Enable()

	var buf bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(&buf)
	logger.SetFormat(FormatText)

	logger.Log(LevelWarn, "memory-core", "store reset", map[string]any{"b": 2, "a": "x"}, nil)

	line := buf.String()
	assert.Contains(t, line, "[WARN] memory-core: store reset a=\"x\" b=2")
}

func TestLogger_ConcurrentLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.WithFields(map[string]any{"n": i}).Info("concurrent")
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
	for _, l := range lines {
		decode(t, l)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"Fatal":   LevelFatal,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestGlobal_WithFields(t *testing.T) {
	var buf bytes.Buffer
	orig := Global()
	defer SetGlobal(orig)

	l := NewLogger(LevelDebug)
	l.SetOutput(&buf)
	SetGlobal(l)

	WithFields(map[string]any{"store": "main"}).Info("hello")
	Debug("dbg")
	assert.Contains(t, buf.String(), `"store":"main"`)
	assert.Contains(t, buf.String(), `"message":"dbg"`)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard().Log(LevelFatal, "x", "y", nil, errors.New("z"))
	})
}
