package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ticketforge/internal/tester"
)

func TestLogger_FiltersBelowLevel(t *testing.T) {
	l, err := New(Options{Level: "warn"})
	tester.NoErr(t, err)
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)
	l.Error("shown %d", 3)

	out := buf.String()
	tester.False(t, strings.Contains(out, "hidden"))
	tester.True(t, strings.Contains(out, "[WARN] shown 2"))
	tester.True(t, strings.Contains(out, "[ERROR] shown 3"))
}

func TestLogger_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ticketforge.log")
	l, err := New(Options{Level: "debug", File: path})
	tester.NoErr(t, err)
	l.Debug("written to %s", "file")
	tester.NoErr(t, l.Close())

	b, err := os.ReadFile(path)
	tester.NoErr(t, err)
	tester.True(t, strings.Contains(string(b), "[DEBUG] written to file"))
}

func TestParseLevel(t *testing.T) {
	lv, err := ParseLevel("WARNING")
	tester.NoErr(t, err)
	tester.Eq(t, lv, LevelWarn)
	_, err = ParseLevel("loud")
	tester.True(t, err != nil)
}
