package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}

	var typed *slogLogger
	got := OrNop(typed)
	if got == nil {
		t.Fatal("OrNop(typed nil) returned nil")
	}
	// Must not hand back the nil pointer dressed up as an interface.
	if _, ok := got.(*slogLogger); ok {
		t.Fatal("OrNop returned the nil concrete logger")
	}

	real := New(Config{Output: &bytes.Buffer{}}, "test")
	if OrNop(real) != real {
		t.Fatal("OrNop replaced a usable logger")
	}
}

func TestIsNil(t *testing.T) {
	if !IsNil(nil) {
		t.Error("IsNil(nil) = false")
	}
	var typed *slogLogger
	if !IsNil(typed) {
		t.Error("IsNil(typed nil pointer) = false")
	}
	if IsNil(Nop()) {
		t.Error("IsNil(Nop()) = true")
	}
}

func TestNopDiscardsEverything(t *testing.T) {
	logger := Nop()
	logger.Debug("a %d", 1)
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")
}

func TestNewTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Output: &buf}, "ranker")

	logger.Debug("scored %d candidates", 2)
	out := buf.String()
	if !strings.Contains(out, "scored 2 candidates") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "component=ranker") {
		t.Errorf("output missing component: %q", out)
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf}, "pool")

	logger.Info("batch done")
	out := buf.String()
	if !strings.Contains(out, `"component":"pool"`) {
		t.Errorf("output missing component attr: %q", out)
	}
	if !strings.Contains(out, "batch done") {
		t.Errorf("output missing message: %q", out)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Output: &buf}, "")

	logger.Info("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("info leaked through warn level: %q", buf.String())
	}
	logger.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("warn suppressed: %q", buf.String())
	}
}
