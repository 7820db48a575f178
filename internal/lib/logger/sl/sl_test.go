package sl

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestErrAttr(t *testing.T) {
	a := Err(errors.New("boom"))
	if a.Key != "error" || a.Value.String() != "boom" {
		t.Fatalf("unexpected attr: %v", a)
	}
	if got := Err(nil).Value.String(); got != "" {
		t.Fatalf("expected empty value for nil error, got %q", got)
	}
}

func TestNewLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", FormatText)

	log.Info("hidden")
	log.Warn("shown", slog.Int("n", 1))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "n=1") {
		t.Fatalf("expected text-formatted warn line, got %q", out)
	}
}

func TestNewLoggerDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "bogus", "").Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected json output, got %q", buf.String())
	}
}
