package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Debug("hidden")
	l.With("component", "usecase").Error("analysis failed",
		String("pair", "BTCUSDT"),
		Int("candles", 120),
		Float64("confidence", 81.5),
		Duration("took", 1500*time.Millisecond),
		Error(errors.New("upstream timeout")),
	)

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected debug filtered out, got %d lines", len(lines))
	}
	m := lines[0]
	if m["level"] != "error" || m["message"] != "analysis failed" || m["component"] != "usecase" {
		t.Fatalf("unexpected header fields: %v", m)
	}
	if m["pair"] != "BTCUSDT" || m["candles"] != float64(120) || m["error"] != "upstream timeout" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if m["took"] != float64(1500) {
		t.Fatalf("expected duration in ms, got %v", m["took"])
	}
	if _, ok := m["caller"]; !ok {
		t.Fatalf("expected caller field: %v", m)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Output: "stdout"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestCollectedFieldValues(t *testing.T) {
	if v := Error(errors.New("x")).collected(); v != "x" {
		t.Fatalf("error collected as %v", v)
	}
	if v := Duration("d", 2*time.Second).collected(); v != int64(2000) {
		t.Fatalf("duration collected as %v", v)
	}
	if v := Strings("s", []string{"a", "b"}).collected(); v != "a, b" {
		t.Fatalf("strings collected as %v", v)
	}
}
