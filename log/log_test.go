// log/log_test.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithWriter(&buf, "warn")

	lg.Debug("debug message")
	lg.Info("info message")
	if buf.Len() != 0 {
		t.Errorf("debug/info records written at warn level: %s", buf.String())
	}

	lg.Warn("something odd", "vessel", "v-1")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d", len(lines))
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["msg"] != "something odd" || rec["vessel"] != "v-1" {
		t.Errorf("unexpected record %v", rec)
	}
	if _, ok := rec["callstack"]; !ok {
		t.Errorf("record is missing callstack")
	}
}

func TestNilLogger(t *testing.T) {
	var lg *Logger
	// None of these should crash.
	lg.Debug("x")
	lg.Infof("%d", 1)
	if lg.With("a", 1) != nil {
		t.Errorf("With on a nil logger should return nil")
	}
}

func TestCallstack(t *testing.T) {
	fr := func() []StackFrame { return Callstack(nil) }()
	if len(fr) == 0 {
		t.Fatalf("empty callstack")
	}
	if !strings.HasSuffix(fr[0].File, "_test.go") {
		t.Errorf("expected first frame in the test file, got %s", fr[0])
	}
}
