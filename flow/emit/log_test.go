package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitterText(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	emitter.Emit(Event{
		RunID:  "run-001",
		NodeID: "gen-1",
		Status: "running",
		Msg:    "node running",
	})

	out := buf.String()
	for _, want := range []string{"[node running]", "runID=run-001", "nodeID=gen-1", "status=running"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLogEmitterTextWithMeta(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	emitter.Emit(Event{
		RunID:  "run-001",
		NodeID: "gen-1",
		Status: "failed",
		Msg:    "node failed",
		Meta:   map[string]interface{}{"error": "backend_unavailable"},
	})

	if !strings.Contains(buf.String(), `meta={"error":"backend_unavailable"}`) {
		t.Errorf("output %q missing meta", buf.String())
	}
}

func TestLogEmitterJSON(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Event{
		RunID:  "run-001",
		NodeID: "gen-1",
		Status: "succeeded",
		Msg:    "node succeeded",
		Meta:   map[string]interface{}{"latency_ms": 42.0},
	})

	line := strings.TrimSpace(buf.String())
	var decoded struct {
		RunID  string                 `json:"runID"`
		NodeID string                 `json:"nodeID"`
		Status string                 `json:"status"`
		Msg    string                 `json:"msg"`
		Meta   map[string]interface{} `json:"meta"`
	}
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, line)
	}
	if decoded.RunID != "run-001" || decoded.NodeID != "gen-1" || decoded.Status != "succeeded" {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Meta["latency_ms"] != 42.0 {
		t.Errorf("meta latency_ms = %v, want 42", decoded.Meta["latency_ms"])
	}
}

func TestLogEmitterJSONLOneEventPerLine(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Event{RunID: "r", Msg: "a"})
	emitter.Emit(Event{RunID: "r", Msg: "b"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
}
