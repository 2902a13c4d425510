package ui

import "testing"

func TestModuleRowLabel(t *testing.T) {
	tests := []struct {
		row  moduleRow
		want string
	}{
		{moduleRow{state: StatusQueued}, "queued"},
		{moduleRow{state: StatusWorking, stage: StageDecode}, "decoding"},
		{moduleRow{state: StatusWorking, stage: StageInstrument}, "instrumenting"},
		{moduleRow{state: StatusWorking, stage: StageEncode}, "encoding"},
		{moduleRow{state: StatusWorking, stage: StageSidecar}, "writing names"},
		{moduleRow{state: StatusDone, stage: StageEncode}, "done"},
		{moduleRow{state: StatusError, stage: StageDecode}, "error"},
	}
	for _, tt := range tests {
		if got := tt.row.label(); got != tt.want {
			t.Errorf("label(%v/%v) = %q, want %q", tt.row.state, tt.row.stage, got, tt.want)
		}
	}
}

func TestProgressPercent(t *testing.T) {
	m := &progressModel{rows: []moduleRow{
		{state: StatusDone},
		{state: StatusWorking, stage: StageInstrument},
		{state: StatusQueued},
		{state: StatusError},
	}}
	// 1 + 0.5 + 0 + 1 over four modules.
	if got := m.percent(); got != 0.625 {
		t.Fatalf("percent = %v, want 0.625", got)
	}
}

func TestClip(t *testing.T) {
	if got := clip("short.wasm", 20); got != "short.wasm" {
		t.Fatalf("clip = %q", got)
	}
	if got := clip("a/very/long/path/to/module.wasm", 10); len(got) > 10 {
		t.Fatalf("clip did not shorten: %q", got)
	}
	if got := clip("abcdef", 2); got != "ab" {
		t.Fatalf("clip tiny width = %q", got)
	}
}
