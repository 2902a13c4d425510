package main

import (
	"testing"

	"github.com/sliminality/wasm-trace/internal/tracer"
)

func TestReplayRecordsWithinCapacity(t *testing.T) {
	records := []tracer.Record{
		{Kind: tracer.KindFunctionCall, Data: 1},
		{Kind: tracer.KindFunctionReturnVoid, Data: tracer.VoidValue},
	}
	rec, err := replayRecords(records, 8, func(id uint32) string { return "main" })
	if err != nil {
		t.Fatalf("replayRecords: %v", err)
	}
	got := rec.Entries()
	if len(got) != 2 || got[0] != "entering function main" || got[1] != "exiting function main" {
		t.Fatalf("entries = %v", got)
	}
}

func TestReplayRecordsRingCutoff(t *testing.T) {
	// Four records through a capacity-2 ring: only the newest pair
	// survives, as it would have inside the instrumented module.
	records := []tracer.Record{
		{Kind: tracer.KindFunctionCall, Data: 1},
		{Kind: tracer.KindFunctionReturnValue, Data: 10},
		{Kind: tracer.KindFunctionCall, Data: 2},
		{Kind: tracer.KindFunctionReturnValue, Data: 20},
	}
	rec, err := replayRecords(records, 2, nil)
	if err != nil {
		t.Fatalf("replayRecords: %v", err)
	}
	got := rec.Entries()
	if len(got) != 2 || got[0] != "entering function #2" || got[1] != "exiting function #2" {
		t.Fatalf("entries = %v", got)
	}
}
