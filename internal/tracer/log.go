package tracer

import (
	"fmt"
	"math"
	"sync"
)

// EntryKind is the first operand the instrumented code passes to the
// logger. Values are part of the instrumented module's ABI.
type EntryKind int32

const (
	KindFunctionCall EntryKind = iota
	KindFunctionReturnValue
	KindFunctionReturnVoid
)

// String returns a short name for the kind.
func (k EntryKind) String() string {
	switch k {
	case KindFunctionCall:
		return "call"
	case KindFunctionReturnValue:
		return "return"
	case KindFunctionReturnVoid:
		return "return-void"
	default:
		return fmt.Sprintf("kind(%d)", int32(k))
	}
}

// VoidValue is the data operand logged for void returns, where there is
// no value to capture.
const VoidValue int32 = math.MaxInt32

// DefaultCapacity is the ring capacity used when none is configured.
const DefaultCapacity = 1024

// Record is one raw log record: the (kind, data) operand pair of a
// single logger call. Data is a function index for call records and
// the returned value (or VoidValue) for return records.
type Record struct {
	Kind EntryKind
	Data int32
}

// Log is the host-side mirror of the in-module tracer: a bounded,
// mutex-guarded ring of raw records.
type Log struct {
	mu   sync.Mutex
	ring *Ring[Record]
}

// NewLog creates a Log holding up to capacity records.
func NewLog(capacity int) *Log {
	return &Log{ring: NewRing[Record](capacity)}
}

// Append records one logger call.
func (l *Log) Append(kind EntryKind, data int32) {
	l.mu.Lock()
	l.ring.Push(Record{Kind: kind, Data: data})
	l.mu.Unlock()
}

// Len returns the number of buffered records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Len()
}

// Snapshot returns the buffered records, oldest first.
func (l *Log) Snapshot() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Snapshot()
}

// Replay replays the buffered records into rec, resolving names
// through name. See Replay.
func (l *Log) Replay(name func(uint32) string, rec *Recorder) error {
	return Replay(l.Snapshot(), name, rec)
}
