package tracer

import (
	"fmt"
	"io"
	"sync"
)

// The two trace entry prefixes. These are load-bearing output: hosts
// and tests match on them verbatim.
const (
	enterPrefix = "entering function "
	exitPrefix  = "exiting function "
)

// Recorder is an ordered, append-only buffer of trace entries.
// Recording never fails and accepts any name, including "".
// The zero value is ready to use. Safe for concurrent use; under
// concurrent callers the entry order is lock acquisition order.
type Recorder struct {
	mu      sync.Mutex
	entries []string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordEntry appends "entering function <name>".
func (r *Recorder) RecordEntry(name string) {
	r.append(enterPrefix + name)
}

// RecordExit appends "exiting function <name>".
func (r *Recorder) RecordExit(name string) {
	r.append(exitPrefix + name)
}

func (r *Recorder) append(entry string) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// Len returns the number of recorded entries. Exactly one entry exists
// per recording call.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a snapshot of all entries in recording order.
// The returned slice is a copy.
func (r *Recorder) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out
}

// WriteTo writes every entry as one line to w.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range r.Entries() {
		n, err := fmt.Fprintln(w, e)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
