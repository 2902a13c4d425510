package tracer

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// Replay walks raw log records in order and turns them into trace
// buffer entries. Call records push the callee onto a stack and record
// an entry; return records pop the stack and record an exit for the
// popped function (return records carry the returned value, not the
// function index, so pairing is positional). A return with no pending
// call is an error; calls still open when the records end are not,
// since the ring may simply have cut off mid-call.
func Replay(records []Record, name func(uint32) string, rec *Recorder) error {
	var stack []uint32
	for i, r := range records {
		switch r.Kind {
		case KindFunctionCall:
			if r.Data < 0 {
				return fmt.Errorf("record %d: negative function index %d", i, r.Data)
			}
			id := uint32(r.Data)
			stack = append(stack, id)
			rec.RecordEntry(resolve(name, id))
		case KindFunctionReturnValue, KindFunctionReturnVoid:
			if len(stack) == 0 {
				return fmt.Errorf("record %d: return with no matching call", i)
			}
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			rec.RecordExit(resolve(name, id))
		default:
			return fmt.Errorf("record %d: unknown entry kind %d", i, int32(r.Kind))
		}
	}
	return nil
}

func resolve(name func(uint32) string, id uint32) string {
	if name != nil {
		if s := name(id); s != "" {
			return s
		}
	}
	return "#" + strconv.FormatUint(uint64(id), 10)
}

// ParseRawLog reads a raw log dump: consecutive little-endian i32
// (kind, data) pairs, the layout a host reads out of the instrumented
// module's linear memory via the tracer exports.
func ParseRawLog(r io.Reader) ([]Record, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("log length %d is not a whole number of records", len(buf))
	}
	records := make([]Record, 0, len(buf)/8)
	for off := 0; off < len(buf); off += 8 {
		kind := int32(binary.LittleEndian.Uint32(buf[off:]))
		data := int32(binary.LittleEndian.Uint32(buf[off+4:]))
		records = append(records, Record{Kind: EntryKind(kind), Data: data})
	}
	return records, nil
}
