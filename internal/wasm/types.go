package wasm

import "fmt"

// ValueType is a WebAssembly value type as encoded in the binary format.
type ValueType byte

const (
	ValI32 ValueType = 0x7F
	ValI64 ValueType = 0x7E
	ValF32 ValueType = 0x7D
	ValF64 ValueType = 0x7C
)

// String returns the text-format name of the value type.
func (v ValueType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	default:
		return fmt.Sprintf("valtype(0x%02x)", byte(v))
	}
}

func (v ValueType) valid() bool {
	switch v {
	case ValI32, ValI64, ValF32, ValF64:
		return true
	}
	return false
}

// FuncType is a function signature from the type section.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

// Result returns the single result type, or false for a void signature.
// Multi-value signatures are rejected at decode time for instrumentation,
// but tolerated here.
func (t FuncType) Result() (ValueType, bool) {
	if len(t.Results) == 0 {
		return 0, false
	}
	return t.Results[0], true
}

// String renders the signature like "i32 i32 -> i32".
func (t FuncType) String() string {
	s := ""
	for _, p := range t.Params {
		s += p.String() + " "
	}
	s += "->"
	if len(t.Results) == 0 {
		return s + " ()"
	}
	for _, r := range t.Results {
		s += " " + r.String()
	}
	return s
}

// Section IDs from the binary format.
type sectionID byte

const (
	secCustom   sectionID = 0
	secType     sectionID = 1
	secImport   sectionID = 2
	secFunction sectionID = 3
	secTable    sectionID = 4
	secMemory   sectionID = 5
	secGlobal   sectionID = 6
	secExport   sectionID = 7
	secStart    sectionID = 8
	secElement  sectionID = 9
	secCode     sectionID = 10
	secData     sectionID = 11
)

// ExternalKind classifies imports and exports.
type ExternalKind byte

const (
	ExtFunction ExternalKind = 0
	ExtTable    ExternalKind = 1
	ExtMemory   ExternalKind = 2
	ExtGlobal   ExternalKind = 3
)

// String returns the text-format name of the external kind.
func (k ExternalKind) String() string {
	switch k {
	case ExtFunction:
		return "func"
	case ExtTable:
		return "table"
	case ExtMemory:
		return "memory"
	case ExtGlobal:
		return "global"
	default:
		return fmt.Sprintf("external(0x%02x)", byte(k))
	}
}

// Import is one entry of the import section.
// Only function imports carry a resolved type index.
type Import struct {
	Module string
	Field  string
	Kind   ExternalKind
	// TypeIndex is the index into the type section for ExtFunction imports.
	TypeIndex uint32
}

// Export is one entry of the export section.
type Export struct {
	Name string
	Kind ExternalKind
	// Index is into the corresponding index space. For ExtFunction
	// exports this is the function index space, not the type section.
	Index uint32
}

// LocalEntry is a run-length encoded group of locals in a function body.
type LocalEntry struct {
	Count uint32
	Type  ValueType
}

// FuncBody is one entry of the code section.
type FuncBody struct {
	Locals []LocalEntry
	// Code is the body expression including the terminating end.
	Code []Instr
}

// NumLocals returns the number of explicit locals (params excluded).
func (b *FuncBody) NumLocals() uint32 {
	var n uint32
	for _, l := range b.Locals {
		n += l.Count
	}
	return n
}
