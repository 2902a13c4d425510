// Package wasm decodes and re-encodes WebAssembly binary modules.
//
// Only the sections the instrumentation pass needs are parsed (type,
// import, function, export, code); everything else round-trips as raw
// bytes. The code section is the only section that may be modified.
package wasm

import (
	"fmt"
	"io"

	"fortio.org/safecast"
)

// section is one raw section in file order.
type section struct {
	id   sectionID
	data []byte
}

// Module is a decoded WebAssembly module.
type Module struct {
	sections []section

	Types   []FuncType
	Imports []Import
	Exports []Export
	// Bodies are the code-section entries, aligned with the function
	// section. Mutating a body changes what Encode writes out.
	Bodies []*FuncBody

	funcTypeIdxs []uint32
	names        map[uint32]string
}

// NumImportedFuncs counts imported functions. Imported functions come
// first in the function index space.
func (m *Module) NumImportedFuncs() uint32 {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Kind == ExtFunction {
			n++
		}
	}
	return n
}

// NumOwnFuncs counts functions defined by the module itself.
func (m *Module) NumOwnFuncs() uint32 {
	return uint32(len(m.funcTypeIdxs))
}

// NumFuncs is the size of the function index space.
func (m *Module) NumFuncs() uint32 {
	return m.NumImportedFuncs() + m.NumOwnFuncs()
}

// FunctionName resolves a function index to its export name.
// Imported functions are named by their import field.
func (m *Module) FunctionName(id uint32) (string, bool) {
	if name, ok := m.names[id]; ok {
		return name, true
	}
	if id < m.NumImportedFuncs() {
		f, err := m.Function(id)
		if err != nil {
			return "", false
		}
		return f.Name, f.Name != ""
	}
	return "", false
}

// TypeOf returns the signature of the function at the given index in
// the function index space.
func (m *Module) TypeOf(id uint32) (FuncType, error) {
	f, err := m.Function(id)
	if err != nil {
		return FuncType{}, err
	}
	return f.Type, nil
}

// Function returns the function at the given index in the function
// index space.
func (m *Module) Function(id uint32) (Function, error) {
	imported := m.NumImportedFuncs()
	if id < imported {
		var seen uint32
		for _, imp := range m.Imports {
			if imp.Kind != ExtFunction {
				continue
			}
			if seen == id {
				ty, err := m.typeAt(imp.TypeIndex)
				if err != nil {
					return Function{}, fmt.Errorf("imported function %s.%s: %w", imp.Module, imp.Field, err)
				}
				return Function{Index: id, Name: imp.Field, Type: ty, Imported: true}, nil
			}
			seen++
		}
	}
	own := id - imported
	if id < imported || own >= m.NumOwnFuncs() {
		return Function{}, fmt.Errorf("function index %d out of range (have %d)", id, m.NumFuncs())
	}
	ty, err := m.typeAt(m.funcTypeIdxs[own])
	if err != nil {
		return Function{}, fmt.Errorf("function %d: %w", id, err)
	}
	name, _ := m.FunctionName(id)
	return Function{Index: id, Name: name, Type: ty, Body: m.Bodies[own]}, nil
}

// Functions materializes the whole function index space: imported
// functions first in import-section order, then the module's own.
func (m *Module) Functions() ([]Function, error) {
	funcs := make([]Function, 0, m.NumFuncs())
	for id := uint32(0); id < m.NumFuncs(); id++ {
		f, err := m.Function(id)
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, f)
	}
	return funcs, nil
}

func (m *Module) typeAt(idx uint32) (FuncType, error) {
	i, err := safecast.Conv[int](idx)
	if err != nil || i >= len(m.Types) {
		return FuncType{}, fmt.Errorf("type index %d out of range (have %d)", idx, len(m.Types))
	}
	return m.Types[i], nil
}

// Function is one entry of the function index space.
type Function struct {
	Index    uint32
	Name     string // export or import field name, "" if anonymous
	Type     FuncType
	Imported bool
	Body     *FuncBody // nil for imports
}

// String renders the function header and its instruction listing,
// one instruction per indented line.
func (f Function) String() string {
	source := "func"
	if f.Imported {
		source = "import"
	}
	head := fmt.Sprintf("#%d", f.Index)
	if f.Name != "" {
		head += " " + f.Name
	}
	s := fmt.Sprintf("%s %s : %s\n", source, head, f.Type)
	if f.Body != nil {
		for _, in := range f.Body.Code {
			s += "\t" + in.String() + "\n"
		}
	}
	return s
}

// PrintFunctions writes the listing of every function in the index
// space to w.
func (m *Module) PrintFunctions(w io.Writer) error {
	funcs, err := m.Functions()
	if err != nil {
		return err
	}
	for _, f := range funcs {
		if _, err := fmt.Fprintln(w, f); err != nil {
			return err
		}
	}
	return nil
}
