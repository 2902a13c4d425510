package wasm

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// Binary fixtures are assembled by hand. The four-function module
// mirrors a small C++ compilation unit:
//
//	add(a, b)   -> a + b
//	add1(a)     -> add(a, a) + a
//	halve(x)    -> x * 0.5
//	doubler(a)  -> a << 1
func buildFourFunctionModule(t *testing.T) []byte {
	t.Helper()
	halfBits := math.Float64bits(0.5)
	return buildModule(
		sectionBytes(secType, vecBytes(
			funcTypeBytes([]ValueType{ValI32, ValI32}, []ValueType{ValI32}),
			funcTypeBytes([]ValueType{ValI32}, []ValueType{ValI32}),
			funcTypeBytes([]ValueType{ValF64}, []ValueType{ValF64}),
		)),
		sectionBytes(secFunction, vecBytes(
			appendVarU32(nil, 0),
			appendVarU32(nil, 1),
			appendVarU32(nil, 2),
			appendVarU32(nil, 1),
		)),
		sectionBytes(secExport, vecBytes(
			exportBytes("_Z3addii", ExtFunction, 0),
			exportBytes("_Z4add1i", ExtFunction, 1),
			exportBytes("_Z5halved", ExtFunction, 2),
			exportBytes("_Z7doubleri", ExtFunction, 3),
		)),
		sectionBytes(secCode, vecBytes(
			bodyBytes(t, nil, LocalGet(1), LocalGet(0), Instr{Op: 0x6A}, End()),
			bodyBytes(t, nil, LocalGet(0), LocalGet(0), Call(0), LocalGet(0), Instr{Op: 0x6A}, End()),
			bodyBytes(t, nil, LocalGet(0), F64Const(halfBits), Instr{Op: 0xA2}, End()),
			bodyBytes(t, nil, LocalGet(0), I32Const(1), Instr{Op: 0x74}, End()),
		)),
	)
}

func buildModule(sections ...[]byte) []byte {
	out := append([]byte{}, wasmMagic[:]...)
	out = binary.LittleEndian.AppendUint32(out, BinaryVersion)
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

func sectionBytes(id sectionID, payload []byte) []byte {
	out := []byte{byte(id)}
	out = appendVarU32(out, uint32(len(payload)))
	return append(out, payload...)
}

func vecBytes(items ...[]byte) []byte {
	out := appendVarU32(nil, uint32(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func funcTypeBytes(params, results []ValueType) []byte {
	out := []byte{0x60}
	out = appendVarU32(out, uint32(len(params)))
	for _, p := range params {
		out = append(out, byte(p))
	}
	out = appendVarU32(out, uint32(len(results)))
	for _, r := range results {
		out = append(out, byte(r))
	}
	return out
}

func nameBytes(s string) []byte {
	out := appendVarU32(nil, uint32(len(s)))
	return append(out, s...)
}

func exportBytes(name string, kind ExternalKind, idx uint32) []byte {
	out := nameBytes(name)
	out = append(out, byte(kind))
	return appendVarU32(out, idx)
}

func importFuncBytes(module, field string, tyidx uint32) []byte {
	out := nameBytes(module)
	out = append(out, nameBytes(field)...)
	out = append(out, byte(ExtFunction))
	return appendVarU32(out, tyidx)
}

func bodyBytes(t *testing.T, locals []LocalEntry, code ...Instr) []byte {
	t.Helper()
	encoded, err := encodeFuncBody(&FuncBody{Locals: locals, Code: code})
	if err != nil {
		t.Fatalf("encodeFuncBody: %v", err)
	}
	out := appendVarU32(nil, uint32(len(encoded)))
	return append(out, encoded...)
}

func TestDecodeRawBody(t *testing.T) {
	// add(a, b) body written out byte by byte:
	// no locals, local.get 1, local.get 0, i32.add, end
	raw := []byte{0x00, 0x20, 0x01, 0x20, 0x00, 0x6A, 0x0B}
	body, err := decodeFuncBody(&reader{buf: raw})
	if err != nil {
		t.Fatalf("decodeFuncBody: %v", err)
	}
	want := []Instr{LocalGet(1), LocalGet(0), {Op: 0x6A}, End()}
	if len(body.Code) != len(want) {
		t.Fatalf("decoded %d instructions, want %d", len(body.Code), len(want))
	}
	for i := range want {
		if !body.Code[i].Equal(want[i]) {
			t.Fatalf("instruction %d = %v, want %v", i, body.Code[i], want[i])
		}
	}
}

func TestDecodeFunctionNames(t *testing.T) {
	m, err := Decode(bytes.NewReader(buildFourFunctionModule(t)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	expected := map[uint32]string{
		0: "_Z3addii",
		1: "_Z4add1i",
		2: "_Z5halved",
		3: "_Z7doubleri",
	}
	for id, want := range expected {
		got, ok := m.FunctionName(id)
		if !ok || got != want {
			t.Fatalf("FunctionName(%d) = %q, %v; want %q", id, got, ok, want)
		}
	}
}

func TestCountFunctions(t *testing.T) {
	m, err := Decode(bytes.NewReader(buildFourFunctionModule(t)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.NumFuncs() != 4 {
		t.Fatalf("NumFuncs = %d, want 4", m.NumFuncs())
	}
	if m.NumImportedFuncs() != 0 || m.NumOwnFuncs() != 4 {
		t.Fatalf("imported/own = %d/%d, want 0/4", m.NumImportedFuncs(), m.NumOwnFuncs())
	}
	funcs, err := m.Functions()
	if err != nil {
		t.Fatalf("Functions: %v", err)
	}
	if len(funcs) != 4 {
		t.Fatalf("len(Functions()) = %d, want 4", len(funcs))
	}
}

func TestListInstructions(t *testing.T) {
	m, err := Decode(bytes.NewReader(buildFourFunctionModule(t)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	halfBits := math.Float64bits(0.5)
	expected := [][]Instr{
		{LocalGet(1), LocalGet(0), {Op: 0x6A}, End()},
		{LocalGet(0), LocalGet(0), Call(0), LocalGet(0), {Op: 0x6A}, End()},
		{LocalGet(0), F64Const(halfBits), {Op: 0xA2}, End()},
		{LocalGet(0), I32Const(1), {Op: 0x74}, End()},
	}
	for i, body := range m.Bodies {
		if len(body.Code) != len(expected[i]) {
			t.Fatalf("body %d has %d instructions, want %d", i, len(body.Code), len(expected[i]))
		}
		for j, in := range body.Code {
			if !in.Equal(expected[i][j]) {
				t.Fatalf("body %d instruction %d = %v, want %v", i, j, in, expected[i][j])
			}
		}
	}
}

func TestImportsShiftIndexSpace(t *testing.T) {
	// printf comes in as an import, so the module's own function sits
	// at index 1.
	bin := buildModule(
		sectionBytes(secType, vecBytes(
			funcTypeBytes([]ValueType{ValI32}, []ValueType{ValI32}),
			funcTypeBytes(nil, nil),
		)),
		sectionBytes(secImport, vecBytes(
			importFuncBytes("env", "printf", 0),
		)),
		sectionBytes(secFunction, vecBytes(appendVarU32(nil, 1))),
		sectionBytes(secExport, vecBytes(exportBytes("_Z2hiv", ExtFunction, 1))),
		sectionBytes(secCode, vecBytes(bodyBytes(t, nil, End()))),
	)
	m, err := Decode(bytes.NewReader(bin))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.NumImportedFuncs() != 1 || m.NumFuncs() != 2 {
		t.Fatalf("imported/total = %d/%d, want 1/2", m.NumImportedFuncs(), m.NumFuncs())
	}
	f0, err := m.Function(0)
	if err != nil {
		t.Fatalf("Function(0): %v", err)
	}
	if !f0.Imported || f0.Name != "printf" || f0.Body != nil {
		t.Fatalf("function 0 = %+v, want imported printf without body", f0)
	}
	f1, err := m.Function(1)
	if err != nil {
		t.Fatalf("Function(1): %v", err)
	}
	if f1.Imported || f1.Name != "_Z2hiv" {
		t.Fatalf("function 1 = %+v, want own _Z2hiv", f1)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := buildFourFunctionModule(t)
	m, err := Decode(bytes.NewReader(original))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), original) {
		t.Fatalf("re-encoded module differs from original\n got % x\nwant % x", buf.Bytes(), original)
	}

	again, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode(re-encoded): %v", err)
	}
	if again.NumFuncs() != m.NumFuncs() {
		t.Fatalf("re-decoded NumFuncs = %d, want %d", again.NumFuncs(), m.NumFuncs())
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte{0x00, 0x61, 0x73, 0x6E, 1, 0, 0, 0})); err == nil {
		t.Fatalf("expected bad magic error")
	}
}

func TestDecodeRejectsUnknownOpcode(t *testing.T) {
	bin := buildModule(
		sectionBytes(secType, vecBytes(funcTypeBytes(nil, nil))),
		sectionBytes(secFunction, vecBytes(appendVarU32(nil, 0))),
		sectionBytes(secCode, vecBytes(func() []byte {
			raw := []byte{0x00, 0xFE, 0x0B} // 0xFE is not a valid opcode
			out := appendVarU32(nil, uint32(len(raw)))
			return append(out, raw...)
		}())),
	)
	if _, err := Decode(bytes.NewReader(bin)); err == nil {
		t.Fatalf("expected unknown opcode error")
	}
}

func TestFunctionString(t *testing.T) {
	m, err := Decode(bytes.NewReader(buildFourFunctionModule(t)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	f, err := m.Function(3)
	if err != nil {
		t.Fatalf("Function(3): %v", err)
	}
	want := "func #3 _Z7doubleri : i32 -> i32\n\tlocal.get 0\n\ti32.const 1\n\ti32.shl\n\tend\n"
	if got := f.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
