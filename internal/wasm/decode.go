package wasm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"fortio.org/safecast"
)

var wasmMagic = [4]byte{0x00, 0x61, 0x73, 0x6D}

// BinaryVersion is the wasm binary format version this codec speaks.
const BinaryVersion uint32 = 1

// reader walks a byte slice and tracks the absolute offset for errors.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n uint32) ([]byte, error) {
	count, err := safecast.Conv[int](n)
	if err != nil {
		return nil, err
	}
	if r.pos+count > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+count]
	r.pos += count
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) name() (string, error) {
	n, err := readVarU32(r)
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("name is not valid UTF-8")
	}
	return string(b), nil
}

func (r *reader) errorf(format string, args ...any) error {
	return fmt.Errorf("offset 0x%x: %s", r.pos, fmt.Sprintf(format, args...))
}

// Decode reads a binary module from r.
func Decode(src io.Reader) (*Module, error) {
	buf, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	return decode(buf)
}

// DecodeFile reads a binary module from the file at path.
func DecodeFile(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open module: %w", err)
	}
	defer f.Close()
	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func decode(buf []byte) (*Module, error) {
	r := &reader{buf: buf}

	magic, err := r.bytes(4)
	if err != nil {
		return nil, r.errorf("truncated header")
	}
	if [4]byte(magic) != wasmMagic {
		return nil, fmt.Errorf("not a wasm module (bad magic % x)", magic)
	}
	version, err := r.u32()
	if err != nil {
		return nil, r.errorf("truncated header")
	}
	if version != BinaryVersion {
		return nil, fmt.Errorf("unsupported wasm version %d", version)
	}

	m := &Module{names: make(map[uint32]string)}

	var prevID sectionID
	for r.pos < len(r.buf) {
		idByte, err := r.ReadByte()
		if err != nil {
			return nil, r.errorf("truncated section id")
		}
		id := sectionID(idByte)
		if id > secData {
			return nil, r.errorf("unknown section id %d", id)
		}
		if id != secCustom {
			if id <= prevID && prevID != 0 {
				return nil, r.errorf("section %d out of order", id)
			}
			prevID = id
		}
		size, err := readVarU32(r)
		if err != nil {
			return nil, r.errorf("section %d size: %v", id, err)
		}
		payload, err := r.bytes(size)
		if err != nil {
			return nil, r.errorf("section %d truncated", id)
		}
		m.sections = append(m.sections, section{id: id, data: payload})

		sr := &reader{buf: payload}
		switch id {
		case secType:
			err = decodeTypeSection(sr, m)
		case secImport:
			err = decodeImportSection(sr, m)
		case secFunction:
			err = decodeFunctionSection(sr, m)
		case secExport:
			err = decodeExportSection(sr, m)
		case secCode:
			err = decodeCodeSection(sr, m)
		}
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
	}

	if len(m.Bodies) != len(m.funcTypeIdxs) {
		return nil, fmt.Errorf("function section has %d entries but code section has %d bodies",
			len(m.funcTypeIdxs), len(m.Bodies))
	}

	for _, exp := range m.Exports {
		if exp.Kind == ExtFunction {
			m.names[exp.Index] = exp.Name
		}
	}
	return m, nil
}

func decodeTypeSection(r *reader, m *Module) error {
	count, err := readVarU32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return r.errorf("type %d: %v", i, err)
		}
		if form != 0x60 {
			return r.errorf("type %d: unexpected form 0x%02x", i, form)
		}
		params, err := decodeValTypeVec(r)
		if err != nil {
			return fmt.Errorf("type %d params: %w", i, err)
		}
		results, err := decodeValTypeVec(r)
		if err != nil {
			return fmt.Errorf("type %d results: %w", i, err)
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
	}
	return nil
}

func decodeValTypeVec(r *reader) ([]ValueType, error) {
	count, err := readVarU32(r)
	if err != nil {
		return nil, err
	}
	var types []ValueType
	for i := uint32(0); i < count; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		vt := ValueType(b)
		if !vt.valid() {
			return nil, r.errorf("invalid value type 0x%02x", b)
		}
		types = append(types, vt)
	}
	return types, nil
}

func decodeImportSection(r *reader, m *Module) error {
	count, err := readVarU32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		mod, err := r.name()
		if err != nil {
			return fmt.Errorf("import %d module: %w", i, err)
		}
		field, err := r.name()
		if err != nil {
			return fmt.Errorf("import %d field: %w", i, err)
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("import %d kind: %w", i, err)
		}
		imp := Import{Module: mod, Field: field, Kind: ExternalKind(kindByte)}
		switch imp.Kind {
		case ExtFunction:
			imp.TypeIndex, err = readVarU32(r)
		case ExtTable:
			err = skipTableType(r)
		case ExtMemory:
			err = skipLimits(r)
		case ExtGlobal:
			err = skipGlobalType(r)
		default:
			return r.errorf("import %d: unknown kind 0x%02x", i, kindByte)
		}
		if err != nil {
			return fmt.Errorf("import %d (%s.%s): %w", i, mod, field, err)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func skipLimits(r *reader) error {
	flags, err := r.ReadByte()
	if err != nil {
		return err
	}
	if _, err := readVarU32(r); err != nil {
		return err
	}
	if flags&0x01 != 0 {
		if _, err := readVarU32(r); err != nil {
			return err
		}
	}
	return nil
}

func skipTableType(r *reader) error {
	if _, err := r.ReadByte(); err != nil { // element type
		return err
	}
	return skipLimits(r)
}

func skipGlobalType(r *reader) error {
	if _, err := r.ReadByte(); err != nil { // value type
		return err
	}
	_, err := r.ReadByte() // mutability
	return err
}

func decodeFunctionSection(r *reader, m *Module) error {
	count, err := readVarU32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		tyid, err := readVarU32(r)
		if err != nil {
			return fmt.Errorf("function %d: %w", i, err)
		}
		m.funcTypeIdxs = append(m.funcTypeIdxs, tyid)
	}
	return nil
}

func decodeExportSection(r *reader, m *Module) error {
	count, err := readVarU32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.name()
		if err != nil {
			return fmt.Errorf("export %d name: %w", i, err)
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("export %d kind: %w", i, err)
		}
		idx, err := readVarU32(r)
		if err != nil {
			return fmt.Errorf("export %d index: %w", i, err)
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: ExternalKind(kindByte), Index: idx})
	}
	return nil
}

func decodeCodeSection(r *reader, m *Module) error {
	count, err := readVarU32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		size, err := readVarU32(r)
		if err != nil {
			return fmt.Errorf("body %d size: %w", i, err)
		}
		raw, err := r.bytes(size)
		if err != nil {
			return fmt.Errorf("body %d truncated", i)
		}
		body, err := decodeFuncBody(&reader{buf: raw})
		if err != nil {
			return fmt.Errorf("body %d: %w", i, err)
		}
		m.Bodies = append(m.Bodies, body)
	}
	return nil
}

func decodeFuncBody(r *reader) (*FuncBody, error) {
	localCount, err := readVarU32(r)
	if err != nil {
		return nil, fmt.Errorf("local declarations: %w", err)
	}
	body := &FuncBody{}
	for i := uint32(0); i < localCount; i++ {
		n, err := readVarU32(r)
		if err != nil {
			return nil, fmt.Errorf("local group %d: %w", i, err)
		}
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("local group %d type: %w", i, err)
		}
		vt := ValueType(b)
		if !vt.valid() {
			return nil, r.errorf("local group %d: invalid value type 0x%02x", i, b)
		}
		body.Locals = append(body.Locals, LocalEntry{Count: n, Type: vt})
	}

	for r.pos < len(r.buf) {
		in, err := decodeInstr(r)
		if err != nil {
			return nil, err
		}
		body.Code = append(body.Code, in)
	}
	if n := len(body.Code); n == 0 || body.Code[n-1].Op != OpEnd {
		return nil, fmt.Errorf("body does not end with end")
	}
	return body, nil
}

func decodeInstr(r *reader) (Instr, error) {
	at := r.pos
	b, err := r.ReadByte()
	if err != nil {
		return Instr{}, fmt.Errorf("offset 0x%x: truncated instruction", at)
	}
	op := Opcode(b)
	if !validOpcode(op) {
		return Instr{}, fmt.Errorf("offset 0x%x: unknown opcode 0x%02x", at, b)
	}
	in := Instr{Op: op}

	switch opImmKind(op) {
	case immNone:
		// no immediates
	case immBlockType:
		bt, err := r.ReadByte()
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: block type: %w", at, err)
		}
		if bt != BlockTypeEmpty && !ValueType(bt).valid() {
			return Instr{}, fmt.Errorf("offset 0x%x: unsupported block type 0x%02x", at, bt)
		}
		in.Arg = int64(bt)
	case immLabel, immIndex:
		v, err := readVarU32(r)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: %s immediate: %w", at, in.Name(), err)
		}
		in.Arg = int64(v)
	case immBrTable:
		count, err := readVarU32(r)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: br_table: %w", at, err)
		}
		for i := uint32(0); i < count; i++ {
			l, err := readVarU32(r)
			if err != nil {
				return Instr{}, fmt.Errorf("offset 0x%x: br_table target %d: %w", at, i, err)
			}
			in.Labels = append(in.Labels, l)
		}
		def, err := readVarU32(r)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: br_table default: %w", at, err)
		}
		in.Arg = int64(def)
	case immCallIndirect:
		tyid, err := readVarU32(r)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: call_indirect type: %w", at, err)
		}
		table, err := readVarU32(r)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: call_indirect table: %w", at, err)
		}
		in.Arg, in.Arg2 = int64(tyid), int64(table)
	case immMemArg:
		align, err := readVarU32(r)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: memarg align: %w", at, err)
		}
		offset, err := readVarU32(r)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: memarg offset: %w", at, err)
		}
		in.Arg, in.Arg2 = int64(align), int64(offset)
	case immMemIdx:
		v, err := readVarU32(r)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: memory index: %w", at, err)
		}
		in.Arg = int64(v)
	case immI32:
		v, err := readVarS32(r)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: i32.const: %w", at, err)
		}
		in.Arg = int64(v)
	case immI64:
		v, err := readVarS64(r)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: i64.const: %w", at, err)
		}
		in.Arg = v
	case immF32:
		b, err := r.bytes(4)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: f32.const: %w", at, err)
		}
		in.Arg = int64(binary.LittleEndian.Uint32(b))
	case immF64:
		b, err := r.bytes(8)
		if err != nil {
			return Instr{}, fmt.Errorf("offset 0x%x: f64.const: %w", at, err)
		}
		in.Arg = int64(binary.LittleEndian.Uint64(b))
	case immMisc:
		if err := decodeMiscInstr(r, &in, at); err != nil {
			return Instr{}, err
		}
	}
	return in, nil
}

func decodeMiscInstr(r *reader, in *Instr, at int) error {
	sub, err := readVarU32(r)
	if err != nil {
		return fmt.Errorf("offset 0x%x: 0xfc sub-opcode: %w", at, err)
	}
	in.Sub = sub
	if _, ok := miscNames[sub]; !ok {
		return fmt.Errorf("offset 0x%x: unknown 0xfc sub-opcode %d", at, sub)
	}

	readArgs := func(n int) error {
		for i := 0; i < n; i++ {
			v, err := readVarU32(r)
			if err != nil {
				return fmt.Errorf("offset 0x%x: %s immediate %d: %w", at, in.Name(), i, err)
			}
			if i == 0 {
				in.Arg = int64(v)
			} else {
				in.Arg2 = int64(v)
			}
		}
		return nil
	}

	switch sub {
	case miscMemoryInit, miscMemoryCopy, miscTableInit, miscTableCopy:
		return readArgs(2)
	case miscDataDrop, miscMemoryFill, miscElemDrop,
		miscTableGrow, miscTableSize, miscTableFill:
		return readArgs(1)
	default:
		// saturating truncations carry no immediates
		return nil
	}
}
