package wasm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fortio.org/safecast"
)

// Encode writes the module back out in binary form. Sections that were
// never parsed are emitted byte-for-byte as read; the code section is
// re-encoded from Bodies so instrumentation changes take effect.
func (m *Module) Encode(w io.Writer) error {
	out := make([]byte, 0, 8)
	out = append(out, wasmMagic[:]...)
	out = binary.LittleEndian.AppendUint32(out, BinaryVersion)

	for _, sec := range m.sections {
		data := sec.data
		if sec.id == secCode {
			encoded, err := m.encodeCodeSection()
			if err != nil {
				return err
			}
			data = encoded
		}
		out = append(out, byte(sec.id))
		size, err := safecast.Conv[uint32](len(data))
		if err != nil {
			return fmt.Errorf("section %d too large: %w", sec.id, err)
		}
		out = appendVarU32(out, size)
		out = append(out, data...)
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write module: %w", err)
	}
	return nil
}

// EncodeFile writes the module to path, replacing any existing file
// atomically.
func (m *Module) EncodeFile(path string) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "tmp-*.wasm")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(f.Name())

	if err := m.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return os.Rename(f.Name(), path)
}

func (m *Module) encodeCodeSection() ([]byte, error) {
	count, err := safecast.Conv[uint32](len(m.Bodies))
	if err != nil {
		return nil, err
	}
	out := appendVarU32(nil, count)
	for i, body := range m.Bodies {
		encoded, err := encodeFuncBody(body)
		if err != nil {
			return nil, fmt.Errorf("body %d: %w", i, err)
		}
		size, err := safecast.Conv[uint32](len(encoded))
		if err != nil {
			return nil, fmt.Errorf("body %d too large: %w", i, err)
		}
		out = appendVarU32(out, size)
		out = append(out, encoded...)
	}
	return out, nil
}

func encodeFuncBody(body *FuncBody) ([]byte, error) {
	count, err := safecast.Conv[uint32](len(body.Locals))
	if err != nil {
		return nil, err
	}
	out := appendVarU32(nil, count)
	for _, l := range body.Locals {
		out = appendVarU32(out, l.Count)
		out = append(out, byte(l.Type))
	}
	for i, in := range body.Code {
		out, err = appendInstr(out, in)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	return out, nil
}

func appendInstr(dst []byte, in Instr) ([]byte, error) {
	if !validOpcode(in.Op) {
		return nil, fmt.Errorf("unknown opcode 0x%02x", byte(in.Op))
	}
	dst = append(dst, byte(in.Op))

	argU32 := func() (uint32, error) {
		return safecast.Conv[uint32](in.Arg)
	}

	switch opImmKind(in.Op) {
	case immNone:
		return dst, nil
	case immBlockType:
		return append(dst, byte(in.Arg)), nil
	case immLabel, immIndex, immMemIdx:
		v, err := argU32()
		if err != nil {
			return nil, fmt.Errorf("%s immediate: %w", in.Name(), err)
		}
		return appendVarU32(dst, v), nil
	case immBrTable:
		count, err := safecast.Conv[uint32](len(in.Labels))
		if err != nil {
			return nil, err
		}
		dst = appendVarU32(dst, count)
		for _, l := range in.Labels {
			dst = appendVarU32(dst, l)
		}
		def, err := argU32()
		if err != nil {
			return nil, fmt.Errorf("br_table default: %w", err)
		}
		return appendVarU32(dst, def), nil
	case immCallIndirect:
		tyid, err := argU32()
		if err != nil {
			return nil, fmt.Errorf("call_indirect type: %w", err)
		}
		table, err := safecast.Conv[uint32](in.Arg2)
		if err != nil {
			return nil, fmt.Errorf("call_indirect table: %w", err)
		}
		dst = appendVarU32(dst, tyid)
		return appendVarU32(dst, table), nil
	case immMemArg:
		align, err := argU32()
		if err != nil {
			return nil, fmt.Errorf("memarg align: %w", err)
		}
		offset, err := safecast.Conv[uint32](in.Arg2)
		if err != nil {
			return nil, fmt.Errorf("memarg offset: %w", err)
		}
		dst = appendVarU32(dst, align)
		return appendVarU32(dst, offset), nil
	case immI32:
		v, err := safecast.Conv[int32](in.Arg)
		if err != nil {
			return nil, fmt.Errorf("i32.const: %w", err)
		}
		return appendVarS32(dst, v), nil
	case immI64:
		return appendVarS64(dst, in.Arg), nil
	case immF32:
		v, err := safecast.Conv[uint32](in.Arg)
		if err != nil {
			return nil, fmt.Errorf("f32.const bits: %w", err)
		}
		return binary.LittleEndian.AppendUint32(dst, v), nil
	case immF64:
		return binary.LittleEndian.AppendUint64(dst, uint64(in.Arg)), nil
	case immMisc:
		return appendMiscInstr(dst, in)
	default:
		return dst, nil
	}
}

func appendMiscInstr(dst []byte, in Instr) ([]byte, error) {
	if _, ok := miscNames[in.Sub]; !ok {
		return nil, fmt.Errorf("unknown 0xfc sub-opcode %d", in.Sub)
	}
	dst = appendVarU32(dst, in.Sub)

	appendArgs := func(n int) ([]byte, error) {
		args := [2]int64{in.Arg, in.Arg2}
		for i := 0; i < n; i++ {
			v, err := safecast.Conv[uint32](args[i])
			if err != nil {
				return nil, fmt.Errorf("%s immediate %d: %w", in.Name(), i, err)
			}
			dst = appendVarU32(dst, v)
		}
		return dst, nil
	}

	switch in.Sub {
	case miscMemoryInit, miscMemoryCopy, miscTableInit, miscTableCopy:
		return appendArgs(2)
	case miscDataDrop, miscMemoryFill, miscElemDrop,
		miscTableGrow, miscTableSize, miscTableFill:
		return appendArgs(1)
	default:
		return dst, nil
	}
}
