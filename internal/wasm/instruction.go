package wasm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Opcode is a single-byte WebAssembly opcode. Multi-byte opcodes use
// OpPrefixMisc with the sub-opcode in Instr.Sub.
type Opcode byte

const (
	OpUnreachable  Opcode = 0x00
	OpNop          Opcode = 0x01
	OpBlock        Opcode = 0x02
	OpLoop         Opcode = 0x03
	OpIf           Opcode = 0x04
	OpElse         Opcode = 0x05
	OpEnd          Opcode = 0x0B
	OpBr           Opcode = 0x0C
	OpBrIf         Opcode = 0x0D
	OpBrTable      Opcode = 0x0E
	OpReturn       Opcode = 0x0F
	OpCall         Opcode = 0x10
	OpCallIndirect Opcode = 0x11

	OpDrop   Opcode = 0x1A
	OpSelect Opcode = 0x1B

	OpLocalGet  Opcode = 0x20
	OpLocalSet  Opcode = 0x21
	OpLocalTee  Opcode = 0x22
	OpGlobalGet Opcode = 0x23
	OpGlobalSet Opcode = 0x24

	OpI32Load    Opcode = 0x28
	OpI64Load    Opcode = 0x29
	OpF32Load    Opcode = 0x2A
	OpF64Load    Opcode = 0x2B
	OpI32Load8S  Opcode = 0x2C
	OpI32Load8U  Opcode = 0x2D
	OpI32Load16S Opcode = 0x2E
	OpI32Load16U Opcode = 0x2F
	OpI64Load8S  Opcode = 0x30
	OpI64Load8U  Opcode = 0x31
	OpI64Load16S Opcode = 0x32
	OpI64Load16U Opcode = 0x33
	OpI64Load32S Opcode = 0x34
	OpI64Load32U Opcode = 0x35
	OpI32Store   Opcode = 0x36
	OpI64Store   Opcode = 0x37
	OpF32Store   Opcode = 0x38
	OpF64Store   Opcode = 0x39
	OpI32Store8  Opcode = 0x3A
	OpI32Store16 Opcode = 0x3B
	OpI64Store8  Opcode = 0x3C
	OpI64Store16 Opcode = 0x3D
	OpI64Store32 Opcode = 0x3E

	OpMemorySize Opcode = 0x3F
	OpMemoryGrow Opcode = 0x40

	OpI32Const Opcode = 0x41
	OpI64Const Opcode = 0x42
	OpF32Const Opcode = 0x43
	OpF64Const Opcode = 0x44

	OpPrefixMisc Opcode = 0xFC
)

// BlockTypeEmpty is the block type byte for blocks with no result.
const BlockTypeEmpty byte = 0x40

// immKind classifies the immediate operands of an opcode.
type immKind uint8

const (
	immNone immKind = iota
	immBlockType
	immLabel
	immBrTable
	immIndex
	immCallIndirect
	immMemArg
	immMemIdx
	immI32
	immI64
	immF32
	immF64
	immMisc
)

// Instr is one decoded instruction. Immediates are stored in Arg/Arg2
// according to the opcode's immediate class:
//
//	label, index, memarg align  -> Arg
//	memarg offset, table index  -> Arg2
//	i32/i64 consts              -> Arg (sign extended)
//	f32/f64 consts              -> Arg (raw bit pattern)
//	block type                  -> Arg (the raw type byte)
//	br_table                    -> Labels plus default label in Arg
type Instr struct {
	Op     Opcode
	Sub    uint32 // sub-opcode for OpPrefixMisc
	Arg    int64
	Arg2   int64
	Labels []uint32
}

// Constructors for the instructions the instrumentation pass emits and
// the tests build by hand.

func I32Const(v int32) Instr { return Instr{Op: OpI32Const, Arg: int64(v)} }
func I64Const(v int64) Instr { return Instr{Op: OpI64Const, Arg: v} }
func F32Const(bits uint32) Instr {
	return Instr{Op: OpF32Const, Arg: int64(bits)}
}
func F64Const(bits uint64) Instr {
	return Instr{Op: OpF64Const, Arg: int64(bits)}
}
func Call(f uint32) Instr     { return Instr{Op: OpCall, Arg: int64(f)} }
func LocalGet(i uint32) Instr { return Instr{Op: OpLocalGet, Arg: int64(i)} }
func LocalSet(i uint32) Instr { return Instr{Op: OpLocalSet, Arg: int64(i)} }
func LocalTee(i uint32) Instr { return Instr{Op: OpLocalTee, Arg: int64(i)} }
func End() Instr              { return Instr{Op: OpEnd} }
func Return() Instr           { return Instr{Op: OpReturn} }

// Equal reports whether two instructions are identical, immediates included.
func (in Instr) Equal(other Instr) bool {
	if in.Op != other.Op || in.Sub != other.Sub || in.Arg != other.Arg || in.Arg2 != other.Arg2 {
		return false
	}
	if len(in.Labels) != len(other.Labels) {
		return false
	}
	for i := range in.Labels {
		if in.Labels[i] != other.Labels[i] {
			return false
		}
	}
	return true
}

// String renders the instruction in text format, e.g. "local.get 0".
func (in Instr) String() string {
	name := in.Name()
	switch opImmKind(in.Op) {
	case immNone:
		return name
	case immBlockType:
		if byte(in.Arg) == BlockTypeEmpty {
			return name
		}
		return name + " (result " + ValueType(in.Arg).String() + ")"
	case immLabel, immIndex, immMemIdx:
		return name + " " + strconv.FormatInt(in.Arg, 10)
	case immBrTable:
		var sb strings.Builder
		sb.WriteString(name)
		for _, l := range in.Labels {
			fmt.Fprintf(&sb, " %d", l)
		}
		fmt.Fprintf(&sb, " %d", in.Arg)
		return sb.String()
	case immCallIndirect:
		return fmt.Sprintf("%s %d (table %d)", name, in.Arg, in.Arg2)
	case immMemArg:
		return fmt.Sprintf("%s align=%d offset=%d", name, in.Arg, in.Arg2)
	case immI32, immI64:
		return name + " " + strconv.FormatInt(in.Arg, 10)
	case immF32:
		return fmt.Sprintf("%s %g", name, math.Float32frombits(uint32(in.Arg)))
	case immF64:
		return fmt.Sprintf("%s %g", name, math.Float64frombits(uint64(in.Arg)))
	case immMisc:
		return miscString(in)
	default:
		return name
	}
}

// Name returns the mnemonic without immediates.
func (in Instr) Name() string {
	if in.Op == OpPrefixMisc {
		if name, ok := miscNames[in.Sub]; ok {
			return name
		}
		return fmt.Sprintf("misc(0x%x)", in.Sub)
	}
	if name, ok := opNames[in.Op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(0x%02x)", byte(in.Op))
}

func miscString(in Instr) string {
	name := in.Name()
	switch in.Sub {
	case miscMemoryInit, miscTableInit:
		return fmt.Sprintf("%s %d %d", name, in.Arg, in.Arg2)
	case miscDataDrop, miscElemDrop, miscTableGrow, miscTableSize, miscTableFill:
		return fmt.Sprintf("%s %d", name, in.Arg)
	case miscMemoryCopy, miscTableCopy:
		return fmt.Sprintf("%s %d %d", name, in.Arg, in.Arg2)
	case miscMemoryFill:
		return fmt.Sprintf("%s %d", name, in.Arg)
	default:
		return name
	}
}

// Sub-opcodes under the 0xFC prefix.
const (
	miscI32TruncSatF32S uint32 = 0
	miscI32TruncSatF32U uint32 = 1
	miscI32TruncSatF64S uint32 = 2
	miscI32TruncSatF64U uint32 = 3
	miscI64TruncSatF32S uint32 = 4
	miscI64TruncSatF32U uint32 = 5
	miscI64TruncSatF64S uint32 = 6
	miscI64TruncSatF64U uint32 = 7
	miscMemoryInit      uint32 = 8
	miscDataDrop        uint32 = 9
	miscMemoryCopy      uint32 = 10
	miscMemoryFill      uint32 = 11
	miscTableInit       uint32 = 12
	miscElemDrop        uint32 = 13
	miscTableCopy       uint32 = 14
	miscTableGrow       uint32 = 15
	miscTableSize       uint32 = 16
	miscTableFill       uint32 = 17
)

var miscNames = map[uint32]string{
	miscI32TruncSatF32S: "i32.trunc_sat_f32_s",
	miscI32TruncSatF32U: "i32.trunc_sat_f32_u",
	miscI32TruncSatF64S: "i32.trunc_sat_f64_s",
	miscI32TruncSatF64U: "i32.trunc_sat_f64_u",
	miscI64TruncSatF32S: "i64.trunc_sat_f32_s",
	miscI64TruncSatF32U: "i64.trunc_sat_f32_u",
	miscI64TruncSatF64S: "i64.trunc_sat_f64_s",
	miscI64TruncSatF64U: "i64.trunc_sat_f64_u",
	miscMemoryInit:      "memory.init",
	miscDataDrop:        "data.drop",
	miscMemoryCopy:      "memory.copy",
	miscMemoryFill:      "memory.fill",
	miscTableInit:       "table.init",
	miscElemDrop:        "elem.drop",
	miscTableCopy:       "table.copy",
	miscTableGrow:       "table.grow",
	miscTableSize:       "table.size",
	miscTableFill:       "table.fill",
}

// opImmKind returns the immediate class for a single-byte opcode.
func opImmKind(op Opcode) immKind {
	switch {
	case op == OpBlock || op == OpLoop || op == OpIf:
		return immBlockType
	case op == OpBr || op == OpBrIf:
		return immLabel
	case op == OpBrTable:
		return immBrTable
	case op == OpCall || (op >= OpLocalGet && op <= OpGlobalSet):
		return immIndex
	case op == OpCallIndirect:
		return immCallIndirect
	case op >= OpI32Load && op <= OpI64Store32:
		return immMemArg
	case op == OpMemorySize || op == OpMemoryGrow:
		return immMemIdx
	case op == OpI32Const:
		return immI32
	case op == OpI64Const:
		return immI64
	case op == OpF32Const:
		return immF32
	case op == OpF64Const:
		return immF64
	case op == OpPrefixMisc:
		return immMisc
	default:
		return immNone
	}
}

// validOpcode reports whether op is a known opcode.
func validOpcode(op Opcode) bool {
	if _, ok := opNames[op]; ok {
		return true
	}
	return op == OpPrefixMisc
}

var opNames = map[Opcode]string{
	OpUnreachable:  "unreachable",
	OpNop:          "nop",
	OpBlock:        "block",
	OpLoop:         "loop",
	OpIf:           "if",
	OpElse:         "else",
	OpEnd:          "end",
	OpBr:           "br",
	OpBrIf:         "br_if",
	OpBrTable:      "br_table",
	OpReturn:       "return",
	OpCall:         "call",
	OpCallIndirect: "call_indirect",
	OpDrop:         "drop",
	OpSelect:       "select",
	OpLocalGet:     "local.get",
	OpLocalSet:     "local.set",
	OpLocalTee:     "local.tee",
	OpGlobalGet:    "global.get",
	OpGlobalSet:    "global.set",
	OpI32Load:      "i32.load",
	OpI64Load:      "i64.load",
	OpF32Load:      "f32.load",
	OpF64Load:      "f64.load",
	OpI32Load8S:    "i32.load8_s",
	OpI32Load8U:    "i32.load8_u",
	OpI32Load16S:   "i32.load16_s",
	OpI32Load16U:   "i32.load16_u",
	OpI64Load8S:    "i64.load8_s",
	OpI64Load8U:    "i64.load8_u",
	OpI64Load16S:   "i64.load16_s",
	OpI64Load16U:   "i64.load16_u",
	OpI64Load32S:   "i64.load32_s",
	OpI64Load32U:   "i64.load32_u",
	OpI32Store:     "i32.store",
	OpI64Store:     "i64.store",
	OpF32Store:     "f32.store",
	OpF64Store:     "f64.store",
	OpI32Store8:    "i32.store8",
	OpI32Store16:   "i32.store16",
	OpI64Store8:    "i64.store8",
	OpI64Store16:   "i64.store16",
	OpI64Store32:   "i64.store32",
	OpMemorySize:   "memory.size",
	OpMemoryGrow:   "memory.grow",
	OpI32Const:     "i32.const",
	OpI64Const:     "i64.const",
	OpF32Const:     "f32.const",
	OpF64Const:     "f64.const",

	0x45: "i32.eqz",
	0x46: "i32.eq",
	0x47: "i32.ne",
	0x48: "i32.lt_s",
	0x49: "i32.lt_u",
	0x4A: "i32.gt_s",
	0x4B: "i32.gt_u",
	0x4C: "i32.le_s",
	0x4D: "i32.le_u",
	0x4E: "i32.ge_s",
	0x4F: "i32.ge_u",
	0x50: "i64.eqz",
	0x51: "i64.eq",
	0x52: "i64.ne",
	0x53: "i64.lt_s",
	0x54: "i64.lt_u",
	0x55: "i64.gt_s",
	0x56: "i64.gt_u",
	0x57: "i64.le_s",
	0x58: "i64.le_u",
	0x59: "i64.ge_s",
	0x5A: "i64.ge_u",
	0x5B: "f32.eq",
	0x5C: "f32.ne",
	0x5D: "f32.lt",
	0x5E: "f32.gt",
	0x5F: "f32.le",
	0x60: "f32.ge",
	0x61: "f64.eq",
	0x62: "f64.ne",
	0x63: "f64.lt",
	0x64: "f64.gt",
	0x65: "f64.le",
	0x66: "f64.ge",
	0x67: "i32.clz",
	0x68: "i32.ctz",
	0x69: "i32.popcnt",
	0x6A: "i32.add",
	0x6B: "i32.sub",
	0x6C: "i32.mul",
	0x6D: "i32.div_s",
	0x6E: "i32.div_u",
	0x6F: "i32.rem_s",
	0x70: "i32.rem_u",
	0x71: "i32.and",
	0x72: "i32.or",
	0x73: "i32.xor",
	0x74: "i32.shl",
	0x75: "i32.shr_s",
	0x76: "i32.shr_u",
	0x77: "i32.rotl",
	0x78: "i32.rotr",
	0x79: "i64.clz",
	0x7A: "i64.ctz",
	0x7B: "i64.popcnt",
	0x7C: "i64.add",
	0x7D: "i64.sub",
	0x7E: "i64.mul",
	0x7F: "i64.div_s",
	0x80: "i64.div_u",
	0x81: "i64.rem_s",
	0x82: "i64.rem_u",
	0x83: "i64.and",
	0x84: "i64.or",
	0x85: "i64.xor",
	0x86: "i64.shl",
	0x87: "i64.shr_s",
	0x88: "i64.shr_u",
	0x89: "i64.rotl",
	0x8A: "i64.rotr",
	0x8B: "f32.abs",
	0x8C: "f32.neg",
	0x8D: "f32.ceil",
	0x8E: "f32.floor",
	0x8F: "f32.trunc",
	0x90: "f32.nearest",
	0x91: "f32.sqrt",
	0x92: "f32.add",
	0x93: "f32.sub",
	0x94: "f32.mul",
	0x95: "f32.div",
	0x96: "f32.min",
	0x97: "f32.max",
	0x98: "f32.copysign",
	0x99: "f64.abs",
	0x9A: "f64.neg",
	0x9B: "f64.ceil",
	0x9C: "f64.floor",
	0x9D: "f64.trunc",
	0x9E: "f64.nearest",
	0x9F: "f64.sqrt",
	0xA0: "f64.add",
	0xA1: "f64.sub",
	0xA2: "f64.mul",
	0xA3: "f64.div",
	0xA4: "f64.min",
	0xA5: "f64.max",
	0xA6: "f64.copysign",
	0xA7: "i32.wrap_i64",
	0xA8: "i32.trunc_f32_s",
	0xA9: "i32.trunc_f32_u",
	0xAA: "i32.trunc_f64_s",
	0xAB: "i32.trunc_f64_u",
	0xAC: "i64.extend_i32_s",
	0xAD: "i64.extend_i32_u",
	0xAE: "i64.trunc_f32_s",
	0xAF: "i64.trunc_f32_u",
	0xB0: "i64.trunc_f64_s",
	0xB1: "i64.trunc_f64_u",
	0xB2: "f32.convert_i32_s",
	0xB3: "f32.convert_i32_u",
	0xB4: "f32.convert_i64_s",
	0xB5: "f32.convert_i64_u",
	0xB6: "f32.demote_f64",
	0xB7: "f64.convert_i32_s",
	0xB8: "f64.convert_i32_u",
	0xB9: "f64.convert_i64_s",
	0xBA: "f64.convert_i64_u",
	0xBB: "f64.promote_f32",
	0xBC: "i32.reinterpret_f32",
	0xBD: "i64.reinterpret_f64",
	0xBE: "f32.reinterpret_i32",
	0xBF: "f64.reinterpret_i64",
	0xC0: "i32.extend8_s",
	0xC1: "i32.extend16_s",
	0xC2: "i64.extend8_s",
	0xC3: "i64.extend16_s",
	0xC4: "i64.extend32_s",
}
