package wasm

import (
	"fmt"
	"io"
)

// readVarU32 reads an unsigned LEB128 value of at most 32 bits.
func readVarU32(r io.ByteReader) (uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("varuint32: %w", err)
		}
		if shift == 28 && b&0xF0 != 0 {
			return 0, fmt.Errorf("varuint32 overflows 32 bits")
		}
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// readVarS64 reads a signed LEB128 value of at most 64 bits.
func readVarS64(r io.ByteReader) (int64, error) {
	var result int64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("varint64: %w", err)
		}
		if shift == 63 && b != 0x00 && b != 0x7F {
			return 0, fmt.Errorf("varint64 overflows 64 bits")
		}
		result |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
}

// readVarS32 reads a signed LEB128 value of at most 32 bits.
func readVarS32(r io.ByteReader) (int32, error) {
	var result int32
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("varint32: %w", err)
		}
		if shift == 28 {
			// Fifth byte: only the low nibble plus the sign bits fit.
			if b&0x80 != 0 {
				return 0, fmt.Errorf("varint32 overflows 32 bits")
			}
			if top := b & 0x78; top != 0 && top != 0x78 {
				return 0, fmt.Errorf("varint32 overflows 32 bits")
			}
		}
		result |= int32(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 32 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
}

// appendVarU32 appends v in unsigned LEB128 encoding.
func appendVarU32(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// appendVarS64 appends v in signed LEB128 encoding.
func appendVarS64(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		dst = append(dst, b)
		if done {
			return dst
		}
	}
}

// appendVarS32 appends v in signed LEB128 encoding.
func appendVarS32(dst []byte, v int32) []byte {
	return appendVarS64(dst, int64(v))
}
