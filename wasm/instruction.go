package wasm

import (
	"fmt"

	"github.com/wippyai/watlink/wasm/internal/binary"
)

// Instruction represents a decoded WebAssembly instruction
type Instruction struct {
	Imm    any
	Opcode byte
}

// BlockImm holds the block type for block, loop and if.
type BlockImm struct {
	Type int64 // BlockTypeVoid, a negative value type, or a type index
}

// BranchImm holds the label index for br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// TableImm holds the table index for table.get and table.set.
type TableImm struct {
	TableIdx uint32
}

// MemoryImm holds memory access parameters for loads and stores.
type MemoryImm struct {
	Offset uint32
	Align  uint32
}

// MemoryIdxImm holds the memory index for memory.size and memory.grow.
type MemoryIdxImm struct {
	MemIdx uint32
}

// I32Imm holds the constant of i32.const.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant of i64.const.
type I64Imm struct {
	Value int64
}

// F32Imm holds the raw bits of f32.const so NaN payloads survive.
type F32Imm struct {
	Bits uint32
}

// F64Imm holds the raw bits of f64.const.
type F64Imm struct {
	Bits uint64
}

// SelectTypeImm holds value types for typed select.
type SelectTypeImm struct {
	Types []ValType
}

// RefNullImm holds the reference type of ref.null.
type RefNullImm struct {
	Type ValType
}

// RefFuncImm holds the function index of ref.func.
type RefFuncImm struct {
	FuncIdx uint32
}

// MiscImm holds the sub-opcode and index immediates of 0xFC instructions.
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// CallTarget returns the callee of a direct call.
func (i Instruction) CallTarget() (uint32, bool) {
	if imm, ok := i.Imm.(CallImm); ok && i.Opcode == OpCall {
		return imm.FuncIdx, true
	}
	return 0, false
}

// DecodeInstructions decodes a sequence of instructions from raw bytes. The
// trailing end of a function body is returned as a regular OpEnd.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code)
	instrs := make([]Instruction, 0, len(code)/2)

	for r.Len() > 0 {
		at := r.Position()
		op, _ := r.ReadByte()
		imm, err := decodeImmediate(r, op)
		if err != nil {
			return nil, fmt.Errorf("opcode 0x%02x at offset %d: %w", op, at, err)
		}
		instrs = append(instrs, Instruction{Opcode: op, Imm: imm})
	}
	return instrs, nil
}

func decodeImmediate(r *binary.Reader, op byte) (any, error) {
	switch {
	case op >= OpI32Load && op <= OpI64Store32:
		align, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		offset, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return MemoryImm{Align: align, Offset: offset}, nil
	case op >= OpNumericFirst && op <= OpNumericLast:
		return nil, nil
	}

	switch op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect, OpRefIsNull:
		return nil, nil

	case OpBlock, OpLoop, OpIf:
		bt, err := r.ReadS33()
		if err != nil {
			return nil, err
		}
		return BlockImm{Type: bt}, nil

	case OpBr, OpBrIf:
		idx, err := r.ReadU32()
		return BranchImm{LabelIdx: idx}, err

	case OpBrTable:
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if int(n) > r.Len() {
			return nil, fmt.Errorf("br_table count %d exceeds body", n)
		}
		labels := make([]uint32, n)
		for i := range labels {
			if labels[i], err = r.ReadU32(); err != nil {
				return nil, err
			}
		}
		def, err := r.ReadU32()
		return BrTableImm{Labels: labels, Default: def}, err

	case OpCall:
		idx, err := r.ReadU32()
		return CallImm{FuncIdx: idx}, err

	case OpCallIndirect:
		typeIdx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		tableIdx, err := r.ReadU32()
		return CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}, err

	case OpSelectType:
		types, err := readValTypes(r)
		return SelectTypeImm{Types: types}, err

	case OpLocalGet, OpLocalSet, OpLocalTee:
		idx, err := r.ReadU32()
		return LocalImm{LocalIdx: idx}, err

	case OpGlobalGet, OpGlobalSet:
		idx, err := r.ReadU32()
		return GlobalImm{GlobalIdx: idx}, err

	case OpTableGet, OpTableSet:
		idx, err := r.ReadU32()
		return TableImm{TableIdx: idx}, err

	case OpMemorySize, OpMemoryGrow:
		idx, err := r.ReadU32()
		return MemoryIdxImm{MemIdx: idx}, err

	case OpI32Const:
		v, err := r.ReadS32()
		return I32Imm{Value: v}, err

	case OpI64Const:
		v, err := r.ReadS64()
		return I64Imm{Value: v}, err

	case OpF32Const:
		bits, err := r.ReadU32LE()
		return F32Imm{Bits: bits}, err

	case OpF64Const:
		lo, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		hi, err := r.ReadU32LE()
		return F64Imm{Bits: uint64(hi)<<32 | uint64(lo)}, err

	case OpRefNull:
		t, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if !ValType(t).IsRef() {
			return nil, fmt.Errorf("invalid ref.null type 0x%02x", t)
		}
		return RefNullImm{Type: ValType(t)}, nil

	case OpRefFunc:
		idx, err := r.ReadU32()
		return RefFuncImm{FuncIdx: idx}, err

	case OpPrefixMisc:
		return decodeMisc(r)
	}

	return nil, fmt.Errorf("unsupported opcode")
}

func decodeMisc(r *binary.Reader) (any, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	var n int
	switch {
	case sub <= MiscI64TruncSatF64U:
		n = 0
	case sub == MiscMemoryInit, sub == MiscMemoryCopy, sub == MiscTableInit, sub == MiscTableCopy:
		n = 2
	case sub == MiscDataDrop, sub == MiscMemoryFill, sub == MiscElemDrop,
		sub == MiscTableGrow, sub == MiscTableSize, sub == MiscTableFill:
		n = 1
	default:
		return nil, fmt.Errorf("unsupported 0xfc sub-opcode %d", sub)
	}
	imm := MiscImm{SubOpcode: sub}
	for i := 0; i < n; i++ {
		v, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		imm.Operands = append(imm.Operands, v)
	}
	return imm, nil
}
