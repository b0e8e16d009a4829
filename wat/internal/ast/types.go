package ast

// Module is a resolved module: every symbolic reference has been replaced
// by its index. Names keeps the identifiers needed for a name section.
type Module struct {
	Start    *uint32
	Name     string
	Types    []FuncType
	Imports  []Import
	Funcs    []Func
	Tables   []Table
	Memories []Memory
	Globals  []Global
	Exports  []Export
	Elems    []Elem
	Data     []Data

	// FuncNames maps the function index space (imports first) to the
	// declared identifier, or "" when the function is anonymous.
	FuncNames []string
}

type FuncType struct {
	Params  []byte
	Results []byte
}

func (ft FuncType) Equal(other FuncType) bool {
	return bytesEqual(ft.Params, other.Params) && bytesEqual(ft.Results, other.Results)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type Import struct {
	Table   *Table
	Memory  *Memory
	Global  *GlobalType
	Module  string
	Name    string
	TypeIdx uint32
	Kind    byte
}

type Func struct {
	Locals []byte
	Body   []Instr
	// LocalNames covers params then locals; "" marks an anonymous slot.
	LocalNames []string
	TypeIdx    uint32
}

type Limits struct {
	Max *uint32
	Min uint32
}

type Table struct {
	Limits   Limits
	ElemType byte
}

type Memory struct {
	Limits Limits
}

type GlobalType struct {
	Type    byte
	Mutable bool
}

type Global struct {
	Init []Instr
	Type GlobalType
}

type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// ElemMode distinguishes active, passive and declarative element segments.
type ElemMode byte

const (
	ElemActive ElemMode = iota
	ElemPassive
	ElemDeclarative
)

type Elem struct {
	Offset   []Instr
	FuncIdxs []uint32
	Mode     ElemMode
	TableIdx uint32
}

type Data struct {
	Offset  []Instr
	Init    []byte
	MemIdx  uint32
	Passive bool
}

// Instr is a single flat instruction. Imm holds one of the immediate types
// below, or nil.
type Instr struct {
	Imm    any
	Opcode byte
}

type Memarg struct {
	Align  uint32
	Offset uint32
}

// BlockType is either empty, a single value type, or a type index.
type BlockType struct {
	TypeIdx int64
	Value   byte
}

// BlockVoid is the encoding of an empty block type.
const BlockVoid byte = 0x40

type BrTable struct {
	Labels  []uint32
	Default uint32
}

type CallIndirect struct {
	TypeIdx  uint32
	TableIdx uint32
}

type SelectTypes struct {
	Types []byte
}

// Misc is a 0xFC-prefixed instruction.
type Misc struct {
	Operands []uint32
	Sub      uint32
}

// F32Bits and F64Bits carry float constants as raw bits so NaN payloads
// are preserved.
type F32Bits uint32

type F64Bits uint64

// RefType is the immediate of ref.null.
type RefType byte
