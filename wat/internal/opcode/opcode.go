package opcode

// Imm describes the immediates an instruction takes in text form.
type Imm int

const (
	ImmNone Imm = iota
	ImmBlock
	ImmLabel
	ImmBrTable
	ImmFunc
	ImmCallIndirect
	ImmLocal
	ImmGlobal
	ImmTable
	ImmMemarg
	ImmMemIdx
	ImmI32
	ImmI64
	ImmF32
	ImmF64
	ImmSelect
	ImmRefType

	// 0xFC sub-instruction immediates
	ImmData
	ImmMemoryInit
	ImmMemoryCopy
	ImmMemoryFill
	ImmElem
	ImmTableInit
	ImmTableCopy
)

// PrefixMisc is the prefix byte of saturating truncation, bulk memory and
// table instructions.
const PrefixMisc byte = 0xFC

// Info describes one instruction. Align is the natural alignment (log2) of
// memory accesses.
type Info struct {
	Name     string
	Imm      Imm
	Sub      uint32
	Align    uint32
	Opcode   byte
	Prefixed bool
}

var (
	byName   = map[string]Info{}
	byOpcode = map[byte]Info{}
	byMisc   = map[uint32]Info{}
)

// Lookup finds an instruction by its text name. Legacy names such as
// get_local are accepted.
func Lookup(name string) (Info, bool) {
	if alias, ok := legacy[name]; ok {
		name = alias
	}
	info, ok := byName[name]
	return info, ok
}

// ByOpcode returns the instruction for a single-byte opcode.
func ByOpcode(op byte) (Info, bool) {
	info, ok := byOpcode[op]
	return info, ok
}

// ByMisc returns the 0xFC-prefixed instruction with the given sub-opcode.
func ByMisc(sub uint32) (Info, bool) {
	info, ok := byMisc[sub]
	return info, ok
}

var legacy = map[string]string{
	"get_local":      "local.get",
	"set_local":      "local.set",
	"tee_local":      "local.tee",
	"get_global":     "global.get",
	"set_global":     "global.set",
	"current_memory": "memory.size",
	"grow_memory":    "memory.grow",
}

func op(name string, code byte, imm Imm) Info {
	return Info{Name: name, Opcode: code, Imm: imm}
}

func mem(name string, code byte, align uint32) Info {
	return Info{Name: name, Opcode: code, Imm: ImmMemarg, Align: align}
}

func misc(name string, sub uint32, imm Imm) Info {
	return Info{Name: name, Opcode: PrefixMisc, Sub: sub, Prefixed: true, Imm: imm}
}

var instructions = []Info{
	op("unreachable", 0x00, ImmNone),
	op("nop", 0x01, ImmNone),
	op("block", 0x02, ImmBlock),
	op("loop", 0x03, ImmBlock),
	op("if", 0x04, ImmBlock),
	op("else", 0x05, ImmNone),
	op("end", 0x0B, ImmNone),
	op("br", 0x0C, ImmLabel),
	op("br_if", 0x0D, ImmLabel),
	op("br_table", 0x0E, ImmBrTable),
	op("return", 0x0F, ImmNone),
	op("call", 0x10, ImmFunc),
	op("call_indirect", 0x11, ImmCallIndirect),
	op("drop", 0x1A, ImmNone),
	op("select", 0x1B, ImmSelect),

	op("local.get", 0x20, ImmLocal),
	op("local.set", 0x21, ImmLocal),
	op("local.tee", 0x22, ImmLocal),
	op("global.get", 0x23, ImmGlobal),
	op("global.set", 0x24, ImmGlobal),
	op("table.get", 0x25, ImmTable),
	op("table.set", 0x26, ImmTable),

	mem("i32.load", 0x28, 2),
	mem("i64.load", 0x29, 3),
	mem("f32.load", 0x2A, 2),
	mem("f64.load", 0x2B, 3),
	mem("i32.load8_s", 0x2C, 0),
	mem("i32.load8_u", 0x2D, 0),
	mem("i32.load16_s", 0x2E, 1),
	mem("i32.load16_u", 0x2F, 1),
	mem("i64.load8_s", 0x30, 0),
	mem("i64.load8_u", 0x31, 0),
	mem("i64.load16_s", 0x32, 1),
	mem("i64.load16_u", 0x33, 1),
	mem("i64.load32_s", 0x34, 2),
	mem("i64.load32_u", 0x35, 2),
	mem("i32.store", 0x36, 2),
	mem("i64.store", 0x37, 3),
	mem("f32.store", 0x38, 2),
	mem("f64.store", 0x39, 3),
	mem("i32.store8", 0x3A, 0),
	mem("i32.store16", 0x3B, 1),
	mem("i64.store8", 0x3C, 0),
	mem("i64.store16", 0x3D, 1),
	mem("i64.store32", 0x3E, 2),
	op("memory.size", 0x3F, ImmMemIdx),
	op("memory.grow", 0x40, ImmMemIdx),

	op("i32.const", 0x41, ImmI32),
	op("i64.const", 0x42, ImmI64),
	op("f32.const", 0x43, ImmF32),
	op("f64.const", 0x44, ImmF64),

	op("i32.eqz", 0x45, ImmNone),
	op("i32.eq", 0x46, ImmNone),
	op("i32.ne", 0x47, ImmNone),
	op("i32.lt_s", 0x48, ImmNone),
	op("i32.lt_u", 0x49, ImmNone),
	op("i32.gt_s", 0x4A, ImmNone),
	op("i32.gt_u", 0x4B, ImmNone),
	op("i32.le_s", 0x4C, ImmNone),
	op("i32.le_u", 0x4D, ImmNone),
	op("i32.ge_s", 0x4E, ImmNone),
	op("i32.ge_u", 0x4F, ImmNone),
	op("i64.eqz", 0x50, ImmNone),
	op("i64.eq", 0x51, ImmNone),
	op("i64.ne", 0x52, ImmNone),
	op("i64.lt_s", 0x53, ImmNone),
	op("i64.lt_u", 0x54, ImmNone),
	op("i64.gt_s", 0x55, ImmNone),
	op("i64.gt_u", 0x56, ImmNone),
	op("i64.le_s", 0x57, ImmNone),
	op("i64.le_u", 0x58, ImmNone),
	op("i64.ge_s", 0x59, ImmNone),
	op("i64.ge_u", 0x5A, ImmNone),
	op("f32.eq", 0x5B, ImmNone),
	op("f32.ne", 0x5C, ImmNone),
	op("f32.lt", 0x5D, ImmNone),
	op("f32.gt", 0x5E, ImmNone),
	op("f32.le", 0x5F, ImmNone),
	op("f32.ge", 0x60, ImmNone),
	op("f64.eq", 0x61, ImmNone),
	op("f64.ne", 0x62, ImmNone),
	op("f64.lt", 0x63, ImmNone),
	op("f64.gt", 0x64, ImmNone),
	op("f64.le", 0x65, ImmNone),
	op("f64.ge", 0x66, ImmNone),

	op("i32.clz", 0x67, ImmNone),
	op("i32.ctz", 0x68, ImmNone),
	op("i32.popcnt", 0x69, ImmNone),
	op("i32.add", 0x6A, ImmNone),
	op("i32.sub", 0x6B, ImmNone),
	op("i32.mul", 0x6C, ImmNone),
	op("i32.div_s", 0x6D, ImmNone),
	op("i32.div_u", 0x6E, ImmNone),
	op("i32.rem_s", 0x6F, ImmNone),
	op("i32.rem_u", 0x70, ImmNone),
	op("i32.and", 0x71, ImmNone),
	op("i32.or", 0x72, ImmNone),
	op("i32.xor", 0x73, ImmNone),
	op("i32.shl", 0x74, ImmNone),
	op("i32.shr_s", 0x75, ImmNone),
	op("i32.shr_u", 0x76, ImmNone),
	op("i32.rotl", 0x77, ImmNone),
	op("i32.rotr", 0x78, ImmNone),
	op("i64.clz", 0x79, ImmNone),
	op("i64.ctz", 0x7A, ImmNone),
	op("i64.popcnt", 0x7B, ImmNone),
	op("i64.add", 0x7C, ImmNone),
	op("i64.sub", 0x7D, ImmNone),
	op("i64.mul", 0x7E, ImmNone),
	op("i64.div_s", 0x7F, ImmNone),
	op("i64.div_u", 0x80, ImmNone),
	op("i64.rem_s", 0x81, ImmNone),
	op("i64.rem_u", 0x82, ImmNone),
	op("i64.and", 0x83, ImmNone),
	op("i64.or", 0x84, ImmNone),
	op("i64.xor", 0x85, ImmNone),
	op("i64.shl", 0x86, ImmNone),
	op("i64.shr_s", 0x87, ImmNone),
	op("i64.shr_u", 0x88, ImmNone),
	op("i64.rotl", 0x89, ImmNone),
	op("i64.rotr", 0x8A, ImmNone),

	op("f32.abs", 0x8B, ImmNone),
	op("f32.neg", 0x8C, ImmNone),
	op("f32.ceil", 0x8D, ImmNone),
	op("f32.floor", 0x8E, ImmNone),
	op("f32.trunc", 0x8F, ImmNone),
	op("f32.nearest", 0x90, ImmNone),
	op("f32.sqrt", 0x91, ImmNone),
	op("f32.add", 0x92, ImmNone),
	op("f32.sub", 0x93, ImmNone),
	op("f32.mul", 0x94, ImmNone),
	op("f32.div", 0x95, ImmNone),
	op("f32.min", 0x96, ImmNone),
	op("f32.max", 0x97, ImmNone),
	op("f32.copysign", 0x98, ImmNone),
	op("f64.abs", 0x99, ImmNone),
	op("f64.neg", 0x9A, ImmNone),
	op("f64.ceil", 0x9B, ImmNone),
	op("f64.floor", 0x9C, ImmNone),
	op("f64.trunc", 0x9D, ImmNone),
	op("f64.nearest", 0x9E, ImmNone),
	op("f64.sqrt", 0x9F, ImmNone),
	op("f64.add", 0xA0, ImmNone),
	op("f64.sub", 0xA1, ImmNone),
	op("f64.mul", 0xA2, ImmNone),
	op("f64.div", 0xA3, ImmNone),
	op("f64.min", 0xA4, ImmNone),
	op("f64.max", 0xA5, ImmNone),
	op("f64.copysign", 0xA6, ImmNone),

	op("i32.wrap_i64", 0xA7, ImmNone),
	op("i32.trunc_f32_s", 0xA8, ImmNone),
	op("i32.trunc_f32_u", 0xA9, ImmNone),
	op("i32.trunc_f64_s", 0xAA, ImmNone),
	op("i32.trunc_f64_u", 0xAB, ImmNone),
	op("i64.extend_i32_s", 0xAC, ImmNone),
	op("i64.extend_i32_u", 0xAD, ImmNone),
	op("i64.trunc_f32_s", 0xAE, ImmNone),
	op("i64.trunc_f32_u", 0xAF, ImmNone),
	op("i64.trunc_f64_s", 0xB0, ImmNone),
	op("i64.trunc_f64_u", 0xB1, ImmNone),
	op("f32.convert_i32_s", 0xB2, ImmNone),
	op("f32.convert_i32_u", 0xB3, ImmNone),
	op("f32.convert_i64_s", 0xB4, ImmNone),
	op("f32.convert_i64_u", 0xB5, ImmNone),
	op("f32.demote_f64", 0xB6, ImmNone),
	op("f64.convert_i32_s", 0xB7, ImmNone),
	op("f64.convert_i32_u", 0xB8, ImmNone),
	op("f64.convert_i64_s", 0xB9, ImmNone),
	op("f64.convert_i64_u", 0xBA, ImmNone),
	op("f64.promote_f32", 0xBB, ImmNone),
	op("i32.reinterpret_f32", 0xBC, ImmNone),
	op("i64.reinterpret_f64", 0xBD, ImmNone),
	op("f32.reinterpret_i32", 0xBE, ImmNone),
	op("f64.reinterpret_i64", 0xBF, ImmNone),

	op("i32.extend8_s", 0xC0, ImmNone),
	op("i32.extend16_s", 0xC1, ImmNone),
	op("i64.extend8_s", 0xC2, ImmNone),
	op("i64.extend16_s", 0xC3, ImmNone),
	op("i64.extend32_s", 0xC4, ImmNone),

	op("ref.null", 0xD0, ImmRefType),
	op("ref.is_null", 0xD1, ImmNone),
	op("ref.func", 0xD2, ImmFunc),

	misc("i32.trunc_sat_f32_s", 0x00, ImmNone),
	misc("i32.trunc_sat_f32_u", 0x01, ImmNone),
	misc("i32.trunc_sat_f64_s", 0x02, ImmNone),
	misc("i32.trunc_sat_f64_u", 0x03, ImmNone),
	misc("i64.trunc_sat_f32_s", 0x04, ImmNone),
	misc("i64.trunc_sat_f32_u", 0x05, ImmNone),
	misc("i64.trunc_sat_f64_s", 0x06, ImmNone),
	misc("i64.trunc_sat_f64_u", 0x07, ImmNone),
	misc("memory.init", 0x08, ImmMemoryInit),
	misc("data.drop", 0x09, ImmData),
	misc("memory.copy", 0x0A, ImmMemoryCopy),
	misc("memory.fill", 0x0B, ImmMemoryFill),
	misc("table.init", 0x0C, ImmTableInit),
	misc("elem.drop", 0x0D, ImmElem),
	misc("table.copy", 0x0E, ImmTableCopy),
	misc("table.grow", 0x0F, ImmTable),
	misc("table.size", 0x10, ImmTable),
	misc("table.fill", 0x11, ImmTable),
}

func init() {
	for _, info := range instructions {
		byName[info.Name] = info
		if info.Prefixed {
			byMisc[info.Sub] = info
		} else {
			byOpcode[info.Opcode] = info
		}
	}
	// typed select shares the text name of plain select
	byOpcode[0x1C] = op("select", 0x1C, ImmSelect)
}
