package ast

const (
	ValI32       byte = 0x7F
	ValI64       byte = 0x7E
	ValF32       byte = 0x7D
	ValF64       byte = 0x7C
	ValFuncRef   byte = 0x70
	ValExternRef byte = 0x6F
)

const (
	KindFunc   byte = 0x00
	KindTable  byte = 0x01
	KindMemory byte = 0x02
	KindGlobal byte = 0x03
)

// ValType maps a text value type to its encoding.
func ValType(name string) (byte, bool) {
	switch name {
	case "i32":
		return ValI32, true
	case "i64":
		return ValI64, true
	case "f32":
		return ValF32, true
	case "f64":
		return ValF64, true
	case "funcref":
		return ValFuncRef, true
	case "externref":
		return ValExternRef, true
	}
	return 0, false
}

// ValTypeName is the inverse of ValType.
func ValTypeName(v byte) string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValFuncRef:
		return "funcref"
	case ValExternRef:
		return "externref"
	}
	return "?"
}
