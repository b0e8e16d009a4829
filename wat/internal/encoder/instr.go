package encoder

import (
	"github.com/wippyai/watlink/wat/internal/ast"
)

func writeInstr(b *Buffer, in ast.Instr) {
	b.AppendByte(in.Opcode)
	switch imm := in.Imm.(type) {
	case nil:
	case uint32:
		b.WriteU32(imm)
	case int32:
		b.WriteS64(int64(imm))
	case int64:
		b.WriteS64(imm)
	case ast.F32Bits:
		b.WriteF32Bits(uint32(imm))
	case ast.F64Bits:
		b.WriteF64Bits(uint64(imm))
	case ast.BlockType:
		if imm.TypeIdx >= 0 {
			b.WriteS64(imm.TypeIdx)
		} else {
			b.AppendByte(imm.Value)
		}
	case ast.BrTable:
		b.WriteLen(len(imm.Labels))
		for _, l := range imm.Labels {
			b.WriteU32(l)
		}
		b.WriteU32(imm.Default)
	case ast.CallIndirect:
		b.WriteU32(imm.TypeIdx)
		b.WriteU32(imm.TableIdx)
	case ast.Memarg:
		b.WriteU32(imm.Align)
		b.WriteU32(imm.Offset)
	case ast.SelectTypes:
		writeValTypes(b, imm.Types)
	case ast.RefType:
		b.AppendByte(byte(imm))
	case ast.Misc:
		b.WriteU32(imm.Sub)
		for _, op := range imm.Operands {
			b.WriteU32(op)
		}
	}
}
