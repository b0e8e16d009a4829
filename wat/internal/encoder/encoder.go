package encoder

import (
	"github.com/wippyai/watlink/wat/internal/ast"
)

const (
	secCustom    byte = 0
	secType      byte = 1
	secImport    byte = 2
	secFunction  byte = 3
	secTable     byte = 4
	secMemory    byte = 5
	secGlobal    byte = 6
	secExport    byte = 7
	secStart     byte = 8
	secElement   byte = 9
	secCode      byte = 10
	secData      byte = 11
	secDataCount byte = 12
)

// Options controls optional output.
type Options struct {
	// ModuleName overrides the module identifier in the name section.
	ModuleName string
	// DebugNames appends a name section with module, function and local names.
	DebugNames bool
}

// Encode serializes a resolved module. Empty sections are omitted.
func Encode(mod *ast.Module, opts Options) ([]byte, error) {
	out := &Buffer{Bytes: []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}}

	section := func(id byte, n int, write func(b *Buffer)) {
		if n == 0 {
			return
		}
		var b Buffer
		write(&b)
		out.WriteSection(id, &b)
	}

	section(secType, len(mod.Types), func(b *Buffer) {
		b.WriteLen(len(mod.Types))
		for _, ft := range mod.Types {
			b.AppendByte(0x60)
			writeValTypes(b, ft.Params)
			writeValTypes(b, ft.Results)
		}
	})

	section(secImport, len(mod.Imports), func(b *Buffer) {
		b.WriteLen(len(mod.Imports))
		for _, imp := range mod.Imports {
			b.WriteString(imp.Module)
			b.WriteString(imp.Name)
			b.AppendByte(imp.Kind)
			switch imp.Kind {
			case ast.KindFunc:
				b.WriteU32(imp.TypeIdx)
			case ast.KindTable:
				b.AppendByte(imp.Table.ElemType)
				writeLimits(b, imp.Table.Limits)
			case ast.KindMemory:
				writeLimits(b, imp.Memory.Limits)
			case ast.KindGlobal:
				writeGlobalType(b, *imp.Global)
			}
		}
	})

	section(secFunction, len(mod.Funcs), func(b *Buffer) {
		b.WriteLen(len(mod.Funcs))
		for _, fn := range mod.Funcs {
			b.WriteU32(fn.TypeIdx)
		}
	})

	section(secTable, len(mod.Tables), func(b *Buffer) {
		b.WriteLen(len(mod.Tables))
		for _, t := range mod.Tables {
			b.AppendByte(t.ElemType)
			writeLimits(b, t.Limits)
		}
	})

	section(secMemory, len(mod.Memories), func(b *Buffer) {
		b.WriteLen(len(mod.Memories))
		for _, m := range mod.Memories {
			writeLimits(b, m.Limits)
		}
	})

	section(secGlobal, len(mod.Globals), func(b *Buffer) {
		b.WriteLen(len(mod.Globals))
		for _, g := range mod.Globals {
			writeGlobalType(b, g.Type)
			writeExpr(b, g.Init)
		}
	})

	section(secExport, len(mod.Exports), func(b *Buffer) {
		b.WriteLen(len(mod.Exports))
		for _, e := range mod.Exports {
			b.WriteString(e.Name)
			b.AppendByte(e.Kind)
			b.WriteU32(e.Idx)
		}
	})

	if mod.Start != nil {
		section(secStart, 1, func(b *Buffer) {
			b.WriteU32(*mod.Start)
		})
	}

	section(secElement, len(mod.Elems), func(b *Buffer) {
		b.WriteLen(len(mod.Elems))
		for _, e := range mod.Elems {
			writeElem(b, e)
		}
	})

	if needsDataCount(mod) {
		section(secDataCount, 1, func(b *Buffer) {
			b.WriteLen(len(mod.Data))
		})
	}

	section(secCode, len(mod.Funcs), func(b *Buffer) {
		b.WriteLen(len(mod.Funcs))
		for _, fn := range mod.Funcs {
			var body Buffer
			writeLocals(&body, fn.Locals)
			for _, in := range fn.Body {
				writeInstr(&body, in)
			}
			body.AppendByte(0x0B)
			if body.err != nil {
				b.fail(body.err)
			}
			b.WriteLen(len(body.Bytes))
			b.WriteBytes(body.Bytes)
		}
	})

	section(secData, len(mod.Data), func(b *Buffer) {
		b.WriteLen(len(mod.Data))
		for _, d := range mod.Data {
			switch {
			case d.Passive:
				b.AppendByte(0x01)
			case d.MemIdx != 0:
				b.AppendByte(0x02)
				b.WriteU32(d.MemIdx)
				writeExpr(b, d.Offset)
			default:
				b.AppendByte(0x00)
				writeExpr(b, d.Offset)
			}
			b.WriteLen(len(d.Init))
			b.WriteBytes(d.Init)
		}
	})

	if opts.DebugNames {
		var b Buffer
		writeNameSection(&b, mod, opts.ModuleName)
		out.WriteSection(secCustom, &b)
	}

	return out.Bytes, out.Err()
}

func writeValTypes(b *Buffer, types []byte) {
	b.WriteLen(len(types))
	b.WriteBytes(types)
}

func writeLimits(b *Buffer, lim ast.Limits) {
	if lim.Max == nil {
		b.AppendByte(0x00)
		b.WriteU32(lim.Min)
		return
	}
	b.AppendByte(0x01)
	b.WriteU32(lim.Min)
	b.WriteU32(*lim.Max)
}

func writeGlobalType(b *Buffer, gt ast.GlobalType) {
	b.AppendByte(gt.Type)
	if gt.Mutable {
		b.AppendByte(0x01)
	} else {
		b.AppendByte(0x00)
	}
}

func writeExpr(b *Buffer, expr []ast.Instr) {
	for _, in := range expr {
		writeInstr(b, in)
	}
	b.AppendByte(0x0B)
}

// writeLocals run-length encodes local declarations.
func writeLocals(b *Buffer, locals []byte) {
	type run struct {
		n int
		t byte
	}
	var runs []run
	for _, t := range locals {
		if len(runs) > 0 && runs[len(runs)-1].t == t {
			runs[len(runs)-1].n++
			continue
		}
		runs = append(runs, run{n: 1, t: t})
	}
	b.WriteLen(len(runs))
	for _, r := range runs {
		b.WriteLen(r.n)
		b.AppendByte(r.t)
	}
}

func writeElem(b *Buffer, e ast.Elem) {
	switch {
	case e.Mode == ast.ElemPassive:
		b.AppendByte(0x01)
		b.AppendByte(0x00)
	case e.Mode == ast.ElemDeclarative:
		b.AppendByte(0x03)
		b.AppendByte(0x00)
	case e.TableIdx != 0:
		b.AppendByte(0x02)
		b.WriteU32(e.TableIdx)
		writeExpr(b, e.Offset)
		b.AppendByte(0x00)
	default:
		b.AppendByte(0x00)
		writeExpr(b, e.Offset)
	}
	b.WriteLen(len(e.FuncIdxs))
	for _, idx := range e.FuncIdxs {
		b.WriteU32(idx)
	}
}

// needsDataCount reports whether any passive segment or data index
// instruction requires the data count section.
func needsDataCount(mod *ast.Module) bool {
	for _, d := range mod.Data {
		if d.Passive {
			return true
		}
	}
	for _, fn := range mod.Funcs {
		for _, in := range fn.Body {
			if m, ok := in.Imm.(ast.Misc); ok && (m.Sub == 0x08 || m.Sub == 0x09) {
				return true
			}
		}
	}
	return false
}
