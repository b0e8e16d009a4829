package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/watlink/wasm"
	"github.com/wippyai/watlink/wat/internal/opcode"
)

// funcNames holds the identifiers of one function's parameters and locals.
type funcNames []string

func (p *printer) localNames(funcIdx uint32, ft wasm.FuncType, body wasm.FuncBody) funcNames {
	debug := p.names.Locals[funcIdx]
	total := uint64(len(ft.Params)) + body.NumLocals()
	names := make(funcNames, 0, total)
	used := map[string]bool{}
	for i := uint64(0); i < total; i++ {
		idx := uint32(i)
		name := debug[idx]
		switch {
		case validID(name) && !used["$"+name]:
			name = "$" + name
		case i < uint64(len(ft.Params)):
			name = fmt.Sprintf("$p%d", i)
		default:
			name = fmt.Sprintf("$l%d", i)
		}
		if used[name] {
			name = fmt.Sprintf("%s.%d", name, i)
		}
		used[name] = true
		names = append(names, name)
	}
	return names
}

func (p *printer) printFuncs() error {
	imported := p.mod.NumImportedFuncs()
	for i, typeIdx := range p.mod.Funcs {
		funcIdx := uint32(imported + i)
		if i >= len(p.mod.Code) {
			return fmt.Errorf("function %d has no body", funcIdx)
		}
		if int(typeIdx) >= len(p.mod.Types) {
			return fmt.Errorf("function %d: type %d out of range", funcIdx, typeIdx)
		}
		ft := p.mod.Types[typeIdx]
		body := p.mod.Code[i]
		locals := p.localNames(funcIdx, ft, body)

		var head strings.Builder
		fmt.Fprintf(&head, "  (func %s", p.funcs[funcIdx])
		for _, name := range p.exported[funcIdx] {
			fmt.Fprintf(&head, " (export %s)", quote([]byte(name)))
		}
		fmt.Fprintf(&head, " (type %s)", typeName(typeIdx))
		for j, v := range ft.Params {
			fmt.Fprintf(&head, " (param %s %s)", locals[j], v)
		}
		if len(ft.Results) > 0 {
			head.WriteString(" (result")
			for _, v := range ft.Results {
				head.WriteString(" " + v.String())
			}
			head.WriteString(")")
		}
		p.lines = append(p.lines, head.String())

		slot := len(ft.Params)
		for _, entry := range body.Locals {
			for n := uint32(0); n < entry.Count; n++ {
				p.add("    (local %s %s)", locals[slot], entry.ValType)
				slot++
			}
		}

		instrs, err := wasm.DecodeInstructions(body.Code)
		if err != nil {
			return fmt.Errorf("function %s: %w", p.funcs[funcIdx], err)
		}
		// The final end closes the function itself.
		if n := len(instrs); n > 0 && instrs[n-1].Opcode == wasm.OpEnd {
			instrs = instrs[:n-1]
		}
		depth := 0
		for _, in := range instrs {
			if in.Opcode == wasm.OpEnd || in.Opcode == wasm.OpElse {
				depth--
			}
			if depth < 0 {
				return fmt.Errorf("function %s: unbalanced block structure", p.funcs[funcIdx])
			}
			text, err := p.instr(in, locals)
			if err != nil {
				return fmt.Errorf("function %s: %w", p.funcs[funcIdx], err)
			}
			p.add("%s%s", strings.Repeat("  ", depth+2), text)
			switch in.Opcode {
			case wasm.OpBlock, wasm.OpLoop, wasm.OpIf, wasm.OpElse:
				depth++
			}
		}
		p.lines[len(p.lines)-1] += ")"
	}
	return nil
}

func (p *printer) local(locals funcNames, idx uint32) string {
	if int(idx) < len(locals) {
		return locals[idx]
	}
	return strconv.FormatUint(uint64(idx), 10)
}

func (p *printer) funcRef(idx uint32) string {
	if int(idx) < len(p.funcs) {
		return p.funcs[idx]
	}
	return strconv.FormatUint(uint64(idx), 10)
}

func (p *printer) blockSig(t int64) string {
	switch {
	case t == wasm.BlockTypeVoid:
		return ""
	case t < 0:
		return " (result " + wasm.ValType(byte(t&0x7f)).String() + ")"
	}
	idx := uint32(t)
	s := " (type " + typeName(idx) + ")"
	if int(idx) < len(p.mod.Types) {
		s += signature(p.mod.Types[idx])
	}
	return s
}

// instr renders one flat instruction without its indentation.
func (p *printer) instr(in wasm.Instruction, locals funcNames) (string, error) {
	info, err := opName(in)
	if err != nil {
		return "", err
	}
	name := info.Name

	switch imm := in.Imm.(type) {
	case nil:
		return name, nil
	case wasm.BlockImm:
		return name + p.blockSig(imm.Type), nil
	case wasm.BranchImm:
		return fmt.Sprintf("%s %d", name, imm.LabelIdx), nil
	case wasm.BrTableImm:
		var b strings.Builder
		b.WriteString(name)
		for _, l := range imm.Labels {
			fmt.Fprintf(&b, " %d", l)
		}
		fmt.Fprintf(&b, " %d", imm.Default)
		return b.String(), nil
	case wasm.CallImm:
		return name + " " + p.funcRef(imm.FuncIdx), nil
	case wasm.CallIndirectImm:
		if imm.TableIdx != 0 {
			return fmt.Sprintf("%s %s (type %s)", name, p.tables[imm.TableIdx], typeName(imm.TypeIdx)), nil
		}
		return fmt.Sprintf("%s (type %s)", name, typeName(imm.TypeIdx)), nil
	case wasm.LocalImm:
		return name + " " + p.local(locals, imm.LocalIdx), nil
	case wasm.GlobalImm:
		if int(imm.GlobalIdx) < len(p.globals) {
			return name + " " + p.globals[imm.GlobalIdx], nil
		}
		return fmt.Sprintf("%s %d", name, imm.GlobalIdx), nil
	case wasm.TableImm:
		return fmt.Sprintf("%s %d", name, imm.TableIdx), nil
	case wasm.MemoryImm:
		s := name
		if imm.Offset != 0 {
			s += fmt.Sprintf(" offset=%d", imm.Offset)
		}
		if imm.Align != info.Align {
			s += fmt.Sprintf(" align=%d", uint64(1)<<imm.Align)
		}
		return s, nil
	case wasm.MemoryIdxImm:
		if imm.MemIdx != 0 {
			return fmt.Sprintf("%s %d", name, imm.MemIdx), nil
		}
		return name, nil
	case wasm.I32Imm:
		return fmt.Sprintf("%s %d", name, imm.Value), nil
	case wasm.I64Imm:
		return fmt.Sprintf("%s %d", name, imm.Value), nil
	case wasm.F32Imm:
		return name + " " + formatF32(imm.Bits), nil
	case wasm.F64Imm:
		return name + " " + formatF64(imm.Bits), nil
	case wasm.SelectTypeImm:
		var b strings.Builder
		b.WriteString(name + " (result")
		for _, v := range imm.Types {
			b.WriteString(" " + v.String())
		}
		b.WriteString(")")
		return b.String(), nil
	case wasm.RefNullImm:
		if imm.Type == wasm.ValFuncRef {
			return name + " func", nil
		}
		return name + " extern", nil
	case wasm.RefFuncImm:
		return name + " " + p.funcRef(imm.FuncIdx), nil
	case wasm.MiscImm:
		return p.misc(name, info, imm), nil
	}
	return "", fmt.Errorf("%s: unexpected immediate %T", name, in.Imm)
}

func (p *printer) misc(name string, info opcode.Info, imm wasm.MiscImm) string {
	ops := imm.Operands
	switch info.Imm {
	case opcode.ImmMemoryCopy, opcode.ImmMemoryFill:
		// Memory 0 is implied in text form.
		if len(ops) > 0 && ops[0] == 0 && (len(ops) < 2 || ops[1] == 0) {
			return name
		}
	case opcode.ImmMemoryInit:
		// Binary order is data index then memory index.
		if len(ops) == 2 && ops[1] == 0 {
			return fmt.Sprintf("%s %d", name, ops[0])
		}
	case opcode.ImmTableInit:
		// Binary order is elem index then table index; text puts the table first.
		if len(ops) == 2 {
			if ops[1] == 0 {
				return fmt.Sprintf("%s %d", name, ops[0])
			}
			return fmt.Sprintf("%s %d %d", name, ops[1], ops[0])
		}
	}
	var b strings.Builder
	b.WriteString(name)
	for _, op := range ops {
		fmt.Fprintf(&b, " %d", op)
	}
	return b.String()
}
