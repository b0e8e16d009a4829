// Package printer renders a decoded binary module as text, one module field
// per line, with debug names where the module carries them.
package printer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"github.com/wippyai/watlink/wasm"
	"github.com/wippyai/watlink/wat/internal/opcode"
	"github.com/wippyai/watlink/wat/internal/token"
)

type printer struct {
	mod   *wasm.Module
	names *wasm.Names
	lines []string

	funcs   []string
	tables  []string
	mems    []string
	globals []string

	// exported holds inline exports of defined functions.
	exported map[uint32][]string
}

// Print renders mod in canonical section order. The closing parenthesis of
// the module is appended to the last field line.
func Print(mod *wasm.Module) (string, error) {
	names, err := mod.Names()
	if err != nil {
		return "", fmt.Errorf("name section: %w", err)
	}
	p := &printer{mod: mod, names: names, exported: map[uint32][]string{}}
	p.assignNames()

	header := "(module"
	if names.Module != "" && validID(names.Module) {
		header += " $" + names.Module
	}
	p.lines = append(p.lines, header)

	steps := []func() error{
		p.printTypes,
		p.printImports,
		p.printFuncs,
		p.printTables,
		p.printMemories,
		p.printGlobals,
		p.printExports,
		p.printStart,
		p.printElems,
		p.printData,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return "", err
		}
	}

	if len(p.lines) == 1 {
		return "(module)\n", nil
	}
	p.lines[len(p.lines)-1] += ")"
	return strings.Join(p.lines, "\n") + "\n", nil
}

func validID(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !token.IsIDChar(name[i]) {
			return false
		}
	}
	return true
}

// assignNames builds the identifier of every function, table, memory and
// global. Debug names win; imports fall back to $module.field; the rest
// get $fN, $TN, $MN, $gN. Duplicates get a numeric suffix.
func (p *printer) assignNames() {
	used := map[string]bool{}
	unique := func(name string) string {
		if !used[name] {
			used[name] = true
			return name
		}
		for n := 1; ; n++ {
			candidate := name + "." + strconv.Itoa(n)
			if !used[candidate] {
				used[candidate] = true
				return candidate
			}
		}
	}
	pick := func(debug, module, field, fallback string) string {
		if validID(debug) {
			return unique("$" + debug)
		}
		if module != "" && validID(module+"."+field) {
			return unique("$" + module + "." + field)
		}
		return unique(fallback)
	}

	for _, imp := range p.mod.Imports {
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			idx := uint32(len(p.funcs))
			p.funcs = append(p.funcs, pick(p.names.Functions[idx], imp.Module, imp.Name, fmt.Sprintf("$f%d", idx)))
		case wasm.KindTable:
			p.tables = append(p.tables, pick("", imp.Module, imp.Name, fmt.Sprintf("$T%d", len(p.tables))))
		case wasm.KindMemory:
			p.mems = append(p.mems, pick("", imp.Module, imp.Name, fmt.Sprintf("$M%d", len(p.mems))))
		case wasm.KindGlobal:
			p.globals = append(p.globals, pick("", imp.Module, imp.Name, fmt.Sprintf("$g%d", len(p.globals))))
		}
	}
	for range p.mod.Funcs {
		idx := uint32(len(p.funcs))
		p.funcs = append(p.funcs, pick(p.names.Functions[idx], "", "", fmt.Sprintf("$f%d", idx)))
	}
	for range p.mod.Tables {
		p.tables = append(p.tables, unique(fmt.Sprintf("$T%d", len(p.tables))))
	}
	for range p.mod.Memories {
		p.mems = append(p.mems, unique(fmt.Sprintf("$M%d", len(p.mems))))
	}
	for range p.mod.Globals {
		p.globals = append(p.globals, unique(fmt.Sprintf("$g%d", len(p.globals))))
	}

	imported := uint32(p.mod.NumImportedFuncs())
	for _, e := range p.mod.Exports {
		if e.Kind == wasm.KindFunc && e.Idx >= imported {
			p.exported[e.Idx] = append(p.exported[e.Idx], e.Name)
		}
	}
}

func (p *printer) add(format string, args ...any) {
	p.lines = append(p.lines, fmt.Sprintf(format, args...))
}

func typeName(idx uint32) string {
	return fmt.Sprintf("$t%d", idx)
}

func signature(ft wasm.FuncType) string {
	var b strings.Builder
	if len(ft.Params) > 0 {
		b.WriteString(" (param")
		for _, v := range ft.Params {
			b.WriteString(" " + v.String())
		}
		b.WriteString(")")
	}
	if len(ft.Results) > 0 {
		b.WriteString(" (result")
		for _, v := range ft.Results {
			b.WriteString(" " + v.String())
		}
		b.WriteString(")")
	}
	return b.String()
}

func limits(l wasm.Limits) string {
	if l.Max == nil {
		return strconv.FormatUint(uint64(l.Min), 10)
	}
	return fmt.Sprintf("%d %d", l.Min, *l.Max)
}

func globalType(gt wasm.GlobalType) string {
	if gt.Mutable {
		return "(mut " + gt.ValType.String() + ")"
	}
	return gt.ValType.String()
}

func (p *printer) printTypes() error {
	for i, ft := range p.mod.Types {
		idx, err := safecast.Conv[uint32](i)
		if err != nil {
			return err
		}
		p.add("  (type %s (func%s))", typeName(idx), signature(ft))
	}
	return nil
}

func (p *printer) printImports() error {
	var fn, tab, mem, glob int
	for _, imp := range p.mod.Imports {
		var desc string
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			ft := p.mod.Types[imp.Desc.TypeIdx]
			desc = fmt.Sprintf("(func %s (type %s)%s)", p.funcs[fn], typeName(imp.Desc.TypeIdx), signature(ft))
			fn++
		case wasm.KindTable:
			desc = fmt.Sprintf("(table %s %s %s)", p.tables[tab], limits(imp.Desc.Table.Limits), imp.Desc.Table.ElemType)
			tab++
		case wasm.KindMemory:
			desc = fmt.Sprintf("(memory %s %s)", p.mems[mem], limits(imp.Desc.Memory.Limits))
			mem++
		case wasm.KindGlobal:
			desc = fmt.Sprintf("(global %s %s)", p.globals[glob], globalType(*imp.Desc.Global))
			glob++
		}
		p.add("  (import %s %s %s)", quote([]byte(imp.Module)), quote([]byte(imp.Name)), desc)
	}
	return nil
}

func (p *printer) printTables() error {
	base := p.mod.NumImportedTables()
	for i, t := range p.mod.Tables {
		p.add("  (table %s %s %s)", p.tables[base+i], limits(t.Limits), t.ElemType)
	}
	return nil
}

func (p *printer) printMemories() error {
	base := p.mod.NumImportedMemories()
	for i, m := range p.mod.Memories {
		p.add("  (memory %s %s)", p.mems[base+i], limits(m.Limits))
	}
	return nil
}

func (p *printer) printGlobals() error {
	base := p.mod.NumImportedGlobals()
	for i, g := range p.mod.Globals {
		init, err := p.constExpr(g.Init)
		if err != nil {
			return fmt.Errorf("global %d: %w", base+i, err)
		}
		p.add("  (global %s %s %s)", p.globals[base+i], globalType(g.Type), init)
	}
	return nil
}

func (p *printer) printExports() error {
	imported := uint32(p.mod.NumImportedFuncs())
	for _, e := range p.mod.Exports {
		var ref string
		switch e.Kind {
		case wasm.KindFunc:
			if e.Idx >= imported {
				continue
			}
			ref = "func " + p.funcs[e.Idx]
		case wasm.KindTable:
			ref = "table " + p.tables[e.Idx]
		case wasm.KindMemory:
			ref = "memory " + p.mems[e.Idx]
		case wasm.KindGlobal:
			ref = "global " + p.globals[e.Idx]
		}
		p.add("  (export %s (%s))", quote([]byte(e.Name)), ref)
	}
	return nil
}

func (p *printer) printStart() error {
	if p.mod.Start != nil {
		p.add("  (start %s)", p.funcs[*p.mod.Start])
	}
	return nil
}

func (p *printer) printElems() error {
	for i, e := range p.mod.Elements {
		var b strings.Builder
		fmt.Fprintf(&b, "  (elem $e%d", i)
		switch {
		case e.Declarative():
			b.WriteString(" declare")
		case !e.Passive():
			if e.TableIdx != 0 {
				fmt.Fprintf(&b, " (table %s)", p.tables[e.TableIdx])
			}
			off, err := p.constExpr(e.Offset)
			if err != nil {
				return fmt.Errorf("element segment %d: %w", i, err)
			}
			b.WriteString(" " + off)
		}
		if len(e.Exprs) > 0 {
			b.WriteString(" " + e.Type.String())
			for _, expr := range e.Exprs {
				item, err := p.constExpr(expr)
				if err != nil {
					return fmt.Errorf("element segment %d: %w", i, err)
				}
				b.WriteString(" " + item)
			}
		} else {
			b.WriteString(" func")
			for _, idx := range e.FuncIdxs {
				b.WriteString(" " + p.funcs[idx])
			}
		}
		b.WriteString(")")
		p.add("%s", b.String())
	}
	return nil
}

func (p *printer) printData() error {
	for i, d := range p.mod.Data {
		if d.Passive() {
			p.add("  (data $d%d %s)", i, quote(d.Init))
			continue
		}
		off, err := p.constExpr(d.Offset)
		if err != nil {
			return fmt.Errorf("data segment %d: %w", i, err)
		}
		mem := ""
		if d.MemIdx != 0 {
			mem = " (memory " + p.mems[d.MemIdx] + ")"
		}
		p.add("  (data $d%d%s %s %s)", i, mem, off, quote(d.Init))
	}
	return nil
}

// constExpr renders an init expression in folded form.
func (p *printer) constExpr(code []byte) (string, error) {
	instrs, err := wasm.DecodeInstructions(code)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, in := range instrs {
		if in.Opcode == wasm.OpEnd {
			continue
		}
		text, err := p.instr(in, nil)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+text+")")
	}
	return strings.Join(parts, " "), nil
}

// quote renders bytes as a string literal, escaping everything outside
// printable ASCII.
func quote(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range b {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "\\%02x", c)
	}
	sb.WriteByte('"')
	return sb.String()
}

func formatF32(bits uint32) string {
	f := math.Float32frombits(bits)
	sign := ""
	if bits&0x80000000 != 0 {
		sign = "-"
	}
	switch {
	case math.IsInf(float64(f), 0):
		return sign + "inf"
	case f != f:
		payload := bits & 0x7fffff
		if payload == 0x400000 {
			return sign + "nan"
		}
		return fmt.Sprintf("%snan:0x%x", sign, payload)
	}
	return strconv.FormatFloat(float64(f), 'x', -1, 32)
}

func formatF64(bits uint64) string {
	f := math.Float64frombits(bits)
	sign := ""
	if bits&(1<<63) != 0 {
		sign = "-"
	}
	switch {
	case math.IsInf(f, 0):
		return sign + "inf"
	case f != f:
		payload := bits & (1<<52 - 1)
		if payload == 1<<51 {
			return sign + "nan"
		}
		return fmt.Sprintf("%snan:0x%x", sign, payload)
	}
	return strconv.FormatFloat(f, 'x', -1, 64)
}

// opName returns the text mnemonic of a decoded instruction.
func opName(in wasm.Instruction) (opcode.Info, error) {
	if in.Opcode == wasm.OpPrefixMisc {
		misc, _ := in.Imm.(wasm.MiscImm)
		if info, ok := opcode.ByMisc(misc.SubOpcode); ok {
			return info, nil
		}
		return opcode.Info{}, fmt.Errorf("unknown 0xfc sub-opcode %d", misc.SubOpcode)
	}
	if info, ok := opcode.ByOpcode(in.Opcode); ok {
		return info, nil
	}
	return opcode.Info{}, fmt.Errorf("unknown opcode 0x%02x", in.Opcode)
}
