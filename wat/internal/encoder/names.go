package encoder

import (
	"fortio.org/safecast"

	"github.com/wippyai/watlink/wat/internal/ast"
)

const (
	nameModule    byte = 0
	nameFunctions byte = 1
	nameLocals    byte = 2
)

// writeNameSection writes the "name" custom section. Anonymous functions
// and locals are skipped; an empty subsection is omitted.
func writeNameSection(b *Buffer, mod *ast.Module, override string) {
	b.WriteString("name")

	moduleName := mod.Name
	if override != "" {
		moduleName = override
	}
	if moduleName != "" {
		var sub Buffer
		sub.WriteString(moduleName)
		b.WriteSection(nameModule, &sub)
	}

	var funcs Buffer
	count := 0
	for _, name := range mod.FuncNames {
		if name != "" {
			count++
		}
	}
	if count > 0 {
		funcs.WriteLen(count)
		for i, name := range mod.FuncNames {
			if name == "" {
				continue
			}
			funcs.WriteU32(index(&funcs, i))
			funcs.WriteString(name)
		}
		b.WriteSection(nameFunctions, &funcs)
	}

	imported := len(mod.FuncNames) - len(mod.Funcs)
	var locals Buffer
	var entries []int
	for i, fn := range mod.Funcs {
		for _, n := range fn.LocalNames {
			if n != "" {
				entries = append(entries, i)
				break
			}
		}
	}
	if len(entries) == 0 {
		return
	}
	locals.WriteLen(len(entries))
	for _, i := range entries {
		fn := mod.Funcs[i]
		locals.WriteU32(index(&locals, imported+i))
		named := 0
		for _, n := range fn.LocalNames {
			if n != "" {
				named++
			}
		}
		locals.WriteLen(named)
		for j, n := range fn.LocalNames {
			if n == "" {
				continue
			}
			locals.WriteU32(index(&locals, j))
			locals.WriteString(n)
		}
	}
	b.WriteSection(nameLocals, &locals)
}

func index(b *Buffer, i int) uint32 {
	v, err := safecast.Conv[uint32](i)
	if err != nil {
		b.fail(err)
	}
	return v
}
