package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/watlink/engine"
	"github.com/wippyai/watlink/linker"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <module.wasm>",
		Short: "Compile a module with wazero and list its imports and exports",
		Long: `Verify compiles the module, which type checks every function, and lists its
function imports and exports. With --host-catalog the module is also
instantiated against stub host functions for every host import in the
catalog; any other import is reported as missing unless --stub-rest is set.`,
		Args: cobra.ExactArgs(1),
		RunE: verifyExecution,
	}
	cmd.Flags().Bool("host-catalog", false, "instantiate against stubs of the host import catalog")
	cmd.Flags().Bool("stub-rest", false, "with --host-catalog, stub imports outside the catalog too")
	return cmd
}

func catalogStubs(cat linker.Catalog, calls *engine.Counter) ([]engine.HostFunc, error) {
	out := make([]engine.HostFunc, 0, len(cat.HostImports))
	for _, h := range cat.HostImports {
		stub, err := engine.Stub(h.Module, h.Field, h.Params, h.Results, calls)
		if err != nil {
			return nil, err
		}
		out = append(out, stub)
	}
	return out, nil
}

func formatFunc(f engine.Func, styled bool) string {
	name := f.Name
	if f.Module != "" {
		name = f.Module + "." + f.Name
	}
	sig := "(" + strings.Join(f.Params, ", ") + ")"
	if len(f.Results) > 0 {
		sig += " -> " + strings.Join(f.Results, ", ")
	}
	if styled {
		return funcStyle.Render(name) + typeStyle.Render(sig)
	}
	return name + sig
}

func verifyExecution(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	bin, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	eng, err := engine.New(ctx, &engine.Config{Interpreter: true})
	if err != nil {
		return err
	}
	defer eng.Close(ctx)

	info, err := eng.Inspect(ctx, bin)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	styled := styledOutput(out)
	name := info.Name
	if name == "" {
		name = args[0]
	}
	fmt.Fprintf(out, "module %s: %d imports, %d exports\n", name, len(info.Imports), len(info.Exports))
	for _, f := range info.Imports {
		fmt.Fprintf(out, "  import %s\n", formatFunc(f, styled))
	}
	for _, f := range info.Exports {
		fmt.Fprintf(out, "  export %s\n", formatFunc(f, styled))
	}

	withCatalog, err := cmd.Flags().GetBool("host-catalog")
	if err != nil || !withCatalog {
		return err
	}
	stubRest, err := cmd.Flags().GetBool("stub-rest")
	if err != nil {
		return err
	}

	cfg, err := loadCatalogConfig(cmd)
	if err != nil {
		return err
	}
	hosts, err := catalogStubs(cfg.Catalog(), nil)
	if err != nil {
		return err
	}
	if stubRest {
		rest, err := engine.StubImports(info.Imports, nil)
		if err != nil {
			return err
		}
		// catalog stubs take precedence
		hosts = append(rest, hosts...)
	}

	inst, err := eng.Instantiate(ctx, bin, hosts)
	if err != nil {
		return err
	}
	defer inst.Close(ctx)
	fmt.Fprintln(out, "instantiated against the host import catalog")
	return nil
}
