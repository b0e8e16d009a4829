// Command watlink links the websnark bls12 library into an AssemblyScript
// module at the text level and emits the plain and host-functions variants.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/watlink/config"
	"github.com/wippyai/watlink/engine"
	"github.com/wippyai/watlink/linker"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "watlink",
		Short:         "Text-level WebAssembly linker for the websnark bls12 library",
		Long:          "watlink merges a library module into a primary module at the text level and assembles the result.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger(cmd)
			if err != nil {
				return err
			}
			linker.SetLogger(log)
			engine.SetLogger(log)
			return nil
		},
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "log every pipeline step")
	root.PersistentFlags().String("log-format", "console", "log encoding (console|json)")
	root.PersistentFlags().StringP("config", "c", "", "build manifest (default: nearest "+config.FileName+")")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newDisasmCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newCatalogCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle(os.Stderr).Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
