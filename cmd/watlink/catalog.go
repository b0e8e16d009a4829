package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/watlink/config"
)

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the effective rename, host import and rewrite tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadCatalogConfig(cmd)
			if err != nil {
				return err
			}
			cat := cfg.Catalog()
			out := cmd.OutOrStdout()
			styled := styledOutput(out)

			renames := newTable(styled, "rename", "to")
			for _, r := range cat.Renames {
				renames.Row("$"+r.From, "$"+r.To)
			}
			imports := newTable(styled, "host import")
			for _, h := range cat.HostImports {
				imports.Row(h.Line())
			}
			rewrites := newTable(styled, "call", "becomes", "optional")
			for _, r := range cat.Rewrites {
				optional := "no"
				if r.Optional {
					optional = "yes"
				}
				rewrites.Row("call $"+r.Target, "call $"+r.Import, optional)
			}
			fmt.Fprintln(out, renames.String())
			fmt.Fprintln(out, imports.String())
			fmt.Fprintln(out, rewrites.String())
			return nil
		},
	}
}

// loadCatalogConfig is loadConfig for commands that need no inputs: a
// missing manifest yields the defaults.
func loadCatalogConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		found, ok, err := config.Find(".")
		if err != nil {
			return nil, err
		}
		if !ok {
			return config.Default(), nil
		}
		path = found
	}
	return config.Load(path)
}
