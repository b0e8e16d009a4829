package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/watlink/config"
	"github.com/wippyai/watlink/linker"
)

// loadConfig returns the manifest named by --config, else the nearest
// watlink.toml, else the defaults. Input and output flags override it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	var cfg *config.Config
	switch {
	case path != "":
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	default:
		found, ok, err := config.Find(".")
		if err != nil {
			return nil, err
		}
		if ok && !cmd.Flags().Changed("primary") {
			if cfg, err = config.Load(found); err != nil {
				return nil, err
			}
			linker.Logger().Debug("using manifest", zap.String("path", found))
		} else {
			cfg = config.Default()
		}
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"primary", &cfg.Primary.Path},
		{"secondary", &cfg.Secondary.Path},
		{"format", &cfg.Secondary.Format},
		{"out", &cfg.Output.Dir},
		{"variant", &cfg.Output.Variants},
		{"dump-dir", &cfg.Output.DumpDir},
		{"module-name", &cfg.Output.ModuleName},
	}
	for _, o := range overrides {
		if cmd.Flags().Lookup(o.flag) == nil || !cmd.Flags().Changed(o.flag) {
			continue
		}
		v, err := cmd.Flags().GetString(o.flag)
		if err != nil {
			return nil, err
		}
		*o.dst = v
		// flag paths are relative to the working directory
		if o.flag != "format" && o.flag != "variant" && o.flag != "module-name" && cfg.Root != "." {
			if *o.dst, err = absPath(v); err != nil {
				return nil, err
			}
		}
	}
	if f := cmd.Flags().Lookup("dump"); f != nil && f.Changed {
		if cfg.Output.DumpStages, err = cmd.Flags().GetBool("dump"); err != nil {
			return nil, err
		}
	}
	if f := cmd.Flags().Lookup("parallel"); f != nil && f.Changed {
		if cfg.Output.Parallel, err = cmd.Flags().GetBool("parallel"); err != nil {
			return nil, err
		}
	}

	if cfg.Primary.Path == "" || cfg.Secondary.Path == "" {
		return nil, fmt.Errorf("no %s found\nplease name the inputs explicitly, e.g.:\n  watlink build --primary main.wat --secondary websnark_bls12.wasm", config.FileName)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func absPath(p string) (string, error) {
	if p == "" || filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Abs(p)
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("primary", "", "primary module text (overrides [primary].path)")
	cmd.Flags().String("secondary", "", "library module, text or binary (overrides [secondary].path)")
	cmd.Flags().String("format", "", "library module format (auto|wat|wasm)")
	cmd.Flags().String("variant", "", "variants to build (plain|hostfuncs|all)")
	cmd.Flags().Bool("parallel", true, "build variants concurrently")
	cmd.Flags().String("module-name", "", "module name recorded in the name section")
}
