// Package config loads watlink.toml build manifests.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	watlink "github.com/wippyai/watlink"
	"github.com/wippyai/watlink/errors"
	"github.com/wippyai/watlink/linker"
)

// FileName is the manifest name Find looks for.
const FileName = "watlink.toml"

//go:embed default.toml
var defaultManifest string

// Config is a decoded build manifest.
type Config struct {
	Primary     PrimaryConfig        `toml:"primary"`
	Secondary   SecondaryConfig      `toml:"secondary"`
	Output      OutputConfig         `toml:"output"`
	Placeholder PlaceholderConfig    `toml:"placeholder"`
	Renames     []linker.RenameRule  `toml:"rename"`
	HostImports []linker.HostImport  `toml:"host_import"`
	Rewrites    []linker.RewriteRule `toml:"rewrite"`

	// Path is the manifest file and Root its directory. Relative paths in
	// the manifest are resolved against Root.
	Path string `toml:"-"`
	Root string `toml:"-"`

	customRenames     bool
	customHostImports bool
	customRewrites    bool
}

type PrimaryConfig struct {
	Path string `toml:"path"`
}

type SecondaryConfig struct {
	Path   string `toml:"path"`
	Format string `toml:"format"`
}

type OutputConfig struct {
	Dir        string `toml:"dir"`
	Plain      string `toml:"plain"`
	HostFuncs  string `toml:"hostfuncs"`
	Variants   string `toml:"variants"`
	Parallel   bool   `toml:"parallel"`
	DumpStages bool   `toml:"dump_stages"`
	DumpDir    string `toml:"dump_dir"`
	ModuleName string `toml:"module_name"`
}

type PlaceholderConfig struct {
	Module    string `toml:"module"`
	ScanLimit int    `toml:"scan_limit"`
}

// Default returns the built-in configuration rooted at the working
// directory. It has no input paths.
func Default() *Config {
	var cfg Config
	if _, err := toml.Decode(defaultManifest, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	cfg.Root = "."
	return &cfg
}

// Find walks up from startDir to the nearest watlink.toml. The bool is
// false when there is none.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads and validates the manifest at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "read manifest")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "resolve manifest path")
	}
	return Parse(string(data), abs)
}

func invalid(path, format string, args ...any) error {
	return errors.InvalidInput(errors.PhaseConfig, path+": "+fmt.Sprintf(format, args...))
}

// Parse decodes manifest text over the defaults. path names the manifest
// in diagnostics and sets Root.
func Parse(text, path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, path+": failed to parse TOML")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, invalid(path, "unknown keys: %s", strings.Join(keys, ", "))
	}
	if !meta.IsDefined("primary", "path") || strings.TrimSpace(cfg.Primary.Path) == "" {
		return nil, invalid(path, "missing [primary].path")
	}
	if !meta.IsDefined("secondary", "path") || strings.TrimSpace(cfg.Secondary.Path) == "" {
		return nil, invalid(path, "missing [secondary].path")
	}

	cfg.Path = path
	cfg.Root = filepath.Dir(path)
	cfg.customRenames = meta.IsDefined("rename")
	cfg.customHostImports = meta.IsDefined("host_import")
	cfg.customRewrites = meta.IsDefined("rewrite")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that decoding alone cannot.
func (c *Config) Validate() error {
	where := c.Path
	if where == "" {
		where = "config"
	}
	if _, err := linker.ParseFormat(c.Secondary.Format); err != nil {
		return invalid(where, "[secondary].format: %v", err)
	}
	if _, err := watlink.ParseVariant(c.Output.Variants); err != nil {
		return invalid(where, "[output].variants: %v", err)
	}
	if c.Output.Plain == "" || c.Output.HostFuncs == "" {
		return invalid(where, "[output] artifact names must not be empty")
	}
	if c.Output.Plain == c.Output.HostFuncs {
		return invalid(where, "[output].plain and [output].hostfuncs name the same file")
	}
	if strings.TrimSpace(c.Placeholder.Module) == "" {
		return invalid(where, "[placeholder].module must not be empty")
	}
	if c.Placeholder.ScanLimit <= 0 {
		return invalid(where, "[placeholder].scan_limit must be positive, got %d", c.Placeholder.ScanLimit)
	}
	if err := c.Catalog().Validate(); err != nil {
		var e *errors.Error
		if errors.As(err, &e) {
			return e.WithPath(where)
		}
		return err
	}
	return nil
}

// Catalog returns the effective catalog: each table the manifest declares
// replaces the built-in one.
func (c *Config) Catalog() linker.Catalog {
	cat := linker.DefaultCatalog()
	if c.customRenames {
		cat.Renames = append([]linker.RenameRule(nil), c.Renames...)
	}
	if c.customHostImports {
		cat.HostImports = append([]linker.HostImport(nil), c.HostImports...)
	}
	if c.customRewrites {
		cat.Rewrites = append([]linker.RewriteRule(nil), c.Rewrites...)
	}
	return cat
}

// Options returns linker options for the manifest. Dumping is left to
// the caller.
func (c *Config) Options() linker.Options {
	return linker.Options{
		Catalog:     c.Catalog(),
		Placeholder: linker.Placeholder{Module: c.Placeholder.Module, ScanLimit: c.Placeholder.ScanLimit},
		ModuleName:  c.Output.ModuleName,
	}
}

// Variants returns the variants [output].variants selects.
func (c *Config) Variants() []watlink.Variant {
	vs, err := watlink.ParseVariant(c.Output.Variants)
	if err != nil {
		return append([]watlink.Variant(nil), watlink.Variants...)
	}
	return vs
}

// SecondaryFormat returns the parsed [secondary].format.
func (c *Config) SecondaryFormat() linker.Format {
	f, _ := linker.ParseFormat(c.Secondary.Format)
	return f
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// PrimaryPath is the primary module path resolved against Root.
func (c *Config) PrimaryPath() string { return c.resolve(c.Primary.Path) }

// SecondaryPath is the secondary module path resolved against Root.
func (c *Config) SecondaryPath() string { return c.resolve(c.Secondary.Path) }

// DumpDir is the stage dump directory resolved against Root.
func (c *Config) DumpDir() string { return c.resolve(c.Output.DumpDir) }

// OutputPath returns where the artifact of v is written.
func (c *Config) OutputPath(v watlink.Variant) string {
	name := c.Output.Plain
	if v.UsesHostFuncs() {
		name = c.Output.HostFuncs
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.resolve(c.Output.Dir), filepath.FromSlash(name))
}
