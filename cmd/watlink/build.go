package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/watlink/config"
	"github.com/wippyai/watlink/engine"
	"github.com/wippyai/watlink/linker"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [flags]",
		Short: "Link the library into the primary module and write the variants",
		Long: `Build reads the primary module text and the library module, produces the
plain and host-functions variants and writes them to the output directory.
No artifact is written unless every requested variant builds.`,
		Args: cobra.NoArgs,
		RunE: buildExecution,
	}
	addInputFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "output directory (overrides [output].dir)")
	cmd.Flags().Bool("dump", false, "write the intermediate text of every stage")
	cmd.Flags().String("dump-dir", "", "stage dump directory (overrides [output].dump_dir)")
	return cmd
}

// readInputs returns the primary text and the library text, disassembling
// a binary library.
func readInputs(cfg *config.Config) (string, string, error) {
	primary, err := os.ReadFile(cfg.PrimaryPath())
	if err != nil {
		return "", "", fmt.Errorf("read primary module: %w", err)
	}
	raw, err := os.ReadFile(cfg.SecondaryPath())
	if err != nil {
		return "", "", fmt.Errorf("read library module: %w", err)
	}
	secondary, err := linker.LoadSecondary(raw, cfg.SecondaryFormat())
	if err != nil {
		return "", "", fmt.Errorf("load library module %s: %w", cfg.SecondaryPath(), err)
	}
	return string(primary), secondary, nil
}

// buildOptions returns linker options for cfg with one validating engine
// shared by every variant. The returned release function closes it.
func buildOptions(cmd *cobra.Command, cfg *config.Config) (linker.Options, func(), error) {
	opts := cfg.Options()
	if cfg.Output.DumpStages {
		opts.Dumper = linker.DirDumper{Dir: cfg.DumpDir()}
	}

	ctx := cmd.Context()
	eng, err := engine.New(ctx, &engine.Config{Interpreter: true})
	if err != nil {
		return opts, nil, err
	}
	opts.Validator = eng
	return opts, func() { _ = eng.Close(ctx) }, nil
}

func buildExecution(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	primary, secondary, err := readInputs(cfg)
	if err != nil {
		return err
	}
	opts, release, err := buildOptions(cmd, cfg)
	if err != nil {
		return err
	}
	defer release()

	results, err := linker.BuildAll(cmd.Context(), cfg.Variants(), primary, secondary, opts, cfg.Output.Parallel)
	if err != nil {
		return err
	}

	paths := make([]string, len(results))
	for i, res := range results {
		paths[i] = cfg.OutputPath(res.Variant)
		if err := linker.WriteArtifact(paths[i], res.Binary); err != nil {
			return err
		}
		linker.Logger().Info("wrote artifact",
			zap.Stringer("variant", res.Variant),
			zap.String("path", paths[i]),
			zap.Int("bytes", len(res.Binary)))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderSummary(results, paths, styledOutput(out)))
	if cfg.Output.DumpStages {
		fmt.Fprintf(out, "stage texts written to %s\n", cfg.DumpDir())
	}
	return nil
}
