package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/tts-survey-eval/evaluation"
	"github.com/example/tts-survey-eval/pkg/analyses"
	"github.com/example/tts-survey-eval/pkg/config"
)

func newAnalysisCmd(opts *options, a analyses.Analysis) *cobra.Command {
	return &cobra.Command{
		Use:   a.Name,
		Short: a.Description,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, env *analyses.Env, w io.Writer) error {
				report, err := a.Execute(ctx, env)
				if err != nil {
					return err
				}
				return report.Render(w)
			})
		},
	}
}

func newAllCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, analyses.All)
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, a := range analyses.Registry {
				fmt.Fprintf(tw, "%s\t%s\n", a.Name, a.Description)
			}
			return tw.Flush()
		},
	}
}

func newVerifyCmd(opts *options) *cobra.Command {
	var skipInputs bool
	cmd := &cobra.Command{
		Use:   "verify [manifest]",
		Short: "Re-check the checksums recorded in a run manifest",
		Long: `verify re-hashes every input and output listed in a run manifest. Without an
argument the manifest in the configured output directory is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			path := filepath.Join(cfg.OutputDir, evaluation.ManifestName)
			if len(args) == 1 {
				path = args[0]
			}
			rv := evaluation.NewReproducibilityValidator(logger)
			rv.SkipInputs = skipInputs
			res, err := rv.Verify(cmd.Context(), path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, c := range res.Checks {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Kind, c.Name, c.Status, c.Message)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Run %s: %d checks, score %.2f\n", res.RunID, len(res.Checks), res.Score)
			if !res.Passed {
				return fmt.Errorf("run %s failed verification", res.RunID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipInputs, "skip-inputs", false, "Only verify the outputs")
	return cmd
}

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "surveyeval.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}, &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cmd
}
