package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goresearch/domain/research"
	"goresearch/internal/config"
	"goresearch/internal/container"
	apperrors "goresearch/internal/errors"
	"goresearch/internal/logging"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "goresearch",
		Short:         "Run and inspect the research pipeline from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newEthicsCmd(),
		newQualityCmd(),
		newExtractCmd(),
		newValidateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates a rejected run (2) from faults (1)
func exitCode(err error) int {
	if err == errRejected {
		return 2
	}
	return 1
}

var errRejected = fmt.Errorf("pipeline rejected")

func newContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return container.New(ctx, cfg, logger)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRunCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "run [topic]",
		Short: "Run the full pipeline for a topic",
		Long: `Run ingestion through learning for one topic and print the outcome as JSON.

Example: goresearch run "catalyst for CO2" --sources paper,patent`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := make([]research.DataSource, 0, len(sources))
			for _, s := range sources {
				ds, err := research.ParseDataSource(s)
				if err != nil {
					return err
				}
				parsed = append(parsed, ds)
			}

			ctx := cmd.Context()
			c, err := newContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background()) //nolint:errcheck

			outcome, err := c.Orchestrator.Run(ctx, strings.Join(args, " "), parsed)
			if err != nil {
				c.Logger.Error("run failed", zap.String("code", apperrors.GetCode(err)), zap.Error(err))
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), outcome); err != nil {
				return err
			}
			if outcome.Rejected() {
				return errRejected
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&sources, "sources", []string{"paper"}, "data sources (paper, patent, dataset, forum)")
	return cmd
}

func newEthicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ethics [text...]",
		Short: "Check text against the policy gate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background()) //nolint:errcheck
			return printJSON(cmd.OutOrStdout(), c.Orchestrator.CheckEthics(strings.Join(args, " ")))
		},
	}
}

func newQualityCmd() *cobra.Command {
	var provenance, license string

	cmd := &cobra.Command{
		Use:   "quality [content...]",
		Short: "Score a document with the quality checks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background()) //nolint:errcheck

			metadata := map[string]string{}
			if provenance != "" {
				metadata[research.MetaProvenance] = provenance
			}
			if license != "" {
				metadata[research.MetaLicense] = license
			}
			return printJSON(cmd.OutOrStdout(), c.Orchestrator.ScoreQuality(strings.Join(args, " "), metadata))
		},
	}

	cmd.Flags().StringVar(&provenance, "provenance", "", "provenance tag of the document")
	cmd.Flags().StringVar(&license, "license", "", "license of the document")
	return cmd
}

func newExtractCmd() *cobra.Command {
	var qualityScore float64

	cmd := &cobra.Command{
		Use:   "extract [text...]",
		Short: "Extract candidates and admitted entities from text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background()) //nolint:errcheck

			text := strings.Join(args, " ")
			entities, err := c.Orchestrator.Model(cmd.Context(), []research.CuratedData{{
				Content:      text,
				QualityScore: qualityScore,
				Metadata:     map[string]string{research.MetaProvenance: "cli"},
			}})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"candidates": c.Extractor.Extract(text),
				"entities":   entities,
			})
		},
	}

	cmd.Flags().Float64Var(&qualityScore, "quality", 1.0, "quality score of the text")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [metric=value...]",
		Short: "Apply the publication criteria to metrics",
		Long: `Apply the publication criteria to precomputed metrics.

Example: goresearch validate p_value=0.01 effect_size=0.8 power=0.9`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := make(map[string]float64, len(args))
			for _, arg := range args {
				key, raw, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected metric=value, got %q", arg)
				}
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("metric %s: %w", key, err)
				}
				data[key] = v
			}

			c, err := newContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background()) //nolint:errcheck
			return printJSON(cmd.OutOrStdout(), c.Orchestrator.ValidateMetrics(data))
		},
	}
}
