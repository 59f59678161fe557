package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/model"
	"github.com/sells-group/locus/internal/pipeline"
	"github.com/sells-group/locus/internal/report"
)

var (
	analyzeLocation string
	analyzeBusiness string
	analyzeMessage  string
	analyzeMapsKey  string
	analyzeOutput   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the location strategy analysis for one request",
	Example: `  locus analyze --location "Indiranagar, Bangalore" --business "coffee shop"
  locus analyze --message "I want to open a gym near Koramangala" --output result.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, cfg, "analyze")
		if err != nil {
			return err
		}

		out, err := analyze(ctx, env.Intake, env.Executor, pipeline.Input{
			TargetLocation: analyzeLocation,
			BusinessType:   analyzeBusiness,
			Message:        analyzeMessage,
			MapsAPIKey:     analyzeMapsKey,
		})
		var ce *fault.ClarificationError
		if errors.As(err, &ce) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Please provide: %v\n", ce.Missing)
			return err
		}
		if out == nil {
			return err
		}

		if werr := writeOutput(cmd.OutOrStdout(), analyzeOutput, out); werr != nil {
			return werr
		}
		return err
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeLocation, "location", "", "target location, e.g. \"Indiranagar, Bangalore\"")
	analyzeCmd.Flags().StringVar(&analyzeBusiness, "business", "", "business type, e.g. \"coffee shop\"")
	analyzeCmd.Flags().StringVar(&analyzeMessage, "message", "", "free-text request used for any field not given as a flag")
	analyzeCmd.Flags().StringVar(&analyzeMapsKey, "maps-key", "", "maps API key (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "write the JSON result to this file instead of stdout")
	rootCmd.AddCommand(analyzeCmd)
}

// runner is the part of the executor the commands use.
type runner interface {
	Run(ctx context.Context, p pipeline.Params) (*pipeline.RunResult, error)
	Stages() []pipeline.StageInfo
}

// parser turns a raw request into run parameters.
type parser interface {
	Parse(ctx context.Context, in pipeline.Input) (*pipeline.Params, error)
}

// runOutput is the JSON shape of one analysis result.
type runOutput struct {
	Run              model.Run                          `json:"run"`
	Report           *report.LocationIntelligenceReport `json:"report,omitempty"`
	ExecutiveSummary string                             `json:"executive_summary,omitempty"`
	ExecutiveHTML    string                             `json:"executive_html,omitempty"`
}

func newRunOutput(res *pipeline.RunResult) *runOutput {
	out := &runOutput{Run: res.Run, Report: res.Report}
	if exec, ok := res.Output.(*pipeline.ExecutiveReport); ok {
		out.ExecutiveSummary = exec.Summary
		out.ExecutiveHTML = exec.HTML
	}
	return out
}

// analyze parses the request and runs the pipeline. A failed run still
// returns its partial output alongside the error.
func analyze(ctx context.Context, p parser, r runner, in pipeline.Input) (*runOutput, error) {
	params, err := p.Parse(ctx, in)
	if err != nil {
		return nil, err
	}

	res, err := r.Run(ctx, *params)
	if res == nil {
		return nil, err
	}
	if err != nil {
		zap.L().Warn("analysis failed",
			zap.String("run_id", res.ID),
			zap.String("stage", res.FailedStage),
			zap.String("kind", res.ErrorKind),
		)
	}
	return newRunOutput(res), err
}

func writeOutput(stdout io.Writer, path string, v any) error {
	if path == "" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "analyze: marshal output")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "analyze: write %s", path)
	}
	zap.L().Info("wrote result", zap.String("path", path))
	return nil
}
