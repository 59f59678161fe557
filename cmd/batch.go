package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/pipeline"
)

var (
	batchCSV         string
	batchOutDir      string
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze every request in a CSV file concurrently",
	Long: `Reads a CSV with target_location and business_type columns (message and
maps_api_key are optional) and runs one isolated analysis per row. Each
row's result is written to its own JSON file in the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rows, err := parseBatchCSV(batchCSV)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(rows) > batchLimit {
			rows = rows[:batchLimit]
		}

		env, err := initPipeline(ctx, cfg, "batch")
		if err != nil {
			return err
		}

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentRuns
		}
		return processBatch(ctx, rows, concurrency, batchOutDir, func(ctx context.Context, in pipeline.Input) (*runOutput, error) {
			return analyze(ctx, env.Intake, env.Executor, in)
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchCSV, "csv", "", "path to the input CSV")
	batchCmd.Flags().StringVar(&batchOutDir, "out", "results", "directory for per-row JSON results")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of rows to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "concurrent runs (default from config)")
	_ = batchCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(batchCmd)
}

// batchRow is one request read from the CSV. Line is the 1-based data row.
type batchRow struct {
	Line  int
	Input pipeline.Input
}

// parseBatchCSV reads requests from path. The header must name
// target_location and business_type; message and maps_api_key are optional.
func parseBatchCSV(path string) ([]batchRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "batch: read csv")
	}
	if len(records) < 2 {
		return nil, eris.New("batch: csv has no data rows")
	}

	colIdx := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{"target_location", "business_type"} {
		if _, ok := colIdx[col]; !ok {
			return nil, eris.Errorf("batch: missing required column %q", col)
		}
	}

	get := func(rec []string, col string) string {
		i, ok := colIdx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rows := make([]batchRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		rows = append(rows, batchRow{
			Line: i + 1,
			Input: pipeline.Input{
				TargetLocation: get(rec, "target_location"),
				BusinessType:   get(rec, "business_type"),
				Message:        get(rec, "message"),
				MapsAPIKey:     get(rec, "maps_api_key"),
			},
		})
	}
	return rows, nil
}

// batchResult is the file written for each row.
type batchResult struct {
	Row     int            `json:"row"`
	Input   pipeline.Input `json:"input"`
	Result  *runOutput     `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
	Missing []string       `json:"missing,omitempty"`
}

// analyzeFunc is the callback signature for analyzing one request.
type analyzeFunc func(ctx context.Context, in pipeline.Input) (*runOutput, error)

// processBatch analyzes rows concurrently. A failed row is recorded in its
// result file and does not stop the batch.
func processBatch(ctx context.Context, rows []batchRow, concurrency int, outDir string, fn analyzeFunc) error {
	if len(rows) == 0 {
		zap.L().Info("no rows to process")
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return eris.Wrapf(err, "batch: create %s", outDir)
	}

	zap.L().Info("processing batch",
		zap.Int("rows", len(rows)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, row := range rows {
		g.Go(func() error {
			log := zap.L().With(
				zap.Int("row", row.Line),
				zap.String("target_location", row.Input.TargetLocation),
			)

			out, err := fn(gctx, row.Input)
			res := batchResult{Row: row.Line, Input: row.Input, Result: out}
			res.Input.MapsAPIKey = ""
			if err != nil {
				failed.Add(1)
				res.Error = err.Error()
				var ce *fault.ClarificationError
				if errors.As(err, &ce) {
					res.Missing = ce.Missing
				}
				log.Error("analysis failed", zap.Error(err))
			} else {
				succeeded.Add(1)
				log.Info("analysis complete", zap.String("run_id", out.Run.ID))
			}

			// Only write failures abort the batch.
			return writeBatchResult(outDir, res)
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

func writeBatchResult(dir string, res batchResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return eris.Wrap(err, "batch: marshal result")
	}
	path := filepath.Join(dir, fmt.Sprintf("row-%04d.json", res.Row))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "batch: write %s", path)
	}
	return nil
}
