package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/geo"
	"github.com/sells-group/locus/internal/report"
)

// LogStageStart logs the start of every stage.
func LogStageStart() BeforeHook {
	return func(_ context.Context, hc *HookContext) error {
		zap.L().Info("pipeline: stage starting",
			zap.String("run_id", hc.RunID),
			zap.String("stage", hc.Stage.Name),
			zap.Int("ordinal", hc.Stage.Ordinal),
			zap.Int("state_keys", len(hc.State.Keys())),
		)
		return nil
	}
}

// LogStageOutput logs the size of each produced value.
func LogStageOutput() AfterHook {
	return func(_ context.Context, hc *HookContext, value any) error {
		zap.L().Debug("pipeline: stage output",
			zap.String("run_id", hc.RunID),
			zap.String("stage", hc.Stage.Name),
			zap.String("output_key", hc.Stage.OutputKey),
			zap.Int("chars", len(formatValue(value))),
		)
		return nil
	}
}

// RequireKeys fails the stage before it runs when any key is absent from
// state.
func RequireKeys(keys ...string) BeforeHook {
	return func(_ context.Context, hc *HookContext) error {
		var missing []string
		for _, k := range keys {
			if !hc.State.Has(k) {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return fault.MissingDependency("before hook "+hc.Stage.Name, missing...)
		}
		return nil
	}
}

// ReportQuality annotates a strategy report whose list sizes fall outside
// the expected ranges. It never fails the stage.
func ReportQuality() AfterHook {
	return func(_ context.Context, hc *HookContext, value any) error {
		r, ok := value.(*report.LocationIntelligenceReport)
		if !ok || r == nil {
			return nil
		}
		hc.Annotate("overall_score", r.TopRecommendation.OverallScore)
		if warnings := r.QualityWarnings(); len(warnings) > 0 {
			hc.Annotate("quality_warnings", warnings)
			zap.L().Warn("pipeline: report quality",
				zap.String("run_id", hc.RunID),
				zap.Strings("warnings", warnings),
			)
		}
		return nil
	}
}

// ArtifactWriter persists a named artifact for a run.
type ArtifactWriter interface {
	Write(runID, name string, data []byte) (string, error)
}

// WriteArtifacts saves reports and the competitor map as files. A failed
// write is logged and annotated; the analysis result is kept.
func WriteArtifacts(w ArtifactWriter) AfterHook {
	return func(_ context.Context, hc *HookContext, value any) error {
		var (
			name string
			data []byte
			err  error
		)
		switch v := value.(type) {
		case *report.LocationIntelligenceReport:
			name = "strategic_report.json"
			data, err = json.MarshalIndent(v, "", "  ")
		case *ExecutiveReport:
			name = "executive_report.html"
			data = []byte(v.HTML)
		case *geo.Landscape:
			name = "competitor_map.geojson"
			data, err = v.GeoJSON()
		default:
			return nil
		}

		if err == nil {
			var path string
			path, err = w.Write(hc.RunID, name, data)
			if err == nil {
				hc.Annotate("artifact", path)
				return nil
			}
		}
		hc.Annotate("artifact_error", err.Error())
		zap.L().Warn("pipeline: artifact not written",
			zap.String("run_id", hc.RunID),
			zap.String("artifact", name),
			zap.Error(err),
		)
		return nil
	}
}
