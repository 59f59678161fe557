package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locus/internal/artifact"
	"github.com/sells-group/locus/internal/config"
	"github.com/sells-group/locus/internal/cost"
	"github.com/sells-group/locus/internal/geo"
	"github.com/sells-group/locus/internal/monitoring"
	"github.com/sells-group/locus/internal/pipeline"
	"github.com/sells-group/locus/internal/profile"
	"github.com/sells-group/locus/internal/reasoner"
	"github.com/sells-group/locus/internal/research"
	"github.com/sells-group/locus/internal/resilience"
	anthropicpkg "github.com/sells-group/locus/pkg/anthropic"
	"github.com/sells-group/locus/pkg/gemini"
	"github.com/sells-group/locus/pkg/geocode"
	"github.com/sells-group/locus/pkg/google"
	"github.com/sells-group/locus/pkg/jina"
	"github.com/sells-group/locus/pkg/perplexity"
)

// pipelineEnv holds the executor and its collaborators needed by the
// analyze, batch and serve commands.
type pipelineEnv struct {
	Executor  *pipeline.Executor
	Intake    *pipeline.Intake
	Registry  *prometheus.Registry
	Collector *monitoring.Collector
}

// initPipeline validates config for mode, builds every client and returns
// a ready executor.
func initPipeline(ctx context.Context, c *config.Config, mode string) (*pipelineEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	r, err := initReasoner(ctx, c)
	if err != nil {
		return nil, err
	}

	stages, err := buildStages(c, pipeline.Deps{
		Researcher: initResearcher(c),
		Places:     initGeo(c),
		Artifacts:  initArtifacts(c),
	})
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	collector := monitoring.NewCollector(monitoring.NewMetrics(reg))

	exec, err := pipeline.NewExecutor(r, stages,
		pipeline.WithBeforeHooks(pipeline.LogStageStart()),
		pipeline.WithAfterHooks(pipeline.LogStageOutput()),
		pipeline.WithObservers(collector),
		pipeline.WithRunTimeout(time.Duration(c.Pipeline.RunTimeoutSecs)*time.Second),
		pipeline.WithReformulate(c.Pipeline.ReformulateOnSchemaViolation),
	)
	if err != nil {
		return nil, err
	}

	return &pipelineEnv{
		Executor: exec,
		Intake: pipeline.NewIntake(
			pipeline.WithIntakeReasoner(r),
			pipeline.WithDefaultMapsKey(c.Maps.Key),
		),
		Registry:  reg,
		Collector: collector,
	}, nil
}

// buildStages creates the default stages from config and applies the
// optional profile.
func buildStages(c *config.Config, deps pipeline.Deps) ([]pipeline.Stage, error) {
	stages := pipeline.DefaultStages(deps, pipeline.StageConfig{
		Retry:        resilience.FromSeconds(c.Retry.MaxAttempts, c.Retry.InitialDelaySec, c.Retry.MaxDelaySec, c.Retry.Jitter),
		Timeout:      time.Duration(c.Pipeline.StageTimeoutSecs) * time.Second,
		RadiusMeters: c.Maps.RadiusMeters,
	})
	if c.Pipeline.ProfilePath == "" {
		return stages, nil
	}

	p, err := profile.Load(c.Pipeline.ProfilePath)
	if err != nil {
		return nil, err
	}
	return p.Apply(stages)
}

func initReasoner(ctx context.Context, c *config.Config) (reasoner.Client, error) {
	switch c.Reasoner.Provider {
	case config.ProviderAnthropic:
		var opts []anthropicpkg.Option
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
		}
		client := anthropicpkg.NewClient(c.Anthropic.Key, opts...)
		return reasoner.NewAnthropic(client, reasoner.Models{
			Fast: c.Anthropic.FastModel,
			Pro:  c.Anthropic.ProModel,
		}, c.Anthropic.MaxTokens), nil
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:   c.Gemini.Key,
			Vertex:   c.Gemini.Vertex,
			Project:  c.Gemini.Project,
			Location: c.Gemini.Location,
			BaseURL:  c.Gemini.BaseURL,
			Timeout:  time.Duration(c.Gemini.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		rates := cost.DefaultRates()
		for name, r := range c.Pricing.Gemini {
			rates.Gemini[name] = r
		}
		return reasoner.NewGemini(client, reasoner.Models{
			Fast: c.Gemini.FastModel,
			Pro:  c.Gemini.ProModel,
		}, reasoner.WithGeminiRates(rates)), nil
	default:
		return nil, eris.Errorf("init reasoner: unknown provider %q", c.Reasoner.Provider)
	}
}

// initResearcher returns the configured web research providers, Perplexity
// first. It returns nil when neither has a key.
func initResearcher(c *config.Config) research.Researcher {
	var chain research.Fallback
	if c.Perplexity.Key != "" {
		chain = append(chain, research.NewPerplexity(perplexity.NewClient(c.Perplexity.Key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(c.Perplexity.Model),
		)))
	}
	if c.Jina.Key != "" {
		var opts []jina.Option
		if c.Jina.SearchBaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
		}
		chain = append(chain, research.NewJina(jina.NewClient(c.Jina.Key, opts...)))
	}

	switch len(chain) {
	case 0:
		zap.L().Info("no web research provider configured; market research uses model grounding only")
		return nil
	case 1:
		return chain[0]
	default:
		return chain
	}
}

func initGeo(c *config.Config) *geo.Tool {
	geoOpts := []geocode.Option{geocode.WithGoogleAPIKey(c.Maps.Key)}
	placeOpts := []google.Option{}
	if c.Maps.RateLimit > 0 {
		geoOpts = append(geoOpts, geocode.WithRateLimit(c.Maps.RateLimit))
		placeOpts = append(placeOpts, google.WithRateLimit(c.Maps.RateLimit))
	}
	if c.Maps.GeocodeBaseURL != "" {
		geoOpts = append(geoOpts, geocode.WithBaseURL(c.Maps.GeocodeBaseURL))
	}
	if c.Maps.PlacesBaseURL != "" {
		placeOpts = append(placeOpts, google.WithBaseURL(c.Maps.PlacesBaseURL))
	}

	return geo.NewTool(
		geocode.NewClient(geoOpts...),
		google.NewClient(c.Maps.Key, placeOpts...),
		geo.WithAPIKey(c.Maps.Key),
		geo.WithRadius(c.Maps.RadiusMeters),
	)
}

func initArtifacts(c *config.Config) pipeline.ArtifactWriter {
	if c.Artifacts.Dir == "" {
		return nil
	}
	return artifact.NewStore(c.Artifacts.Dir)
}
