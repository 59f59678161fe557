package pipeline

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/locus/internal/report"
	"github.com/sells-group/locus/internal/state"
)

// ExecutiveReport is the stored output of the report stage: the reasoner's
// executive summary and the HTML document built around it.
type ExecutiveReport struct {
	Summary string `json:"summary"`
	HTML    string `json:"html"`
}

// String returns the summary text.
func (r *ExecutiveReport) String() string {
	return r.Summary
}

// titleCase builds a new Caser per call; a Caser is stateful and must not
// be shared across concurrent runs.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

var executiveTmpl = template.Must(template.New("executive").Funcs(template.FuncMap{
	"title": titleCase,
	"paragraphs": func(s string) []string {
		var out []string
		for _, p := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{title .Report.BusinessType}} in {{.Report.TargetLocation}}: Location Intelligence</title>
<style>
body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem;color:#1f2933}
h1{margin-bottom:.25rem}.meta{color:#616e7c}.score{font-size:2.5rem;font-weight:700}
table{border-collapse:collapse;width:100%}td,th{border:1px solid #cbd2d9;padding:.4rem .6rem;text-align:left}
section{margin:1.75rem 0}
</style>
</head>
<body>
<header>
<h1>{{title .Report.BusinessType}} in {{.Report.TargetLocation}}</h1>
<p class="meta">Analysis date {{.Report.AnalysisDate}} &middot; {{.Report.TotalCompetitorsFound}} competitors &middot; {{.Report.ZonesAnalyzed}} zones analyzed</p>
</header>
<section>
<h2>Executive Summary</h2>
{{range paragraphs .Summary}}<p>{{.}}</p>
{{end}}<p><strong>Market validation:</strong> {{.Report.MarketValidation}}</p>
</section>
{{with .Report.TopRecommendation}}<section>
<h2>Top Recommendation: {{.LocationName}}</h2>
<p class="score">{{.OverallScore}}/100</p>
<p>{{.Area}} &middot; {{.OpportunityType}}</p>
<p><strong>Best customer segment:</strong> {{.BestCustomerSegment}}<br><strong>Estimated foot traffic:</strong> {{.EstimatedFootTraffic}}</p>
<h3>Strengths</h3>
<ul>{{range .Strengths}}<li><strong>{{.Factor}}</strong>: {{.Description}} <em>({{.Evidence}})</em></li>{{end}}</ul>
<h3>Concerns</h3>
<ul>{{range .Concerns}}<li><strong>{{.Risk}}</strong>: {{.Description}}. Mitigation: {{.Mitigation}}</li>{{end}}</ul>
<h3>Competition</h3>
<table>
<tr><th>Competitors</th><th>Density per km&sup2;</th><th>Chain dominance</th><th>Average rating</th><th>High performers</th></tr>
<tr><td>{{.Competition.TotalCompetitors}}</td><td>{{printf "%.1f" .Competition.DensityPerKm2}}</td><td>{{printf "%.0f" .Competition.ChainDominancePct}}%</td><td>{{printf "%.1f" .Competition.AvgCompetitorRating}}</td><td>{{.Competition.HighPerformersCount}}</td></tr>
</table>
<h3>Market</h3>
<table>
<tr><th>Population density</th><td>{{.Market.PopulationDensity}}</td></tr>
<tr><th>Income level</th><td>{{.Market.IncomeLevel}}</td></tr>
<tr><th>Infrastructure</th><td>{{.Market.InfrastructureAccess}}</td></tr>
<tr><th>Foot traffic</th><td>{{.Market.FootTrafficPattern}}</td></tr>
<tr><th>Rental cost</th><td>{{.Market.RentalCostTier}}</td></tr>
</table>
<h3>Next Steps</h3>
<ol>{{range .NextSteps}}<li>{{.}}</li>{{end}}</ol>
</section>{{end}}
{{if .Report.Alternatives}}<section>
<h2>Alternative Locations</h2>
<table>
<tr><th>Location</th><th>Score</th><th>Opportunity</th><th>Key strength</th><th>Key concern</th><th>Why not top</th></tr>
{{range .Report.Alternatives}}<tr><td>{{.LocationName}}, {{.Area}}</td><td>{{.OverallScore}}</td><td>{{.OpportunityType}}</td><td>{{.KeyStrength}}</td><td>{{.KeyConcern}}</td><td>{{.WhyNotTop}}</td></tr>
{{end}}</table>
</section>{{end}}
<section>
<h2>Key Insights</h2>
<ul>{{range .Report.KeyInsights}}<li>{{.}}</li>{{end}}</ul>
</section>
<footer class="meta"><p>{{.Report.Methodology}}</p></footer>
</body>
</html>
`))

// RenderExecutiveHTML renders the executive document for a report.
func RenderExecutiveHTML(r *report.LocationIntelligenceReport, summary string) (string, error) {
	if r == nil {
		return "", eris.New("pipeline: executive report needs a strategy report")
	}
	var buf bytes.Buffer
	if err := executiveTmpl.Execute(&buf, struct {
		Report  *report.LocationIntelligenceReport
		Summary string
	}{r, summary}); err != nil {
		return "", eris.Wrap(err, "pipeline: render executive report")
	}
	return buf.String(), nil
}

func composeExecutive(in ComposeInput) (any, error) {
	r, ok := state.Lookup[*report.LocationIntelligenceReport](in.State, state.KeyStrategicReport)
	if !ok {
		return nil, eris.New("pipeline: strategic report missing from state")
	}
	html, err := RenderExecutiveHTML(r, in.Response.Text)
	if err != nil {
		return nil, err
	}
	return &ExecutiveReport{Summary: in.Response.Text, HTML: html}, nil
}
