package pipeline

const analystSystem = `You are a retail location strategy analyst. Ground every claim in
the data you are given, name places and numbers, and say plainly when the
data is thin.`

const marketResearchPrompt = `Research the market for opening a new {business_type} in {target_location}.
Current date: {current_date?}

Cover:
1. Demographics: population density, age profile, income levels.
2. Commercial activity: foot traffic drivers, transit, anchors such as malls
   and offices.
3. Real estate: rental cost tiers for retail space in the main sub-areas.
4. Demand trends for {business_type} in this area over the last two years.
5. Regulatory or licensing issues specific to this business.

Name specific neighborhoods, streets or corridors wherever you can.

Web research gathered so far:
{web_research?}`

const competitorMappingPrompt = `Analyze the competitive landscape for a {business_type} in {target_location}.
Current date: {current_date?}

These are the businesses a Google Maps search returned, with distance from
the center and distance band (core within 1km, inner within 2.5km, outer
beyond):
{nearby_places}

Using only these results:
1. Identify clusters: which streets or zones have the highest density.
2. Segment by quality: market leaders rated 4.5 and above, mid-market 4.0 to
   4.4, and the rest. Separate chains from independents where names show it.
3. Flag closed or temporarily closed businesses.
4. Point out gaps: areas with demand signals but little or weak supply.
5. Give go or no-go signals for specific sub-areas.`

const gapAnalysisPrompt = `Perform a quantitative gap analysis for a {business_type} in {target_location}.
Current date: {current_date?}

MARKET RESEARCH FINDINGS:
{market_research_findings}

COMPETITOR ANALYSIS:
{competitor_analysis}

ZONE METRICS (computed from the competitor data; competition intensity is
competitors x average rating / ln(total reviews + 2)):
{zone_metrics}

For each sub-zone you can identify:
1. Estimate a demand signal from population density, income and
   infrastructure (each 1-10; weights 0.4, 0.4, 0.2).
2. Compute market saturation as competition intensity / demand signal
   (above 1.5 is saturated, below 0.8 is a gap).
3. Assign a viability score from 0 to 100 and a category: OPPORTUNITY (above
   75), MODERATE (50-75) or SATURATED (below 50).
4. Rank the top three zones and explain the ranking.`

const strategyAdvisorPrompt = `Synthesize the analysis below into a location recommendation for a
{business_type} in {target_location}. Analysis date: {current_date?}

MARKET RESEARCH FINDINGS:
{market_research_findings}

COMPETITOR ANALYSIS:
{competitor_analysis}

GAP ANALYSIS:
{gap_analysis}

Recommend one top location and two or three alternatives. Every score is
0-100. Give four to six key insights. Back each strength with evidence from
the analysis and pair each concern with a mitigation.`

const reportGeneratorPrompt = `Write a concise executive summary, three to five short paragraphs of plain
text, for business owners deciding where to open a {business_type} in
{target_location}. Lead with the recommendation and its score, then the
strongest evidence, the main risks, and the first next steps. Do not use
markdown.

STRATEGIC REPORT:
{strategic_report}`
