package templates

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"

	"basket-dashboard/internal/config"
)

// Dashboard renders the single-page shell. All data panels are filled
// reactively through the /sse endpoints; the page itself only carries
// the country selector, the threshold sliders and empty targets.
func Dashboard(countries []string, mining config.MiningConfig) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var options strings.Builder
		for _, country := range countries {
			escaped := html.EscapeString(country)
			fmt.Fprintf(&options, `<option value="%s">%s</option>`, escaped, escaped)
		}

		page := fmt.Sprintf(pageShell,
			mining.DefaultMinSupport,
			mining.DefaultMinConfidence,
			mining.DefaultMinLift,
			options.String(),
		)
		_, err := io.WriteString(w, page)
		return err
	})
}

// NoData renders the page served when the transaction log is absent.
func NoData(csvFile string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, noDataShell, html.EscapeString(csvFile))
		return err
	})
}

const pageShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Retail Strategy Optimizer</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"></script>
<script src="https://cdn.jsdelivr.net/npm/plotly.js-dist-min@2.35.2/plotly.min.js"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#10151d;color:#e8e8e8;display:flex}
aside{width:260px;padding:1.5rem;background:#161d28;min-height:100vh}
main{flex:1;padding:1.5rem}
.kpi-row{display:grid;grid-template-columns:repeat(3,1fr);gap:1rem;margin-bottom:1rem}
.kpi{background:#161d28;border-radius:8px;padding:1rem}
.kpi h3{margin:0;font-size:.8rem;color:#8aa}
.kpi p{margin:.3rem 0 0;font-size:1.6rem}
.modern-table{width:100%%;border-collapse:collapse}
.modern-table th,.modern-table td{padding:.4rem .6rem;border-bottom:1px solid #223;text-align:left}
.lift-badge{background:#1f6f43;border-radius:4px;padding:.1rem .4rem}
.warning{color:#e0a800}.muted{color:#789}
label{display:block;margin-top:1rem;font-size:.85rem}
input,select{width:100%%;margin-top:.3rem}
button{margin-top:1.2rem;width:100%%;padding:.5rem;background:#2563eb;color:#fff;border:0;border-radius:6px;cursor:pointer}
</style>
</head>
<body data-signals='{"country":"","minSupport":%g,"minConfidence":%g,"minLift":%g,"summary":{"rule_count":0,"max_lift":0,"avg_confidence":0},"chartData":[],"products":[],"product":""}'>
<aside>
<h2>Strategy Parameters</h2>
<label>Market Region
<select data-bind-country>%s</select>
</label>
<label>Market Popularity (min support)
<input type="range" min="0.01" max="0.20" step="0.01" data-bind-min-support>
</label>
<label>Purchase Certainty (min confidence)
<input type="range" min="0.10" max="0.99" step="0.05" data-bind-min-confidence>
</label>
<label>Strategic Strength (min lift)
<input type="range" min="0" max="10" step="0.1" data-bind-min-lift>
</label>
<button data-on-click="@get('/sse/rules?country='+encodeURIComponent($country)+'&min_support='+$minSupport+'&min_confidence='+$minConfidence+'&min_lift='+$minLift)">Analyze baskets</button>
<a href="/api/rules/export" data-attr-href="'/api/rules/export?country='+encodeURIComponent($country)+'&min_support='+$minSupport+'&min_confidence='+$minConfidence+'&min_lift='+$minLift">Download Strategy CSV</a>
</aside>
<main>
<h1>&#9889; Retail Strategy Optimizer</h1>
<div class="kpi-row">
<div class="kpi"><h3>Active Bundles</h3><p data-text="$summary.rule_count"></p></div>
<div class="kpi"><h3>Max Cross-Sell Multiplier</h3><p data-text="$summary.max_lift.toFixed(2)+'x'"></p></div>
<div class="kpi"><h3>Avg. Buy Probability</h3><p data-text="($summary.avg_confidence*100).toFixed(0)+'%%'"></p></div>
</div>
<div id="chart" data-effect="renderOpportunityMatrix($chartData)"></div>
<div id="rules-content"><p class="muted">Pick a region and analyze to see co-purchase rules.</p></div>
<h2>Smart Recommender</h2>
<select data-bind-product data-on-change="@get('/sse/recommendations?country='+encodeURIComponent($country)+'&product='+encodeURIComponent($product)+'&min_support='+$minSupport+'&min_confidence='+$minConfidence+'&min_lift='+$minLift)">
<option value="">Customer views...</option>
<template data-for="p in $products"><option data-attr-value="p" data-text="p"></option></template>
</select>
<div id="recommendations-content"></div>
</main>
<script>
function renderOpportunityMatrix(rules){
if(!window.Plotly||!rules||!rules.length){return}
Plotly.newPlot("chart",[{
x:rules.map(r=>r.support),
y:rules.map(r=>r.confidence),
text:rules.map(r=>r.antecedent_display+" → "+r.consequent_display),
mode:"markers",
marker:{size:rules.map(r=>Math.min(r.lift*6,40)),color:rules.map(r=>r.lift),colorscale:"RdYlGn"}
}],{title:"Strategic Opportunity Matrix",paper_bgcolor:"#10151d",plot_bgcolor:"#10151d",font:{color:"#e8e8e8"},
xaxis:{title:"Market Popularity"},yaxis:{title:"Buy Probability"}},{responsive:true});
}
</script>
</body>
</html>`

const noDataShell = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Retail Strategy Optimizer</title></head>
<body>
<h1>Data not found</h1>
<p>Please ensure %q exists, then restart the service.</p>
</body>
</html>`
