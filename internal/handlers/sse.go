package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"basket-dashboard/internal/config"
	"basket-dashboard/internal/errors"
	"basket-dashboard/internal/models"
	"basket-dashboard/internal/services"
)

var rulesTableTemplate = template.Must(template.New("rulesTable").Funcs(template.FuncMap{
	"percent": func(v float64) float64 { return v * 100 },
}).Parse(`
<div id="rules-content">
<table class="modern-table">
<thead><tr><th>If the basket has</th><th>Then suggest</th><th>Support</th><th>Confidence</th><th>Lift</th></tr></thead>
<tbody>
{{range .Rules}}<tr>
<td>{{.AntecedentDisplay}}</td>
<td><strong>{{.ConsequentDisplay}}</strong></td>
<td>{{printf "%.3f" .Support}}</td>
<td>{{printf "%.0f%%" (percent .Confidence)}}</td>
<td><span class="lift-badge">{{printf "%.2fx" .Lift}}</span></td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var recommendationsTemplate = template.Must(template.New("recommendations").Parse(`
<div id="recommendations-content">
{{if .Recommendations}}<ul class="recommendation-list">
{{range .Recommendations}}<li>&#10133; <strong>{{.Product}}</strong> (Lift: {{printf "%.2fx" .Lift}})</li>
{{end}}</ul>{{else}}<p class="muted">No strong rules for this specific item.</p>{{end}}
</div>`))

type SSEHandlers struct {
	miner  *services.Miner
	api    *APIHandlers
	mining config.MiningConfig
	logger *slog.Logger
}

func NewSSEHandlers(miner *services.Miner, mining config.MiningConfig, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		miner:  miner,
		api:    NewAPIHandlers(miner, mining, logger),
		mining: mining,
		logger: logger,
	}
}

func (h *SSEHandlers) renderRulesTable(rules []models.AssociationRule) (string, error) {
	if len(rules) > h.mining.MaxTableRows {
		rules = rules[:h.mining.MaxTableRows]
	}

	var buf strings.Builder
	err := rulesTableTemplate.Execute(&buf, struct {
		Rules []models.AssociationRule
	}{Rules: rules})
	return buf.String(), err
}

// patchProblem replaces a panel with a user-facing message, keeping the
// distinction between "no data source" and "no patterns at these
// thresholds" visible on the dashboard.
func (h *SSEHandlers) patchProblem(sse *datastar.ServerSentEventGenerator, target, message string) {
	sse.PatchElements(fmt.Sprintf(`<div id=%q><p class="warning">%s</p></div>`, target, template.HTMLEscapeString(message)))
}

// HandleRules recomputes the rule table for the query parameters and
// patches the table, the KPI signals and the scatter-plot data in one
// SSE response.
func (h *SSEHandlers) HandleRules(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	query, err := h.api.parseRuleQuery(r)
	if err != nil {
		h.patchProblem(sse, "rules-content", userMessage(err))
		return
	}

	rules, err := h.miner.Mine(query)
	if err != nil {
		h.patchProblem(sse, "rules-content", userMessage(err))
		return
	}

	if len(rules) == 0 {
		h.patchProblem(sse, "rules-content", "No patterns found. Try lowering the popularity threshold.")
	} else {
		html, err := h.renderRulesTable(rules)
		if err != nil {
			h.logger.Error("render rules table", "error", err)
			return
		}
		sse.PatchElements(html)
	}

	chartRules := rules
	if len(chartRules) > h.mining.MaxChartRules {
		chartRules = chartRules[:h.mining.MaxChartRules]
	}

	signals, err := json.Marshal(map[string]any{
		"summary":   h.miner.Summary(rules),
		"chartData": chartRules,
	})
	if err != nil {
		h.logger.Error("marshal rule signals", "error", err)
		return
	}
	sse.PatchSignals(signals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleRecommendations serves the "customer views X" panel: the
// product selector options and the top cross-sell suggestions.
func (h *SSEHandlers) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	query, err := h.api.parseRuleQuery(r)
	if err != nil {
		h.patchProblem(sse, "recommendations-content", userMessage(err))
		return
	}

	product := r.URL.Query().Get("product")
	if product == "" {
		// No selection yet; offer the antecedent products instead.
		products, err := h.miner.Antecedents(query)
		if err != nil {
			h.patchProblem(sse, "recommendations-content", userMessage(err))
			return
		}
		signals, err := json.Marshal(map[string]any{"products": products})
		if err != nil {
			h.logger.Error("marshal product signals", "error", err)
			return
		}
		sse.PatchSignals(signals)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		return
	}

	recommendations, err := h.miner.Recommendations(query, product, recommendationLimit)
	if err != nil {
		h.patchProblem(sse, "recommendations-content", userMessage(err))
		return
	}

	var buf strings.Builder
	if err := recommendationsTemplate.Execute(&buf, struct {
		Recommendations []models.Recommendation
	}{Recommendations: recommendations}); err != nil {
		h.logger.Error("render recommendations", "error", err)
		return
	}
	sse.PatchElements(buf.String())

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func userMessage(err error) string {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.Message
	}
	return "Something went wrong while mining rules."
}
