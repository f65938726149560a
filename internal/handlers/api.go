package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"basket-dashboard/internal/config"
	"basket-dashboard/internal/errors"
	"basket-dashboard/internal/models"
	"basket-dashboard/internal/observability"
	"basket-dashboard/internal/services"
)

const recommendationLimit = 5

type APIHandlers struct {
	miner  *services.Miner
	mining config.MiningConfig
	logger *slog.Logger
}

func NewAPIHandlers(miner *services.Miner, mining config.MiningConfig, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		miner:  miner,
		mining: mining,
		logger: logger,
	}
}

// parseRuleQuery reads the mining parameters from the URL, falling back
// to the configured defaults for omitted thresholds. Range validation
// stays in the miner; only unparseable values are rejected here.
func (h *APIHandlers) parseRuleQuery(r *http.Request) (models.RuleQuery, error) {
	values := r.URL.Query()

	query := models.RuleQuery{
		Country:       values.Get("country"),
		MinSupport:    h.mining.DefaultMinSupport,
		MinConfidence: h.mining.DefaultMinConfidence,
		MinLift:       h.mining.DefaultMinLift,
	}
	if query.Country == "" {
		return query, errors.Validation("country parameter is required")
	}

	for _, param := range []struct {
		name   string
		target *float64
	}{
		{"min_support", &query.MinSupport},
		{"min_confidence", &query.MinConfidence},
		{"min_lift", &query.MinLift},
	} {
		raw := values.Get(param.name)
		if raw == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return query, errors.Validation(fmt.Sprintf("%s must be a number, got %q", param.name, raw))
		}
		*param.target = parsed
	}

	return query, nil
}

func (h *APIHandlers) HandleRules(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	query, err := h.parseRuleQuery(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	rules, err := h.miner.Mine(query)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccess(w, map[string]any{
		"query":   query,
		"summary": h.miner.Summary(rules),
		"rules":   rules,
	})
}

func (h *APIHandlers) HandleCountries(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	countries, err := h.miner.Countries()
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	headers := map[string]string{
		"Cache-Control": "public, max-age=300",
	}
	errors.WriteSuccessWithHeaders(w, countries, headers)
}

func (h *APIHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	query, err := h.parseRuleQuery(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	data, err := h.miner.ExportCSV(query)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="rules.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *APIHandlers) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	query, err := h.parseRuleQuery(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	product := r.URL.Query().Get("product")
	if product == "" {
		errors.WriteError(w, h.logger, errors.Validation("product parameter is required"), requestID)
		return
	}

	recommendations, err := h.miner.Recommendations(query, product, recommendationLimit)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccess(w, map[string]any{
		"product":         product,
		"recommendations": recommendations,
	})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]any{
		"status":      "healthy",
		"data_loaded": h.miner.Loaded(),
		"timestamp":   time.Now().Format(time.RFC3339),
		"version":     "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.miner.Stats())
}
