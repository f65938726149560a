package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "basket-dashboard/internal/errors"
	"basket-dashboard/internal/mining"
	"basket-dashboard/internal/models"
)

// Miner runs the country-scoped rule pipeline over the loaded record
// set: scope, transactionize, sparse-encode, FP-growth, rule
// derivation. Results are memoized by the exact query key; concurrent
// identical queries are collapsed onto a single computation.
type Miner struct {
	mu      sync.RWMutex
	records *models.RecordSet
	memo    map[models.RuleQuery][]models.AssociationRule
	group   singleflight.Group
	logger  *slog.Logger
}

func NewMiner(logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{
		memo:   make(map[models.RuleQuery][]models.AssociationRule),
		logger: logger,
	}
}

// SetRecords installs a new record set and invalidates every memoized
// rule table.
func (m *Miner) SetRecords(set *models.RecordSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = set
	m.memo = make(map[models.RuleQuery][]models.AssociationRule)
}

// Loaded reports whether a record set is available.
func (m *Miner) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records != nil
}

// Countries returns the category values available for scoping, sorted.
func (m *Miner) Countries() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.records == nil {
		return nil, apperrors.NotFound("no data source loaded")
	}
	return m.records.Countries, nil
}

// Mine returns the ranked rule table for the query. Thresholds and the
// country are validated before any computation; an empty table is a
// valid outcome, never an error.
func (m *Miner) Mine(query models.RuleQuery) ([]models.AssociationRule, error) {
	if err := validateQueryThresholds(query); err != nil {
		return nil, err
	}

	m.mu.RLock()
	records := m.records
	if records != nil {
		if cached, ok := m.memo[query]; ok {
			m.mu.RUnlock()
			return cached, nil
		}
	}
	m.mu.RUnlock()

	if records == nil {
		return nil, apperrors.NotFound("no data source loaded")
	}
	if !records.HasCountry(query.Country) {
		return nil, apperrors.Validation(fmt.Sprintf("unknown region %q", query.Country))
	}

	key := fmt.Sprintf("%s|%g|%g|%g", query.Country, query.MinSupport, query.MinConfidence, query.MinLift)
	result, err, _ := m.group.Do(key, func() (any, error) {
		start := time.Now()
		rules := mineRules(records, query)

		m.mu.Lock()
		// A SetRecords between snapshot and store would leave a stale
		// entry behind; only memoize against the same record set.
		if m.records == records {
			m.memo[query] = rules
		}
		m.mu.Unlock()

		m.logger.Info("rule mining complete",
			"country", query.Country,
			"min_support", query.MinSupport,
			"min_confidence", query.MinConfidence,
			"min_lift", query.MinLift,
			"rules", len(rules),
			"duration", time.Since(start))
		return rules, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.AssociationRule), nil
}

// mineRules is the pure pipeline body: identical inputs always yield an
// identical, identically ordered table.
func mineRules(records *models.RecordSet, query models.RuleQuery) []models.AssociationRule {
	// Scope to the country first so grouping and encoding work on the
	// smallest possible record subset.
	baskets := make(map[string]map[string]struct{})
	for _, r := range records.Records {
		if r.Country != query.Country {
			continue
		}
		basket, ok := baskets[r.InvoiceID]
		if !ok {
			basket = make(map[string]struct{})
			baskets[r.InvoiceID] = basket
		}
		basket[r.Description] = struct{}{}
	}

	transactions := make([][]string, 0, len(baskets))
	for _, basket := range baskets {
		items := make([]string, 0, len(basket))
		for item := range basket {
			items = append(items, item)
		}
		transactions = append(transactions, items)
	}
	if len(transactions) == 0 {
		return []models.AssociationRule{}
	}

	matrix := mining.Encode(transactions)
	itemsets := mining.FrequentItemsets(matrix, query.MinSupport)
	if len(itemsets) == 0 {
		return []models.AssociationRule{}
	}

	return mining.DeriveRules(itemsets, query.MinConfidence, query.MinLift)
}

func validateQueryThresholds(query models.RuleQuery) error {
	if query.MinSupport <= 0 || query.MinSupport >= 1 {
		return apperrors.Validation(fmt.Sprintf("min_support must be greater than 0 and less than 1, got %g", query.MinSupport))
	}
	if query.MinConfidence <= 0 || query.MinConfidence >= 1 {
		return apperrors.Validation(fmt.Sprintf("min_confidence must be greater than 0 and less than 1, got %g", query.MinConfidence))
	}
	if query.MinLift < 0 {
		return apperrors.Validation(fmt.Sprintf("min_lift must be zero or positive, got %g", query.MinLift))
	}
	return nil
}

// Summary computes the dashboard KPI aggregates for a rule table.
func (m *Miner) Summary(rules []models.AssociationRule) models.RuleSummary {
	summary := models.RuleSummary{RuleCount: len(rules)}
	if len(rules) == 0 {
		return summary
	}

	var confidenceSum float64
	for _, r := range rules {
		if r.Lift > summary.MaxLift {
			summary.MaxLift = r.Lift
		}
		confidenceSum += r.Confidence
	}
	summary.AvgConfidence = confidenceSum / float64(len(rules))
	return summary
}

// Antecedents returns the distinct antecedent display strings of the
// query's rule table, sorted, for the recommender's product selector.
func (m *Miner) Antecedents(query models.RuleQuery) ([]string, error) {
	rules, err := m.Mine(query)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(rules))
	products := make([]string, 0, len(rules))
	for _, r := range rules {
		if _, ok := seen[r.AntecedentDisplay]; ok {
			continue
		}
		seen[r.AntecedentDisplay] = struct{}{}
		products = append(products, r.AntecedentDisplay)
	}
	sort.Strings(products)
	return products, nil
}

// Recommendations returns the strongest consequents for a product the
// customer is viewing, in rule-table order.
func (m *Miner) Recommendations(query models.RuleQuery, product string, limit int) ([]models.Recommendation, error) {
	rules, err := m.Mine(query)
	if err != nil {
		return nil, err
	}

	recommendations := []models.Recommendation{}
	for _, r := range rules {
		if r.AntecedentDisplay != product {
			continue
		}
		recommendations = append(recommendations, models.Recommendation{
			Product:    r.ConsequentDisplay,
			Confidence: r.Confidence,
			Lift:       r.Lift,
		})
		if len(recommendations) == limit {
			break
		}
	}
	return recommendations, nil
}

// ExportCSV serializes the query's rule table with the canonical export
// header, built entirely in memory for direct HTTP delivery.
func (m *Miner) ExportCSV(query models.RuleQuery) ([]byte, error) {
	rules, err := m.Mine(query)
	if err != nil {
		return nil, err
	}

	buffer := bytes.NewBuffer(make([]byte, 0, 64*1024))
	writer := csv.NewWriter(buffer)

	if err := writer.Write([]string{"antecedentDisplay", "consequentDisplay", "support", "confidence", "lift"}); err != nil {
		return nil, err
	}
	for _, r := range rules {
		row := []string{
			r.AntecedentDisplay,
			r.ConsequentDisplay,
			strconv.FormatFloat(r.Support, 'f', -1, 64),
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			strconv.FormatFloat(r.Lift, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Stats exposes operational counters for the admin endpoint.
func (m *Miner) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]any{
		"loaded":         m.records != nil,
		"memoized_rules": len(m.memo),
	}
	if m.records != nil {
		stats["record_count"] = len(m.records.Records)
		stats["countries"] = len(m.records.Countries)
		stats["items"] = m.records.ItemCount
		stats["loaded_at"] = m.records.LoadedAt
	}
	return stats
}
