package models

import "time"

// Record is one cleaned line of the retail transaction log: a single
// item occurrence on a single invoice.
type Record struct {
	InvoiceID   string
	Description string
	Quantity    int32
	Country     string
}

// RecordSet is the immutable output of the loader. Countries holds the
// distinct country categories present in Records, sorted ascending.
type RecordSet struct {
	Records   []Record  `json:"records"`
	Countries []string  `json:"countries"`
	ItemCount int       `json:"item_count"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// HasCountry reports whether country appears in the set's category column.
func (rs *RecordSet) HasCountry(country string) bool {
	for _, c := range rs.Countries {
		if c == country {
			return true
		}
	}
	return false
}

// RuleQuery is the exact memoization key for one mining run.
type RuleQuery struct {
	Country       string  `json:"country"`
	MinSupport    float64 `json:"min_support"`
	MinConfidence float64 `json:"min_confidence"`
	MinLift       float64 `json:"min_lift"`
}

// AssociationRule is one row of the ranked rule table. Antecedent and
// consequent are disjoint, non-empty and sorted; the display fields are
// their members joined with ", ".
type AssociationRule struct {
	Antecedent        []string `json:"antecedent"`
	Consequent        []string `json:"consequent"`
	AntecedentDisplay string   `json:"antecedent_display"`
	ConsequentDisplay string   `json:"consequent_display"`
	Support           float64  `json:"support"`
	Confidence        float64  `json:"confidence"`
	Lift              float64  `json:"lift"`
}

// RuleSummary carries the dashboard KPI aggregates for one rule table.
type RuleSummary struct {
	RuleCount     int     `json:"rule_count"`
	MaxLift       float64 `json:"max_lift"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Recommendation is one cross-sell suggestion for a viewed product.
type Recommendation struct {
	Product    string  `json:"product"`
	Confidence float64 `json:"confidence"`
	Lift       float64 `json:"lift"`
}
