package mining

import (
	"sort"
	"strings"

	"basket-dashboard/internal/models"
)

// DeriveRules turns frequent itemsets into ranked association rules.
// Every itemset of size >= 2 is split into all disjoint non-empty
// antecedent/consequent partitions; each partition's subset supports
// are read back from the itemset table itself, which is guaranteed to
// contain them (every subset of a frequent itemset is frequent).
//
// Rules with lift < minLift are dropped first, then rules with
// confidence < minConfidence. The survivors are sorted by lift
// descending, confidence descending, and finally by the display
// strings, giving a total order: repeat calls yield identical tables.
func DeriveRules(itemsets []Itemset, minConfidence, minLift float64) []models.AssociationRule {
	if len(itemsets) == 0 {
		return []models.AssociationRule{}
	}

	support := make(map[string]float64, len(itemsets))
	for _, s := range itemsets {
		support[s.Key()] = s.Support
	}

	rules := []models.AssociationRule{}
	for _, s := range itemsets {
		k := len(s.Items)
		if k < 2 {
			continue
		}

		for mask := 1; mask < (1<<k)-1; mask++ {
			antecedent := make([]string, 0, k-1)
			consequent := make([]string, 0, k-1)
			for i, item := range s.Items {
				if mask&(1<<i) != 0 {
					antecedent = append(antecedent, item)
				} else {
					consequent = append(consequent, item)
				}
			}

			supA := support[strings.Join(antecedent, "\x1f")]
			supC := support[strings.Join(consequent, "\x1f")]
			if supA == 0 || supC == 0 {
				continue
			}

			confidence := s.Support / supA
			lift := confidence / supC
			if lift < minLift || confidence < minConfidence {
				continue
			}

			rules = append(rules, models.AssociationRule{
				Antecedent:        antecedent,
				Consequent:        consequent,
				AntecedentDisplay: strings.Join(antecedent, ", "),
				ConsequentDisplay: strings.Join(consequent, ", "),
				Support:           s.Support,
				Confidence:        confidence,
				Lift:              lift,
			})
		}
	}

	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Lift != b.Lift {
			return a.Lift > b.Lift
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.AntecedentDisplay != b.AntecedentDisplay {
			return a.AntecedentDisplay < b.AntecedentDisplay
		}
		return a.ConsequentDisplay < b.ConsequentDisplay
	})
	return rules
}
