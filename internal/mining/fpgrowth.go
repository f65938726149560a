package mining

import (
	"math"
	"sort"
	"strings"
)

// Itemset is a frequent itemset: its members (sorted ascending) and the
// fraction of transactions containing all of them.
type Itemset struct {
	Items   []string `json:"items"`
	Support float64  `json:"support"`
}

// Key returns the canonical identity of the itemset, used to look up
// subset supports during rule derivation.
func (s Itemset) Key() string {
	return strings.Join(s.Items, "\x1f")
}

// FrequentItemsets mines all itemsets with support >= minSupport from
// the encoded matrix using FP-growth: a single frequency pass, a
// compressed prefix tree of the transactions, then recursive
// conditional-tree decomposition. No candidate generation takes place,
// so the cost tracks the number of frequent patterns rather than the
// full combinatorial space.
//
// The result is sorted by itemset size then by item key, so identical
// inputs always produce identically ordered output.
func FrequentItemsets(m *ItemsetMatrix, minSupport float64) []Itemset {
	n := m.TransactionCount()
	if n == 0 {
		return nil
	}

	// Smallest absolute count satisfying count/n >= minSupport. The
	// epsilon guards against the product landing a hair above an
	// integer it should equal exactly.
	minCount := int(math.Ceil(minSupport*float64(n) - 1e-9))
	if minCount < 1 {
		minCount = 1
	}

	rows := make([]weightedRow, len(m.Rows))
	for i, row := range m.Rows {
		rows[i] = weightedRow{items: row, count: 1}
	}

	tree := buildTree(rows, minCount)
	if tree == nil {
		return nil
	}

	var found []foundSet
	tree.mine(nil, &found)

	total := float64(n)
	itemsets := make([]Itemset, len(found))
	for i, f := range found {
		items := make([]string, len(f.items))
		for j, col := range f.items {
			items[j] = m.Columns[col]
		}
		sort.Strings(items)
		itemsets[i] = Itemset{Items: items, Support: float64(f.count) / total}
	}

	sort.Slice(itemsets, func(i, j int) bool {
		if len(itemsets[i].Items) != len(itemsets[j].Items) {
			return len(itemsets[i].Items) < len(itemsets[j].Items)
		}
		return itemsets[i].Key() < itemsets[j].Key()
	})
	return itemsets
}

type weightedRow struct {
	items []int
	count int
}

type foundSet struct {
	items []int
	count int
}

type fpNode struct {
	item     int
	count    int
	parent   *fpNode
	children map[int]*fpNode
	link     *fpNode
}

type headerEntry struct {
	count int
	head  *fpNode
}

type fpTree struct {
	root     *fpNode
	headers  map[int]*headerEntry
	minCount int
}

// buildTree tallies count-weighted item frequencies, discards
// infrequent items, and inserts every row with its surviving items
// ordered by descending global frequency (ties broken by column index,
// keeping the tree shape deterministic). Returns nil when no item
// survives the threshold.
func buildTree(rows []weightedRow, minCount int) *fpTree {
	tally := make(map[int]int)
	for _, row := range rows {
		for _, item := range row.items {
			tally[item] += row.count
		}
	}

	kept := make(map[int]int)
	for item, count := range tally {
		if count >= minCount {
			kept[item] = count
		}
	}
	if len(kept) == 0 {
		return nil
	}

	t := &fpTree{
		root:     &fpNode{item: -1, children: make(map[int]*fpNode)},
		headers:  make(map[int]*headerEntry, len(kept)),
		minCount: minCount,
	}
	for item, count := range kept {
		t.headers[item] = &headerEntry{count: count}
	}

	for _, row := range rows {
		items := make([]int, 0, len(row.items))
		for _, item := range row.items {
			if _, ok := kept[item]; ok {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			continue
		}
		sort.Slice(items, func(i, j int) bool {
			if kept[items[i]] != kept[items[j]] {
				return kept[items[i]] > kept[items[j]]
			}
			return items[i] < items[j]
		})
		t.insert(items, row.count)
	}
	return t
}

func (t *fpTree) insert(items []int, count int) {
	node := t.root
	for _, item := range items {
		child, ok := node.children[item]
		if !ok {
			child = &fpNode{
				item:     item,
				parent:   node,
				children: make(map[int]*fpNode),
			}
			header := t.headers[item]
			child.link = header.head
			header.head = child
			node.children[item] = child
		}
		child.count += count
		node = child
	}
}

// mine emits suffix+{item} for every header item, then recurses into
// the item's conditional tree. Output order is irrelevant here; the
// caller sorts.
func (t *fpTree) mine(suffix []int, out *[]foundSet) {
	for item, header := range t.headers {
		items := make([]int, 0, len(suffix)+1)
		items = append(items, suffix...)
		items = append(items, item)
		*out = append(*out, foundSet{items: items, count: header.count})

		var base []weightedRow
		for node := header.head; node != nil; node = node.link {
			var path []int
			for p := node.parent; p != nil && p.item >= 0; p = p.parent {
				path = append(path, p.item)
			}
			if len(path) > 0 {
				base = append(base, weightedRow{items: path, count: node.count})
			}
		}

		if sub := buildTree(base, t.minCount); sub != nil {
			sub.mine(items, out)
		}
	}
}
