package mining

import "sort"

// ItemsetMatrix is a sparse boolean presence matrix: one row per
// transaction, one column per distinct item across the encoded
// transactions. Only the set column indexes are stored, so memory
// scales with basket sizes rather than with rows*columns.
type ItemsetMatrix struct {
	Columns []string
	Rows    [][]int

	index map[string]int
}

// Encode builds the matrix over the union of items appearing in the
// given transactions. Duplicate items within a transaction collapse to
// a single set cell; row indexes are sorted ascending.
func Encode(transactions [][]string) *ItemsetMatrix {
	seen := make(map[string]struct{})
	for _, tx := range transactions {
		for _, item := range tx {
			seen[item] = struct{}{}
		}
	}

	columns := make([]string, 0, len(seen))
	for item := range seen {
		columns = append(columns, item)
	}
	sort.Strings(columns)

	index := make(map[string]int, len(columns))
	for i, item := range columns {
		index[item] = i
	}

	rows := make([][]int, len(transactions))
	for i, tx := range transactions {
		cells := make(map[int]struct{}, len(tx))
		for _, item := range tx {
			cells[index[item]] = struct{}{}
		}
		row := make([]int, 0, len(cells))
		for col := range cells {
			row = append(row, col)
		}
		sort.Ints(row)
		rows[i] = row
	}

	return &ItemsetMatrix{Columns: columns, Rows: rows, index: index}
}

// TransactionCount returns the number of rows.
func (m *ItemsetMatrix) TransactionCount() int {
	return len(m.Rows)
}

// Density is the fraction of set cells, for diagnostics.
func (m *ItemsetMatrix) Density() float64 {
	if len(m.Rows) == 0 || len(m.Columns) == 0 {
		return 0
	}
	set := 0
	for _, row := range m.Rows {
		set += len(row)
	}
	return float64(set) / (float64(len(m.Rows)) * float64(len(m.Columns)))
}
