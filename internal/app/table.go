package app

// Table is a column-ordered tabular snapshot of monitor or ledger state,
// ready for rendering or export.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func (t Table) NumRows() int {
	return len(t.Rows)
}
