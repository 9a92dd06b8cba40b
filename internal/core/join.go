package core

// join.go implements the relational left outer join of the ID table with the
// data table.
//
// The data table is indexed once by canonical key (hash index), then each
// row of the keys table looks up the index in order. Output order is keys
// order, and within a fan-out group it is data order.

// Default suffixes appended to colliding non-key column names.
const (
	DefaultLeftSuffix  = "_x"
	DefaultRightSuffix = "_y"
)

// JoinOptions configures LeftJoin.
type JoinOptions struct {
	Key         string // join column present in both tables
	LeftSuffix  string // appended to keys-table columns that collide
	RightSuffix string // appended to data-table columns that collide
}

// DefaultJoinOptions joins on "ID" with "_x"/"_y" collision suffixes.
func DefaultJoinOptions() JoinOptions {
	return JoinOptions{
		Key:         DefaultKeyColumn,
		LeftSuffix:  DefaultLeftSuffix,
		RightSuffix: DefaultRightSuffix,
	}
}

func (o JoinOptions) withDefaults() JoinOptions {
	d := DefaultJoinOptions()
	if o.Key == "" {
		o.Key = d.Key
	}
	if o.LeftSuffix == "" {
		o.LeftSuffix = d.LeftSuffix
	}
	if o.RightSuffix == "" {
		o.RightSuffix = d.RightSuffix
	}
	return o
}

// colSource records where an output column's values come from.
type colSource struct {
	fromKeys bool
	src      int
}

// LeftJoin returns keys LEFT OUTER JOIN data ON key. Both tables must
// contain the key column; otherwise a MissingKeyColumn *JoinError is
// returned. Neither input is modified.
func LeftJoin(keys, data *Table, opts JoinOptions) (*Table, error) {
	opts = opts.withDefaults()
	if err := ValidateKeyColumn(keys, data, opts.Key); err != nil {
		return nil, err
	}

	keyIdx := keys.ColumnIndex(opts.Key)
	dataKeyIdx := data.ColumnIndex(opts.Key)

	columns, sources := resolveOutputColumns(keys, data, dataKeyIdx, opts)
	index := buildKeyIndex(data, dataKeyIdx)

	out := &Table{
		Columns: columns,
		Rows:    make([][]Value, 0, keys.Len()),
	}

	for _, row := range keys.Rows {
		var matches []int
		if k, ok := row[keyIdx].Key(); ok {
			matches = index[k]
		}

		if len(matches) == 0 {
			out.Rows = append(out.Rows, joinRow(row, nil, sources))
			continue
		}
		for _, m := range matches {
			out.Rows = append(out.Rows, joinRow(row, data.Rows[m], sources))
		}
	}

	return out, nil
}

// resolveOutputColumns lays out keys columns followed by the data columns
// other than the key, suffixing names that appear on both sides.
func resolveOutputColumns(keys, data *Table, dataKeyIdx int, opts JoinOptions) ([]string, []colSource) {
	keyCols := make(map[string]bool, len(keys.Columns))
	for _, name := range keys.Columns {
		keyCols[name] = true
	}
	dataCols := make(map[string]bool, len(data.Columns))
	for i, name := range data.Columns {
		if i != dataKeyIdx {
			dataCols[name] = true
		}
	}

	used := make(map[string]bool, len(keys.Columns)+len(data.Columns))
	unique := func(name, suffix string) string {
		for used[name] {
			name += suffix
		}
		used[name] = true
		return name
	}

	columns := make([]string, 0, len(keys.Columns)+len(data.Columns)-1)
	sources := make([]colSource, 0, cap(columns))

	for i, name := range keys.Columns {
		out := name
		if name != opts.Key && dataCols[name] {
			out = name + opts.LeftSuffix
		}
		columns = append(columns, unique(out, opts.LeftSuffix))
		sources = append(sources, colSource{fromKeys: true, src: i})
	}

	for i, name := range data.Columns {
		if i == dataKeyIdx {
			continue
		}
		out := name
		if keyCols[name] {
			out = name + opts.RightSuffix
		}
		columns = append(columns, unique(out, opts.RightSuffix))
		sources = append(sources, colSource{src: i})
	}

	return columns, sources
}

// buildKeyIndex maps each canonical key to its data row positions in order.
func buildKeyIndex(data *Table, keyIdx int) map[string][]int {
	index := make(map[string][]int, data.Len())
	for i, row := range data.Rows {
		if k, ok := row[keyIdx].Key(); ok {
			index[k] = append(index[k], i)
		}
	}
	return index
}

// joinRow assembles one output row; a nil dataRow yields Missing data cells.
func joinRow(keysRow, dataRow []Value, sources []colSource) []Value {
	out := make([]Value, len(sources))
	for i, s := range sources {
		switch {
		case s.fromKeys:
			out[i] = keysRow[s.src]
		case dataRow != nil:
			out[i] = dataRow[s.src]
		}
	}
	return out
}
