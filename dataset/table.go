package dataset

import (
	"encoding/csv"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/pkg/errors"
	"github.com/periospot/implantgen/sampling"
)

// Table is an ordered set of equally long columns.
type Table struct {
	name    string
	columns []*Column
	index   map[string]int
	rows    int
}

// New assembles columns in the given order. Column names must be unique and
// all columns must have the same length.
func New(name string, columns ...*Column) (*Table, error) {
	if len(columns) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "table %s has no columns", name)
	}
	t := &Table{
		name:    name,
		columns: columns,
		index:   make(map[string]int, len(columns)),
		rows:    columns[0].Len(),
	}
	for i, c := range columns {
		if _, dup := t.index[c.Name]; dup {
			return nil, errors.NewValidationError("columns", "duplicate column name", c.Name)
		}
		if c.Len() != t.rows {
			return nil, errors.NewDimensionError("dataset.New("+c.Name+")", t.rows, c.Len(), 0)
		}
		t.index[c.Name] = i
	}
	return t, nil
}

// Name returns the table name (the output file stem).
func (t *Table) Name() string { return t.name }

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Columns returns the columns in order.
func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.columns...)
}

// ColumnNames returns the header in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownColumn, "%s in table %s", name, t.name)
	}
	return t.columns[i], nil
}

// Preview returns a new table holding the first k rows under the given name.
// k larger than Len yields a copy of the whole table.
func (t *Table) Preview(name string, k int) (*Table, error) {
	if k < 0 {
		return nil, errors.NewValidationError("k", "preview size must be non-negative", k)
	}
	if k > t.rows {
		k = t.rows
	}
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c.slice(k)
	}
	return New(name, cols...)
}

// DropColumn returns a new table without the named column.
func (t *Table) DropColumn(name, column string) (*Table, error) {
	i, ok := t.index[column]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownColumn, "%s in table %s", column, t.name)
	}
	cols := make([]*Column, 0, len(t.columns)-1)
	for j, c := range t.columns {
		if j != i {
			cols = append(cols, c.slice(t.rows))
		}
	}
	return New(name, cols...)
}

// InjectMissing blanks cells of one feature column. One uniform draw is
// taken per row, in row order, and the cell becomes missing when the draw
// is below rate. Identifier and outcome columns are refused. It returns the
// number of newly missing cells.
func (t *Table) InjectMissing(rng *sampling.RNG, column string, rate float64) (int, error) {
	if err := sampling.ValidateRate("missing_rate."+column, rate); err != nil {
		return 0, err
	}
	c, err := t.Column(column)
	if err != nil {
		return 0, err
	}
	if c.Role != RoleFeature {
		return 0, errors.NewValidationError(column, "missingness applies to feature columns only", c.Role)
	}

	if c.missing == nil {
		c.missing = make([]bool, t.rows)
	}
	injected := 0
	for i, u := range rng.Uniform(t.rows) {
		if u < rate && !c.missing[i] {
			c.missing[i] = true
			injected++
		}
	}
	return injected, nil
}

// Row returns the CSV text of row i.
func (t *Table) Row(i int) []string {
	rec := make([]string, len(t.columns))
	for j, c := range t.columns {
		rec[j] = c.Format(i)
	}
	return rec
}

// WriteCSV writes a header line followed by one record per row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return errors.Wrapf(err, "write header of %s", t.name)
	}
	for i := 0; i < t.rows; i++ {
		if err := cw.Write(t.Row(i)); err != nil {
			return errors.Wrapf(err, "write row %d of %s", i, t.name)
		}
	}
	cw.Flush()
	return errors.Wrapf(cw.Error(), "flush %s", t.name)
}

// Matrix extracts the named numeric columns as a dense matrix, dropping
// every row that has a missing cell in any of them. It also returns the
// indices of the kept rows so callers can align labels.
func (t *Table) Matrix(columns ...string) (*mat.Dense, []int, error) {
	cols := make([]*Column, len(columns))
	for j, name := range columns {
		c, err := t.Column(name)
		if err != nil {
			return nil, nil, err
		}
		if c.Kind == KindString {
			return nil, nil, errors.NewValidationError(name, "column is not numeric", c.Kind.String())
		}
		cols[j] = c
	}

	kept := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		complete := true
		for _, c := range cols {
			if c.IsMissing(i) {
				complete = false
				break
			}
		}
		if complete {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 || len(cols) == 0 {
		return nil, nil, errors.Wrapf(errors.ErrEmptyData, "no complete rows for %v in %s", columns, t.name)
	}

	X := mat.NewDense(len(kept), len(cols), nil)
	for r, i := range kept {
		for j, c := range cols {
			X.Set(r, j, c.floats[i])
		}
	}
	return X, kept, nil
}
