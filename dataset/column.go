package dataset

import (
	"math"
	"strconv"

	"github.com/periospot/implantgen/sampling"
)

// Kind is the storage type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

// String returns the kind name used in logs and SQL type mapping.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Role tells the missingness pass which columns it may touch.
type Role int

const (
	RoleFeature Role = iota
	RoleID
	RoleOutcome
)

// Column is one named, typed column. Numeric and boolean cells live in
// Floats (booleans as 0/1); string cells live in Strings.
type Column struct {
	Name     string
	Kind     Kind
	Role     Role
	Decimals int // KindFloat values are rounded to this many places; negative keeps full precision

	floats  []float64
	strings []string
	missing []bool
}

// StringColumn builds a string column.
func StringColumn(name string, role Role, values []string) *Column {
	return &Column{Name: name, Kind: KindString, Role: role, strings: append([]string(nil), values...)}
}

// IntColumn builds an integer column.
func IntColumn(name string, role Role, values []int) *Column {
	f := make([]float64, len(values))
	for i, v := range values {
		f[i] = float64(v)
	}
	return &Column{Name: name, Kind: KindInt, Role: role, floats: f}
}

// FloatColumn builds a float column. When decimals is non-negative every
// value is rounded half to even to that many places.
func FloatColumn(name string, role Role, decimals int, values []float64) *Column {
	f := append([]float64(nil), values...)
	if decimals >= 0 {
		for i, v := range f {
			f[i] = sampling.Round(v, decimals)
		}
	}
	return &Column{Name: name, Kind: KindFloat, Role: role, Decimals: decimals, floats: f}
}

// BoolColumn builds a boolean column.
func BoolColumn(name string, role Role, values []bool) *Column {
	f := make([]float64, len(values))
	for i, v := range values {
		if v {
			f[i] = 1
		}
	}
	return &Column{Name: name, Kind: KindBool, Role: role, floats: f}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	if c.Kind == KindString {
		return len(c.strings)
	}
	return len(c.floats)
}

// IsMissing reports whether row i has been blanked by a missingness pass.
func (c *Column) IsMissing(i int) bool {
	return c.missing != nil && c.missing[i]
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.missing {
		if m {
			n++
		}
	}
	return n
}

// Float returns the numeric value of row i, NaN when missing. String
// columns always return NaN.
func (c *Column) Float(i int) float64 {
	if c.Kind == KindString || c.IsMissing(i) {
		return math.NaN()
	}
	return c.floats[i]
}

// Floats copies the numeric values, with NaN for missing cells.
func (c *Column) Floats() []float64 {
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = c.Float(i)
	}
	return out
}

// String returns the string value of row i; for other kinds it returns the
// CSV text of the cell.
func (c *Column) String(i int) string {
	if c.Kind == KindString && !c.IsMissing(i) {
		return c.strings[i]
	}
	return c.Format(i)
}

// Format renders row i the way it is written to CSV. Missing cells are
// empty, booleans are True/False.
func (c *Column) Format(i int) string {
	if c.IsMissing(i) {
		return ""
	}
	switch c.Kind {
	case KindString:
		return c.strings[i]
	case KindInt:
		return strconv.FormatInt(int64(c.floats[i]), 10)
	case KindBool:
		if c.floats[i] != 0 {
			return "True"
		}
		return "False"
	default:
		return formatFloat(c.floats[i])
	}
}

// formatFloat prints the shortest representation that round-trips, keeping
// a trailing ".0" on integral values so the column still reads as float.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return s
	}
	for _, r := range s {
		if r == '.' {
			return s
		}
	}
	return s + ".0"
}

func (c *Column) slice(k int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Role: c.Role, Decimals: c.Decimals}
	if c.Kind == KindString {
		out.strings = append([]string(nil), c.strings[:k]...)
	} else {
		out.floats = append([]float64(nil), c.floats[:k]...)
	}
	if c.missing != nil {
		out.missing = append([]bool(nil), c.missing[:k]...)
	}
	return out
}

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleID:
		return "id"
	case RoleOutcome:
		return "outcome"
	default:
		return "feature"
	}
}
