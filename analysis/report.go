package analysis

import (
	"encoding/json"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/dataset"
	"github.com/periospot/implantgen/pkg/errors"
)

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode report")
	}
	return nil
}

// columnVec copies column j of m into a vector.
func columnVec(m mat.Matrix, j int) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, j))
	}
	return v
}

// splitXY separates the last column of m as the target.
func splitXY(m *mat.Dense) (*mat.Dense, *mat.VecDense) {
	r, c := m.Dims()
	X := mat.DenseCopyOf(m.Slice(0, r, 0, c-1))
	return X, columnVec(m, c-1)
}

func selectVec(v *mat.VecDense, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for r, i := range idx {
		out.SetVec(r, v.AtVec(i))
	}
	return out
}

// completeMatrix returns the rows of columns (target last) with no missing
// cell, plus how many rows were dropped.
func completeMatrix(t *dataset.Table, columns []string) (*mat.Dense, []int, int, error) {
	m, kept, err := t.Matrix(columns...)
	if err != nil {
		return nil, nil, 0, err
	}
	return m, kept, t.Len() - len(kept), nil
}
