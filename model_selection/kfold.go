package model_selection

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/pkg/errors"
)

// KFold splits samples into NSplits consecutive folds, optionally after a
// seeded shuffle. The first n % NSplits folds get one extra sample.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int64) (*KFold, error) {
	if nSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", nSplits)
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}, nil
}

// Split returns one train/test split per fold.
func (kf *KFold) Split(nSamples int) ([]Split, error) {
	if nSamples < kf.NSplits {
		return nil, errors.NewValidationError("n_samples", "fewer samples than folds", nSamples)
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Split, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		train := make([]int, 0, nSamples-testSize)
		train = append(train, indices[:current]...)
		train = append(train, indices[current+testSize:]...)
		folds[i] = newSplit(train, indices[current:current+testSize])
		current += testSize
	}
	return folds, nil
}

// StratifiedKFold is KFold that deals each class round-robin style across
// the folds so every fold keeps the class balance.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int64) (*StratifiedKFold, error) {
	if nSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", nSplits)
	}
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}, nil
}

// Split returns one train/test split per fold.
func (skf *StratifiedKFold) Split(y mat.Matrix) ([]Split, error) {
	nSamples, _ := y.Dims()
	groups, err := groupByLabel(nSamples, y)
	if err != nil {
		return nil, err
	}

	if skf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(skf.RandomSeed), uint64(skf.RandomSeed)))
		for _, g := range groups {
			r.Shuffle(len(g.indices), func(i, j int) {
				g.indices[i], g.indices[j] = g.indices[j], g.indices[i]
			})
		}
	}

	tests := make([][]int, skf.NSplits)
	for _, g := range groups {
		if len(g.indices) < skf.NSplits {
			return nil, errors.NewValidationError("n_splits", "a class has fewer members than folds", len(g.indices))
		}
		foldSize := len(g.indices) / skf.NSplits
		remainder := len(g.indices) % skf.NSplits
		current := 0
		for i := 0; i < skf.NSplits; i++ {
			testSize := foldSize
			if i < remainder {
				testSize++
			}
			tests[i] = append(tests[i], g.indices[current:current+testSize]...)
			current += testSize
		}
	}

	folds := make([]Split, skf.NSplits)
	for i, test := range tests {
		inTest := make(map[int]bool, len(test))
		for _, idx := range test {
			inTest[idx] = true
		}
		train := make([]int, 0, nSamples-len(test))
		for j := 0; j < nSamples; j++ {
			if !inTest[j] {
				train = append(train, j)
			}
		}
		folds[i] = newSplit(train, test)
	}
	return folds, nil
}
