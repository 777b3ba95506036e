package scoring

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ForestConfig holds the random forest hyperparameters
type ForestConfig struct {
	Trees           int   `json:"trees" yaml:"trees"`
	Seed            int64 `json:"seed" yaml:"seed"`
	MaxDepth        int   `json:"max_depth,omitempty" yaml:"max_depth"` // 0 means unlimited
	MinSamplesSplit int   `json:"min_samples_split" yaml:"min_samples_split"`
}

// DefaultForestConfig returns 100 fully grown trees with seed 42
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           100,
		Seed:            42,
		MinSamplesSplit: 2,
	}
}

// Validate checks if the ForestConfig is valid
func (c ForestConfig) Validate() error {
	if c.Trees <= 0 {
		return fmt.Errorf("trees must be positive")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	if c.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be at least 2")
	}
	return nil
}

// Forest is a bagged ensemble of classification trees
type Forest struct {
	trees      []*treeNode
	features   int
	importance []float64
}

// fitForest trains cfg.Trees trees on bootstrap samples of x drawn from a
// single seeded source, so identical input yields an identical forest.
// ctx is checked before every tree.
func fitForest(ctx context.Context, x *mat.Dense, y []float64, cfg ForestConfig) (*Forest, error) {
	rows, cols := x.Dims()
	rng := rand.New(rand.NewSource(cfg.Seed))
	maxFeatures := int(math.Sqrt(float64(cols)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	forest := &Forest{
		trees:      make([]*treeNode, cfg.Trees),
		features:   cols,
		importance: make([]float64, cols),
	}

	samples := make([]int, rows)
	for t := 0; t < cfg.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training stopped after %d of %d trees: %w", t, cfg.Trees, err)
		}
		for i := range samples {
			samples[i] = rng.Intn(rows)
		}

		builder := newTreeBuilder(x, y, cfg, maxFeatures, rng)
		forest.trees[t] = builder.fit(samples)

		if sum := floats.Sum(builder.importance); sum > 0 {
			floats.Scale(1/sum, builder.importance)
			floats.Add(forest.importance, builder.importance)
		}
	}

	if sum := floats.Sum(forest.importance); sum > 0 {
		floats.Scale(1/sum, forest.importance)
	}
	return forest, nil
}

// Trees returns the number of trees in the ensemble
func (f *Forest) Trees() int {
	return len(f.trees)
}

// PredictProba returns the positive-class probability for every row of x
func (f *Forest) PredictProba(x *mat.Dense) []float64 {
	rows, _ := x.Dims()
	probas := make([]float64, rows)
	votes := make([]float64, len(f.trees))
	for i := 0; i < rows; i++ {
		row := mat.Row(nil, i, x)
		for t, tree := range f.trees {
			votes[t] = tree.predict(row)
		}
		probas[i] = stat.Mean(votes, nil)
	}
	return probas
}

// FeatureImportance returns the normalized mean impurity decrease per feature
func (f *Forest) FeatureImportance() []float64 {
	out := make([]float64, len(f.importance))
	copy(out, f.importance)
	return out
}
