package scoring

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// treeNode is one node of a fitted classification tree.
// Leaves carry the fraction of positive labels that reached them.
type treeNode struct {
	Feature   int
	Threshold float64
	Left      *treeNode
	Right     *treeNode
	Value     float64
	IsLeaf    bool
}

// treeBuilder grows a single tree over a bootstrap sample.
// Feature values must be non-negative integer codes, as produced by EncoderSet.
type treeBuilder struct {
	data        []float64 // row-major view of x
	stride      int
	y           []float64
	maxFeatures int
	minSamples  int
	maxDepth    int // 0 grows until leaves are pure
	rng         *rand.Rand
	importance  []float64
	total       float64

	// per-code scratch counts, reset after every scan
	counts    [][]float64
	positives [][]float64
	seen      []int
}

func newTreeBuilder(x *mat.Dense, y []float64, cfg ForestConfig, maxFeatures int, rng *rand.Rand) *treeBuilder {
	raw := x.RawMatrix()
	b := &treeBuilder{
		data:        raw.Data,
		stride:      raw.Stride,
		y:           y,
		maxFeatures: maxFeatures,
		minSamples:  cfg.MinSamplesSplit,
		maxDepth:    cfg.MaxDepth,
		rng:         rng,
		importance:  make([]float64, raw.Cols),
		counts:      make([][]float64, raw.Cols),
		positives:   make([][]float64, raw.Cols),
	}
	for j := 0; j < raw.Cols; j++ {
		k := 0
		for i := 0; i < raw.Rows; i++ {
			if v := int(b.value(i, j)) + 1; v > k {
				k = v
			}
		}
		b.counts[j] = make([]float64, k)
		b.positives[j] = make([]float64, k)
	}
	return b
}

func (b *treeBuilder) value(row, feature int) float64 {
	return b.data[row*b.stride+feature]
}

// fit grows a tree over the given sample indices, which may repeat
func (b *treeBuilder) fit(samples []int) *treeNode {
	b.total = float64(len(samples))
	return b.buildTree(samples, 0)
}

// buildTree recursively builds the tree
func (b *treeBuilder) buildTree(samples []int, depth int) *treeNode {
	labels := b.labels(samples)

	if (b.maxDepth > 0 && depth >= b.maxDepth) || len(samples) < b.minSamples || isHomogeneous(labels) {
		return &treeNode{IsLeaf: true, Value: stat.Mean(labels, nil)}
	}

	split, ok := b.findBestSplit(samples, giniImpurity(labels))
	if !ok {
		return &treeNode{IsLeaf: true, Value: stat.Mean(labels, nil)}
	}

	b.importance[split.feature] += float64(len(samples)) / b.total * split.gain

	left := make([]int, 0, split.leftCount)
	right := make([]int, 0, len(samples)-split.leftCount)
	for _, s := range samples {
		if b.value(s, split.feature) <= split.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	return &treeNode{
		Feature:   split.feature,
		Threshold: split.threshold,
		Left:      b.buildTree(left, depth+1),
		Right:     b.buildTree(right, depth+1),
	}
}

type candidateSplit struct {
	feature   int
	threshold float64
	gain      float64
	leftCount int
}

// findBestSplit draws maxFeatures candidate features and returns the split with
// the lowest weighted gini impurity. When none of the drawn features can split
// the node, the remaining features are tried as well.
func (b *treeBuilder) findBestSplit(samples []int, parentImpurity float64) (candidateSplit, bool) {
	order := b.rng.Perm(len(b.counts))

	best := candidateSplit{}
	found := false
	for i, feature := range order {
		if i >= b.maxFeatures && found {
			break
		}
		split, ok := b.bestThreshold(samples, feature, parentImpurity)
		if !ok {
			continue
		}
		if !found || split.gain > best.gain {
			best = split
			found = true
		}
	}
	return best, found
}

// bestThreshold tallies labels per code and scans midpoints between
// consecutive codes present at the node. Cost is linear in the node size
// plus a sort of its distinct codes.
func (b *treeBuilder) bestThreshold(samples []int, feature int, parentImpurity float64) (candidateSplit, bool) {
	counts, positives := b.counts[feature], b.positives[feature]
	seen := b.seen[:0]
	totalPos := 0.0
	for _, s := range samples {
		code := int(b.value(s, feature))
		if counts[code] == 0 {
			seen = append(seen, code)
		}
		counts[code]++
		positives[code] += b.y[s]
		totalPos += b.y[s]
	}
	sort.Ints(seen)

	n := float64(len(samples))
	best := candidateSplit{feature: feature}
	found := false
	nl, leftPos := 0.0, 0.0
	for i := 0; i < len(seen)-1; i++ {
		nl += counts[seen[i]]
		leftPos += positives[seen[i]]

		nr := n - nl
		weighted := (nl*binaryGini(leftPos/nl) + nr*binaryGini((totalPos-leftPos)/nr)) / n
		gain := parentImpurity - weighted
		if !found || gain > best.gain {
			best.threshold = float64(seen[i]+seen[i+1]) / 2
			best.gain = gain
			best.leftCount = int(nl)
			found = true
		}
	}

	for _, code := range seen {
		counts[code] = 0
		positives[code] = 0
	}
	b.seen = seen
	return best, found
}

func (b *treeBuilder) labels(samples []int) []float64 {
	labels := make([]float64, len(samples))
	for i, s := range samples {
		labels[i] = b.y[s]
	}
	return labels
}

// predict walks the tree for one encoded row
func (n *treeNode) predict(row []float64) float64 {
	node := n
	for !node.IsLeaf {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// Helper functions

func isHomogeneous(labels []float64) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, v := range labels {
		if v != first {
			return false
		}
	}
	return true
}

func giniImpurity(labels []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	return binaryGini(stat.Mean(labels, nil))
}

// binaryGini is the gini impurity of a two-class node with positive fraction p
func binaryGini(p float64) float64 {
	return 2 * p * (1 - p)
}
