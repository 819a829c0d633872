package forest

import (
	"math"
	"math/rand"
	"sort"
)

const leaf = -1

// node is a flattened CART node. Leaves have Feature == leaf and carry the
// class distribution of the bootstrap samples that reached them.
type node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Proba     []float64
}

type tree struct {
	Nodes []node
}

// treeParams are the per-tree fit settings.
type treeParams struct {
	nClasses       int
	maxFeatures    int
	maxDepth       int
	minSamplesLeaf int
}

// grow fits a tree on rows idx of X (row-major, nFeatures wide).
func grow(X [][]float64, y []int, idx []int, p treeParams, rng *rand.Rand) tree {
	t := tree{}
	t.build(X, y, idx, 0, p, rng)
	return t
}

func (t *tree) build(X [][]float64, y []int, idx []int, depth int, p treeParams, rng *rand.Rand) int {
	counts := classCounts(y, idx, p.nClasses)
	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, node{Feature: leaf, Proba: normalize(counts, len(idx))})

	if len(idx) < 2*p.minSamplesLeaf || isPure(counts) || (p.maxDepth > 0 && depth >= p.maxDepth) {
		return id
	}

	feature, threshold, ok := bestSplit(X, y, idx, counts, p, rng)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := t.build(X, y, left, depth+1, p, rng)
	r := t.build(X, y, right, depth+1, p, rng)
	t.Nodes[id] = node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return id
}

// bestSplit scans a random subset of features for the threshold with the
// lowest weighted gini impurity, even when it does not improve on the
// parent. Features that are constant on idx do not count towards
// maxFeatures, so a split is found whenever one exists.
func bestSplit(X [][]float64, y []int, idx []int, parent []int, p treeParams, rng *rand.Rand) (int, float64, bool) {
	nFeatures := len(X[idx[0]])
	order := rng.Perm(nFeatures)

	var (
		bestFeature   = -1
		bestThreshold float64
		bestScore     = math.Inf(1)
		visited       int
	)

	sorted := make([]int, len(idx))
	left := make([]int, p.nClasses)
	right := make([]int, p.nClasses)

	for _, f := range order {
		if visited >= p.maxFeatures && bestFeature >= 0 {
			break
		}

		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })
		if X[sorted[0]][f] == X[sorted[len(sorted)-1]][f] {
			continue
		}
		visited++

		for c := range left {
			left[c] = 0
			right[c] = parent[c]
		}
		for k := 0; k < len(sorted)-1; k++ {
			cls := y[sorted[k]]
			left[cls]++
			right[cls]--

			nl := k + 1
			nr := len(sorted) - nl
			lo, hi := X[sorted[k]][f], X[sorted[k+1]][f]
			if lo == hi || nl < p.minSamplesLeaf || nr < p.minSamplesLeaf {
				continue
			}
			score := gini(left, nl)*float64(nl) + gini(right, nr)*float64(nr)
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold == hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func classCounts(y []int, idx []int, nClasses int) []int {
	counts := make([]int, nClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	return counts
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func normalize(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	if n == 0 {
		return out
	}
	for c, v := range counts {
		out[c] = float64(v) / float64(n)
	}
	return out
}

// leafProba walks x down to a leaf.
func (t tree) leafProba(x []float64) []float64 {
	i := 0
	for t.Nodes[i].Feature != leaf {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Proba
}
