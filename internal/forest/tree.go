package forest

import (
	"math"
	"math/rand"
	"sort"
)

// leafMarker marks a node without children.
const leafMarker = -1

// Node is one entry of a flattened CART tree. Internal nodes route
// x[Feature] <= Threshold to Left and everything else to Right.
type Node struct {
	Proba     []float64
	Threshold float64
	Feature   int
	Left      int
	Right     int
}

// IsLeaf reports whether the node carries a class distribution.
func (n Node) IsLeaf() bool { return n.Left == leafMarker }

// Tree is a fitted decision tree stored as a node slice rooted at index 0.
type Tree struct {
	Nodes []Node
}

func (t Tree) proba(x []float64) []float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Proba
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeBuilder grows one tree over weighted samples.
type treeBuilder struct {
	rnd      *rand.Rand
	x        [][]float64
	y        []int // class index, not label
	w        []float64
	nodes    []Node
	cfg      Config
	nClasses int
	nFeat    int
}

func (b *treeBuilder) counts(idx []int) ([]float64, float64) {
	c := make([]float64, b.nClasses)
	total := 0.0
	for _, i := range idx {
		c[b.y[i]] += b.w[i]
		total += b.w[i]
	}
	return c, total
}

func (b *treeBuilder) leaf(counts []float64, total float64) int {
	proba := make([]float64, len(counts))
	if total > 0 {
		for i, c := range counts {
			proba[i] = c / total
		}
	}
	b.nodes = append(b.nodes, Node{Left: leafMarker, Right: leafMarker, Proba: proba})
	return len(b.nodes) - 1
}

func (b *treeBuilder) build(idx []int, depth int) int {
	counts, total := b.counts(idx)

	if total == 0 || isPure(counts) ||
		len(idx) < b.cfg.MinSamplesSplit ||
		(b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) {
		return b.leaf(counts, total)
	}

	best := b.bestSplit(idx, counts, total)
	if best.feature < 0 {
		return b.leaf(counts, total)
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	// Reserve the slot so the parent precedes its children.
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: best.feature, Threshold: best.threshold})
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

type split struct {
	gain      float64
	threshold float64
	feature   int
}

func (b *treeBuilder) candidateFeatures() []int {
	perm := b.rnd.Perm(b.nFeat)
	k := b.cfg.maxFeatures(b.nFeat)
	return perm[:k]
}

func (b *treeBuilder) bestSplit(idx []int, counts []float64, total float64) split {
	best := split{feature: -1}
	parent := gini(counts, total)
	sorted := make([]int, len(idx))

	for _, f := range b.candidateFeatures() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.x[sorted[a]][f] < b.x[sorted[c]][f] })

		left := make([]float64, b.nClasses)
		leftTotal := 0.0
		for s := 1; s < len(sorted); s++ {
			prev := sorted[s-1]
			left[b.y[prev]] += b.w[prev]
			leftTotal += b.w[prev]

			lo, hi := b.x[prev][f], b.x[sorted[s]][f]
			if lo == hi {
				continue
			}
			if s < b.cfg.MinSamplesLeaf || len(sorted)-s < b.cfg.MinSamplesLeaf {
				continue
			}

			rightTotal := total - leftTotal
			if leftTotal <= 0 || rightTotal <= 0 {
				continue
			}
			right := make([]float64, b.nClasses)
			for c := range right {
				right[c] = counts[c] - left[c]
			}
			child := (leftTotal*gini(left, leftTotal) + rightTotal*gini(right, rightTotal)) / total
			if gain := parent - child; gain > best.gain+1e-12 {
				thr := lo + (hi-lo)/2
				if thr == hi {
					thr = lo
				}
				best = split{gain: gain, threshold: thr, feature: f}
			}
		}
	}
	return best
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	s := 0.0
	for _, c := range counts {
		p := c / total
		s += p * p
	}
	return 1 - s
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

func sqrtFeatures(p int) int {
	k := int(math.Sqrt(float64(p)))
	if k < 1 {
		k = 1
	}
	return k
}
