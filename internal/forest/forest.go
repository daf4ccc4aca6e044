// Package forest implements a random forest classifier over dense float
// features, with bootstrap sampling and per-tree class balancing.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
)

// ClassWeight selects how samples are reweighted by class frequency.
type ClassWeight string

// Class weighting modes.
const (
	ClassWeightNone ClassWeight = ""
	// ClassWeightBalanced weights by class frequency in the full training set.
	ClassWeightBalanced ClassWeight = "balanced"
	// ClassWeightBalancedSubsample weights by class frequency in each
	// tree's bootstrap sample.
	ClassWeightBalancedSubsample ClassWeight = "balanced_subsample"
)

// Errors returned by the forest.
var (
	ErrEmptyInput    = errors.New("forest: empty X")
	ErrShapeMismatch = errors.New("forest: shape mismatch")
	ErrNotFitted     = errors.New("forest: not fitted")
	ErrNonFinite     = errors.New("forest: non-finite feature value")
)

// Config holds the forest hyperparameters.
type Config struct {
	ClassWeight     ClassWeight
	NEstimators     int
	MaxDepth        int // 0 => unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => sqrt(p)
	Seed            int64
	Bootstrap       bool
}

func (c Config) maxFeatures(p int) int {
	if c.MaxFeatures <= 0 || c.MaxFeatures > p {
		return sqrtFeatures(p)
	}
	return c.MaxFeatures
}

// Option functional config for Forest.
type Option func(*Config)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option { return func(c *Config) { c.NEstimators = n } }

// WithMaxDepth caps tree depth; 0 means unlimited.
func WithMaxDepth(d int) Option { return func(c *Config) { c.MaxDepth = d } }

// WithMaxFeatures sets how many features each split considers.
func WithMaxFeatures(k int) Option { return func(c *Config) { c.MaxFeatures = k } }

// WithSeed fixes the random source.
func WithSeed(seed int64) Option { return func(c *Config) { c.Seed = seed } }

// WithClassWeight selects the class balancing mode.
func WithClassWeight(w ClassWeight) Option { return func(c *Config) { c.ClassWeight = w } }

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(b bool) Option { return func(c *Config) { c.Bootstrap = b } }

// Forest is a fitted (or unfitted) random forest. Exported fields are the
// persisted state.
type Forest struct {
	Classes   []int
	Trees     []Tree
	Config    Config
	NFeatures int
}

// New returns a forest with defaults matching a 200-tree balanced ensemble.
func New(opts ...Option) *Forest {
	cfg := Config{
		NEstimators:     200,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Seed:            42,
		ClassWeight:     ClassWeightBalancedSubsample,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Forest{Config: cfg}
}

// Fit trains all trees. onTree, when non-nil, is called once per finished
// tree and may be called from several goroutines.
func (f *Forest) Fit(ctx context.Context, x [][]float64, y []int, onTree func()) error {
	if len(x) == 0 {
		return ErrEmptyInput
	}
	if len(y) != len(x) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(x), len(y))
	}
	p := len(x[0])
	if p == 0 {
		return fmt.Errorf("%w: no feature columns", ErrEmptyInput)
	}
	for i, row := range x {
		if len(row) != p {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), p)
		}
		if err := checkFinite(row); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	if f.Config.NEstimators <= 0 {
		return fmt.Errorf("forest: n_estimators must be positive, got %d", f.Config.NEstimators)
	}

	f.Classes = uniqueSorted(y)
	classIdx := make(map[int]int, len(f.Classes))
	for i, c := range f.Classes {
		classIdx[c] = i
	}
	yi := make([]int, len(y))
	for i, lab := range y {
		yi[i] = classIdx[lab]
	}
	f.NFeatures = p
	f.Trees = make([]Tree, f.Config.NEstimators)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, runtime.NumCPU())

	for t := 0; t < f.Config.NEstimators; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			f.Trees[t] = f.fitTree(x, yi, f.Config.Seed+int64(t))
			if onTree != nil {
				mu.Lock()
				onTree()
				mu.Unlock()
			}
		}(t)
	}
	wg.Wait()

	if firstErr != nil {
		f.Trees = nil
		return firstErr
	}
	return nil
}

func (f *Forest) fitTree(x [][]float64, y []int, seed int64) Tree {
	n := len(x)
	rnd := rand.New(rand.NewSource(seed))

	mult := make([]float64, n)
	if f.Config.Bootstrap {
		for j := 0; j < n; j++ {
			mult[rnd.Intn(n)]++
		}
	} else {
		for j := range mult {
			mult[j] = 1
		}
	}

	var cw []float64
	switch f.Config.ClassWeight {
	case ClassWeightBalanced:
		cw = balancedWeights(y, nil, len(f.Classes))
	case ClassWeightBalancedSubsample:
		cw = balancedWeights(y, mult, len(f.Classes))
	}

	w := make([]float64, n)
	idx := make([]int, 0, n)
	for i := range w {
		w[i] = mult[i]
		if cw != nil {
			w[i] *= cw[y[i]]
		}
		if w[i] > 0 {
			idx = append(idx, i)
		}
	}

	b := &treeBuilder{
		rnd:      rnd,
		x:        x,
		y:        y,
		w:        w,
		cfg:      f.Config,
		nClasses: len(f.Classes),
		nFeat:    len(x[0]),
	}
	b.build(idx, 0)
	return Tree{Nodes: b.nodes}
}

// balancedWeights returns n / (k * count_c) per class. mult, when given,
// weights each sample by how often the bootstrap drew it.
func balancedWeights(y []int, mult []float64, k int) []float64 {
	counts := make([]float64, k)
	total := 0.0
	for i, c := range y {
		m := 1.0
		if mult != nil {
			m = mult[i]
		}
		counts[c] += m
		total += m
	}
	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}
	w := make([]float64, k)
	for c, cnt := range counts {
		if cnt > 0 {
			w[c] = total / (float64(present) * cnt)
		}
	}
	return w
}

// PredictProba averages the per-tree class distributions. Columns follow
// f.Classes.
func (f *Forest) PredictProba(x [][]float64) ([][]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != f.NFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), f.NFeatures)
		}
		if err := checkFinite(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		acc := make([]float64, len(f.Classes))
		for _, t := range f.Trees {
			for c, p := range t.proba(row) {
				acc[c] += p
			}
		}
		for c := range acc {
			acc[c] /= float64(len(f.Trees))
		}
		out[i] = acc
	}
	return out, nil
}

// Predict returns the class with the highest averaged probability.
func (f *Forest) Predict(x [][]float64) ([]int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = f.Classes[argmax(p)]
	}
	return out, nil
}

// ClassIndex returns the probability column for label, or -1.
func (f *Forest) ClassIndex(label int) int {
	for i, c := range f.Classes {
		if c == label {
			return i
		}
	}
	return -1
}

func checkFinite(row []float64) error {
	for j, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w at column %d: %v", ErrNonFinite, j, v)
		}
	}
	return nil
}

func uniqueSorted(y []int) []int {
	seen := make(map[int]struct{})
	out := make([]int, 0, 2)
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
