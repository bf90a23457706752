// Package gbm fits gradient-boosted regression trees with squared-error loss.
//
// Split finding is histogram based: every feature is cut into at most
// MaxBins buckets once, up front, and each node scans bucket sums instead of
// sorted rows. Trees store raw thresholds so a fitted model predicts on
// unbinned input and serializes to plain JSON.
package gbm

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

var ErrNoData = errors.New("gbm: no training rows")

// Params are the boosting hyper-parameters.
type Params struct {
	Estimators     int     `json:"n_estimators"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	Lambda         float64 `json:"lambda"`
	MinChildWeight float64 `json:"min_child_weight"`
	MaxBins        int     `json:"max_bins"`
	// Subsample < 1 draws that fraction of rows per tree using Seed.
	Subsample float64 `json:"subsample"`
	Seed      int64   `json:"seed"`
}

// DefaultParams matches the production models: 200 trees, eta 0.1, depth 6.
func DefaultParams() Params {
	return Params{
		Estimators:     200,
		LearningRate:   0.1,
		MaxDepth:       6,
		Lambda:         1,
		MinChildWeight: 1,
		MaxBins:        256,
		Subsample:      1,
		Seed:           42,
	}
}

func (p Params) validate() error {
	switch {
	case p.Estimators <= 0:
		return fmt.Errorf("gbm: estimators must be positive, got %d", p.Estimators)
	case p.LearningRate <= 0:
		return fmt.Errorf("gbm: learning rate must be positive, got %g", p.LearningRate)
	case p.MaxDepth < 0:
		return fmt.Errorf("gbm: negative max depth %d", p.MaxDepth)
	case p.Lambda < 0:
		return fmt.Errorf("gbm: negative lambda %g", p.Lambda)
	case p.MaxBins < 2:
		return fmt.Errorf("gbm: max bins must be at least 2, got %d", p.MaxBins)
	}
	return nil
}

// Node is one tree node. Rows with x[Feature] <= Threshold go Left.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// Tree is a flat node list rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Regressor is a fitted (or unfitted) boosted ensemble.
type Regressor struct {
	Params      Params  `json:"params"`
	NumFeatures int     `json:"num_features"`
	BaseScore   float64 `json:"base_score"`
	Trees       []Tree  `json:"trees"`
}

func New(p Params) *Regressor { return &Regressor{Params: p} }

// Fit trains the ensemble on X (rows) and y, replacing any previous fit.
func (r *Regressor) Fit(X [][]float64, y []float64) error {
	if err := r.Params.validate(); err != nil {
		return err
	}
	n := len(X)
	if n == 0 {
		return ErrNoData
	}
	if len(y) != n {
		return fmt.Errorf("gbm: %d rows but %d targets", n, len(y))
	}
	nf := len(X[0])
	if nf == 0 {
		return errors.New("gbm: rows have no features")
	}
	for i, row := range X {
		if len(row) != nf {
			return fmt.Errorf("gbm: row %d has %d features, want %d", i, len(row), nf)
		}
	}

	b := &builder{p: r.Params, cuts: make([][]float64, nf), bins: make([][]int, nf), grad: make([]float64, n)}
	col := make([]float64, n)
	for f := 0; f < nf; f++ {
		for i := range X {
			col[i] = X[i][f]
		}
		b.cuts[f] = cutPoints(col, r.Params.MaxBins)
		b.bins[f] = make([]int, n)
		for i, v := range col {
			b.bins[f][i] = sort.SearchFloat64s(b.cuts[f], v)
		}
	}

	base := 0.0
	for _, v := range y {
		base += v
	}
	base /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	rng := rand.New(rand.NewSource(r.Params.Seed))
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	trees := make([]Tree, 0, r.Params.Estimators)
	for t := 0; t < r.Params.Estimators; t++ {
		for i := range pred {
			b.grad[i] = pred[i] - y[i]
		}
		idx := all
		if s := r.Params.Subsample; s > 0 && s < 1 {
			k := int(math.Ceil(s * float64(n)))
			idx = rng.Perm(n)[:k]
			sort.Ints(idx)
		}
		b.nodes = nil
		b.grow(append([]int(nil), idx...), 0)
		tree := Tree{Nodes: b.nodes}
		for i := range pred {
			pred[i] += tree.predict(X[i])
		}
		trees = append(trees, tree)
	}

	r.NumFeatures = nf
	r.BaseScore = base
	r.Trees = trees
	return nil
}

// Predict scores one row.
func (r *Regressor) Predict(x []float64) (float64, error) {
	if len(r.Trees) == 0 {
		return 0, errors.New("gbm: model is not fitted")
	}
	if len(x) != r.NumFeatures {
		return 0, fmt.Errorf("gbm: got %d features, model expects %d", len(x), r.NumFeatures)
	}
	out := r.BaseScore
	for _, t := range r.Trees {
		out += t.predict(x)
	}
	return out, nil
}

// PredictAll scores every row of X.
func (r *Regressor) PredictAll(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		v, err := r.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

type builder struct {
	p     Params
	cuts  [][]float64
	bins  [][]int
	grad  []float64
	nodes []Node
}

// grow appends the subtree for idx and returns its root index.
func (b *builder) grow(idx []int, depth int) int {
	g := 0.0
	for _, i := range idx {
		g += b.grad[i]
	}
	h := float64(len(idx))
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{})

	if depth < b.p.MaxDepth && len(idx) >= 2 {
		if f, bin, ok := b.bestSplit(idx, g, h); ok {
			var left, right []int
			for _, i := range idx {
				if b.bins[f][i] <= bin {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			l := b.grow(left, depth+1)
			r := b.grow(right, depth+1)
			b.nodes[id] = Node{Feature: f, Threshold: b.cuts[f][bin], Left: l, Right: r}
			return id
		}
	}
	b.nodes[id] = Node{Leaf: true, Value: -g / (h + b.p.Lambda) * b.p.LearningRate}
	return id
}

func (b *builder) bestSplit(idx []int, g, h float64) (feature, bin int, ok bool) {
	lambda := b.p.Lambda
	parent := g * g / (h + lambda)
	best := 0.0
	for f, cuts := range b.cuts {
		if len(cuts) == 0 {
			continue
		}
		gs := make([]float64, len(cuts)+1)
		hs := make([]float64, len(cuts)+1)
		for _, i := range idx {
			k := b.bins[f][i]
			gs[k] += b.grad[i]
			hs[k]++
		}
		gl, hl := 0.0, 0.0
		for k := 0; k < len(cuts); k++ {
			gl += gs[k]
			hl += hs[k]
			hr := h - hl
			if hl < b.p.MinChildWeight || hr < b.p.MinChildWeight {
				continue
			}
			gr := g - gl
			gain := gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent
			if gain > best+1e-12 {
				best, feature, bin, ok = gain, f, k, true
			}
		}
	}
	return feature, bin, ok
}

// cutPoints returns ascending split thresholds for one feature column.
func cutPoints(col []float64, maxBins int) []float64 {
	uniq := append([]float64(nil), col...)
	sort.Float64s(uniq)
	w := 0
	for i, v := range uniq {
		if i == 0 || v != uniq[w-1] {
			uniq[w] = v
			w++
		}
	}
	uniq = uniq[:w]
	if len(uniq) < 2 {
		return nil
	}
	if len(uniq) <= maxBins {
		cuts := make([]float64, len(uniq)-1)
		for i := range cuts {
			cuts[i] = (uniq[i] + uniq[i+1]) / 2
		}
		return cuts
	}
	var cuts []float64
	for k := 1; k < maxBins; k++ {
		j := k * len(uniq) / maxBins
		c := (uniq[j-1] + uniq[j]) / 2
		if len(cuts) == 0 || c > cuts[len(cuts)-1] {
			cuts = append(cuts, c)
		}
	}
	return cuts
}
