package gbm

import (
	"errors"
	"math"
	"testing"

	"github.com/goccy/go-json"
)

func stepData() ([][]float64, []float64) {
	var X [][]float64
	var y []float64
	for i := 0; i < 100; i++ {
		X = append(X, []float64{float64(i), float64(i % 7)})
		if i >= 50 {
			y = append(y, 10)
		} else {
			y = append(y, 0)
		}
	}
	return X, y
}

func TestFitRecoversStep(t *testing.T) {
	X, y := stepData()
	r := New(DefaultParams())
	if err := r.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	lo, err := r.Predict([]float64{20, 6})
	if err != nil {
		t.Fatal(err)
	}
	hi, _ := r.Predict([]float64{80, 3})
	if math.Abs(lo) > 0.5 || math.Abs(hi-10) > 0.5 {
		t.Fatalf("lo=%.3f hi=%.3f", lo, hi)
	}
	if len(r.Trees) != 200 || r.NumFeatures != 2 {
		t.Fatalf("trees=%d features=%d", len(r.Trees), r.NumFeatures)
	}
}

func TestFitIsDeterministic(t *testing.T) {
	X, y := stepData()
	p := DefaultParams()
	p.Estimators = 30
	p.Subsample = 0.8
	a, b := New(p), New(p)
	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	for _, x := range X {
		pa, _ := a.Predict(x)
		pb, _ := b.Predict(x)
		if pa != pb {
			t.Fatalf("predictions differ at %v: %v vs %v", x, pa, pb)
		}
	}
}

func TestConstantTargetPredictsMean(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	r := New(DefaultParams())
	if err := r.Fit(X, []float64{4, 4, 4}); err != nil {
		t.Fatal(err)
	}
	v, _ := r.Predict([]float64{100})
	if math.Abs(v-4) > 1e-9 {
		t.Fatalf("got %v", v)
	}
}

func TestFitRejectsBadInput(t *testing.T) {
	r := New(DefaultParams())
	if err := r.Fit(nil, nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("got %v", err)
	}
	if err := r.Fit([][]float64{{1}, {1, 2}}, []float64{1, 2}); err == nil {
		t.Fatal("expected ragged rows to fail")
	}
	if err := r.Fit([][]float64{{1}}, []float64{1, 2}); err == nil {
		t.Fatal("expected length mismatch to fail")
	}
	if _, err := New(DefaultParams()).Predict([]float64{1}); err == nil {
		t.Fatal("expected unfitted predict to fail")
	}
}

func TestPredictChecksWidth(t *testing.T) {
	X, y := stepData()
	p := DefaultParams()
	p.Estimators = 5
	r := New(p)
	_ = r.Fit(X, y)
	if _, err := r.Predict([]float64{1}); err == nil {
		t.Fatal("expected width error")
	}
}

func TestJSONKeepsPredictions(t *testing.T) {
	X, y := stepData()
	p := DefaultParams()
	p.Estimators = 20
	r := New(p)
	if err := r.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var back Regressor
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	for _, x := range X {
		want, _ := r.Predict(x)
		got, err := back.Predict(x)
		if err != nil || got != want {
			t.Fatalf("x=%v got %v want %v (%v)", x, got, want, err)
		}
	}
}

func TestCutPointsCapsBins(t *testing.T) {
	col := make([]float64, 1000)
	for i := range col {
		col[i] = float64(i)
	}
	cuts := cutPoints(col, 16)
	if len(cuts) > 15 || len(cuts) == 0 {
		t.Fatalf("got %d cuts", len(cuts))
	}
	for i := 1; i < len(cuts); i++ {
		if cuts[i] <= cuts[i-1] {
			t.Fatalf("cuts not ascending: %v", cuts)
		}
	}
	if cutPoints([]float64{3, 3, 3}, 16) != nil {
		t.Fatal("constant column should have no cuts")
	}
}
