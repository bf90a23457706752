// Package train is the offline pipeline that fits the likes, comments and
// shares regressors and persists them as model bundles.
package train

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"simfluence/internal/config"
	"simfluence/internal/dataset"
	"simfluence/internal/features"
	"simfluence/internal/gbm"
	"simfluence/internal/logging"
	"simfluence/internal/metrics"
	"simfluence/internal/modelstore"
	"simfluence/internal/store/sqlitevec"
)

// ErrTrainingData is returned, wrapped, for unusable datasets.
var ErrTrainingData = dataset.ErrTrainingData

const (
	ProvenanceCombined = "Combined Simfluence + Sarcasm"
	ProvenancePrimary  = "Simfluence only"
)

// Options locate the inputs and output and fix the model hyper-parameters.
type Options struct {
	PrimaryPath string
	AuxPath     string
	OutDir      string
	Params      gbm.Params
	TestSize    float64
	// Seed drives the train/test permutation shared by all three targets.
	Seed int64
}

// OptionsFromConfig maps the training and models config sections.
func OptionsFromConfig(cfg config.Config) Options {
	tc := cfg.Training
	p := gbm.DefaultParams()
	if tc.Estimators > 0 {
		p.Estimators = tc.Estimators
	}
	if tc.LearningRate > 0 {
		p.LearningRate = tc.LearningRate
	}
	if tc.MaxDepth > 0 {
		p.MaxDepth = tc.MaxDepth
	}
	if tc.Lambda >= 0 {
		p.Lambda = tc.Lambda
	}
	if tc.MaxBins > 1 {
		p.MaxBins = tc.MaxBins
	}
	p.Seed = tc.Seed
	testSize := tc.TestSize
	if testSize <= 0 || testSize >= 1 {
		testSize = 0.2
	}
	return Options{
		PrimaryPath: tc.PrimaryPath,
		AuxPath:     tc.AuxPath,
		OutDir:      cfg.Models.Dir,
		Params:      p,
		TestSize:    testSize,
		Seed:        tc.Seed,
	}
}

// RunRecorder stores finished runs; *sqlitevec.DB satisfies it.
type RunRecorder interface {
	PutRun(ctx context.Context, r sqlitevec.Run) error
}

// Metric is the held-out score of one target.
type Metric struct {
	MSE float64
	R2  float64
}

// Result describes a completed run.
type Result struct {
	RunID      string
	Provenance string
	Fallback   bool
	// FallbackReason is the error that abandoned combined training.
	FallbackReason error
	Rows           int
	TrainRows      int
	TestRows       int
	Columns        []string
	Metrics        map[string]Metric
	Bundles        modelstore.Bundles
}

type Pipeline struct {
	opts   Options
	ledger RunRecorder
	now    func() time.Time
}

// New returns a pipeline. ledger may be nil.
func New(opts Options, ledger RunRecorder) *Pipeline {
	return &Pipeline{opts: opts, ledger: ledger, now: func() time.Time { return time.Now().UTC() }}
}

// Run trains on the combined datasets, falling back to the primary dataset
// alone when the auxiliary corpus cannot be used. Bundles are written only
// after all three models trained.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := p.now()
	primary, err := dataset.LoadPrimary(p.opts.PrimaryPath)
	if err != nil {
		metrics.IncTrainingRun("failed")
		return nil, fmt.Errorf("load primary: %w", err)
	}
	logging.Info("primary_loaded", map[string]any{"path": p.opts.PrimaryPath, "rows": len(primary.Samples)})

	res, err := p.combined(ctx, primary)
	if err != nil {
		if ctx.Err() != nil {
			metrics.IncTrainingRun("failed")
			return nil, ctx.Err()
		}
		logging.Warn("combined_training_failed", map[string]any{"error": err.Error(), "fallback": ProvenancePrimary})
		reason := err
		res, err = p.fit(ctx, primary, nil, ProvenancePrimary)
		if err != nil {
			metrics.IncTrainingRun("failed")
			return nil, fmt.Errorf("fallback training: %w", err)
		}
		res.Fallback, res.FallbackReason = true, reason
	}

	if err := modelstore.Save(p.opts.OutDir, res.Bundles); err != nil {
		metrics.IncTrainingRun("failed")
		return nil, fmt.Errorf("persist bundles: %w", err)
	}
	mode := "combined"
	if res.Fallback {
		mode = "fallback"
	}
	metrics.IncTrainingRun(mode)
	logging.Info("models_saved", map[string]any{"dir": p.opts.OutDir, "mode": mode, "run_id": res.RunID})

	if p.ledger != nil {
		run := sqlitevec.Run{
			ID:         res.RunID,
			StartedAt:  started,
			FinishedAt: p.now(),
			Provenance: res.Provenance,
			Rows:       res.Rows,
			Features:   len(res.Columns),
			Fallback:   res.Fallback,
			Metrics:    map[string]sqlitevec.Metric{},
		}
		for t, m := range res.Metrics {
			run.Metrics[t] = sqlitevec.Metric{MSE: m.MSE, R2: m.R2}
		}
		if err := p.ledger.PutRun(ctx, run); err != nil {
			logging.Warn("run_record_failed", map[string]any{"error": err.Error()})
		}
	}
	return res, nil
}

func (p *Pipeline) combined(ctx context.Context, primary *dataset.Primary) (*Result, error) {
	aux, err := dataset.LoadAux(p.opts.AuxPath)
	if err != nil {
		return nil, fmt.Errorf("load aux: %w", err)
	}
	logging.Info("aux_loaded", map[string]any{
		"path":            p.opts.AuxPath,
		"rows":            len(aux.Comments),
		"dates_defaulted": aux.DatesDefaulted,
		"avg_word_count":  aux.Stats.AvgWordCount,
	})
	stats := aux.Stats
	return p.fit(ctx, primary, &stats, ProvenanceCombined)
}

func (p *Pipeline) fit(ctx context.Context, primary *dataset.Primary, aux *features.AuxStats, provenance string) (*Result, error) {
	m, err := dataset.Combine(primary, aux)
	if err != nil {
		return nil, err
	}
	trainIdx, testIdx, err := Split(len(m.X), p.opts.TestSize, p.opts.Seed)
	if err != nil {
		return nil, err
	}
	Xtr, Xte := rows(m.X, trainIdx), rows(m.X, testIdx)
	targets := map[string][]float64{
		modelstore.TargetLikes:    m.Likes,
		modelstore.TargetComments: m.Comments,
		modelstore.TargetShares:   m.Shares,
	}

	res := &Result{
		RunID:      uuid.NewString(),
		Provenance: provenance,
		Rows:       len(m.X),
		TrainRows:  len(trainIdx),
		TestRows:   len(testIdx),
		Columns:    m.Columns,
		Metrics:    map[string]Metric{},
	}
	trainedAt := p.now()
	built := map[string]*modelstore.Bundle{}
	for _, t := range modelstore.Targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		y := targets[t]
		r := gbm.New(p.opts.Params)
		if err := r.Fit(Xtr, values(y, trainIdx)); err != nil {
			return nil, fmt.Errorf("fit %s: %w", t, err)
		}
		pred, err := r.PredictAll(Xte)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", t, err)
		}
		res.Metrics[t] = Evaluate(values(y, testIdx), pred)
		logging.Info("model_trained", map[string]any{"target": t, "mse": res.Metrics[t].MSE, "r2": res.Metrics[t].R2})
		built[t] = &modelstore.Bundle{
			Target:        t,
			SchemaVersion: features.Version,
			Features:      m.Columns,
			DatasetInfo:   provenance,
			Aux:           aux,
			TrainedAt:     trainedAt,
			Model:         r,
		}
	}
	res.Bundles = modelstore.Bundles{
		Likes:    built[modelstore.TargetLikes],
		Comments: built[modelstore.TargetComments],
		Shares:   built[modelstore.TargetShares],
	}
	return res, nil
}

// Split permutes n row indexes with seed and holds out ceil(testSize*n) of
// them. The same seed always yields the same partition.
func Split(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size %g outside (0,1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if n == 0 || nTest < 1 || n-nTest < 1 {
		return nil, nil, &dataset.DataError{Stage: "split", Err: fmt.Errorf("%d rows cannot form train and test splits", n)}
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// Evaluate scores predictions against held-out targets. A constant target
// scores R² 1 when matched exactly and 0 otherwise.
func Evaluate(y, pred []float64) Metric {
	if len(y) == 0 {
		return Metric{}
	}
	mu := 0.0
	for _, v := range y {
		mu += v
	}
	mu /= float64(len(y))
	var ssRes, ssTot float64
	for i := range y {
		d := y[i] - pred[i]
		ssRes += d * d
		ssTot += (y[i] - mu) * (y[i] - mu)
	}
	m := Metric{MSE: ssRes / float64(len(y))}
	switch {
	case ssTot > 0:
		m.R2 = 1 - ssRes/ssTot
	case ssRes == 0:
		m.R2 = 1
	}
	return m
}

// PrintSummary writes the run summary table.
func PrintSummary(w io.Writer, r *Result) {
	title := "TRAINING SUMMARY"
	if r.Fallback {
		title = "FALLBACK TRAINING SUMMARY"
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Dataset: %s\n", r.Provenance)
	fmt.Fprintf(w, "Samples: %d (train %d, test %d)\n", r.Rows, r.TrainRows, r.TestRows)
	fmt.Fprintf(w, "Features: %d\n\n", len(r.Columns))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tMSE\tR2")
	for _, t := range modelstore.Targets {
		m := r.Metrics[t]
		fmt.Fprintf(tw, "%s\t%.2f\t%.3f\n", t, m.MSE, m.R2)
	}
	_ = tw.Flush()
}

func rows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func values(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
