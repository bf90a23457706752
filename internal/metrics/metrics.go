package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Predictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simfluence_predictions_total",
		Help: "Prediction requests by endpoint and outcome",
	}, []string{"endpoint", "status"})
	PredictionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simfluence_prediction_duration_seconds",
		Help:    "Prediction request duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	ModelLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simfluence_model_loads_total",
		Help: "Model bundle loads by result (loaded, cached, unavailable, error)",
	}, []string{"result"})
	MissingFeatures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simfluence_missing_features_total",
		Help: "Feature columns synthesized as zero at inference time",
	})
	TrainingRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simfluence_training_runs_total",
		Help: "Training pipeline runs by mode (combined, fallback, failed)",
	}, []string{"mode"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simfluence_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"cmd"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simfluence_command_errors_total",
		Help: "CLI command failures",
	}, []string{"cmd"})
)

func init() {
	prometheus.MustRegister(Predictions, PredictionDuration, ModelLoads, MissingFeatures, TrainingRuns, CommandRuns, CommandErrors)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// ObservePrediction records the outcome and duration of one prediction request.
func ObservePrediction(endpoint, status string, start time.Time) {
	Predictions.WithLabelValues(endpoint, status).Inc()
	PredictionDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func IncModelLoad(result string) { ModelLoads.WithLabelValues(result).Inc() }
func AddMissingFeatures(n int)   { MissingFeatures.Add(float64(n)) }
func IncTrainingRun(mode string) { TrainingRuns.WithLabelValues(mode).Inc() }
func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
