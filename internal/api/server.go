// Package api exposes the prediction service over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"simfluence/internal/config"
	"simfluence/internal/logging"
	"simfluence/internal/metrics"
	"simfluence/internal/model"
	"simfluence/internal/modelstore"
)

// Predictor is the prediction service as the handlers see it.
type Predictor interface {
	PredictEngagement(ctx context.Context, rec model.PostRecord) (*model.Prediction, error)
}

// ModelCache is the model store's lifecycle surface.
type ModelCache interface {
	Load(ctx context.Context) (modelstore.Bundles, error)
	Invalidate()
}

type Server struct {
	predictor Predictor
	models    ModelCache
	limiter   *rate.Limiter
}

// NewServer wires handlers to p. models may be nil, which disables the
// reload endpoint. cfg.RPS <= 0 disables rate limiting.
func NewServer(p Predictor, models ModelCache, cfg config.ServerConfig) *Server {
	s := &Server{predictor: p, models: models}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RPS) + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(AccessLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/predict", func(r chi.Router) {
		r.Post("/engagement", instrument("/predict/engagement", s.limited(s.predictHandler("Engagement", engagementBody))))
		r.Post("/comments", instrument("/predict/comments", s.limited(s.predictHandler("Comments", commentsBody))))
		r.Post("/shares", instrument("/predict/shares", s.limited(s.predictHandler("Shares", sharesBody))))
	})
	if s.models != nil {
		r.Post("/admin/models/reload", s.reloadModels)
	}
	return r
}

// Serve runs h on cfg.Addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func Serve(ctx context.Context, cfg config.ServerConfig, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logging.Info("server_listening", map[string]any{"addr": cfg.Addr})
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.Info("server_stopped", nil)
	return nil
}
