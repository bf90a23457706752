package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"simfluence/internal/analytics"
	"simfluence/internal/logging"
	"simfluence/internal/model"
	"simfluence/internal/modelstore"
)

// ErrNoInput is an empty, null or {} request body.
var ErrNoInput = errors.New("no input provided")

var errBadJSON = errors.New("invalid JSON body")

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type engagementResponse struct {
	PredictedLikes     int    `json:"predicted_likes"`
	PredictedComments  int    `json:"predicted_comments"`
	PredictedShares    int    `json:"predicted_shares"`
	EngagementScore    int    `json:"engagement_score"`
	EngagementCategory string `json:"engagement_category"`
	ModelInfo          string `json:"model_info"`
	Status             string `json:"status"`
}

type commentsResponse struct {
	PredictedComments int    `json:"predicted_comments"`
	ModelInfo         string `json:"model_info"`
	Status            string `json:"status"`
}

type sharesResponse struct {
	PredictedShares int    `json:"predicted_shares"`
	ModelInfo       string `json:"model_info"`
	Status          string `json:"status"`
}

func engagementBody(p *model.Prediction) any {
	return engagementResponse{
		PredictedLikes:     p.Likes,
		PredictedComments:  p.Comments,
		PredictedShares:    p.Shares,
		EngagementScore:    analytics.Score(p.Likes, p.Comments, p.Shares),
		EngagementCategory: analytics.Category(p.Likes),
		ModelInfo:          p.ModelInfo,
		Status:             "success",
	}
}

func commentsBody(p *model.Prediction) any {
	return commentsResponse{PredictedComments: p.Comments, ModelInfo: p.ModelInfo, Status: "success"}
}

func sharesBody(p *model.Prediction) any {
	return sharesResponse{PredictedShares: p.Shares, ModelInfo: p.ModelInfo, Status: "success"}
}

// predictHandler decodes a post record, runs the shared prediction and
// projects the result. Error detail is logged, never returned.
func (s *Server) predictHandler(name string, project func(*model.Prediction) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rec, err := decodeRecord(w, r)
		switch {
		case errors.Is(err, ErrNoInput):
			writeError(w, r, http.StatusBadRequest, "NO_INPUT", "No data provided")
			return
		case err != nil:
			logging.Ctx(ctx).Debug().Err(err).Msg("bad_request_body")
			writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
			return
		}
		if err := rec.Validate(); err != nil {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", model.ValidationMessage(err))
			return
		}

		p, err := s.predictor.PredictEngagement(ctx, rec)
		if errors.Is(err, modelstore.ErrModelsUnavailable) {
			logging.Ctx(ctx).Error().Err(err).Str("endpoint", name).Msg("model_loading_failed")
			writeError(w, r, http.StatusInternalServerError, "MODELS_UNAVAILABLE", "Model loading failed")
			return
		}
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("endpoint", name).Msg("prediction_failed")
			writeError(w, r, http.StatusInternalServerError, "PREDICTION_FAILED", name+" prediction failed")
			return
		}
		logging.Ctx(ctx).Info().Int("likes", p.Likes).Int("comments", p.Comments).Int("shares", p.Shares).Str("endpoint", name).Msg("prediction_ok")
		writeJSON(w, http.StatusOK, project(p))
	}
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (model.PostRecord, error) {
	var rec model.PostRecord
	if r.Body == nil {
		return rec, ErrNoInput
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return rec, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return rec, ErrNoInput
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return rec, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if len(fields) == 0 {
		return rec, ErrNoInput
	}
	if err := json.Unmarshal(body, &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return rec, nil
}

func (s *Server) reloadModels(w http.ResponseWriter, r *http.Request) {
	s.models.Invalidate()
	bs, err := s.models.Load(r.Context())
	if errors.Is(err, modelstore.ErrModelsUnavailable) {
		writeError(w, r, http.StatusInternalServerError, "MODELS_UNAVAILABLE", "Model loading failed")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("model_reload_failed")
		writeError(w, r, http.StatusInternalServerError, "RELOAD_FAILED", "Model reload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"model_info": bs.Likes.DatasetInfo,
		"trained_at": bs.Likes.TrainedAt,
		"features":   len(bs.Likes.Features),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code, RequestID: logging.RequestIDFromContext(r.Context())})
}
