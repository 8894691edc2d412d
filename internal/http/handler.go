package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/astrax-djp/astrax-rag/internal/rag"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader  = "X-Request-ID"
	maxQuestionBytes = 16 << 10
)

// Answerer is the single operation the API exposes.
type Answerer interface {
	Answer(ctx context.Context, question string) rag.AnswerResult
}

// ReadyFunc reports whether downstream dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

// AskRequest
// Payload of POST /ask.
type AskRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	answerer Answerer
	ready    ReadyFunc
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(answerer Answerer, ready ReadyFunc, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		answerer: answerer,
		ready:    ready,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "vector index unavailable"})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Ask answers one question. Pipeline failures still return 200: the body
// carries the user-safe message.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required and must be at most 2000 characters"})
		return
	}

	resp := h.answerer.Answer(r.Context(), req.Question)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RequestID propagates or assigns an X-Request-ID and stores it on the
// request context for the pipeline's logs.
func RequestID(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			logger.Debug("request",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(rag.WithRequestID(r.Context(), id)))
		})
	}
}
