package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultFallbackMessage = "Informasi tidak ditemukan dalam database resmi. Silakan hubungi Kring Pajak 1500200"
	DefaultErrorMessage    = "Mohon maaf, terjadi kesalahan teknis. Silakan coba lagi atau hubungi Hotline 1500200 atau email djp@pajak.go.id"
	DefaultRequestTimeout  = 15 * time.Second
)

// Stage is a step of one Answer call, used for logging.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageRetrieving   Stage = "retrieving"
	StageEmptyContext Stage = "empty_context"
	StageFallback     Stage = "fallback"
	StageGenerating   Stage = "generating"
	StageCleaning     Stage = "cleaning"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Assembler builds the prompt for a request.
type Assembler interface {
	Assemble(result RetrievalResult, question string) PromptContext
}

// Cleaner turns raw model output into display text.
type Cleaner interface {
	Clean(raw string) string
}

// ServiceConfig holds the user-facing messages and the per-request deadline.
type ServiceConfig struct {
	FallbackMessage string
	ErrorMessage    string
	RequestTimeout  time.Duration
}

type Service struct {
	retriever Retriever
	assembler Assembler
	generator Generator
	cleaner   Cleaner
	cfg       ServiceConfig
	logger    *zap.Logger
}

func NewService(retriever Retriever, assembler Assembler, generator Generator, cleaner Cleaner, cfg ServiceConfig, logger *zap.Logger) *Service {
	if cleaner == nil {
		cleaner = PostProcessor{}
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = DefaultFallbackMessage
	}
	if cfg.ErrorMessage == "" {
		cfg.ErrorMessage = DefaultErrorMessage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		cleaner:   cleaner,
		cfg:       cfg,
		logger:    logger,
	}
}

// Answer runs one question through the pipeline. It never fails: errors
// become the configured error message, an empty retrieval becomes the
// fallback message and the generator is not called.
func (s *Service) Answer(ctx context.Context, question string) AnswerResult {
	start := time.Now()
	log := s.logger
	if id := RequestIDFrom(ctx); id != "" {
		log = s.logger.With(zap.String("request_id", id))
	}

	q := strings.TrimSpace(question)
	if q == "" {
		log.Info("empty question", zap.String("stage", string(StageFallback)))
		return AnswerResult{Text: s.cfg.FallbackMessage, Fallback: true}
	}

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	log.Debug("stage", zap.String("stage", string(StageRetrieving)))
	result, err := s.retriever.Retrieve(ctx, q)
	if err != nil {
		return s.fail(log, StageRetrieving, err, start)
	}

	var prompt PromptContext
	if !result.Empty() {
		prompt = s.assembler.Assemble(result, q)
	}
	if len(prompt.Blocks) == 0 {
		log.Info("no relevant context",
			zap.String("stage", string(StageEmptyContext)),
			zap.String("next", string(StageFallback)),
			zap.Duration("duration", time.Since(start)),
		)
		return AnswerResult{Text: s.cfg.FallbackMessage, Fallback: true}
	}

	log.Debug("stage",
		zap.String("stage", string(StageGenerating)),
		zap.Int("docs", len(result.Documents)),
		zap.Float64("top_score", result.TopScore()),
	)
	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return s.fail(log, StageGenerating, classify(KindGeneration, "generate answer", err), start)
	}

	log.Debug("stage", zap.String("stage", string(StageCleaning)))
	text := s.cleaner.Clean(raw)
	if text == "" {
		return s.fail(log, StageCleaning, NewPipelineError(KindGeneration, "generate answer", errors.New("model returned empty text")), start)
	}

	log.Info("answered",
		zap.String("stage", string(StageDone)),
		zap.Int("docs", len(result.Documents)),
		zap.Float64("top_score", result.TopScore()),
		zap.Duration("duration", time.Since(start)),
	)
	return AnswerResult{Text: text}
}

func (s *Service) fail(log *zap.Logger, at Stage, err error, start time.Time) AnswerResult {
	log.Error("answer failed",
		zap.String("stage", string(StageFailed)),
		zap.String("failed_at", string(at)),
		zap.String("error_kind", string(KindOf(err))),
		zap.Error(err),
		zap.Duration("duration", time.Since(start)),
	)
	return AnswerResult{Text: s.cfg.ErrorMessage}
}

type requestIDKey struct{}

// WithRequestID tags ctx so Answer's log lines carry the id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
