package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/astrax-djp/astrax-rag/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAnswerer struct {
	mock.Mock
}

func (m *mockAnswerer) Answer(ctx context.Context, question string) rag.AnswerResult {
	args := m.Called(ctx, question)
	return args.Get(0).(rag.AnswerResult)
}

func withRequestID(id string) any {
	return mock.MatchedBy(func(ctx context.Context) bool {
		return rag.RequestIDFrom(ctx) == id
	})
}

func newTestRouter(a Answerer, ready ReadyFunc) http.Handler {
	return NewRouter(NewHandler(a, ready, nil), []string{"https://pajak.go.id"}, nil)
}

func TestAsk(t *testing.T) {
	var requestID string
	a := &mockAnswerer{}
	a.On("Answer", mock.Anything, "Bagaimana cara reset password?").
		Run(func(args mock.Arguments) {
			requestID = rag.RequestIDFrom(args.Get(0).(context.Context))
		}).
		Return(rag.AnswerResult{Text: "1. Buka DJP Online"}).
		Once()
	router := newTestRouter(a, nil)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"  Bagaimana cara reset password?  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1. Buka DJP Online", body["text"])
	assert.Equal(t, false, body["isFallback"])

	a.AssertExpectations(t)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), requestID)
}

func TestAsk_FallbackAndErrorStillReturn200(t *testing.T) {
	for _, res := range []rag.AnswerResult{
		{Text: rag.DefaultFallbackMessage, Fallback: true},
		{Text: rag.DefaultErrorMessage},
	} {
		a := &mockAnswerer{}
		a.On("Answer", mock.Anything, "Siapa presiden?").Return(res).Once()
		rec := httptest.NewRecorder()
		newTestRouter(a, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"Siapa presiden?"}`)))

		assert.Equal(t, http.StatusOK, rec.Code)
		var got rag.AnswerResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, res, got)
		a.AssertExpectations(t)
	}
}

func TestAsk_KeepsIncomingRequestID(t *testing.T) {
	a := &mockAnswerer{}
	a.On("Answer", withRequestID("trace-123"), "Apa itu PPh 21?").Return(rag.AnswerResult{Text: "ok"}).Once()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"Apa itu PPh 21?"}`))
	req.Header.Set(RequestIDHeader, "trace-123")
	rec := httptest.NewRecorder()

	newTestRouter(a, nil).ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get(RequestIDHeader))
	a.AssertExpectations(t)
}

func TestAsk_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"question":`},
		{name: "missing question", body: `{}`},
		{name: "blank question", body: `{"question":"   "}`},
		{name: "too long", body: `{"question":"` + strings.Repeat("a", 2001) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &mockAnswerer{}
			rec := httptest.NewRecorder()
			newTestRouter(a, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			a.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
		})
	}
}

func TestAsk_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&mockAnswerer{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ask", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndReady(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&mockAnswerer{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	ready := func(ctx context.Context) error { return nil }
	newTestRouter(&mockAnswerer{}, ready).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	down := func(ctx context.Context) error { return errors.New("connection refused") }
	newTestRouter(&mockAnswerer{}, down).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestCORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
	req.Header.Set("Origin", "https://pajak.go.id")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	newTestRouter(&mockAnswerer{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, "https://pajak.go.id", rec.Header().Get("Access-Control-Allow-Origin"))
}
