package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/speller/internal/audit"
	"github.com/raaihank/speller/internal/config"
	"github.com/raaihank/speller/internal/etl"
	"github.com/raaihank/speller/internal/logger"
	"github.com/raaihank/speller/internal/speller"
)

type fakeChecker struct {
	suggestions map[string][]speller.Suggestion
	err         error
}

func (c *fakeChecker) CheckAll(ctx context.Context, texts []string, progress speller.Progress) ([][]speller.Suggestion, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]speller.Suggestion, len(texts))
	for i, t := range texts {
		out[i] = c.suggestions[t]
	}
	if progress != nil {
		progress.Report(len(texts), len(texts))
	}
	return out, nil
}

func (c *fakeChecker) Provider() string { return "fake" }

type fakeAudit struct {
	runs        []*etl.ProcessingResult
	corrections int
	topN        int
}

func (a *fakeAudit) RecordRun(ctx context.Context, result *etl.ProcessingResult, corrections []etl.Correction) error {
	a.runs = append(a.runs, result)
	a.corrections += len(corrections)
	return nil
}

func (a *fakeAudit) GetStats(ctx context.Context, topN int) (*audit.Stats, error) {
	a.topN = topN
	return &audit.Stats{
		TotalRuns:        int64(len(a.runs)),
		TotalCorrections: int64(a.corrections),
		TopPairs:         []audit.WordPair{{Word: "ашибку", Replacement: "ошибку", Count: 2}},
	}, nil
}

func defaultChecker() *fakeChecker {
	return &fakeChecker{suggestions: map[string][]speller.Suggestion{
		"Эта строка содежит ашибку": {
			{Word: "содежит", Position: 11, Length: 7, Candidates: []string{"содержит"}},
			{Word: "ашибку", Position: 19, Length: 6, Candidates: []string{"ошибку"}},
		},
		"Масква": {
			{Word: "Масква", Position: 0, Length: 6, Candidates: []string{"Москва"}},
		},
		"broken": {
			{Word: "broken", Position: 4, Length: 10, Candidates: []string{"fixed"}},
		},
	}}
}

func newTestServer(t *testing.T, checker etl.Checker, store AuditStore, wsEnabled bool) *Server {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.WebSocket.Enabled = wsEnabled
	cfg.Server.MaxTexts = 3
	deps := Deps{Checker: checker, Version: "test"}
	if store != nil {
		deps.Audit = store
	}
	return New(cfg, &logger.Logger{Logger: zap.NewNop()}, deps)
}

func postCorrect(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/correct", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, defaultChecker(), nil, false)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestInfo(t *testing.T) {
	s := newTestServer(t, defaultChecker(), nil, true)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "fake", info["provider"])
	assert.Equal(t, "ru", info["lang"])
	assert.Equal(t, "test", info["version"])
	assert.Equal(t, true, info["websocket_enabled"])
	assert.Equal(t, false, info["audit_enabled"])
}

func TestCorrect(t *testing.T) {
	store := &fakeAudit{}
	s := newTestServer(t, defaultChecker(), store, true)

	rec := postCorrect(t, s, `{"texts":["Эта строка содежит ашибку","Масква","всё верно"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var resp correctResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)

	assert.Equal(t, "Эта строка содержит ошибку", resp.Results[0].Text)
	assert.True(t, resp.Results[0].Changed)
	assert.Len(t, resp.Results[0].Corrections, 2)

	// capitalized words are never corrected
	assert.Equal(t, "Масква", resp.Results[1].Text)
	assert.False(t, resp.Results[1].Changed)
	assert.Empty(t, resp.Results[1].Corrections)

	assert.Equal(t, "всё верно", resp.Results[2].Text)
	assert.Equal(t, "содежит -> содержит\nашибку -> ошибку\n", resp.Log)

	require.Len(t, store.runs, 1)
	assert.Equal(t, resp.RunID, store.runs[0].RunID)
	assert.Equal(t, int64(1), store.runs[0].RecordsChanged)
	assert.Equal(t, 2, store.corrections)
}

func TestCorrectKeepsRequestID(t *testing.T) {
	s := newTestServer(t, defaultChecker(), nil, false)

	req := httptest.NewRequest(http.MethodPost, "/v1/correct", strings.NewReader(`{"texts":["x"]}`))
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
}

func TestCorrectRejectsBadRequests(t *testing.T) {
	s := newTestServer(t, defaultChecker(), nil, false)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{"texts":`, http.StatusBadRequest},
		{"unknown field", `{"texts":["a"],"lang":"ru"}`, http.StatusBadRequest},
		{"empty", `{"texts":[]}`, http.StatusBadRequest},
		{"too many", `{"texts":["a","b","c","d"]}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postCorrect(t, s, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "invalid_request", body.Error.Type)
		})
	}
}

func TestCorrectServiceFailure(t *testing.T) {
	checker := &fakeChecker{err: fmt.Errorf("batch 0-5: %w", speller.ErrTransport)}
	store := &fakeAudit{}
	s := newTestServer(t, checker, store, false)

	rec := postCorrect(t, s, `{"texts":["a"]}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "transport", body.Error.Type)
	assert.Empty(t, store.runs)
}

func TestCorrectServiceTimeout(t *testing.T) {
	checker := &fakeChecker{err: fmt.Errorf("batch 0-5: %w", fmt.Errorf("%w: %w", speller.ErrTransport, context.DeadlineExceeded))}
	s := newTestServer(t, checker, nil, false)

	rec := postCorrect(t, s, `{"texts":["a"]}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "timeout", body.Error.Type)
}

func TestCorrectInvalidSuggestion(t *testing.T) {
	s := newTestServer(t, defaultChecker(), nil, false)

	rec := postCorrect(t, s, `{"texts":["broken"]}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_suggestion")
}

func TestCorrectMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, defaultChecker(), nil, false)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/correct", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStats(t *testing.T) {
	store := &fakeAudit{}
	s := newTestServer(t, defaultChecker(), store, false)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats?top=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, store.topN)

	var stats audit.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats.TopPairs, 1)
	assert.Equal(t, "ашибку", stats.TopPairs[0].Word)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats?top=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsWithoutAudit(t *testing.T) {
	s := newTestServer(t, defaultChecker(), nil, false)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketRoute(t *testing.T) {
	enabled := newTestServer(t, defaultChecker(), nil, true)
	rec := httptest.NewRecorder()
	enabled.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	// plain GET reaches the upgrader, which rejects the handshake
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotNil(t, enabled.Hub())

	disabled := newTestServer(t, defaultChecker(), nil, false)
	rec = httptest.NewRecorder()
	disabled.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, disabled.Hub())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(speller.ErrInvalidInput))
	assert.Equal(t, http.StatusBadGateway, statusFor(fmt.Errorf("x: %w", speller.ErrBadStatus)))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.Canceled))
	assert.Equal(t, http.StatusGatewayTimeout,
		statusFor(fmt.Errorf("batch 0-5: %w", fmt.Errorf("%w: %w", speller.ErrTransport, context.DeadlineExceeded))))
	assert.Equal(t, http.StatusServiceUnavailable,
		statusFor(fmt.Errorf("%w: %w", speller.ErrTransport, context.Canceled)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(bytes.ErrTooLarge))
}
