package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raaihank/speller/internal/etl"
	"github.com/raaihank/speller/internal/patch"
	"github.com/raaihank/speller/internal/speller"
)

const defaultTopPairs = 10

type correctRequest struct {
	Texts []string `json:"texts"`
}

type correctedText struct {
	Text        string        `json:"text"`
	Changed     bool          `json:"changed"`
	Corrections []patch.Entry `json:"corrections"`
}

type correctResponse struct {
	RunID   string          `json:"run_id"`
	Results []correctedText `json:"results"`
	Log     string          `json:"log"`
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":              "speller",
		"version":           s.deps.Version,
		"provider":          s.deps.Checker.Provider(),
		"lang":              s.config.Speller.Lang,
		"batch_size":        s.config.Speller.BatchSize,
		"max_texts":         s.config.Server.MaxTexts,
		"websocket_enabled": s.wsHub != nil,
		"audit_enabled":     s.deps.Audit != nil,
		"uptime":            time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.wsHub != nil {
		info["websocket"] = s.wsHub.GetStats()
	}
	writeJSON(w, http.StatusOK, info)
}

// handleCorrect checks and corrects a list of texts in one run
func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithRequestID(getRequestID(r.Context()))

	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	var req correctRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "texts must not be empty")
		return
	}
	if len(req.Texts) > s.config.Server.MaxTexts {
		writeError(w, http.StatusRequestEntityTooLarge, "invalid_request",
			fmt.Sprintf("at most %d texts per request", s.config.Server.MaxTexts))
		return
	}

	start := time.Now()
	result := &etl.ProcessingResult{
		RunID:          uuid.NewString(),
		Provider:       s.deps.Checker.Provider(),
		InputPath:      "http",
		RecordsRead:    int64(len(req.Texts)),
		RecordsChecked: int64(len(req.Texts)),
		StartedAt:      start,
	}
	log = log.WithRun(result.RunID)

	var progress speller.Progress
	if s.wsHub != nil {
		progress = s.wsHub.Progress(result.RunID)
	}

	suggestions, err := s.deps.Checker.CheckAll(r.Context(), req.Texts, progress)
	if err != nil {
		log.Error("Spellcheck failed", zap.Error(err))
		writeError(w, statusFor(err), errorType(err), err.Error())
		return
	}
	result.SpellerTime = time.Since(start)

	records := make([]etl.TextRecord, len(req.Texts))
	for i, text := range req.Texts {
		records[i] = etl.TextRecord{ID: strconv.Itoa(i), Text: text}
	}

	outcome, err := etl.CorrectRecords(records, suggestions, s.deps.Applier)
	if err != nil {
		log.Error("Applying corrections failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "invalid_suggestion", err.Error())
		return
	}

	resp := correctResponse{
		RunID:   result.RunID,
		Results: make([]correctedText, len(records)),
		Log:     outcome.Log().String(),
	}
	for i, record := range outcome.Records {
		resp.Results[i] = correctedText{Text: record.Text, Corrections: []patch.Entry{}}
	}
	for _, c := range outcome.Corrections {
		resp.Results[c.Record].Corrections = append(resp.Results[c.Record].Corrections, c.Entry)
		resp.Results[c.Record].Changed = true
	}

	result.RecordsChanged = int64(outcome.Changed)
	result.Corrections = int64(len(outcome.Corrections))
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(start)

	if recorder := s.recorder(); recorder != nil {
		if err := recorder.RecordRun(r.Context(), result, outcome.Corrections); err != nil {
			log.Warn("Failed to record run", zap.Error(err))
		}
	}

	log.Info("Texts corrected",
		zap.Int("texts", len(records)),
		zap.Int64("changed", result.RecordsChanged),
		zap.Int64("corrections", result.Corrections),
		zap.Duration("duration", result.Duration))

	writeJSON(w, http.StatusOK, resp)
}

// handleStats reports audit statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		writeError(w, http.StatusNotFound, "audit_disabled", "audit store is not enabled")
		return
	}

	top := defaultTopPairs
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "top must be a non-negative integer")
			return
		}
		top = n
	}

	stats, err := s.deps.Audit.GetStats(r.Context(), top)
	if err != nil {
		s.logger.Error("Failed to load audit stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// recorder combines the configured audit store and WebSocket hub
func (s *Server) recorder() etl.RunRecorder {
	var recorders []etl.RunRecorder
	if s.deps.Audit != nil {
		recorders = append(recorders, s.deps.Audit)
	}
	if s.wsHub != nil {
		recorders = append(recorders, s.wsHub)
	}
	if len(recorders) == 0 {
		return nil
	}
	return etl.MultiRecorder(recorders...)
}

func statusFor(err error) int {
	var se *speller.SpellerError
	switch {
	case errors.Is(err, speller.ErrInvalidInput):
		return http.StatusBadRequest
	// providers wrap context errors in ErrTransport
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorType(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var se *speller.SpellerError
	if errors.As(err, &se) {
		return se.Type
	}
	return "internal"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.Encode(v)
}

func writeError(w http.ResponseWriter, status int, typ, message string) {
	var body errorBody
	body.Error.Type = typ
	body.Error.Message = message
	writeJSON(w, status, body)
}
