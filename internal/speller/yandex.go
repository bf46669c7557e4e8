package speller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultYandexURL is the Yandex.Speller JSON endpoint root.
const DefaultYandexURL = "https://speller.yandex.net/services/spellservice.json"

// maxErrorBody bounds how much of a failed response is echoed into the error.
const maxErrorBody = 512

// yandexSuggestion mirrors one element of a checkTexts response.
type yandexSuggestion struct {
	Code int      `json:"code"`
	Pos  int      `json:"pos"`
	Row  int      `json:"row"`
	Col  int      `json:"col"`
	Len  int      `json:"len"`
	Word string   `json:"word"`
	S    []string `json:"s"`
}

// YandexService calls the Yandex.Speller checkTexts method.
type YandexService struct {
	hc      *http.Client
	baseURL string
	lang    string
	options int
	logger  *zap.Logger
}

// NewYandexService creates a Yandex.Speller provider
func NewYandexService(config *Config, hc *http.Client, logger *zap.Logger) (*YandexService, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultYandexURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: base_url: %v", ErrConfig, err)
	}

	return &YandexService{
		hc:      hc,
		baseURL: baseURL,
		lang:    config.Lang,
		options: config.Options,
		logger:  logger,
	}, nil
}

// Name returns the provider name
func (s *YandexService) Name() string { return "yandex" }

// CheckTexts sends every text in a single checkTexts request.
func (s *YandexService) CheckTexts(ctx context.Context, texts []string) ([][]Suggestion, error) {
	if len(texts) == 0 {
		return [][]Suggestion{}, nil
	}

	params := url.Values{}
	for _, t := range texts {
		params.Add("text", t)
	}
	if s.lang != "" {
		params.Set("lang", s.lang)
	}
	if s.options != 0 {
		params.Set("options", strconv.Itoa(s.options))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/checkTexts?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: yandex HTTP %d: %s", ErrBadStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw [][]yandexSuggestion
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrResponseInvalid, err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("%w: yandex returned %d lists for %d texts", ErrResponseInvalid, len(raw), len(texts))
	}

	out := make([][]Suggestion, len(raw))
	for i, list := range raw {
		out[i] = make([]Suggestion, 0, len(list))
		for _, ys := range list {
			out[i] = append(out[i], Suggestion{
				Word:       ys.Word,
				Position:   ys.Pos,
				Length:     ys.Len,
				Candidates: ys.S,
				Code:       ys.Code,
			})
		}
	}

	s.logger.Debug("Yandex checkTexts completed",
		zap.Int("texts", len(texts)),
		zap.Int("status", resp.StatusCode))

	return out, nil
}

// Close is a no-op; the HTTP client is shared.
func (s *YandexService) Close() error { return nil }
