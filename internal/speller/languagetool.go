package speller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf16"

	"go.uber.org/zap"
)

// DefaultLanguageToolURL is the public LanguageTool API root.
const DefaultLanguageToolURL = "https://api.languagetool.org"

type languageToolResponse struct {
	Matches []struct {
		Offset       int `json:"offset"`
		Length       int `json:"length"`
		Replacements []struct {
			Value string `json:"value"`
		} `json:"replacements"`
	} `json:"matches"`
}

// LanguageToolService calls the LanguageTool /v2/check endpoint, one text per request.
type LanguageToolService struct {
	hc      *http.Client
	baseURL string
	lang    string
	logger  *zap.Logger
}

// NewLanguageToolService creates a LanguageTool provider
func NewLanguageToolService(config *Config, hc *http.Client, logger *zap.Logger) (*LanguageToolService, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultLanguageToolURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: base_url: %v", ErrConfig, err)
	}

	lang := config.Lang
	if lang == "" {
		lang = "auto"
	}

	return &LanguageToolService{
		hc:      hc,
		baseURL: baseURL,
		lang:    lang,
		logger:  logger,
	}, nil
}

// Name returns the provider name
func (s *LanguageToolService) Name() string { return "languagetool" }

// CheckTexts checks each text in turn.
func (s *LanguageToolService) CheckTexts(ctx context.Context, texts []string) ([][]Suggestion, error) {
	out := make([][]Suggestion, len(texts))
	for i, text := range texts {
		list, err := s.check(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = list
	}
	return out, nil
}

func (s *LanguageToolService) check(ctx context.Context, text string) ([]Suggestion, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", s.lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/check", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: languagetool HTTP %d: %s", ErrBadStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed languageToolResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrResponseInvalid, err)
	}

	runes := []rune(text)
	list := make([]Suggestion, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		// LanguageTool offsets count UTF-16 code units.
		pos := utf16ToRuneOffset(runes, m.Offset)
		end := utf16ToRuneOffset(runes, m.Offset+m.Length)
		if pos < 0 || end < 0 {
			return nil, fmt.Errorf("%w: match %d+%d outside text", ErrResponseInvalid, m.Offset, m.Length)
		}

		candidates := make([]string, 0, len(m.Replacements))
		for _, r := range m.Replacements {
			candidates = append(candidates, r.Value)
		}

		list = append(list, Suggestion{
			Word:       string(runes[pos:end]),
			Position:   pos,
			Length:     end - pos,
			Candidates: candidates,
		})
	}

	s.logger.Debug("LanguageTool check completed", zap.Int("matches", len(list)))
	return list, nil
}

// utf16ToRuneOffset converts a UTF-16 offset into a code point offset, or -1
// when the offset is past the end or splits a surrogate pair.
func utf16ToRuneOffset(runes []rune, offset int) int {
	units := 0
	for i, r := range runes {
		if units == offset {
			return i
		}
		if units > offset {
			return -1
		}
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += n
	}
	if units == offset {
		return len(runes)
	}
	return -1
}

// Close is a no-op; the HTTP client is shared.
func (s *LanguageToolService) Close() error { return nil }
