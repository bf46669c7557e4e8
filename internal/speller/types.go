package speller

import (
	"context"
	"time"
)

// Suggestion is a single correction proposal reported by a spellchecking service.
// Position and Length count characters (code points) of the original text.
type Suggestion struct {
	Word       string   `json:"word"`
	Position   int      `json:"pos"`
	Length     int      `json:"len"`
	Candidates []string `json:"s"`
	Code       int      `json:"code,omitempty"`
}

// End returns the first character offset after the flagged span.
func (s Suggestion) End() int {
	return s.Position + s.Length
}

// Service is a remote spellchecking provider.
// CheckTexts must return exactly one suggestion list per input text, in input order.
type Service interface {
	CheckTexts(ctx context.Context, texts []string) ([][]Suggestion, error)
	Name() string
	Close() error
}

// Cache stores suggestion lists keyed by text so repeated texts skip the service.
type Cache interface {
	// Lookup returns cached suggestions for the texts it knows, keyed by input index.
	Lookup(ctx context.Context, provider, lang string, texts []string) (map[int][]Suggestion, error)
	Store(ctx context.Context, provider, lang string, texts []string, results [][]Suggestion) error
}

// Progress receives batch completion notifications.
type Progress interface {
	Report(done, total int)
}

// Config contains correction client configuration
type Config struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"`                       // yandex
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`                       // provider default when empty
	Lang              string        `yaml:"lang" mapstructure:"lang"`                               // ru
	Options           int           `yaml:"options" mapstructure:"options"`                         // yandex option bitmask
	BatchSize         int           `yaml:"batch_size" mapstructure:"batch_size"`                   // 5
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`                         // 30s
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables pacing
	Burst             int           `yaml:"burst" mapstructure:"burst"`                             // 1
}

// Stats represents correction client statistics
type Stats struct {
	Requests       int64         `json:"requests"`
	FailedRequests int64         `json:"failed_requests"`
	Texts          int64         `json:"texts"`
	Suggestions    int64         `json:"suggestions"`
	CacheHits      int64         `json:"cache_hits"`
	AvgLatency     time.Duration `json:"avg_latency"`
	LastRequest    time.Time     `json:"last_request"`
	Provider       string        `json:"provider"`
}

// SpellerError is returned for every failure crossing the service boundary.
type SpellerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *SpellerError) Error() string {
	return e.Message
}

// Common error types
var (
	ErrInvalidInput    = &SpellerError{Type: "invalid_input", Message: "invalid input", Code: 2001}
	ErrTransport       = &SpellerError{Type: "transport", Message: "speller request failed", Code: 2002}
	ErrBadStatus       = &SpellerError{Type: "bad_status", Message: "speller returned error status", Code: 2003}
	ErrResponseInvalid = &SpellerError{Type: "response_invalid", Message: "speller response invalid", Code: 2004}
	ErrConfig          = &SpellerError{Type: "config_error", Message: "configuration error", Code: 2005}
)
