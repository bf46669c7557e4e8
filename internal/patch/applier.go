// Package patch applies spellchecker suggestions to text.
//
// Suggestions are anchored to the original text. The applier copies the
// original left to right with a cursor expressed in original coordinates,
// emitting each accepted replacement in place of its span, so an earlier
// edit that changes the text length never shifts a later edit.
package patch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/raaihank/speller/internal/speller"
)

var (
	// ErrInvalidSuggestion is the parent of every suggestion validation error.
	ErrInvalidSuggestion = errors.New("invalid suggestion")
	// ErrOutOfRange reports a span outside the original text.
	ErrOutOfRange = fmt.Errorf("%w: span out of range", ErrInvalidSuggestion)
	// ErrOverlap reports two accepted spans sharing characters.
	ErrOverlap = fmt.Errorf("%w: overlapping spans", ErrInvalidSuggestion)
)

// Policy decides whether a suggestion is applied.
type Policy interface {
	Accept(s speller.Suggestion) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(s speller.Suggestion) bool

func (f PolicyFunc) Accept(s speller.Suggestion) bool { return f(s) }

// DefaultPolicy accepts a suggestion when it has at least one candidate and
// its word does not start with a character that is its own uppercase form.
// Uppercasing uses full case mapping, so 'ß' (upper "SS") counts as lowercase.
var DefaultPolicy Policy = PolicyFunc(func(s speller.Suggestion) bool {
	if len(s.Candidates) == 0 {
		return false
	}
	_, size := utf8.DecodeRuneInString(s.Word)
	if size == 0 {
		return false
	}
	first := s.Word[:size]
	return cases.Upper(language.Und).String(first) != first
})

// Entry records one applied correction.
type Entry struct {
	Word        string `json:"word"`
	Replacement string `json:"replacement"`
	Position    int    `json:"position"`
}

// String renders the entry as a log line without the newline.
func (e Entry) String() string {
	return e.Word + " -> " + e.Replacement
}

// Result is the outcome of patching one text.
type Result struct {
	Text    string  `json:"text"`
	Entries []Entry `json:"corrections"`
	Skipped int     `json:"skipped"`
}

// Changed reports whether any suggestion was applied.
func (r Result) Changed() bool {
	return len(r.Entries) > 0
}

// Applier patches texts according to a Policy.
type Applier struct {
	policy Policy
}

// NewApplier returns an applier using policy, or DefaultPolicy when nil.
func NewApplier(policy Policy) *Applier {
	if policy == nil {
		policy = DefaultPolicy
	}
	return &Applier{policy: policy}
}

type edit struct {
	start, end  int
	replacement string
}

// Apply returns text with every accepted suggestion applied.
// Entries follow the order in which suggestions were given.
func (a *Applier) Apply(text string, suggestions []speller.Suggestion) (Result, error) {
	if len(suggestions) == 0 {
		return Result{Text: text}, nil
	}

	original := []rune(text)
	edits := make([]edit, 0, len(suggestions))
	result := Result{}

	for _, s := range suggestions {
		if !a.policy.Accept(s) {
			result.Skipped++
			continue
		}
		if s.Position < 0 || s.Length < 0 || s.End() > len(original) {
			return Result{}, fmt.Errorf("%w: %q at %d+%d in text of %d characters",
				ErrOutOfRange, s.Word, s.Position, s.Length, len(original))
		}
		edits = append(edits, edit{start: s.Position, end: s.End(), replacement: s.Candidates[0]})
		result.Entries = append(result.Entries, Entry{Word: s.Word, Replacement: s.Candidates[0], Position: s.Position})
	}

	if len(edits) == 0 {
		result.Text = text
		return result, nil
	}

	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, e := range edits {
		if e.start < cursor {
			return Result{}, fmt.Errorf("%w: span at %d starts before previous span ends at %d", ErrOverlap, e.start, cursor)
		}
		b.WriteString(string(original[cursor:e.start]))
		b.WriteString(e.replacement)
		cursor = e.end
	}
	b.WriteString(string(original[cursor:]))

	result.Text = b.String()
	return result, nil
}
