package patch

import (
	"io"
	"strings"
)

// Log accumulates applied corrections for a whole run, in append order.
type Log struct {
	entries []Entry
}

// Append adds entries to the end of the log.
func (l *Log) Append(entries ...Entry) {
	l.entries = append(l.entries, entries...)
}

// Entries returns a copy of the accumulated entries.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// String renders one "word -> replacement" line per entry.
func (l *Log) String() string {
	var b strings.Builder
	for _, e := range l.entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteTo writes the rendered log to w.
func (l *Log) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, l.String())
	return int64(n), err
}
