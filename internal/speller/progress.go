package speller

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// ProgressFunc adapts a plain function to Progress.
type ProgressFunc func(done, total int)

func (f ProgressFunc) Report(done, total int) { f(done, total) }

// TerminalProgress rewrites a single "Progress: n/total" line on w.
func TerminalProgress(w io.Writer) Progress {
	return ProgressFunc(func(done, total int) {
		fmt.Fprintf(w, "Progress: %d/%d\r", done, total)
	})
}

// LogProgress reports progress as debug log entries.
func LogProgress(logger *zap.Logger) Progress {
	return ProgressFunc(func(done, total int) {
		logger.Debug("Correction progress", zap.Int("done", done), zap.Int("total", total))
	})
}

// MultiProgress fans a report out to every non-nil reporter.
func MultiProgress(reporters ...Progress) Progress {
	return ProgressFunc(func(done, total int) {
		for _, r := range reporters {
			if r != nil {
				r.Report(done, total)
			}
		}
	})
}
