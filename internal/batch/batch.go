// Package batch drives a repeater session over a list of records and hands
// every completed sheet to a sink.
package batch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Session is the part of a repeater session the driver needs.
type Session interface {
	Push(data any) error
	CanFlush() bool
	Content() string
	Pending() int
}

// Sheet is one flushed output unit.
type Sheet struct {
	// Index is 1-based.
	Index   int    `json:"index"`
	Records int    `json:"records"`
	HTML    string `json:"html"`
	// Partial marks the final sheet emitted for records that did not fill a grid.
	Partial bool `json:"partial"`
}

// Summary reports a finished run.
type Summary struct {
	Records  int           `json:"records"`
	Sheets   int           `json:"sheets"`
	Duration time.Duration `json:"duration"`
}

// EmitFunc receives each sheet as soon as it is complete.
type EmitFunc func(Sheet) error

// Run pushes every record into session and emits a sheet whenever the session
// reports it is full, then a partial sheet for any remaining tiles. The context
// is checked between records; a push in progress always completes.
func Run(ctx context.Context, session Session, records []any, emit EmitFunc, logger *zap.Logger) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("batch")

	start := time.Now()
	var summary Summary
	inSheet := 0

	flush := func(partial bool) error {
		sheet := Sheet{Index: summary.Sheets + 1, Records: inSheet, HTML: session.Content(), Partial: partial}
		if err := emit(sheet); err != nil {
			return fmt.Errorf("failed to emit sheet %d: %w", sheet.Index, err)
		}
		logger.Debug("Sheet flushed", zap.Int("sheet", sheet.Index), zap.Int("records", sheet.Records), zap.Bool("partial", partial))
		summary.Sheets++
		inSheet = 0
		return nil
	}

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		if err := session.Push(record); err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("record %d: %w", i, err)
		}
		summary.Records++
		inSheet++

		if session.CanFlush() {
			if err := flush(false); err != nil {
				summary.Duration = time.Since(start)
				return summary, err
			}
		}
	}

	if session.Pending() > 0 {
		if err := flush(true); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
	}

	summary.Duration = time.Since(start)
	logger.Info("Batch complete",
		zap.Int("records", summary.Records),
		zap.Int("sheets", summary.Sheets),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}
