package ui

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/john/popupchat/internal/message"
	"github.com/john/popupchat/internal/poller"
)

// SequencedSource hands out the records appended after a given sequence number
type SequencedSource interface {
	SnapshotSince(after uint64) ([]message.ChatRecord, uint64, error)
}

// Printer writes new rows as plain text on every tick, for headless use
type Printer struct {
	log     *slog.Logger
	out     io.Writer
	source  SequencedSource
	printed uint64
}

// NewPrinter creates a headless presenter
func NewPrinter(log *slog.Logger, out io.Writer, source SequencedSource) *Printer {
	return &Printer{log: log, out: out, source: source}
}

// Run prints until ctx is cancelled or the tick channel closes
func (p *Printer) Run(ctx context.Context, ticks <-chan poller.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if err := p.Flush(); err != nil {
				return err
			}
		}
	}
}

// Flush prints the records that arrived since the previous flush
func (p *Printer) Flush() error {
	records, seq, err := p.source.SnapshotSince(p.printed)
	if err != nil {
		p.log.Error("Cannot read messages", "error", err)
		return nil
	}

	for _, r := range records {
		if _, err := fmt.Fprintf(p.out, "[%s] %s\n", r.Author, r.Text); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	p.printed = seq
	return nil
}
