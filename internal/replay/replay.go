package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/john/popupchat/internal/kick"
	"github.com/john/popupchat/internal/message"
)

const maxLineSize = 1024 * 1024

// ErrNoMessages is returned when an archive has lines but none of them parse
var ErrNoMessages = errors.New("archive contains no readable messages")

// Opener returns the archive stream
type Opener func(ctx context.Context) (io.ReadCloser, error)

// FileOpener opens a local archive
func FileOpener(path string) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		return f, nil
	}
}

type entry struct {
	offset time.Duration
	raw    message.Raw
}

// Replayer plays a recorded chat archive back at its original pace
type Replayer struct {
	log   *slog.Logger
	open  Opener
	speed float64
	now   func() time.Time

	mu        sync.Mutex
	entries   []entry
	next      int
	startedAt time.Time
}

// New creates a replayer. Speed scales the recorded pace, 2 plays twice as fast.
func New(log *slog.Logger, open Opener, speed float64) *Replayer {
	if speed <= 0 {
		speed = 1
	}
	return &Replayer{log: log, open: open, speed: speed, now: time.Now}
}

// Start reads the whole archive into memory
func (r *Replayer) Start(ctx context.Context) error {
	rc, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	entries, err := r.load(rc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.entries = entries
	r.next = 0
	r.startedAt = r.now()
	r.mu.Unlock()

	r.log.Info("Replay archive loaded", "messages", len(entries), "speed", r.speed)
	return nil
}

// Fetch returns every entry whose recorded offset has elapsed
func (r *Replayer) Fetch(ctx context.Context) ([]message.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Duration(float64(r.now().Sub(r.startedAt)) * r.speed)

	var batch []message.Raw
	for r.next < len(r.entries) && r.entries[r.next].offset <= elapsed {
		batch = append(batch, r.entries[r.next].raw)
		r.next++
	}
	return batch, nil
}

// Close is a no-op, the archive is closed once loaded
func (r *Replayer) Close() error {
	return nil
}

// Remaining returns how many messages are still to be replayed
func (r *Replayer) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) - r.next
}

func (r *Replayer) load(rd io.Reader) ([]entry, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		entries []entry
		lines   int
		base    time.Time
		last    time.Duration
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines++

		var msg message.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			r.log.Warn("Skipping malformed archive line", "line", lines, "error", err)
			continue
		}

		raw := convertMessage(msg, line)
		if raw.Timestamp != nil {
			if base.IsZero() {
				base = *raw.Timestamp
			}
			// Out of order lines play immediately after their predecessor
			if offset := raw.Timestamp.Sub(base); offset > last {
				last = offset
			}
		}
		entries = append(entries, entry{offset: last, raw: raw})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}

	if lines > 0 && len(entries) == 0 {
		return nil, ErrNoMessages
	}
	return entries, nil
}

// convertMessage converts an archive line into a raw chat message
func convertMessage(msg message.Message, line string) message.Raw {
	raw := message.Raw{ID: msg.ID}
	if raw.ID == "" {
		raw.ID = message.DeriveID(line)
	}

	if msg.Username != "" {
		name := msg.Username
		raw.Author = &name
	}

	if ts, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
		ts = ts.UTC()
		raw.Timestamp = &ts
	}

	if msg.Platform == "kick" {
		raw.Fragments = kick.Fragments(msg.Message)
	} else {
		raw.Fragments = []message.Fragment{message.TextFragment(msg.Message)}
	}

	return raw
}
