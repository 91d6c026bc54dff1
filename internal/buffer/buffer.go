package buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/john/popupchat/internal/message"
)

// DefaultCapacity is the number of most recent records kept for display
const DefaultCapacity = 50

// ErrBroken is returned once a writer panicked while holding the lock
var ErrBroken = errors.New("message buffer lock is broken")

// Buffer holds the N most recent chat records, oldest first.
// One writer appends, any number of readers take snapshots.
type Buffer struct {
	mu       sync.RWMutex
	records  []message.ChatRecord
	capacity int
	broken   bool
	// total counts every record ever appended, trimmed ones included
	total uint64
}

// New creates an empty buffer. A capacity <= 0 means unbounded.
func New(capacity int) *Buffer {
	return &Buffer{capacity: capacity}
}

// Capacity returns the configured maximum size
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Append adds a batch at the end and trims the oldest overflow from the front.
// The whole batch becomes visible to readers at once. An empty batch is a no-op.
func (b *Buffer) Append(batch []message.ChatRecord) (err error) {
	if len(batch) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken {
		return ErrBroken
	}

	defer func() {
		if r := recover(); r != nil {
			b.broken = true
			err = fmt.Errorf("%w: %v", ErrBroken, r)
		}
	}()

	b.records = append(b.records, batch...)
	b.total += uint64(len(batch))
	if b.capacity > 0 && len(b.records) > b.capacity {
		overflow := len(b.records) - b.capacity
		// Copy into a fresh slice so the dropped prefix can be collected
		trimmed := make([]message.ChatRecord, b.capacity, b.capacity+len(batch))
		copy(trimmed, b.records[overflow:])
		b.records = trimmed
	}

	return nil
}

// Snapshot returns a copy of the current records
func (b *Buffer) Snapshot() ([]message.ChatRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.broken {
		return nil, ErrBroken
	}

	out := make([]message.ChatRecord, len(b.records))
	copy(out, b.records)
	return out, nil
}

// SnapshotSince returns a copy of the held records appended after sequence
// number after, and the sequence number of the newest record. Records are
// numbered from 1 in append order, so equal IDs never hide a new record.
func (b *Buffer) SnapshotSince(after uint64) ([]message.ChatRecord, uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.broken {
		return nil, after, ErrBroken
	}

	first := b.total - uint64(len(b.records)) // sequence of the record before records[0]
	start := 0
	if after > first {
		start = int(min(after-first, uint64(len(b.records))))
	}

	out := make([]message.ChatRecord, len(b.records)-start)
	copy(out, b.records[start:])
	return out, b.total, nil
}

// Total returns how many records were appended over the buffer's lifetime
func (b *Buffer) Total() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

// Len returns the number of records currently held
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}
