//go:generate go run go.uber.org/mock/mockgen -source=feed.go -destination=../mocks/mock_feed.go -package=mocks
package feed

import (
	"context"

	"github.com/john/popupchat/internal/message"
)

// Client is a live chat session the poller pulls messages from
type Client interface {
	// Start establishes the session. It fails when the target cannot be reached.
	Start(ctx context.Context) error
	// Fetch returns the messages received since the previous call
	Fetch(ctx context.Context) ([]message.Raw, error)
	// Close releases the session
	Close() error
}
