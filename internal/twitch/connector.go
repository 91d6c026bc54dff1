package twitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gempir/go-twitch-irc/v4"
	"github.com/john/popupchat/internal/message"
	"github.com/samber/lo"
)

const connectTimeout = 15 * time.Second

// Connector reads one Twitch channel over IRC and queues messages until fetched
type Connector struct {
	log      *slog.Logger
	username string
	oauth    string
	channel  string
	client   *twitch.Client

	mu      sync.Mutex
	pending []message.Raw
	connErr error
}

// New creates a new Twitch connector. Empty credentials join anonymously.
func New(log *slog.Logger, username, oauth, channel string) *Connector {
	return &Connector{
		log:      log,
		username: username,
		oauth:    oauth,
		channel:  channel,
	}
}

// Start connects to Twitch IRC and joins the channel
func (c *Connector) Start(ctx context.Context) error {
	if c.username != "" && c.oauth != "" {
		c.client = twitch.NewClient(c.username, c.oauth)
	} else {
		c.client = twitch.NewAnonymousClient()
	}

	connected := make(chan struct{})
	var once sync.Once

	c.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		c.push(convertMessage(msg))
	})

	c.client.OnConnect(func() {
		c.log.Info("Connected to Twitch IRC", "channel", c.channel)
		once.Do(func() { close(connected) })
	})

	c.client.OnReconnectMessage(func(msg twitch.ReconnectMessage) {
		c.log.Info("Reconnecting to Twitch IRC...")
	})

	c.client.Join(c.channel)

	connErr := make(chan error, 1)
	go func() {
		err := c.client.Connect()
		if err != nil && !errors.Is(err, twitch.ErrClientDisconnected) {
			c.log.Error("Twitch IRC connection error", "error", err)
			c.mu.Lock()
			c.connErr = err
			c.mu.Unlock()
		}
		connErr <- err
	}()

	select {
	case <-connected:
		return nil
	case err := <-connErr:
		return fmt.Errorf("connect to twitch: %w", err)
	case <-time.After(connectTimeout):
		_ = c.client.Disconnect()
		return fmt.Errorf("connect to twitch: timed out after %s", connectTimeout)
	case <-ctx.Done():
		_ = c.client.Disconnect()
		return ctx.Err()
	}
}

// Fetch drains the messages received since the previous call
func (c *Connector) Fetch(ctx context.Context) ([]message.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connErr != nil {
		err := c.connErr
		c.connErr = nil
		return nil, fmt.Errorf("twitch connection: %w", err)
	}

	batch := c.pending
	c.pending = nil
	return batch, nil
}

// Close leaves the channel and disconnects
func (c *Connector) Close() error {
	if c.client == nil {
		return nil
	}
	c.log.Info("Disconnecting from Twitch IRC...")
	return c.client.Disconnect()
}

func (c *Connector) push(raw message.Raw) {
	c.mu.Lock()
	c.pending = append(c.pending, raw)
	c.mu.Unlock()
}

// convertMessage converts a Twitch private message into a raw chat message
func convertMessage(msg twitch.PrivateMessage) message.Raw {
	raw := message.Raw{
		ID:        msg.ID,
		Fragments: splitFragments(msg.Message, msg.Emotes),
	}

	if name := displayName(msg.User); name != "" {
		raw.Author = &name
	}

	if !msg.Time.IsZero() {
		ts := msg.Time.UTC()
		raw.Timestamp = &ts
	}

	if raw.ID == "" {
		raw.ID = message.DeriveID("twitch", msg.Channel, msg.User.ID, msg.Time.String(), msg.Message)
	}

	return raw
}

func displayName(user twitch.User) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.Name
}

type emoteSpan struct {
	start, end int
	name       string
}

// splitFragments cuts the message into text runs and emote tokens.
// Emote positions are inclusive rune offsets; whitespace around emotes is dropped.
func splitFragments(text string, emotes []*twitch.Emote) []message.Fragment {
	runes := []rune(text)

	spans := lo.FlatMap(lo.Compact(emotes), func(emote *twitch.Emote, _ int) []emoteSpan {
		return lo.FilterMap(emote.Positions, func(pos twitch.EmotePosition, _ int) (emoteSpan, bool) {
			inRange := pos.Start >= 0 && pos.End < len(runes) && pos.Start <= pos.End
			return emoteSpan{start: pos.Start, end: pos.End, name: emote.Name}, inRange
		})
	})
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var fragments []message.Fragment
	addText := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			fragments = append(fragments, message.TextFragment(s))
		}
	}

	cursor := 0
	for _, span := range spans {
		if span.start < cursor {
			continue // overlapping position
		}
		addText(string(runes[cursor:span.start]))
		alias := span.name
		if alias == "" {
			alias = string(runes[span.start : span.end+1])
		}
		fragments = append(fragments, message.EmojiFragment(alias))
		cursor = span.end + 1
	}
	addText(string(runes[cursor:]))

	if len(fragments) == 0 {
		// Keep empty messages as a single empty text fragment
		fragments = append(fragments, message.TextFragment(""))
	}

	return fragments
}
