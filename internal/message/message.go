package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// UnknownAuthor is used when the upstream feed omits the author name
const UnknownAuthor = "Unknown"

// ChatRecord is one normalized chat message as shown in the overlay
type ChatRecord struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	Text      string     `json:"text"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// FragmentKind tells text runs apart from emoji tokens
type FragmentKind int

const (
	FragmentText FragmentKind = iota
	FragmentEmoji
)

// Fragment is one piece of a raw message body
type Fragment struct {
	Kind  FragmentKind
	Text  string  // literal content of a text fragment
	Alias *string // textual alias of an emoji, nil when unavailable
}

// TextFragment builds a plain text fragment
func TextFragment(text string) Fragment {
	return Fragment{Kind: FragmentText, Text: text}
}

// EmojiFragment builds an emoji fragment with the given alias
func EmojiFragment(alias string) Fragment {
	return Fragment{Kind: FragmentEmoji, Alias: &alias}
}

// Raw is a chat entry as handed over by a feed client
type Raw struct {
	ID        string
	Author    *string // nil when the feed omits the display name
	Fragments []Fragment
	Timestamp *time.Time
}

// Message is the archive line format written by chatlog recorders (one JSON object per line)
type Message struct {
	ID        string `json:"id,omitempty"`       // Optional, derived from the line when absent
	Platform  string `json:"platform"`           // Platform name: "twitch", "kick", etc.
	Timestamp string `json:"timestamp"`          // Message timestamp in RFC3339 format (UTC)
	Channel   string `json:"channel"`            // Channel name or slug
	Username  string `json:"username"`           // User's display name
	UserID    string `json:"user_id"`            // Platform-specific user ID
	Message   string `json:"message"`            // Chat message content
	Badges    string `json:"badges,omitempty"`   // Comma-separated list of badges
}

// resolve returns the string a fragment contributes to the message body
func (f Fragment) resolve() string {
	if f.Kind == FragmentEmoji {
		if f.Alias == nil {
			return ""
		}
		return *f.Alias
	}
	return f.Text
}

// Normalize turns a raw message into a ChatRecord.
// Fragments are joined with single spaces even when a piece resolves to "".
func Normalize(raw Raw) ChatRecord {
	parts := lo.Map(raw.Fragments, func(f Fragment, _ int) string {
		return f.resolve()
	})

	author := UnknownAuthor
	if raw.Author != nil {
		author = *raw.Author
	}

	return ChatRecord{
		ID:        raw.ID,
		Author:    author,
		Text:      strings.Join(parts, " "),
		Timestamp: raw.Timestamp,
	}
}

// NormalizeBatch normalizes a batch preserving arrival order
func NormalizeBatch(batch []Raw) []ChatRecord {
	return lo.Map(batch, func(raw Raw, _ int) ChatRecord {
		return Normalize(raw)
	})
}

// DeriveID builds a stable identifier for feeds that do not expose one
func DeriveID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(parts, "\x1f"))).String()
}
