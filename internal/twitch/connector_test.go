package twitch

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/gempir/go-twitch-irc/v4"
	"github.com/john/popupchat/internal/message"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestSplitFragments_PlainText(t *testing.T) {
	fragments := splitFragments("hello chat", nil)

	require.Equal(t, []message.Fragment{message.TextFragment("hello chat")}, fragments)
}

func TestSplitFragments_Emotes(t *testing.T) {
	req := require.New(t)

	// "hi Kappa there Kappa"
	emotes := []*twitch.Emote{{
		Name:      "Kappa",
		Positions: []twitch.EmotePosition{{Start: 15, End: 19}, {Start: 3, End: 7}},
	}}

	fragments := splitFragments("hi Kappa there Kappa", emotes)

	req.Equal([]message.Fragment{
		message.TextFragment("hi"),
		message.EmojiFragment("Kappa"),
		message.TextFragment("there"),
		message.EmojiFragment("Kappa"),
	}, fragments)
	req.Equal("hi Kappa there Kappa", message.Normalize(message.Raw{Fragments: fragments}).Text)
}

func TestSplitFragments_IgnoresOutOfRangePositions(t *testing.T) {
	emotes := []*twitch.Emote{{Name: "LUL", Positions: []twitch.EmotePosition{{Start: 10, End: 40}}}}

	fragments := splitFragments("short", emotes)

	require.Equal(t, []message.Fragment{message.TextFragment("short")}, fragments)
}

func TestSplitFragments_MultiByteRunes(t *testing.T) {
	// Positions are rune offsets, not byte offsets
	emotes := []*twitch.Emote{{Name: "PogChamp", Positions: []twitch.EmotePosition{{Start: 4, End: 11}}}}

	fragments := splitFragments("héé PogChamp", emotes)

	require.Equal(t, []message.Fragment{
		message.TextFragment("héé"),
		message.EmojiFragment("PogChamp"),
	}, fragments)
}

func TestSplitFragments_EmptyMessage(t *testing.T) {
	require.Equal(t, []message.Fragment{message.TextFragment("")}, splitFragments("", nil))
}

func TestConvertMessage(t *testing.T) {
	req := require.New(t)
	sent := time.Date(2025, 12, 30, 10, 30, 0, 0, time.UTC)

	raw := convertMessage(twitch.PrivateMessage{
		User:    twitch.User{ID: "1", Name: "alice", DisplayName: "Alice"},
		Channel: "ludwig",
		Message: "hi",
		ID:      "abc",
		Time:    sent,
	})

	req.Equal("abc", raw.ID)
	req.NotNil(raw.Author)
	req.Equal("Alice", *raw.Author)
	req.True(sent.Equal(*raw.Timestamp))
}

func TestConvertMessage_MissingFields(t *testing.T) {
	req := require.New(t)

	raw := convertMessage(twitch.PrivateMessage{Channel: "ludwig", Message: "hi"})

	req.Nil(raw.Author)
	req.Nil(raw.Timestamp)
	req.NotEmpty(raw.ID)
	req.Equal("Unknown", message.Normalize(raw).Author)
}

func TestConnector_FetchDrainsPending(t *testing.T) {
	req := require.New(t)
	c := New(logs.GetLoggerFromLevel(slog.LevelDebug), "", "", "ludwig")

	c.push(message.Raw{ID: "1"})
	c.push(message.Raw{ID: "2"})

	batch, err := c.Fetch(context.Background())
	req.NoError(err)
	req.Len(batch, 2)

	batch, err = c.Fetch(context.Background())
	req.NoError(err)
	req.Empty(batch)
}
