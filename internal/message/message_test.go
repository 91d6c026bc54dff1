package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNormalize_JoinsFragmentsWithSingleSpaces(t *testing.T) {
	req := require.New(t)

	// Given a message mixing text and emoji fragments
	raw := Raw{
		ID:     "1",
		Author: strPtr("Alice"),
		Fragments: []Fragment{
			TextFragment("hello"),
			EmojiFragment(":wave:"),
			TextFragment("world"),
		},
	}

	// When it is normalized
	record := Normalize(raw)

	// Then the pieces are joined in order with a single space
	req.Equal("hello :wave: world", record.Text)
	req.Equal("Alice", record.Author)
	req.Equal("1", record.ID)
	req.Nil(record.Timestamp)
}

func TestNormalize_MissingEmojiAliasLeavesEmptyPiece(t *testing.T) {
	req := require.New(t)

	raw := Raw{Fragments: []Fragment{
		{Kind: FragmentEmoji},
		TextFragment("hi"),
		{Kind: FragmentEmoji},
	}}

	record := Normalize(raw)

	// Extra spaces around the missing aliases are kept as-is
	req.Equal(" hi ", record.Text)
}

func TestNormalize_MissingAuthorUsesPlaceholder(t *testing.T) {
	req := require.New(t)

	record := Normalize(Raw{ID: "2", Fragments: []Fragment{TextFragment("yo")}})

	req.Equal(UnknownAuthor, record.Author)
	req.Equal("Unknown", record.Author)
}

func TestNormalize_EmptyAuthorNameIsKeptVerbatim(t *testing.T) {
	record := Normalize(Raw{Author: strPtr("")})

	require.Equal(t, "", record.Author)
}

func TestNormalize_EmptyMessageStillProducesRecord(t *testing.T) {
	req := require.New(t)

	record := Normalize(Raw{ID: "3"})

	req.Equal("3", record.ID)
	req.Equal("", record.Text)
}

func TestNormalize_KeepsTimestamp(t *testing.T) {
	ts := time.Date(2025, 12, 30, 10, 30, 0, 0, time.UTC)

	record := Normalize(Raw{Timestamp: &ts})

	require.NotNil(t, record.Timestamp)
	require.True(t, ts.Equal(*record.Timestamp))
}

func TestNormalizeBatch_PreservesOrder(t *testing.T) {
	req := require.New(t)

	batch := []Raw{
		{ID: "a", Fragments: []Fragment{TextFragment("first")}},
		{ID: "b", Fragments: []Fragment{TextFragment("second")}},
		{ID: "c", Fragments: []Fragment{TextFragment("third")}},
	}

	records := NormalizeBatch(batch)

	req.Len(records, 3)
	req.Equal([]string{"a", "b", "c"}, []string{records[0].ID, records[1].ID, records[2].ID})
	req.Equal("second", records[1].Text)
}

func TestDeriveID_IsStable(t *testing.T) {
	req := require.New(t)

	req.Equal(DeriveID("kick", "42", "hello"), DeriveID("kick", "42", "hello"))
	req.NotEqual(DeriveID("kick", "42", "hello"), DeriveID("kick", "4", "2hello"))
}
