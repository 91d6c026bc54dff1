package feed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	cases := []struct {
		in   string
		want Target
	}{
		{in: "twitch:Ludwig", want: Target{Kind: KindTwitch, Channel: "ludwig"}},
		{in: "twitch:#xqc", want: Target{Kind: KindTwitch, Channel: "xqc"}},
		{in: "https://www.twitch.tv/ludwig", want: Target{Kind: KindTwitch, Channel: "ludwig"}},
		{in: "https://kick.com/paymoneywubby/", want: Target{Kind: KindKick, Channel: "paymoneywubby"}},
		{in: "kick:668", want: Target{Kind: KindKick, Channel: "668"}},
		{in: "file:./data/chat.txt", want: Target{Kind: KindFile, Path: "./data/chat.txt"}},
		{in: "twitch_ludwig_20251230_1030.jsonl", want: Target{Kind: KindFile, Path: "twitch_ludwig_20251230_1030.jsonl"}},
		{in: "s3://archive/2025/12/30/twitch/ludwig/x.jsonl", want: Target{Kind: KindS3, Bucket: "archive", Key: "2025/12/30/twitch/ludwig/x.jsonl"}},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTarget(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseTarget_Unsupported(t *testing.T) {
	for _, in := range []string{"", "   ", "twitch:", "s3://bucket", "https://youtube.com/watch?v=1", "ftp://x", "kick:a/b"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTarget(in)
			require.ErrorIs(t, err, ErrUnsupportedTarget)
		})
	}
}

func TestTarget_String(t *testing.T) {
	require.Equal(t, "twitch:ludwig", Target{Kind: KindTwitch, Channel: "ludwig"}.String())
	require.Equal(t, "s3://b/k.jsonl", Target{Kind: KindS3, Bucket: "b", Key: "k.jsonl"}.String())
}
