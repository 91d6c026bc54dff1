package feed

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedTarget is returned for feed targets no adapter understands
var ErrUnsupportedTarget = errors.New("unsupported feed target")

// Kind names the adapter serving a target
type Kind string

const (
	KindTwitch Kind = "twitch"
	KindKick   Kind = "kick"
	KindFile   Kind = "file"
	KindS3     Kind = "s3"
)

// Target is a parsed feed target
type Target struct {
	Kind Kind
	// Channel is the twitch channel or kick slug / chatroom id
	Channel string
	// Path is the local archive path
	Path string
	// Bucket and Key locate an archive in S3
	Bucket string
	Key    string
}

func (t Target) String() string {
	switch t.Kind {
	case KindFile:
		return "file:" + t.Path
	case KindS3:
		return fmt.Sprintf("s3://%s/%s", t.Bucket, t.Key)
	default:
		return fmt.Sprintf("%s:%s", t.Kind, t.Channel)
	}
}

// ParseTarget understands:
//
//	twitch:<channel>, https://www.twitch.tv/<channel>
//	kick:<slug|chatroom-id>, https://kick.com/<slug>
//	file:<path>, <path>.jsonl
//	s3://<bucket>/<key>
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("%w: empty target", ErrUnsupportedTarget)
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "twitch:"):
		return channelTarget(KindTwitch, raw[len("twitch:"):], raw)
	case strings.HasPrefix(lower, "kick:"):
		return channelTarget(KindKick, raw[len("kick:"):], raw)
	case strings.HasPrefix(lower, "file:"):
		path := raw[len("file:"):]
		if path == "" {
			return Target{}, fmt.Errorf("%w: %q has no path", ErrUnsupportedTarget, raw)
		}
		return Target{Kind: KindFile, Path: path}, nil
	case strings.HasPrefix(lower, "s3://"):
		return s3Target(raw)
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return webTarget(raw)
	case strings.HasSuffix(lower, ".jsonl"):
		return Target{Kind: KindFile, Path: raw}, nil
	}

	return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedTarget, raw)
}

func channelTarget(kind Kind, channel, raw string) (Target, error) {
	channel = strings.TrimPrefix(strings.TrimSpace(channel), "#")
	if channel == "" || strings.Contains(channel, "/") {
		return Target{}, fmt.Errorf("%w: %q has no channel", ErrUnsupportedTarget, raw)
	}
	return Target{Kind: kind, Channel: strings.ToLower(channel)}, nil
}

func s3Target(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrUnsupportedTarget, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Target{}, fmt.Errorf("%w: %q needs bucket and key", ErrUnsupportedTarget, raw)
	}
	return Target{Kind: KindS3, Bucket: u.Host, Key: key}, nil
}

func webTarget(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrUnsupportedTarget, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	channel := strings.Split(strings.Trim(u.Path, "/"), "/")[0]

	switch host {
	case "twitch.tv", "m.twitch.tv":
		return channelTarget(KindTwitch, channel, raw)
	case "kick.com":
		return channelTarget(KindKick, channel, raw)
	}
	return Target{}, fmt.Errorf("%w: unknown host %q", ErrUnsupportedTarget, u.Host)
}
