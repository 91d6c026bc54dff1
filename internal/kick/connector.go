package kick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	kickchat "github.com/johanvandegriff/kick-chat-wrapper"
	"github.com/john/popupchat/internal/message"
)

// DefaultAPIBase is the Kick API used to resolve channel slugs
const DefaultAPIBase = "https://kick.com/api/v2"

// KickChannelResponse represents the API response from Kick
type KickChannelResponse struct {
	ID       int    `json:"id"`
	Slug     string `json:"slug"`
	Chatroom struct {
		ID int `json:"id"`
	} `json:"chatroom"`
}

// Connector reads one Kick chatroom and queues messages until fetched
type Connector struct {
	log        *slog.Logger
	channel    string // slug, or numeric chatroom ID
	apiBase    string
	httpClient *http.Client
	client     *kickchat.Client
	chatroomID int
	cancel     context.CancelFunc

	mu      sync.Mutex
	pending []message.Raw
}

// New creates a new Kick connector
func New(log *slog.Logger, channel string) *Connector {
	return &Connector{
		log:        log,
		channel:    channel,
		apiBase:    DefaultAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Start resolves the chatroom, connects and begins listening
func (c *Connector) Start(ctx context.Context) error {
	// Step 1: Resolve the channel name to a chatroom ID
	chatroomID, err := c.chatroom(ctx)
	if err != nil {
		return err
	}
	c.chatroomID = chatroomID

	// Step 2: Create WebSocket client
	c.log.Info("Connecting to Kick chat...")
	client, err := kickchat.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create Kick client: %w", err)
	}
	c.client = client
	c.log.Info("Connected to Kick WebSocket")

	// Step 3: Join the chatroom
	if err := c.client.JoinChannelByID(chatroomID); err != nil {
		c.client.Close()
		return fmt.Errorf("join Kick chatroom %d: %w", chatroomID, err)
	}
	c.log.Info("Joined Kick channel", "channel", c.channel, "chatroom_id", chatroomID)

	// Step 4: Start listening for messages
	listenCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	messages := c.client.ListenForMessages()

	// Queue messages until Close
	go func() {
		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					c.log.Info("Kick message channel closed")
					return
				}
				if msg.ChatroomID != c.chatroomID {
					c.log.Warn("Received message from unknown chatroom", "chatroom_id", msg.ChatroomID)
					continue
				}
				// Convert Kick message to raw chat message
				c.push(convertMessage(msg))
			case <-listenCtx.Done():
				return
			}
		}
	}()

	return nil
}

// Fetch drains the messages received since the previous call
func (c *Connector) Fetch(ctx context.Context) ([]message.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	batch := c.pending
	c.pending = nil
	return batch, nil
}

// Close stops listening and closes the websocket
func (c *Connector) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.client != nil {
		c.log.Info("Disconnecting from Kick chat...")
		c.client.Close()
	}
	return nil
}

func (c *Connector) push(raw message.Raw) {
	c.mu.Lock()
	c.pending = append(c.pending, raw)
	c.mu.Unlock()
}

// chatroom returns the pre-configured chatroom ID or resolves the slug via the API
func (c *Connector) chatroom(ctx context.Context) (int, error) {
	if id, err := strconv.Atoi(c.channel); err == nil && id > 0 {
		// Use pre-configured chatroom ID
		c.log.Info("Using pre-configured Kick chatroom", "chatroom_id", id)
		return id, nil
	}

	// Need to resolve via API
	c.log.Info("Resolving Kick channel ID...", "channel", c.channel)
	id, slug, err := c.resolveChannelID(ctx, c.channel)
	if err != nil {
		return 0, fmt.Errorf("resolve Kick channel %q: %w", c.channel, err)
	}
	c.log.Info("Resolved Kick channel", "slug", slug, "chatroom_id", id)
	return id, nil
}

// resolveChannelID fetches channel information from Kick API
func (c *Connector) resolveChannelID(ctx context.Context, channelName string) (int, string, error) {
	url := fmt.Sprintf("%s/channels/%s", c.apiBase, channelName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}

	// Browser headers, the API sits behind CloudFlare
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://kick.com/")
	req.Header.Set("Origin", "https://kick.com")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var channelInfo KickChannelResponse
	if err := json.NewDecoder(resp.Body).Decode(&channelInfo); err != nil {
		return 0, "", fmt.Errorf("JSON decode failed: %w", err)
	}
	if channelInfo.Chatroom.ID == 0 {
		return 0, "", fmt.Errorf("channel %q has no chatroom", channelName)
	}

	return channelInfo.Chatroom.ID, channelInfo.Slug, nil
}

// convertMessage converts a Kick ChatMessage to a raw chat message
func convertMessage(msg kickchat.ChatMessage) message.Raw {
	raw := message.Raw{
		Fragments: Fragments(msg.Content),
	}

	if msg.Sender.Username != "" {
		name := msg.Sender.Username
		raw.Author = &name
	}

	if !msg.CreatedAt.IsZero() {
		ts := msg.CreatedAt.UTC()
		raw.Timestamp = &ts
	}

	// Prefer the ID Kick assigns; derive one only when the event carries none
	raw.ID = msg.ID
	if raw.ID == "" {
		raw.ID = message.DeriveID(
			"kick",
			strconv.Itoa(msg.ChatroomID),
			strconv.Itoa(msg.Sender.ID),
			msg.CreatedAt.Format(time.RFC3339Nano),
			msg.Content,
		)
	}

	return raw
}

var emotePattern = regexp.MustCompile(`\[emote:(\d+):([^\]]*)\]`)

// Fragments splits Kick message content on inline "[emote:ID:NAME]" tokens
func Fragments(content string) []message.Fragment {
	var fragments []message.Fragment
	addText := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			fragments = append(fragments, message.TextFragment(s))
		}
	}

	cursor := 0
	for _, loc := range emotePattern.FindAllStringSubmatchIndex(content, -1) {
		addText(content[cursor:loc[0]])
		name := content[loc[4]:loc[5]]
		if name == "" {
			fragments = append(fragments, message.Fragment{Kind: message.FragmentEmoji})
		} else {
			fragments = append(fragments, message.EmojiFragment(name))
		}
		cursor = loc[1]
	}
	addText(content[cursor:])

	if len(fragments) == 0 {
		fragments = append(fragments, message.TextFragment(""))
	}
	return fragments
}
