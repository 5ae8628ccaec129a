package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsPipeline/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// maxMessageLen is the Bot API limit for a single sendMessage text.
	maxMessageLen = 4096
)

// Notifier sends run digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at another Bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// PublishDigest posts the digest as plain text, split on line boundaries
// when it exceeds the message size limit.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	for i, chunk := range splitMessage(digest, maxMessageLen) {
		if err := n.send(ctx, chunk); err != nil {
			return fmt.Errorf("send part %d: %w", i+1, err)
		}
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram error: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return nil
}

func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var (
		parts   []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			flush()
			parts = append(parts, line[:limit])
			line = line[limit:]
		}
		if current.Len()+len(line) > limit {
			flush()
		}
		current.WriteString(line)
	}
	flush()
	return parts
}
