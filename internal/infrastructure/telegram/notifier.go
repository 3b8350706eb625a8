package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"DealsScanner/internal/domain"
	"DealsScanner/internal/ports"
)

const defaultBaseURL = "https://api.telegram.org"

// Notifier posts deals to a Telegram channel via bot API.
type Notifier struct {
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Messenger = (*Notifier)(nil)

// Option customizes a Notifier.
type Option func(*Notifier)

// WithBaseURL points the notifier at another Bot API host.
func WithBaseURL(baseURL string) Option {
	return func(n *Notifier) { n.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) { n.client.Timeout = d }
}

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string, opts ...Option) *Notifier {
	n := &Notifier{
		baseURL:  defaultBaseURL,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// BotInfo is the subset of getMe the connection check reports.
type BotInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Result      json.RawMessage `json:"result"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// SendText posts a Markdown message with link previews enabled.
func (n *Notifier) SendText(ctx context.Context, body string) error {
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", body)
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "false")

	_, err := n.call(ctx, "sendMessage", form)
	return err
}

// SendImage posts a photo by URL with a Markdown caption.
func (n *Notifier) SendImage(ctx context.Context, imageURL, caption string) error {
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("photo", imageURL)
	form.Set("caption", caption)
	form.Set("parse_mode", "Markdown")

	_, err := n.call(ctx, "sendPhoto", form)
	return err
}

// GetMe verifies the token and returns the bot identity.
func (n *Notifier) GetMe(ctx context.Context) (BotInfo, error) {
	raw, err := n.call(ctx, "getMe", nil)
	if err != nil {
		return BotInfo{}, err
	}
	var info BotInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return BotInfo{}, fmt.Errorf("decode getMe: %w", err)
	}
	return info, nil
}

func (n *Notifier) call(ctx context.Context, method string, form url.Values) (json.RawMessage, error) {
	if n.botToken == "" || (form != nil && n.chatID == "") || n.client == nil {
		return nil, fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.botToken, method)
	var req *http.Request
	var err error
	if form == nil {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	}
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: do request: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", method, err)
	}

	var out apiResponse
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 0
		if out.Parameters != nil {
			retryAfter = out.Parameters.RetryAfter
		}
		return nil, fmt.Errorf("%s: %w (retry after %ds): %s", method, domain.ErrRateLimited, retryAfter, out.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: telegram error: %s: %s", method, resp.Status, out.Description)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, decodeErr)
	}
	if !out.OK {
		return nil, fmt.Errorf("%s: not acknowledged: %s", method, out.Description)
	}

	return out.Result, nil
}
