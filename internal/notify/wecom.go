package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultWeComWebhook is the WeCom group robot send endpoint.
const DefaultWeComWebhook = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send"

// MessageType selects the robot message format.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageMarkdown MessageType = "markdown"
)

// Per-message content limits in bytes, as enforced by the robot API.
const (
	textLimit     = 2048
	markdownLimit = 4096
)

// WeComConfig holds configuration for a WeCom group robot.
type WeComConfig struct {
	Key        string        // Robot key (the "key" query parameter)
	WebhookURL string        // Send endpoint, defaults to DefaultWeComWebhook
	Type       MessageType   // text (default) or markdown
	Mentions   []string      // user IDs or "@all", text messages only
	Timeout    time.Duration // defaults to 10s
	HTTPClient *http.Client
}

// WeComBot posts messages to a WeCom group robot webhook.
type WeComBot struct {
	endpoint string
	msgType  MessageType
	mentions []string
	client   *http.Client
}

// NewWeComBot creates a robot client. The key is required.
func NewWeComBot(cfg WeComConfig) (*WeComBot, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("wecom robot key is not set")
	}

	base := cfg.WebhookURL
	if base == "" {
		base = DefaultWeComWebhook
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL %q: %w", base, err)
	}
	q := u.Query()
	q.Set("key", cfg.Key)
	u.RawQuery = q.Encode()

	msgType := cfg.Type
	switch msgType {
	case "":
		msgType = MessageText
	case MessageText, MessageMarkdown:
	default:
		return nil, fmt.Errorf("unsupported message type %q", msgType)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &WeComBot{
		endpoint: u.String(),
		msgType:  msgType,
		mentions: cfg.Mentions,
		client:   client,
	}, nil
}

// Deliver sends text with the configured message type. Text above the
// robot's size limit goes out as several messages split on line breaks.
func (b *WeComBot) Deliver(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	limit := textLimit
	if b.msgType == MessageMarkdown {
		limit = markdownLimit
	}

	for _, part := range splitMessage(text, limit) {
		if err := b.send(ctx, b.msgType, part); err != nil {
			return err
		}
	}
	return nil
}

type robotText struct {
	Content       string   `json:"content"`
	MentionedList []string `json:"mentioned_list,omitempty"`
}

type robotMarkdown struct {
	Content string `json:"content"`
}

type robotMessage struct {
	MsgType  MessageType    `json:"msgtype"`
	Text     *robotText     `json:"text,omitempty"`
	Markdown *robotMarkdown `json:"markdown,omitempty"`
}

type robotResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (b *WeComBot) send(ctx context.Context, msgType MessageType, content string) error {
	msg := robotMessage{MsgType: msgType}
	if msgType == MessageMarkdown {
		msg.Markdown = &robotMarkdown{Content: content}
	} else {
		msg.Text = &robotText{Content: content, MentionedList: b.mentions}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &DeliveryError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{StatusCode: resp.StatusCode, ErrMsg: string(respBody)}
	}

	var rr robotResponse
	if err := json.Unmarshal(respBody, &rr); err != nil {
		return &DeliveryError{StatusCode: resp.StatusCode, ErrMsg: string(respBody), Err: err}
	}
	if rr.ErrCode != 0 {
		return &DeliveryError{StatusCode: resp.StatusCode, ErrCode: rr.ErrCode, ErrMsg: rr.ErrMsg}
	}
	return nil
}

// splitMessage cuts text into parts of at most limit bytes, preferring line
// boundaries. A single line longer than limit is cut on a rune boundary.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder

	flush := func() {
		if part := strings.TrimRight(cur.String(), "\n"); part != "" {
			parts = append(parts, part)
		}
		cur.Reset()
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if cur.Len()+len(line) <= limit {
			cur.WriteString(line)
			continue
		}
		flush()
		for len(line) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
			parts = append(parts, line[:cut])
			line = line[cut:]
		}
		cur.WriteString(line)
	}
	flush()
	return parts
}
