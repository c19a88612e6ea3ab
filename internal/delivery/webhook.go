package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lazypower/newcomer/internal/content"
	"github.com/lazypower/newcomer/internal/member"
)

const defaultTimeout = 5 * time.Second

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithTimeout sets the HTTP client timeout. Default: 5s.
func WithTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.http.Timeout = d }
}

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) WebhookOption {
	return func(w *Webhook) { w.headers = h }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.http = c }
}

// Webhook posts to a platform bridge that owns the chat connection:
// POST {base}/dm, {base}/announce and {base}/staff. Each call is a single
// attempt; there are no retries.
type Webhook struct {
	http     *http.Client
	baseURL  string
	headers  map[string]string
	announce string
}

// NewWebhook creates a bridge client rooted at baseURL. announce is the
// template for the public ping; {member} is replaced with the member id.
func NewWebhook(baseURL, announce string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		http:     &http.Client{Timeout: defaultTimeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		announce: announce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type dmRequest struct {
	MemberID string          `json:"member_id"`
	Name     string          `json:"name"`
	Message  content.Message `json:"message"`
}

type announceRequest struct {
	MemberID string `json:"member_id"`
	Text     string `json:"text"`
}

type staffRequest struct {
	Notice
	Text string `json:"text"`
}

// Deliver sends msg to the member as a direct message. Any transport error
// or non-2xx response wraps ErrNotDelivered.
func (w *Webhook) Deliver(ctx context.Context, rec member.Record, msg content.Message) error {
	if err := w.post(ctx, "/dm", dmRequest{MemberID: rec.ID, Name: rec.Name, Message: msg}); err != nil {
		return fmt.Errorf("%w: %v", ErrNotDelivered, err)
	}
	return nil
}

// Announce pings the member in the public channel.
func (w *Webhook) Announce(ctx context.Context, rec member.Record) error {
	text := strings.ReplaceAll(w.announce, "{member}", rec.ID)
	return w.post(ctx, "/announce", announceRequest{MemberID: rec.ID, Text: text})
}

// NotifyStaff posts n to the staff log channel.
func (w *Webhook) NotifyStaff(ctx context.Context, n Notice) error {
	return w.post(ctx, "/staff", staffRequest{Notice: n, Text: n.Text()})
}

func (w *Webhook) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
