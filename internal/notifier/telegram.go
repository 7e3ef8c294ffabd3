package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"FearGreedTracker/internal/retry"
)

// DefaultAPIBase is the Telegram Bot API root.
const DefaultAPIBase = "https://api.telegram.org"

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIBase  string
	Client   *http.Client
	Backoff  retry.Backoff
	Sleep    retry.Sleeper

	log zerolog.Logger
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string, log zerolog.Logger) *TelegramNotifier {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		APIBase:  DefaultAPIBase,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Backoff: retry.Exponential(time.Second),
		Sleep:   retry.SleepContext,
		log:     log.With().Str("component", "telegram").Logger(),
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(t.APIBase, "/"), t.BotToken, method)
}

// maxMessageLen is the Bot API limit for one message, in characters.
const maxMessageLen = 4096

// APIError is a failed Bot API call.
type APIError struct {
	Status      int
	Description string
	Wait        time.Duration // retry_after of a 429
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error: status %d: %s", e.Status, e.Description)
}

// RetryAfter returns the wait requested by the API, zero when none.
func (e *APIError) RetryAfter() time.Duration { return e.Wait }

// Temporary reports whether retrying may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Send sends a message to the configured chat. Longer texts are cut to the
// Bot API limit.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	if r := []rune(text); len(r) > maxMessageLen {
		text = string(r[:maxMessageLen-1]) + "…"
	}
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var ar apiResponse
	if jerr := json.Unmarshal(raw, &ar); jerr != nil {
		ar.Description = string(raw)
	}
	if resp.StatusCode == http.StatusOK && ar.OK {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode, Description: ar.Description}
	if ar.Parameters != nil && ar.Parameters.RetryAfter > 0 {
		apiErr.Wait = time.Duration(ar.Parameters.RetryAfter) * time.Second
	}
	return apiErr
}

// SendWithRetry sends a message, retrying up to maxRetries times with
// exponential backoff. Client errors other than 429 are not retried; a 429
// waits the advertised retry_after instead of the backoff.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	attempts := maxRetries + 1
	_, err := retry.Do(ctx, attempts, t.Backoff, t.Sleep, func(n int) error {
		err := t.Send(ctx, text)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return retry.Permanent(err)
		}
		if n < attempts {
			t.log.Warn().Err(err).Int("attempt", n).Int("max", attempts).Msg("send failed, retrying")
		}
		return err
	})
	switch {
	case err == nil:
		return nil
	case retry.IsPermanent(err), ctx.Err() != nil:
		return err
	}
	return fmt.Errorf("all %d retries exhausted: %w", attempts, err)
}
