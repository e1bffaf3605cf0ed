// Package notify pushes operational alerts to Telegram.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Notifier interface {
	Send(ctx context.Context, text string) error
}

const defaultAPIBase = "https://api.telegram.org"

// Telegram posts messages to one chat via the Bot API. chatID may be a
// numeric id or an @channel name; the API accepts both.
type Telegram struct {
	token   string
	chatID  string
	client  *http.Client
	apiBase string
}

func NewTelegram(token, chatID, apiBase string) *Telegram {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Telegram{
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 3 * time.Second},
		apiBase: apiBase,
	}
}

// NewTelegramFromEnv builds the notifier from TELEGRAM_BOT_TOKEN and
// TELEGRAM_CHAT_ID, reading the .env file when the process environment
// lacks them. TELEGRAM_API_BASE overrides the endpoint for staging.
func NewTelegramFromEnv() (Notifier, error) {
	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" || os.Getenv("TELEGRAM_CHAT_ID") == "" {
		_ = godotenv.Load() // no overwriting; load if exists
	}

	tok := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	chatID := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID"))
	if tok == "" || chatID == "" {
		return nil, fmt.Errorf("missing TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID")
	}
	return NewTelegram(tok, chatID, os.Getenv("TELEGRAM_API_BASE")), nil
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token),
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram sendMessage failed: %d %s", resp.StatusCode, string(b))
	}
	return nil
}
