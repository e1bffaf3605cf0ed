package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotForm = map[string]string{
			"chat_id":    r.PostFormValue("chat_id"),
			"text":       r.PostFormValue("text"),
			"parse_mode": r.PostFormValue("parse_mode"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("bot-token", "-100123", srv.URL)
	require.NoError(t, tg.Send(context.Background(), "<b>greeks digest</b>"))

	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "-100123", gotForm["chat_id"])
	assert.Equal(t, "<b>greeks digest</b>", gotForm["text"])
	assert.Equal(t, "HTML", gotForm["parse_mode"])
}

func TestTelegramSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"description":"bot was kicked"}`))
	}))
	defer srv.Close()

	tg := NewTelegram("bot-token", "-100123", srv.URL)
	err := tg.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "bot was kicked")
}

func TestTelegramFromEnvMissingVars(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	_, err := NewTelegramFromEnv()
	assert.Error(t, err)
}

func TestTelegramFromEnvAPIBaseOverride(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "@alerts")
	t.Setenv("TELEGRAM_API_BASE", "http://127.0.0.1:9999")

	n, err := NewTelegramFromEnv()
	require.NoError(t, err)
	tg, ok := n.(*Telegram)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:9999", tg.apiBase)
	assert.Equal(t, "@alerts", tg.chatID)
}
