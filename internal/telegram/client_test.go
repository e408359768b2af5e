package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/mr-linch/go-tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamwavecut/telegram-assistant-bot/internal/bot"
)

type apiCall struct {
	Method string
	Fields map[string]string
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
	// reject makes sendMessage fail when a parse_mode is set.
	reject bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	fields := readFields(r)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Fields: fields})
	reject := f.reject
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if method == "sendMessage" && reject && fields["parse_mode"] != "" {
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: unexpected end"}`)
		return
	}
	if method == "sendMessage" {
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`)
		return
	}
	_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
}

func readFields(r *http.Request) map[string]string {
	out := map[string]string{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]any
		_ = json.NewDecoder(r.Body).Decode(&raw)
		for k, v := range raw {
			if s, ok := v.(string); ok {
				out[k] = s
				continue
			}
			b, _ := json.Marshal(v)
			out[k] = string(b)
		}
		return out
	}
	_ = r.ParseMultipartForm(1 << 20)
	var values url.Values = r.Form
	for k := range values {
		out[k] = values.Get(k)
	}
	return out
}

func (f *fakeAPI) snapshot() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return New(tg.New("123:token", tg.WithClientServerURL(srv.URL)))
}

func TestClient_SendMarkdown(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	require.NoError(t, client.Send(context.Background(), 42, "*hello*"))
	calls := api.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendMessage", calls[0].Method)
	assert.Equal(t, "42", calls[0].Fields["chat_id"])
	assert.Equal(t, "*hello*", calls[0].Fields["text"])
	assert.NotEmpty(t, calls[0].Fields["parse_mode"])
}

func TestClient_SendFallsBackToPlain(t *testing.T) {
	api := &fakeAPI{reject: true}
	client := newTestClient(t, api)

	require.NoError(t, client.Send(context.Background(), 42, "<b>bold</b> &amp; more", bot.WithParseMode(bot.HTML)))
	calls := api.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "HTML", calls[0].Fields["parse_mode"])
	assert.Empty(t, calls[1].Fields["parse_mode"])
	assert.Equal(t, "bold & more", calls[1].Fields["text"])
}

func TestClient_SendKeyboard(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	keyboard := bot.Keyboard{{{Text: "Memory", Data: "memory_view"}}}
	require.NoError(t, client.Send(context.Background(), 1, "menu", bot.WithKeyboard(keyboard)))
	calls := api.snapshot()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Fields["reply_markup"], `"callback_data":"memory_view"`)
}

func TestClient_AnswerCallbackAndTyping(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	require.NoError(t, client.AnswerCallback(context.Background(), "cb1", ""))
	require.NoError(t, client.Typing(context.Background(), 5))
	require.NoError(t, client.SetWebhook(context.Background(), "https://example.com/webhook", "s3cret"))

	calls := api.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, "answerCallbackQuery", calls[0].Method)
	assert.Equal(t, "cb1", calls[0].Fields["callback_query_id"])
	assert.Equal(t, "sendChatAction", calls[1].Method)
	assert.Equal(t, "typing", calls[1].Fields["action"])
	assert.Equal(t, "setWebhook", calls[2].Method)
	assert.Equal(t, "s3cret", calls[2].Fields["secret_token"])
}

func TestMarkup(t *testing.T) {
	markup := Markup(bot.Keyboard{
		{{Text: "a", Data: "x"}, {Text: "b", URL: "https://t.me/bot"}},
		{{Text: "c", Data: "y"}},
	})
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "x", markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "https://t.me/bot", markup.InlineKeyboard[0][1].URL)
	assert.Equal(t, "c", markup.InlineKeyboard[1][0].Text)
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"short"}, Split("short", 10))

	text := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	assert.Equal(t, []string{"aaaaaa", "bbbbbb"}, Split(text, 10))

	long := strings.Repeat("я", 25)
	chunks := Split(long, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("я", 10), chunks[0])
	assert.Equal(t, strings.Repeat("я", 5), chunks[2])
}
