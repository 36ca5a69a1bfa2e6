package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v7/linebot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "channel-secret"

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", signature)
	return req
}

const textEvent = `{"destination":"U0","events":[{"type":"message","replyToken":"rt-1","timestamp":1,"source":{"type":"user","userId":"U1"},"message":{"type":"text","id":"m1","text":"hello"}}]}`

func TestNew(t *testing.T) {
	_, err := New(Options{ChannelToken: "token"})
	assert.Error(t, err)

	bot, err := New(Options{ChannelSecret: testSecret, ChannelToken: "token"})
	require.NoError(t, err)
	assert.NotNil(t, bot)
}

func TestParseRequest(t *testing.T) {
	bot, err := New(Options{ChannelSecret: testSecret, ChannelToken: "token"})
	require.NoError(t, err)

	t.Run("valid signature", func(t *testing.T) {
		events, err := bot.ParseRequest(webhookRequest(textEvent, sign(textEvent)))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "rt-1", events[0].ReplyToken)
	})

	t.Run("invalid signature", func(t *testing.T) {
		_, err := bot.ParseRequest(webhookRequest(textEvent, "bogus"))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("malformed body", func(t *testing.T) {
		body := `{"events": [`
		_, err := bot.ParseRequest(webhookRequest(body, sign(body)))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestReplyText(t *testing.T) {
	text, ok := ReplyText(&linebot.Event{
		Type:    linebot.EventTypeMessage,
		Message: &linebot.TextMessage{Text: "echo me"},
	})
	assert.True(t, ok)
	assert.Equal(t, "echo me", text)

	text, ok = ReplyText(&linebot.Event{
		Type:    linebot.EventTypeMessage,
		Message: &linebot.StickerMessage{StickerID: "52002734", StickerResourceType: linebot.StickerResourceTypeStatic},
	})
	assert.True(t, ok)
	assert.Equal(t, "sticker id is 52002734, stickerResourceType is STATIC", text)

	_, ok = ReplyText(&linebot.Event{
		Type:    linebot.EventTypeMessage,
		Message: &linebot.ImageMessage{ID: "img"},
	})
	assert.False(t, ok)

	_, ok = ReplyText(&linebot.Event{Type: linebot.EventTypeFollow})
	assert.False(t, ok)
}

type capturedCall struct {
	path string
	body map[string]any
	auth string
}

func fakeAPI(t *testing.T, status int) (*httptest.Server, chan capturedCall) {
	t.Helper()
	calls := make(chan capturedCall, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)
		calls <- capturedCall{path: r.URL.Path, body: body, auth: r.Header.Get("Authorization")}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)
	return server, calls
}

func TestReplyAndPush(t *testing.T) {
	server, calls := fakeAPI(t, http.StatusOK)
	bot, err := New(Options{ChannelSecret: testSecret, ChannelToken: "token", APIEndpoint: server.URL})
	require.NoError(t, err)

	require.NoError(t, bot.Reply(context.Background(), "rt-1", "hello"))
	call := <-calls
	assert.Equal(t, "/v2/bot/message/reply", call.path)
	assert.Equal(t, "Bearer token", call.auth)
	assert.Equal(t, "rt-1", call.body["replyToken"])

	require.NoError(t, bot.Push(context.Background(), "U1", "Hello, World!"))
	call = <-calls
	assert.Equal(t, "/v2/bot/message/push", call.path)
	assert.Equal(t, "U1", call.body["to"])
	messages, _ := call.body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "Hello, World!", messages[0].(map[string]any)["text"])
}

func TestPush_APIError(t *testing.T) {
	server, _ := fakeAPI(t, http.StatusBadRequest)
	bot, err := New(Options{ChannelSecret: testSecret, ChannelToken: "token", APIEndpoint: server.URL})
	require.NoError(t, err)

	err = bot.Push(context.Background(), "U1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push message")
}
