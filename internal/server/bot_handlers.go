package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dgellow/line-relay/internal/background"
	"github.com/dgellow/line-relay/internal/log"
	"github.com/dgellow/line-relay/internal/messaging"
	"github.com/line/line-bot-sdk-go/v7/linebot"
)

const maxPushBody = 1 << 20

// BotAPI is the LINE Messaging API surface the bot handlers use
type BotAPI interface {
	ParseRequest(r *http.Request) ([]*linebot.Event, error)
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, to, text string) error
}

// BotHandlers serves the LINE bot webhook and the push endpoint Cloud Tasks calls
type BotHandlers struct {
	bot    BotAPI
	userID string
	runner *background.Runner
}

// NewBotHandlers creates the bot handlers; userID receives /sendLineMessage pushes
func NewBotHandlers(bot BotAPI, userID string, runner *background.Runner) *BotHandlers {
	return &BotHandlers{bot: bot, userID: userID, runner: runner}
}

// Register adds the bot routes to mux
func (h *BotHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /callback", h.WebhookHandler)
	// Any method: non-POST requests get a 400, not a 405
	mux.HandleFunc("/sendLineMessage", h.SendMessageHandler)
}

// WebhookHandler verifies the webhook and replies to message events
func (h *BotHandlers) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.bot.ParseRequest(r)
	if err != nil {
		if errors.Is(err, messaging.ErrInvalidSignature) {
			log.LogWarnWithFields("bot", "Invalid webhook signature", nil)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		log.LogErrorWithFields("bot", "Failed to parse webhook", map[string]any{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	for _, event := range events {
		text, ok := messaging.ReplyText(event)
		if !ok {
			continue
		}
		replyToken := event.ReplyToken
		h.runner.Go(r.Context(), "reply message", func(ctx context.Context) error {
			return h.bot.Reply(ctx, replyToken, text)
		})
	}

	w.WriteHeader(http.StatusOK)
}

// SendMessageHandler pushes the raw request body to the configured user
func (h *BotHandlers) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		log.LogWarnWithFields("bot", "POST method is required", map[string]any{
			"method": r.Method,
		})
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
	if err != nil {
		log.LogErrorWithFields("bot", "Failed to read body", map[string]any{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	message := string(body)
	log.LogDebugWithFields("bot", "Push requested", map[string]any{
		"body": message,
	})

	if h.userID == "" {
		log.LogWarnWithFields("bot", "userId is empty", nil)
		w.WriteHeader(http.StatusOK)
		return
	}

	to := h.userID
	h.runner.Go(r.Context(), "push message", func(ctx context.Context) error {
		return h.bot.Push(ctx, to, message)
	})

	w.WriteHeader(http.StatusOK)
}
