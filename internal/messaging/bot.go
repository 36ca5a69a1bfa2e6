// Package messaging wraps the LINE Messaging API client used by the bot
// service: webhook parsing, replies and pushes.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgellow/line-relay/internal/log"
	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// ErrInvalidSignature is returned by ParseRequest when the webhook signature does not verify
var ErrInvalidSignature = linebot.ErrInvalidSignature

// Bot sends and receives LINE messages for one channel
type Bot struct {
	client *linebot.Client
}

// Options configures a Bot
type Options struct {
	ChannelSecret string
	ChannelToken  string
	// APIEndpoint overrides the Messaging API base URL
	APIEndpoint string
	HTTPClient  *http.Client
}

// New creates a Bot for the channel described by opts
func New(opts Options) (*Bot, error) {
	var clientOpts []linebot.ClientOption
	if opts.APIEndpoint != "" {
		clientOpts = append(clientOpts, linebot.WithEndpointBase(opts.APIEndpoint))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, linebot.WithHTTPClient(opts.HTTPClient))
	}

	client, err := linebot.New(opts.ChannelSecret, opts.ChannelToken, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE client: %w", err)
	}
	return &Bot{client: client}, nil
}

// ParseRequest verifies the X-Line-Signature header and decodes the webhook body
func (b *Bot) ParseRequest(r *http.Request) ([]*linebot.Event, error) {
	events, err := b.client.ParseRequest(r)
	if err != nil {
		if errors.Is(err, linebot.ErrInvalidSignature) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("failed to parse webhook: %w", err)
	}
	return events, nil
}

// Reply answers a message event with a single text message
func (b *Bot) Reply(ctx context.Context, replyToken, text string) error {
	if _, err := b.client.ReplyMessage(replyToken, linebot.NewTextMessage(text)).WithContext(ctx).Do(); err != nil {
		return fmt.Errorf("failed to reply: %w", err)
	}
	return nil
}

// Push sends a text message to a user, group or room
func (b *Bot) Push(ctx context.Context, to, text string) error {
	if _, err := b.client.PushMessage(to, linebot.NewTextMessage(text)).WithContext(ctx).Do(); err != nil {
		return fmt.Errorf("failed to push message: %w", err)
	}
	return nil
}

// ReplyText returns the text the bot answers an event with, or false when
// the event gets no reply.
func ReplyText(event *linebot.Event) (string, bool) {
	if event.Type != linebot.EventTypeMessage {
		return "", false
	}
	switch message := event.Message.(type) {
	case *linebot.TextMessage:
		return message.Text, true
	case *linebot.StickerMessage:
		return fmt.Sprintf("sticker id is %s, stickerResourceType is %s", message.StickerID, message.StickerResourceType), true
	default:
		log.LogDebugWithFields("messaging", "Ignoring message type", map[string]any{
			"type": fmt.Sprintf("%T", message),
		})
		return "", false
	}
}
