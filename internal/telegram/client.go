// Package telegram adapts the Bot API client to the bot's outbound needs:
// paced replies, administrator lookups and webhook registration.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Tensaey-sol/tag-bot/internal/bot"
)

// Options configures a Client.
type Options struct {
	Token       string
	APIEndpoint string // printf pattern taking token and method
	Debug       bool

	SendRPS   float64
	SendBurst int
	SendTries uint // attempts per message when throttled by the platform

	HTTPClient tgbotapi.HTTPClient // defaults to http.DefaultClient
}

// Client talks to the Bot API. It implements bot.Sender and bot.AdminChecker.
type Client struct {
	api   *tgbotapi.BotAPI
	pacer *pacer
	tries uint
}

// New connects to the Bot API and resolves the bot's own identity (getMe).
func New(o Options) (*Client, error) {
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.APIEndpoint == "" {
		o.APIEndpoint = tgbotapi.APIEndpoint
	}
	if o.SendTries == 0 {
		o.SendTries = 3
	}
	api, err := tgbotapi.NewBotAPIWithClient(o.Token, o.APIEndpoint, o.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	api.Debug = o.Debug
	return &Client{api: api, pacer: newPacer(o.SendRPS, o.SendBurst), tries: o.SendTries}, nil
}

// Username is the bot's own handle, without '@'.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// Send delivers one reply, waiting for the chat's send budget first.
// Throttling answers (429) are retried after the delay the platform asks for,
// unless that delay would outlast ctx's deadline.
func (c *Client) Send(ctx context.Context, chatID int64, r bot.Reply) error {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	msg.ReplyToMessageID = r.ReplyTo
	msg.DisableWebPagePreview = true
	if r.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdownV2
	}

	var throttled error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		throttled = nil
		if err := c.pacer.wait(ctx, chatID); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		_, err := c.api.Send(msg)
		if err == nil {
			return struct{}{}, nil
		}
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			throttled = err
			wait := time.Duration(apiErr.RetryAfter) * time.Second
			if dl, ok := ctx.Deadline(); ok && time.Until(dl) < wait {
				log.Ctx(ctx).Warn().Int64("chat_id", chatID).Int("retry_after", apiErr.RetryAfter).Msg("send throttled past the deadline, reply dropped")
				return struct{}{}, backoff.Permanent(err)
			}
			log.Ctx(ctx).Warn().Int64("chat_id", chatID).Int("retry_after", apiErr.RetryAfter).Msg("send throttled")
			return struct{}{}, backoff.RetryAfter(apiErr.RetryAfter)
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithMaxTries(c.tries))
	if err != nil {
		var perm *backoff.PermanentError
		switch {
		case throttled != nil:
			err = throttled
		case errors.As(err, &perm):
			err = perm.Err
		}
		return fmt.Errorf("telegram: sendMessage to %d: %w", chatID, err)
	}
	return nil
}

// IsAdmin reports whether userID is the creator or an administrator of chatID.
func (c *Client) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	admins, err := c.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return false, fmt.Errorf("telegram: getChatAdministrators %d: %w", chatID, err)
	}
	for _, m := range admins {
		if m.User != nil && m.User.ID == userID && (m.IsCreator() || m.IsAdministrator()) {
			return true, nil
		}
	}
	log.Ctx(ctx).Debug().Int64("chat_id", chatID).Int64("user_id", userID).Msg("not a chat administrator")
	return false, nil
}

// SetWebhook registers url as the update destination. A non-empty secret is
// echoed back by the platform in X-Telegram-Bot-Api-Secret-Token.
func (c *Client) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if _, err := c.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("telegram: setWebhook: %w", err)
	}
	return nil
}
