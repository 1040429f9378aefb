// Package bot turns Telegram updates into command events, runs the command
// handlers and sends their replies.
package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Sender delivers one reply to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, r Reply) error
}

// Bot processes updates synchronously: one update, one dispatch, then sends.
type Bot struct {
	dispatcher *Dispatcher
	sender     Sender
}

// New returns a Bot sending the dispatcher's replies through s.
func New(d *Dispatcher, s Sender) *Bot {
	return &Bot{dispatcher: d, sender: s}
}

// HandleUpdate processes one update. Updates without a command are ignored.
// The returned error only reports failed sends; command outcomes never
// surface as errors.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) error {
	ev, ok := EventFromUpdate(u)
	if !ok {
		return nil
	}

	log.Ctx(ctx).Debug().
		Int("update_id", ev.UpdateID).
		Int64("chat_id", ev.ChatID).
		Str("command", ev.Command).
		Msg("command received")

	var errs []error
	for i, r := range b.dispatcher.Dispatch(ctx, ev) {
		if err := b.sender.Send(ctx, ev.ChatID, r); err != nil {
			errs = append(errs, fmt.Errorf("send reply %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
