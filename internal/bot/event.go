package bot

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Tensaey-sol/tag-bot/internal/domain"
)

// Event is the part of an inbound update the command handlers consume.
type Event struct {
	UpdateID  int
	ChatID    int64
	ChatType  string // "private", "group", "supergroup", "channel"
	MessageID int

	From domain.Member

	Command string // lowercased, without '/' and '@bot'
	Mention string // bot username after '@', if any
	Args    []string
	RawArgs string

	// ReplyTo is the author of the message the command replied to.
	ReplyTo *domain.Member
}

// EventFromUpdate extracts a command event. It reports false for updates that
// carry no command message from a user (edits, channel posts, plain text,
// callbacks, ...).
func EventFromUpdate(u tgbotapi.Update) (Event, bool) {
	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil || !m.IsCommand() {
		return Event{}, false
	}

	cmd, mention, _ := strings.Cut(m.CommandWithAt(), "@")
	raw := strings.TrimSpace(m.CommandArguments())

	ev := Event{
		UpdateID:  u.UpdateID,
		ChatID:    m.Chat.ID,
		ChatType:  m.Chat.Type,
		MessageID: m.MessageID,
		From:      memberOf(m.From),
		Command:   strings.ToLower(cmd),
		Mention:   mention,
		Args:      strings.Fields(raw),
		RawArgs:   raw,
	}
	if r := m.ReplyToMessage; r != nil && r.From != nil {
		target := memberOf(r.From)
		ev.ReplyTo = &target
	}
	return ev, true
}

func memberOf(u *tgbotapi.User) domain.Member {
	return domain.Member{
		UserID:      u.ID,
		Handle:      u.UserName,
		DisplayName: displayName(u),
	}
}

// displayName prefers the first name, as deep-link mentions conventionally show it.
func displayName(u *tgbotapi.User) string {
	if n := strings.TrimSpace(u.FirstName); n != "" {
		return n
	}
	if n := strings.TrimSpace(u.LastName); n != "" {
		return n
	}
	if u.UserName != "" {
		return u.UserName
	}
	return "user " + strconv.FormatInt(u.ID, 10)
}
