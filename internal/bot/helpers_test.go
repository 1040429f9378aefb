package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tensaey-sol/tag-bot/internal/repo"
	"github.com/Tensaey-sol/tag-bot/internal/services"
)

const botName = "tag_bot"

// ----- update builders -----

func user(id int64, handle, first string) *tgbotapi.User {
	return &tgbotapi.User{ID: id, UserName: handle, FirstName: first}
}

var msgSeq struct {
	sync.Mutex
	n int
}

func nextMsgID() int {
	msgSeq.Lock()
	defer msgSeq.Unlock()
	msgSeq.n++
	return msgSeq.n
}

// commandUpdate builds a message update whose text starts with a bot_command entity.
func commandUpdate(chatID int64, chatType string, from *tgbotapi.User, text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	id := nextMsgID()
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			From:      from,
			Chat:      &tgbotapi.Chat{ID: chatID, Type: chatType},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
		},
	}
}

func replyUpdate(chatID int64, from *tgbotapi.User, text string, target *tgbotapi.User) tgbotapi.Update {
	u := commandUpdate(chatID, "supergroup", from, text)
	u.Message.ReplyToMessage = &tgbotapi.Message{MessageID: 1, From: target, Chat: u.Message.Chat, Text: "hi"}
	return u
}

// ----- collaborators -----

type sentReply struct {
	chatID int64
	reply  Reply
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentReply
	err  error
}

func (s *recordingSender) Send(_ context.Context, chatID int64, r Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentReply{chatID: chatID, reply: r})
	return s.err
}

// take returns and clears what was sent so far.
func (s *recordingSender) take() []Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reply, 0, len(s.sent))
	for _, r := range s.sent {
		out = append(out, r.reply)
	}
	s.sent = nil
	return out
}

type fakeAdmins struct {
	admins map[int64]bool
	err    error
	calls  int
}

func (a *fakeAdmins) IsAdmin(_ context.Context, _ int64, userID int64) (bool, error) {
	a.calls++
	return a.admins[userID], a.err
}

// ----- real stack over SQLite -----

type stack struct {
	bot    *Bot
	sender *recordingSender
	admins *fakeAdmins
	db     *gorm.DB
}

func newStack(t *testing.T) *stack {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("bot_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	store := repo.NewGormStore(db)
	noWait := services.Retrier{MaxTries: 2, NewBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} }}
	members := &services.MembershipService{Repo: store, Retry: noWait}
	roles := &services.RoleService{Repo: store, Retry: noWait}

	admins := &fakeAdmins{admins: map[int64]bool{}}
	sender := &recordingSender{}
	d := NewDispatcher(botName, members, roles, admins)
	return &stack{bot: New(d, sender), sender: sender, admins: admins, db: db}
}

// do processes u and returns the replies sent for it.
func (s *stack) do(t *testing.T, u tgbotapi.Update) []Reply {
	t.Helper()
	if err := s.bot.HandleUpdate(context.Background(), u); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	return s.sender.take()
}

func onlyText(t *testing.T, replies []Reply) string {
	t.Helper()
	if len(replies) != 1 {
		t.Fatalf("expected exactly one reply, got %d: %+v", len(replies), replies)
	}
	return replies[0].Text
}

var errBoom = errors.New("storage unavailable")
