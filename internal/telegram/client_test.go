package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Tensaey-sol/tag-bot/internal/bot"
	"github.com/Tensaey-sol/tag-bot/internal/telegram/telegramtest"
)

func newClient(t *testing.T) (*Client, *telegramtest.Server) {
	t.Helper()
	srv := telegramtest.NewServer(t, "tag_bot")
	c, err := New(Options{
		Token:       telegramtest.Token,
		APIEndpoint: srv.Endpoint(),
		SendRPS:     1000,
		SendBurst:   10,
		HTTPClient:  srv.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestNew_ResolvesUsername(t *testing.T) {
	c, srv := newClient(t)
	if c.Username() != "tag_bot" {
		t.Fatalf("username = %q", c.Username())
	}
	if srv.Calls("getMe") != 1 {
		t.Fatalf("getMe should be called once")
	}
}

func TestNew_BadToken(t *testing.T) {
	srv := telegramtest.NewServer(t, "tag_bot")
	_, err := New(Options{Token: "nope", APIEndpoint: srv.Endpoint(), HTTPClient: srv.Client()})
	if err == nil || !strings.Contains(err.Error(), "telegram: connect") {
		t.Fatalf("expected connect error, got %v", err)
	}
}

func TestSend_PlainAndMarkdown(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()

	if err := c.Send(ctx, 100, bot.Reply{Text: "@alice", ReplyTo: 7}); err != nil {
		t.Fatalf("Send plain: %v", err)
	}
	if err := c.Send(ctx, 100, bot.Reply{Text: "[Bob](tg://user?id=9)", Markdown: true}); err != nil {
		t.Fatalf("Send markdown: %v", err)
	}

	got := srv.Take()
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %+v", got)
	}
	if got[0].ChatID != 100 || got[0].Text != "@alice" || got[0].ParseMode != "" || got[0].ReplyTo != 7 {
		t.Fatalf("plain message unexpected: %+v", got[0])
	}
	if got[1].ParseMode != "MarkdownV2" || got[1].ReplyTo != 0 {
		t.Fatalf("markdown message unexpected: %+v", got[1])
	}
}

func TestSend_RetriesThrottled(t *testing.T) {
	c, srv := newClient(t)
	srv.Throttle(1)

	if err := c.Send(context.Background(), 5, bot.Reply{Text: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := srv.Calls("sendMessage"); n != 2 {
		t.Fatalf("sendMessage calls = %d; want 2", n)
	}
	if len(srv.Take()) != 1 {
		t.Fatalf("message should be delivered once")
	}
}

func TestSend_GivesUpAfterMaxTries(t *testing.T) {
	c, srv := newClient(t)
	srv.Throttle(10)

	err := c.Send(context.Background(), 5, bot.Reply{Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "Too Many Requests") {
		t.Fatalf("expected throttling error, got %v", err)
	}
	if n := srv.Calls("sendMessage"); n != 3 {
		t.Fatalf("sendMessage calls = %d; want 3", n)
	}
}

func TestSend_ThrottledPastDeadlineGivesUp(t *testing.T) {
	c, srv := newClient(t)
	srv.ThrottleFor(5, 30)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	err := c.Send(ctx, 5, bot.Reply{Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "Too Many Requests") {
		t.Fatalf("expected throttling error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Send waited %v despite a 30s retry_after", elapsed)
	}
	if n := srv.Calls("sendMessage"); n != 1 {
		t.Fatalf("sendMessage calls = %d; want 1", n)
	}
}

func TestSend_PermanentErrorNotRetried(t *testing.T) {
	c, srv := newClient(t)
	srv.FailSends()

	err := c.Send(context.Background(), 5, bot.Reply{Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected chat not found, got %v", err)
	}
	if n := srv.Calls("sendMessage"); n != 1 {
		t.Fatalf("sendMessage calls = %d; want 1", n)
	}
}

func TestSend_PacingHonoursContext(t *testing.T) {
	c, srv := newClient(t)
	c.pacer = newPacer(0.001, 1)

	if err := c.Send(context.Background(), 1, bot.Reply{Text: "first"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Send(ctx, 1, bot.Reply{Text: "second"}); err == nil {
		t.Fatalf("second send should fail waiting for budget")
	}
	// another chat has its own bucket
	if err := c.Send(context.Background(), 2, bot.Reply{Text: "other chat"}); err != nil {
		t.Fatalf("other chat: %v", err)
	}
	if n := len(srv.Take()); n != 2 {
		t.Fatalf("delivered %d messages; want 2", n)
	}
}

func TestIsAdmin(t *testing.T) {
	c, srv := newClient(t)
	srv.SetAdmins(-100, 1, 2)
	ctx := context.Background()

	for _, tc := range []struct {
		user int64
		want bool
	}{{1, true}, {2, true}, {3, false}} {
		got, err := c.IsAdmin(ctx, -100, tc.user)
		if err != nil {
			t.Fatalf("IsAdmin(%d): %v", tc.user, err)
		}
		if got != tc.want {
			t.Fatalf("IsAdmin(%d) = %v; want %v", tc.user, got, tc.want)
		}
	}
	if ok, _ := c.IsAdmin(ctx, -200, 1); ok {
		t.Fatalf("user 1 does not administer chat -200")
	}
}

func TestSetWebhook(t *testing.T) {
	c, srv := newClient(t)
	if err := c.SetWebhook("https://bot.example.com/webhook", "s3cret"); err != nil {
		t.Fatalf("SetWebhook: %v", err)
	}
	url, secret := srv.Webhook()
	if url != "https://bot.example.com/webhook" || secret != "s3cret" {
		t.Fatalf("registered %q / %q", url, secret)
	}
}
