// Package telegramtest provides an in-process fake of the Bot API methods the
// bot uses, for tests.
package telegramtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Token is the bot token the fake accepts.
const Token = "123456:test-token"

// Message is one recorded sendMessage call.
type Message struct {
	ChatID    int64
	Text      string
	ParseMode string
	ReplyTo   int
}

// Server records sendMessage calls and answers getMe, getChatAdministrators
// and setWebhook.
type Server struct {
	*httptest.Server

	username string

	mu            sync.Mutex
	sent          []Message
	calls         map[string]int
	admins        map[int64][]int64
	throttle      int
	retryAfter    int
	failSends     bool
	webhookURL    string
	webhookSecret string
}

// NewServer starts a fake for a bot called username. It is closed with t.
func NewServer(t testing.TB, username string) *Server {
	t.Helper()
	s := &Server{
		username: username,
		calls:    map[string]int{},
		admins:   map[int64][]int64{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Endpoint is the printf pattern to hand to the client.
func (s *Server) Endpoint() string {
	return s.URL + "/bot%s/%s"
}

// SetAdmins makes userIDs the administrators of chatID. The first one is the
// creator.
func (s *Server) SetAdmins(chatID int64, userIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[chatID] = userIDs
}

// Throttle answers the next n sendMessage calls with 429 and retry_after 0.
func (s *Server) Throttle(n int) {
	s.ThrottleFor(n, 0)
}

// ThrottleFor answers the next n sendMessage calls with 429, asking the
// client to wait retryAfter seconds.
func (s *Server) ThrottleFor(n, retryAfter int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttle = n
	s.retryAfter = retryAfter
}

// FailSends makes every following sendMessage fail with 400.
func (s *Server) FailSends() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSends = true
}

// Take returns and clears the recorded messages.
func (s *Server) Take() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sent
	s.sent = nil
	return out
}

// Calls is how many times method was called.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Webhook returns what setWebhook registered.
func (s *Server) Webhook() (url, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.webhookURL, s.webhookSecret
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/bot")
	token, method, ok := strings.Cut(path, "/")
	if !ok || token != Token {
		reply(w, false, nil, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := r.ParseForm(); err != nil {
		reply(w, false, nil, http.StatusBadRequest, "Bad Request: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++

	switch method {
	case "getMe":
		reply(w, true, map[string]any{"id": 42, "is_bot": true, "first_name": "Tag bot", "username": s.username}, 0, "")
	case "sendMessage":
		chatID, _ := strconv.ParseInt(r.PostForm.Get("chat_id"), 10, 64)
		if s.throttle > 0 {
			s.throttle--
			tooManyRequests(w, s.retryAfter)
			return
		}
		if s.failSends {
			reply(w, false, nil, http.StatusBadRequest, "Bad Request: chat not found")
			return
		}
		replyTo, _ := strconv.Atoi(r.PostForm.Get("reply_to_message_id"))
		s.sent = append(s.sent, Message{
			ChatID:    chatID,
			Text:      r.PostForm.Get("text"),
			ParseMode: r.PostForm.Get("parse_mode"),
			ReplyTo:   replyTo,
		})
		reply(w, true, map[string]any{
			"message_id": len(s.sent),
			"date":       0,
			"chat":       map[string]any{"id": chatID, "type": "group"},
			"text":       r.PostForm.Get("text"),
		}, 0, "")
	case "getChatAdministrators":
		chatID, _ := strconv.ParseInt(r.PostForm.Get("chat_id"), 10, 64)
		members := []map[string]any{}
		for i, id := range s.admins[chatID] {
			status := "administrator"
			if i == 0 {
				status = "creator"
			}
			members = append(members, map[string]any{
				"user":   map[string]any{"id": id, "is_bot": false, "first_name": fmt.Sprintf("admin%d", id)},
				"status": status,
			})
		}
		reply(w, true, members, 0, "")
	case "setWebhook":
		s.webhookURL = r.PostForm.Get("url")
		s.webhookSecret = r.PostForm.Get("secret_token")
		reply(w, true, true, 0, "")
	default:
		reply(w, false, nil, http.StatusNotFound, "Not Found: method not found")
	}
}

func reply(w http.ResponseWriter, ok bool, result any, code int, description string) {
	body := map[string]any{"ok": ok}
	if ok {
		body["result"] = result
	} else {
		body["error_code"] = code
		body["description"] = description
	}
	w.Header().Set("Content-Type", "application/json")
	status := http.StatusOK
	if !ok {
		status = code
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func tooManyRequests(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":          false,
		"error_code":  http.StatusTooManyRequests,
		"description": fmt.Sprintf("Too Many Requests: retry after %d", retryAfter),
		"parameters":  map[string]any{"retry_after": retryAfter},
	})
}
