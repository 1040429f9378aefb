package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeProcessor struct {
	got []tgbotapi.Update
	err error
}

func (f *fakeProcessor) HandleUpdate(_ context.Context, u tgbotapi.Update) error {
	f.got = append(f.got, u)
	return f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", h.Index)
	r.GET("/health", h.Health)
	r.POST("/webhook", h.Webhook)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestIndex(t *testing.T) {
	w := do(newRouter(New(&fakeProcessor{}, nil)), http.MethodGet, "/", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"message":"Hello World"}` {
		t.Fatalf("GET / = %d %s", w.Code, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		storage Pinger
		want    int
	}{
		{"no storage check", nil, http.StatusOK},
		{"storage up", fakePinger{}, http.StatusOK},
		{"storage down", fakePinger{err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(newRouter(New(&fakeProcessor{}, tc.storage)), http.MethodGet, "/health", "")
			if w.Code != tc.want {
				t.Fatalf("GET /health = %d; want %d", w.Code, tc.want)
			}
		})
	}
}

func TestWebhook_DecodesAndAcknowledges(t *testing.T) {
	p := &fakeProcessor{}
	body := `{"update_id":10,"message":{"message_id":3,"date":0,"text":"/in",
		"chat":{"id":100,"type":"group"},"from":{"id":7,"is_bot":false,"first_name":"Alice","username":"alice"},
		"entities":[{"type":"bot_command","offset":0,"length":3}]}}`

	w := do(newRouter(New(p, nil)), http.MethodPost, "/webhook", body)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"message":"ok"`) {
		t.Fatalf("POST /webhook = %d %s", w.Code, w.Body.String())
	}
	if len(p.got) != 1 {
		t.Fatalf("processor called %d times", len(p.got))
	}
	u := p.got[0]
	if u.UpdateID != 10 || u.Message == nil || u.Message.From.UserName != "alice" || !u.Message.IsCommand() {
		t.Fatalf("update decoded wrongly: %+v", u)
	}
}

func TestWebhook_ProcessingErrorStillAcknowledged(t *testing.T) {
	p := &fakeProcessor{err: errors.New("send reply 0: chat not found")}
	w := do(newRouter(New(p, nil)), http.MethodPost, "/webhook", `{"update_id":11}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
}

func TestWebhook_InvalidJSON(t *testing.T) {
	p := &fakeProcessor{}
	for _, body := range []string{"", "not json", `{"update_id":"x"}`} {
		w := do(newRouter(New(p, nil)), http.MethodPost, "/webhook", body)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"code":"bad_request"`) {
			t.Fatalf("body %q: got %d %s", body, w.Code, w.Body.String())
		}
	}
	if len(p.got) != 0 {
		t.Fatalf("processor must not run for undecodable bodies")
	}
}

type slowProcessor struct{ err error }

func (p *slowProcessor) HandleUpdate(ctx context.Context, _ tgbotapi.Update) error {
	select {
	case <-ctx.Done():
		p.err = ctx.Err()
	case <-time.After(5 * time.Second):
	}
	return p.err
}

func TestWebhook_UpdateTimeoutStillAcknowledges(t *testing.T) {
	p := &slowProcessor{}
	h := New(p, nil).WithUpdateTimeout(50 * time.Millisecond)

	start := time.Now()
	w := do(newRouter(h), http.MethodPost, "/webhook", `{"update_id":11}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"message":"ok"`) {
		t.Fatalf("POST /webhook = %d %s", w.Code, w.Body.String())
	}
	if !errors.Is(p.err, context.DeadlineExceeded) {
		t.Fatalf("processor context err = %v; want deadline exceeded", p.err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("acknowledgement took %v", elapsed)
	}
}
