package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Tensaey-sol/tag-bot/internal/http/middleware"
)

// UpdateProcessor handles one platform update end to end.
type UpdateProcessor interface {
	HandleUpdate(ctx context.Context, u tgbotapi.Update) error
}

// Pinger reports storage reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers serves the webhook and the operational endpoints.
type Handlers struct {
	bot           UpdateProcessor
	storage       Pinger
	updateTimeout time.Duration
}

// New binds the handlers to the update processor and storage. storage may be
// nil, in which case /health does not check it.
func New(bot UpdateProcessor, storage Pinger) *Handlers {
	return &Handlers{bot: bot, storage: storage}
}

// WithUpdateTimeout bounds how long one webhook update may take, replies
// included. Zero leaves processing bounded only by the request.
func (h *Handlers) WithUpdateTimeout(d time.Duration) *Handlers {
	h.updateTimeout = d
	return h
}

// Index answers GET /.
//
// @ID       index
// @Summary  Index
// @Tags     Ops
// @Produce  json
// @Success  200  {object}  handlers.MessageResponse
// @Router   / [get]
func (h *Handlers) Index(c *gin.Context) {
	ok(c, MessageResponse{Message: "Hello World"})
}

// Health answers GET /health, probing storage when configured.
//
// @ID       health
// @Summary  Liveness and storage reachability
// @Tags     Ops
// @Produce  json
// @Success  200  {object}  handlers.HealthResponse
// @Failure  503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router   /health [get]
func (h *Handlers) Health(c *gin.Context) {
	if h.storage != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.storage.Ping(ctx); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("storage ping failed")
			fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "storage unavailable")
			return
		}
	}
	ok(c, HealthResponse{Status: "ok"})
}

// Webhook decodes one update and processes it before answering. Once the body
// decodes, the answer is 200 whatever the outcome: the platform would
// otherwise redeliver the update.
//
// @ID          webhook
// @Summary     Telegram webhook
// @Description Receives one Telegram update. Any decodable update is acknowledged with 200, whatever the command outcome.
// @Tags        Webhook
// @Accept      json
// @Produce     json
// @Param       X-Telegram-Bot-Api-Secret-Token  header  string  false  "Secret registered with setWebhook"
// @Param       update  body  object  true  "Telegram Update object"
// @Success     200  {object}  handlers.MessageResponse  "Acknowledged"
// @Failure     400  {object}  handlers.ErrorResponse    "Body is not an update"
// @Failure     401  {object}  handlers.ErrorResponse    "Secret token mismatch"
// @Router      /webhook [post]
func (h *Handlers) Webhook(c *gin.Context) {
	var u tgbotapi.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update payload")
		return
	}

	ctx := c.Request.Context()
	if h.updateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.updateTimeout)
		defer cancel()
	}
	if err := h.bot.HandleUpdate(ctx, u); err != nil {
		l := middleware.LoggerFrom(c)
		if errors.Is(err, context.DeadlineExceeded) {
			l.Warn().Err(err).Int("update_id", u.UpdateID).Dur("budget", h.updateTimeout).Msg("update timed out, remaining replies dropped")
		} else {
			l.Error().Err(err).Int("update_id", u.UpdateID).Msg("update processed with errors")
		}
	}
	ok(c, MessageResponse{Message: "ok"})
}
