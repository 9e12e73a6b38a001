package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veigamann/whisper-zap/internal/bot"
	"github.com/veigamann/whisper-zap/internal/domain"
	"github.com/veigamann/whisper-zap/internal/http/middleware"
)

// HeaderWebhookSecret carries the shared secret configured on the bridge.
const HeaderWebhookSecret = "X-Api-Key"

// WebhookAck is returned for every delivery the server took responsibility
// for, including ones it chose to ignore.
type WebhookAck struct {
	Status   string `json:"status" example:"queued"`
	Messages int    `json:"messages" example:"1"`
	Ignored  int    `json:"ignored" example:"0"`
}

// Webhook godoc
// @ID          receiveWebhook
// @Summary     Receive bridge events
// @Description Accepts one event object or an array of events from the WhatsApp bridge and queues message events for the bot.
// @Tags        Webhook
// @Accept      json
// @Produce     json
// @Param       X-Api-Key header string false "Webhook shared secret"
// @Param       X-Webhook-Request-Id header string false "Delivery id used for de-duplication"
// @Success     202 {object} WebhookAck
// @Success     200 {object} WebhookAck "no message events"
// @Failure     400 {object} ErrorResponse
// @Failure     401 {object} ErrorResponse
// @Failure     413 {object} ErrorResponse
// @Failure     503 {object} ErrorResponse
// @Router      /webhook [post]
func (h *Handlers) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		middleware.CountDelivery("rejected")
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "webhook body too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read body")
		return
	}

	batch, err := h.decoder.Decode(body)
	if err != nil {
		middleware.CountDelivery("rejected")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed webhook payload")
		return
	}

	lg := middleware.LoggerFrom(c)
	if h.session != "" && batch.Session != "" && batch.Session != h.session {
		lg.Warn().Str("session", batch.Session).Msg("webhook from unexpected session ignored")
		middleware.CountDelivery("ignored")
		ok(c, http.StatusOK, WebhookAck{Status: "ignored", Ignored: batch.Ignored + len(batch.Messages)})
		return
	}
	batch.Messages, batch.Ignored = h.fresh(c, batch.Messages, batch.Ignored)
	if len(batch.Messages) == 0 {
		middleware.CountDelivery("ignored")
		ok(c, http.StatusOK, WebhookAck{Status: "ignored", Ignored: batch.Ignored})
		return
	}

	if err := h.inbox.Enqueue(batch.Messages); err != nil {
		middleware.CountDelivery("dropped")
		h.forget(c, batch.Messages)
		if errors.Is(err, bot.ErrQueueFull) || errors.Is(err, bot.ErrQueueClosed) {
			c.Header("Retry-After", "1")
			fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not queue messages")
		return
	}

	middleware.CountDelivery("accepted")
	lg.Debug().Int("messages", len(batch.Messages)).Msg("webhook queued")
	ok(c, http.StatusAccepted, WebhookAck{Status: "queued", Messages: len(batch.Messages), Ignored: batch.Ignored})
}

// WebhookAuth rejects webhook calls without the shared secret. It runs
// before de-duplication so an unauthenticated request never claims an id.
func (h *Handlers) WebhookAuth(c *gin.Context) {
	if h.secret == "" {
		c.Next()
		return
	}
	got := c.GetHeader(HeaderWebhookSecret)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		middleware.CountDelivery("rejected")
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook secret")
		return
	}
	c.Next()
}

// fresh drops messages the filter has seen. A filter failure keeps the
// message.
func (h *Handlers) fresh(c *gin.Context, msgs []domain.InboundMessage, ignored int) ([]domain.InboundMessage, int) {
	if h.filter == nil {
		return msgs, ignored
	}
	out := msgs[:0]
	for _, m := range msgs {
		ok, err := h.filter.Fresh(c.Request.Context(), m)
		if err != nil {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Str("message_id", m.Key.ID).Msg("message de-duplication failed")
			ok = true
		}
		if !ok {
			ignored++
			continue
		}
		out = append(out, m)
	}
	return out, ignored
}

// forget releases the claims of messages that were not queued, so the
// bridge's retry is processed.
func (h *Handlers) forget(c *gin.Context, msgs []domain.InboundMessage) {
	if h.filter == nil {
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	for _, m := range msgs {
		if err := h.filter.Forget(ctx, m); err != nil {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Str("message_id", m.Key.ID).Msg("releasing message claim failed")
		}
	}
}
