// Package middleware holds the gin middleware shared by the HTTP surface.
package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// HeaderWebhookRequestID carries the bridge's unique id for one delivery.
// Retried deliveries reuse it.
const HeaderWebhookRequestID = "X-Webhook-Request-Id"

const ctxKeyRateBypass = "rate.bypass"

var deliveryIDPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// DeliveryLedger records delivery ids. ClaimDelivery reports whether the id
// was new; ReleaseDelivery forgets it so a retry is processed again.
type DeliveryLedger interface {
	ClaimDelivery(ctx context.Context, deliveryID string) (fresh bool, err error)
	ReleaseDelivery(ctx context.Context, deliveryID string) error
}

// DedupeOptions tunes WebhookDedupe.
type DedupeOptions struct {
	// MaxLen caps the accepted id length; <= 0 means 200.
	MaxLen int
}

// WebhookDedupe drops re-delivered webhook requests. A request without the
// delivery header passes through. A malformed header is rejected with 400.
// A repeat is answered 200 so the bridge stops retrying, and it skips rate
// limiting.
//
// The claim only sticks when the rest of the chain answers 2xx. Any other
// outcome (throttled, queue full, panic) releases it, because the bridge
// will retry with the same id.
func WebhookDedupe(opts DedupeOptions, ledger DeliveryLedger) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}

	return func(c *gin.Context) {
		id := c.GetHeader(HeaderWebhookRequestID)
		if id == "" || ledger == nil {
			c.Next()
			return
		}
		if len(id) > maxLen || !deliveryIDPattern.MatchString(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_delivery_id",
				"message": "invalid " + HeaderWebhookRequestID,
			})
			return
		}

		fresh, err := ledger.ClaimDelivery(c.Request.Context(), id)
		if err != nil {
			lg := LoggerFrom(c)
			lg.Warn().Err(err).Str("delivery_id", id).Msg("delivery claim failed")
			c.Next()
			return
		}
		if !fresh {
			CountDelivery("duplicate")
			c.Set(ctxKeyRateBypass, true)
			c.AbortWithStatusJSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				release(c, ledger, id)
				panic(rec)
			}
		}()
		c.Next()
		if st := c.Writer.Status(); st < 200 || st > 299 {
			release(c, ledger, id)
		}
	}
}

func release(c *gin.Context, ledger DeliveryLedger, id string) {
	ctx := context.WithoutCancel(c.Request.Context())
	if err := ledger.ReleaseDelivery(ctx, id); err != nil {
		lg := LoggerFrom(c)
		lg.Warn().Err(err).Str("delivery_id", id).Msg("delivery release failed")
	}
}
