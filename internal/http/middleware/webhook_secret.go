package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// codeUnauthorized is the ErrorResponse code for a rejected secret.
const codeUnauthorized = "unauthorized"

// WebhookSecret rejects requests whose X-Telegram-Bot-Api-Secret-Token header
// does not match secret with 401. An empty secret disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := []byte(c.GetHeader(HeaderWebhookSecret))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			LoggerFrom(c).Warn().Str("client_ip", c.ClientIP()).Msg("webhook secret mismatch")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       codeUnauthorized,
				"message":    "invalid webhook secret",
			})
			return
		}
		c.Next()
	}
}
