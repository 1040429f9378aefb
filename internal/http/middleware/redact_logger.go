package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HeaderWebhookSecret is the header in which the platform echoes the secret
// registered with setWebhook.
const HeaderWebhookSecret = "X-Telegram-Bot-Api-Secret-Token"

var (
	// Bot API tokens look like "<bot id>:<35 url-safe chars>". Deployments
	// often put them in the webhook path.
	botTokenRE = regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{30,}`)
	emailRE    = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
)

func redact(s string) string {
	if s == "" {
		return s
	}
	s = botTokenRE.ReplaceAllString(s, "[REDACTED:token]")
	return emailRE.ReplaceAllString(s, "[REDACTED:email]")
}

// RedactOptions configures RedactingLogger. MaskHeaders are replaced with
// "[REDACTED]" in addition to the built-in sensitive headers; matching is
// case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
}

// RedactingLogger writes one access log line per request with bot tokens and
// e-mail addresses scrubbed from the path, query and headers, and sensitive
// headers fully masked. Bodies are never logged.
//
// It also attaches a request-scoped logger carrying the request id, both to
// the Gin context (see LoggerFrom) and to the request's context.Context so
// that zerolog.Ctx works in the bot and service layers.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization":                      {},
		"cookie":                             {},
		"set-cookie":                         {},
		strings.ToLower(HeaderWebhookSecret): {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		path = redact(path)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(strings.Join(vv, ", "))
		}

		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = asString(c.Value(requestIDKey))
		}
		l := log.With().Str("request_id", reqID).Logger()
		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", redact(c.Request.URL.RawQuery)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
