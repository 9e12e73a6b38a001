package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions adds headers to mask on top of Authorization, Cookie and
// Set-Cookie.
type RedactOptions struct {
	MaskHeaders []string
	// MaxQuery caps the logged query length; <= 0 means 2048.
	MaxQuery int
}

var (
	// WhatsApp addresses: 5511999999999@c.us, …@s.whatsapp.net, 1203…-…@g.us.
	jidRE   = regexp.MustCompile(`(?i)\b[0-9][0-9\-]{5,}@(?:c\.us|s\.whatsapp\.net|g\.us|lid)\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\+?\b\d[\d .\-]{8,}\d\b`)
)

// Redact masks chat addresses, e-mail addresses and phone numbers in s.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = jidRE.ReplaceAllString(s, "[REDACTED:jid]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger installs a request-scoped logger (see LoggerFrom) and
// writes one access log line per request with identifiers scrubbed from the
// query and headers. Bodies are never logged.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]bool{"authorization": true, "cookie": true, "set-cookie": true}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = true
		}
	}
	maxQuery := opts.MaxQuery
	if maxQuery <= 0 {
		maxQuery = 2048
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if masked[strings.ToLower(k)] {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = Redact(strings.Join(vv, ", "))
		}

		l := log.With().
			Str("request_id", requestIDOf(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("query", truncate(Redact(c.Request.URL.RawQuery), maxQuery)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
