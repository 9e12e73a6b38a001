package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions controls SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests.
	EnableHSTS bool
	HSTSMaxAge time.Duration
	NoStore    bool
}

// SecurityHeaders sets baseline hardening headers on every response.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 180 * 24 * time.Hour
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(requestIDHeader) != "" {
			exposeHeader(h, requestIDHeader)
		}
		c.Next()
	}
}

func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	switch {
	case cur == "":
		h.Set(key, name)
	case !strings.Contains(strings.ToLower(cur), strings.ToLower(name)):
		h.Set(key, cur+", "+name)
	}
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
