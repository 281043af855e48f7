package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origin rejects websocket handshakes from browsers on unlisted origins.
// An empty allowlist permits everything (local development, native apps
// that send no Origin header).
func Origin(allowed []string) gin.HandlerFunc {
	allow := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(strings.TrimSuffix(o, "/"))
		if o != "" {
			allow[o] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		if len(allow) == 0 {
			c.Next()
			return
		}
		origin := strings.TrimSuffix(c.GetHeader("Origin"), "/")
		if origin != "" {
			if _, ok := allow[origin]; !ok {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}
		c.Next()
	}
}
