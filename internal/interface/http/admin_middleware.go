package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yanqian/pave-study/internal/infra/config"
)

// adminMiddleware guards privileged routes with a shared secret header. The
// secret is configured as plaintext or as a bcrypt hash; with neither set
// every request is refused.
func adminMiddleware(cfg config.AdminConfig, logger *slog.Logger) gin.HandlerFunc {
	header := cfg.Header
	if header == "" {
		header = "X-Index-Secret"
	}
	secret := []byte(cfg.Secret)
	hash := []byte(strings.TrimSpace(cfg.SecretHash))
	return func(c *gin.Context) {
		provided := c.GetHeader(header)
		if provided == "" || !secretMatches(provided, secret, hash) {
			logger.Warn("admin secret rejected", "path", c.Request.URL.Path, "ip", c.ClientIP())
			abortWithError(c, NewHTTPError(http.StatusForbidden, "forbidden", "invalid or missing secret", nil))
			return
		}
		c.Next()
	}
}

func secretMatches(provided string, secret, hash []byte) bool {
	if len(hash) > 0 {
		return bcrypt.CompareHashAndPassword(hash, []byte(provided)) == nil
	}
	if len(secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), secret) == 1
}
