package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/qiongbi/card-ledger/internal/api/shared/errors"
	"github.com/qiongbi/card-ledger/internal/logger"
)

// TokenHeader is the header carrying the ingest API token
const TokenHeader = "API-TOKEN-KEY"

// APITokenAuth returns a gin middleware requiring a valid API token in the
// API-TOKEN-KEY header. Used on write endpoints only; the read API is open.
func APITokenAuth(tokens []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := c.GetHeader(TokenHeader)
		if supplied == "" {
			abortUnauthorized(c, "missing "+TokenHeader+" header")
			return
		}

		for _, token := range tokens {
			if token != "" && subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) == 1 {
				c.Next()
				return
			}
		}

		abortUnauthorized(c, "invalid API token")
	}
}

func abortUnauthorized(c *gin.Context, details string) {
	logger.Warn("Authentication failed",
		zap.String("details", details),
		zap.String("path", c.Request.URL.Path),
		zap.String("client_ip", c.ClientIP()),
	)
	apiErr := apierrors.NewUnauthorizedError("Authentication failed", details)
	c.AbortWithStatusJSON(http.StatusUnauthorized, apiErr)
}
