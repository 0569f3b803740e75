// README: Session guard; rejects requests while no unexpired sign-in is stored.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SessionChecker interface {
	SessionValid(ctx context.Context) bool
}

func RequireSession(checker SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !checker.SessionValid(c.Request.Context()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		c.Next()
	}
}
