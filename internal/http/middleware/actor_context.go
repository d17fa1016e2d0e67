package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/iep-backend/internal/platform/ctxutil"
)

const (
	headerActorID   = "X-Actor-Id"
	headerActorRole = "X-Actor-Role"
)

// AttachActorContext carries the caller identity forwarded by the gateway
// into the request context. Authentication happens upstream; requests
// without the headers proceed with no actor and audit rows record empty
// labels.
func AttachActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerActorID))
		if id == "" {
			c.Next()
			return
		}
		ctx := ctxutil.WithActor(c.Request.Context(), &ctxutil.Actor{
			ID:   id,
			Role: strings.TrimSpace(c.GetHeader(headerActorRole)),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set("actor_id", id)
		c.Next()
	}
}
