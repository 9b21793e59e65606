package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obsmiddleware "github.com/smallbiznis/settlement/internal/observability/logger"
)

const (
	contextActorIDKey = "actor_id"
	defaultActor      = "admin"
)

// ActorContext stores the operator named in X-Actor-Id for handlers.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(obsmiddleware.ActorHeader))
		if actor == "" {
			actor = defaultActor
		}
		c.Set(contextActorIDKey, actor)
		c.Next()
	}
}

func actorFromContext(c *gin.Context) string {
	if actor := c.GetString(contextActorIDKey); actor != "" {
		return actor
	}
	return defaultActor
}
