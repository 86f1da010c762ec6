package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/eroom/internal/audit/domain"
	"github.com/smallbiznis/eroom/internal/auditcontext"
	obscontext "github.com/smallbiznis/eroom/internal/observability/context"
)

const (
	HeaderActorType = "X-Actor-Type"
	HeaderActorID   = "X-Actor-ID"

	sourceWeb   = "web"
	sourceAdmin = "admin"
)

// ActorContext puts the caller identity from the actor headers on the request
// context, falling back to defaultType when the header is missing or unknown.
// Authentication happens in front of this service.
func ActorContext(defaultType auditdomain.ActorType, source string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorType := auditdomain.ActorType(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorType))))
		if !actorType.Valid() {
			actorType = defaultType
		}
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))

		ctx := c.Request.Context()
		ctx = auditcontext.WithActor(ctx, string(actorType), actorID)
		ctx = auditcontext.WithSource(ctx, source)
		ctx = obscontext.WithActor(ctx, string(actorType), actorID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
