package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/middleware"
)

// auditAction publishes an audit.record event for the authenticated
// actor. Fire-and-forget; the audit worker persists the trail.
func auditAction(c *gin.Context, publisher *event.Publisher, action, entityType, entityID string, detail any) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return
	}
	publisher.Audit(c.Request.Context(), claims.Scope(), string(claims.TokenType), claims.UserID,
		action, entityType, entityID, detail)
}
