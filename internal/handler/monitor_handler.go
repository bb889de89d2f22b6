package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
)

const (
	keepAliveInterval = 30 * time.Second
	snapshotTimeout   = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams the school's live domain-event feed to admin
// dashboards over SSE.
type MonitorHandler struct {
	rdb              *redis.Client
	dashboardService *service.DashboardService
	log              zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, dashboardService *service.DashboardService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:              rdb,
		dashboardService: dashboardService,
		log:              log.With().Str("component", "monitor_handler").Logger(),
	}
}

// SchoolEventStream godoc
// GET /api/v1/staff/events/stream
// Sends a dashboard snapshot, then forwards every domain event
// published at the school until the client disconnects.
func (h *MonitorHandler) SchoolEventStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	hasPerm := false
	for _, p := range claims.Permissions {
		if p == "events:monitor" {
			hasPerm = true
			break
		}
	}
	if !hasPerm {
		response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
		return
	}

	scope := claims.Scope()
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

	// Initial snapshot so the dashboard renders before the first event.
	snapCtx, cancel := context.WithTimeout(reqCtx, snapshotTimeout)
	data, err := h.dashboardService.GetDashboardData(snapCtx, scope)
	cancel()
	if err != nil {
		h.log.Warn().Err(err).Int("school_id", scope.SchoolID).Msg("Failed to build feed snapshot")
	} else {
		c.SSEvent("message", gin.H{"type": "snapshot", "data": data})
		c.Writer.Flush()
	}

	channelName := config.CacheKey.SchoolFeedChannel(scope.SchoolID)
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Int("school_id", scope.SchoolID).Int("staff_id", claims.UserID).Msg("Staff attached to school event stream")

	// Pre-allocate a reusable ping payload (never changes)
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Int("school_id", scope.SchoolID).Int("staff_id", claims.UserID).Msg("Staff detached from school event stream")
			return

		case msg := <-ch:
			// Forward raw JSON directly, no deserialization needed.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}
