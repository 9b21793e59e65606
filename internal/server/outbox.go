package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const defaultPendingEventsLimit = 100

func (s *Server) ListPendingEvents(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be an integer"))
		return
	}
	if limit == 0 {
		limit = defaultPendingEventsLimit
	}

	pending, err := s.outbox.ListPending(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pending})
}

type ackEventsRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) AckEvents(c *gin.Context) {
	var req ackEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ids := make([]snowflake.ID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := parseSnowflakeID(raw)
		if err != nil {
			AbortWithError(c, newValidationError("ids", "invalid_id", "ids must be event ids"))
			return
		}
		ids = append(ids, id)
	}

	published, err := s.outbox.MarkPublished(c.Request.Context(), ids)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"published": published}})
}
