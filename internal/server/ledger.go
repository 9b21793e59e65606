package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/settlement/pkg/db/pagination"
	"go.uber.org/zap"
)

const defaultSyncLimit = 500

func (s *Server) ListLedgerEntries(c *gin.Context) {
	recipientID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid merchant id"))
		return
	}

	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entries, next, hasMore, err := s.ledgerSvc.ListEntries(c.Request.Context(), recipientID, query.PageToken, query.PageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	views := make([]ledgerEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, toLedgerEntryView(entry))
	}

	c.JSON(http.StatusOK, gin.H{
		"data": views,
		"page_info": pagination.PageInfo{
			NextPageToken: next,
			HasMore:       hasMore,
		},
	})
}

type syncCreditsRequest struct {
	Limit int `json:"limit"`
}

func (s *Server) SyncCredits(c *gin.Context) {
	var req syncCreditsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	if req.Limit == 0 {
		req.Limit = defaultSyncLimit
	}

	resp, err := s.ledgerSvc.SyncSaleCredits(c.Request.Context(), req.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("sale credits synced",
		zap.String("actor", actorFromContext(c)),
		zap.Int("scanned", resp.Scanned),
		zap.Int("credited", resp.Credited),
	)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
