package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	settlementdomain "github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/smallbiznis/settlement/pkg/db/pagination"
)

func (s *Server) GetEligibility(c *gin.Context) {
	recipientID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid merchant id"))
		return
	}

	resp, err := s.settlementSvc.ResolveEligibility(c.Request.Context(), recipientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toEligibilityView(resp)})
}

func (s *Server) GetApportionment(c *gin.Context) {
	recipientID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid merchant id"))
		return
	}

	from, err := parseDate(c.Query("from"))
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_window", "from must be a date (YYYY-MM-DD)"))
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_window", "to must be a date (YYYY-MM-DD)"))
		return
	}

	resp, err := s.settlementSvc.Apportion(c.Request.Context(), recipientID, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toApportionmentView(*resp)})
}

func (s *Server) PreviewBatch(c *gin.Context) {
	var query struct {
		Mode        string `form:"mode"`
		CutoffDate  string `form:"cutoff_date"`
		MerchantIDs string `form:"merchant_ids"`
		Cursor      string `form:"cursor"`
		Limit       string `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req, err := previewRequestFrom(query.Mode, query.CutoffDate, query.MerchantIDs, query.Cursor, query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.settlementSvc.PreviewBatch(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toPreviewView(resp)})
}

func previewRequestFrom(mode, cutoff, merchantIDs, cursor, limit string) (settlementdomain.PreviewRequest, error) {
	cutoffDate, err := parseOptionalDate(cutoff)
	if err != nil {
		return settlementdomain.PreviewRequest{}, newValidationError("cutoff_date", "invalid_window", "cutoff_date must be a date (YYYY-MM-DD)")
	}
	ids, err := parseSnowflakeIDs(merchantIDs)
	if err != nil {
		return settlementdomain.PreviewRequest{}, newValidationError("merchant_ids", "invalid_recipient", "merchant_ids must be comma separated ids")
	}
	parsedLimit, err := parseOptionalInt(limit)
	if err != nil {
		return settlementdomain.PreviewRequest{}, newValidationError("limit", "invalid_limit", "limit must be an integer")
	}

	return settlementdomain.PreviewRequest{
		Mode:        settlementdomain.Mode(strings.TrimSpace(mode)),
		CutoffDate:  cutoffDate,
		MerchantIDs: ids,
		Cursor:      strings.TrimSpace(cursor),
		Limit:       parsedLimit,
	}, nil
}

type createPayoutRequest struct {
	RecipientID   string `json:"recipient_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Currency      string `json:"currency"`
	Provider      string `json:"provider"`
	Reference     string `json:"reference"`
	Note          string `json:"note"`
	ExpectedCents *int64 `json:"expected_cents"`
}

func (s *Server) CreatePayout(c *gin.Context) {
	var req createPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	recipientID, err := parseSnowflakeID(req.RecipientID)
	if err != nil {
		AbortWithError(c, newValidationError("recipient_id", "invalid_recipient", "invalid recipient_id"))
		return
	}
	from, err := parseDate(req.From)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_window", "from must be a date (YYYY-MM-DD)"))
		return
	}
	to, err := parseDate(req.To)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_window", "to must be a date (YYYY-MM-DD)"))
		return
	}

	resp, err := s.settlementSvc.CreatePayout(c.Request.Context(), settlementdomain.CreatePayoutRequest{
		RecipientID:   recipientID,
		From:          from,
		To:            to,
		Currency:      strings.ToUpper(strings.TrimSpace(req.Currency)),
		Provider:      strings.TrimSpace(req.Provider),
		Reference:     strings.TrimSpace(req.Reference),
		Note:          strings.TrimSpace(req.Note),
		ExpectedCents: req.ExpectedCents,
		CreatedBy:     actorFromContext(c),
		CreatedVia:    settlementdomain.CreatedViaAdminAPI,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": toPayoutView(resp)})
}

type createBatchRequest struct {
	Mode        string   `json:"mode"`
	CutoffDate  string   `json:"cutoff_date"`
	MerchantIDs []string `json:"merchant_ids"`
	Cursor      string   `json:"cursor"`
	Limit       int      `json:"limit"`
	Currency    string   `json:"currency"`
	Provider    string   `json:"provider"`
}

func (s *Server) CreateBatch(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cutoffDate, err := parseOptionalDate(req.CutoffDate)
	if err != nil {
		AbortWithError(c, newValidationError("cutoff_date", "invalid_window", "cutoff_date must be a date (YYYY-MM-DD)"))
		return
	}
	ids, err := parseSnowflakeIDs(strings.Join(req.MerchantIDs, ","))
	if err != nil {
		AbortWithError(c, newValidationError("merchant_ids", "invalid_recipient", "merchant_ids must be ids"))
		return
	}

	resp, err := s.settlementSvc.CreateBatch(c.Request.Context(), settlementdomain.BatchRequest{
		PreviewRequest: settlementdomain.PreviewRequest{
			Mode:        settlementdomain.Mode(strings.TrimSpace(req.Mode)),
			CutoffDate:  cutoffDate,
			MerchantIDs: ids,
			Cursor:      strings.TrimSpace(req.Cursor),
			Limit:       req.Limit,
		},
		Currency:   strings.ToUpper(strings.TrimSpace(req.Currency)),
		Provider:   strings.TrimSpace(req.Provider),
		CreatedBy:  actorFromContext(c),
		CreatedVia: settlementdomain.CreatedViaAdminAPI,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toBatchView(resp)})
}

func (s *Server) GetPayout(c *gin.Context) {
	payoutID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid payout id"))
		return
	}

	resp, err := s.settlementSvc.GetPayout(c.Request.Context(), payoutID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toPayoutView(resp)})
}

func (s *Server) ListPayouts(c *gin.Context) {
	var query struct {
		pagination.Pagination
		RecipientID string `form:"recipient_id"`
		Status      string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	recipientID, err := parseOptionalSnowflakeID(query.RecipientID)
	if err != nil {
		AbortWithError(c, newValidationError("recipient_id", "invalid_recipient", "invalid recipient_id"))
		return
	}

	resp, err := s.settlementSvc.ListPayouts(c.Request.Context(), settlementdomain.ListPayoutsRequest{
		RecipientID: recipientID,
		Status:      settlementdomain.PayoutStatus(strings.TrimSpace(query.Status)),
		PageToken:   query.PageToken,
		Limit:       query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payouts := make([]payoutView, 0, len(resp.Payouts))
	for i := range resp.Payouts {
		payouts = append(payouts, toPayoutView(&resp.Payouts[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"data": payouts,
		"page_info": pagination.PageInfo{
			NextPageToken: resp.NextPageToken,
			HasMore:       resp.HasMore,
		},
	})
}

func (s *Server) ReversePayout(c *gin.Context) {
	payoutID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid payout id"))
		return
	}

	ctx := c.Request.Context()
	if err := s.settlementSvc.ReverseFailedPayout(ctx, payoutID); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.settlementSvc.GetPayout(ctx, payoutID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toPayoutView(resp)})
}

type transitionPayoutRequest struct {
	Status string `json:"status"`
}

func (s *Server) TransitionPayout(c *gin.Context) {
	payoutID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid payout id"))
		return
	}

	var req transitionPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.settlementSvc.TransitionPayout(c.Request.Context(), payoutID, settlementdomain.PayoutStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toPayoutView(resp)})
}
