package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/settlement/internal/events"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	settlementdomain "github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/smallbiznis/settlement/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fromFieldErrors(fieldErrs),
		}
	}

	var windowErr *settlementdomain.WindowError
	if errors.As(err, &windowErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   windowErr.Field,
					Code:    settlementdomain.CodeInvalidWindow,
					Message: windowErr.Reason,
				},
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, settlementdomain.ErrNotEligible):
		return http.StatusConflict, errorPayload{
			Type:    settlementdomain.CodeNotEligible,
			Message: "merchant has nothing to settle in this window",
		}
	case errors.Is(err, settlementdomain.ErrWindowAlreadyClaimed):
		return http.StatusConflict, errorPayload{
			Type:    settlementdomain.CodeWindowAlreadyClaimed,
			Message: "window already claimed",
		}
	case errors.Is(err, settlementdomain.ErrStale):
		return http.StatusConflict, errorPayload{
			Type:    settlementdomain.CodeStale,
			Message: "preview is stale, preview again",
		}
	case errors.Is(err, settlementdomain.ErrDuplicateReference):
		return http.StatusConflict, errorPayload{
			Type:    settlementdomain.CodeDuplicateReference,
			Message: "payout reference already used",
		}
	case errors.Is(err, settlementdomain.ErrPayoutNotReversible),
		errors.Is(err, settlementdomain.ErrPayoutAlreadyReversed),
		errors.Is(err, settlementdomain.ErrInvalidStatusTransition),
		errors.Is(err, settlementdomain.ErrLocked),
		errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, settlementdomain.ErrStoreUnavailable),
		db.IsUndefinedTableErr(err),
		db.IsStatementTimeoutErr(err),
		db.IsLockTimeoutErr(err),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "settlement store unavailable, retry later",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests, retry later",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger with the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError && payload.Type == "internal_error" {
		code = settlementdomain.ErrorCode(err)
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func fromFieldErrors(errs validator.ValidationErrors) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, ValidationError{
			Field:   toSnakeCase(fe.Field()),
			Code:    fe.Tag(),
			Message: "invalid value",
		})
	}
	return out
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isSettlementValidationError(err),
		isLedgerValidationError(err),
		isEventsValidationError(err):
		return true
	default:
		return false
	}
}

func isSettlementValidationError(err error) bool {
	switch {
	case errors.Is(err, settlementdomain.ErrInvalidWindow),
		errors.Is(err, settlementdomain.ErrInvalidRecipient),
		errors.Is(err, settlementdomain.ErrInvalidCurrency),
		errors.Is(err, settlementdomain.ErrInvalidProvider),
		errors.Is(err, settlementdomain.ErrInvalidMode),
		errors.Is(err, settlementdomain.ErrInvalidLimit),
		errors.Is(err, settlementdomain.ErrInvalidCursor),
		errors.Is(err, settlementdomain.ErrInvalidStatus),
		errors.Is(err, settlementdomain.ErrInvalidPayout):
		return true
	default:
		return false
	}
}

func isLedgerValidationError(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrInvalidRecipient),
		errors.Is(err, ledgerdomain.ErrInvalidWindow),
		errors.Is(err, ledgerdomain.ErrInvalidSyncLimit):
		return true
	default:
		return false
	}
}

func isEventsValidationError(err error) bool {
	return errors.Is(err, events.ErrInvalidLimit) || errors.Is(err, events.ErrInvalidEvent)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, settlementdomain.ErrRecipientNotFound),
		errors.Is(err, settlementdomain.ErrPayoutNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, settlementdomain.ErrInvalidCursor):
		return "invalid_cursor"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_cursor":
		return "cursor"
	case "invalid_sync_limit":
		return "limit"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

func toSnakeCase(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
			prevLower = false
		} else {
			prevLower = true
		}
		b.WriteRune(r)
	}
	return b.String()
}
