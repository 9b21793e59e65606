package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/settlement/pkg/db"
	"github.com/smallbiznis/settlement/pkg/db/pagination"
)

var (
	ErrInvalidWindow           = errors.New("invalid_window")
	ErrNotEligible             = errors.New("not_eligible")
	ErrWindowAlreadyClaimed    = errors.New("window_already_claimed")
	ErrStale                   = errors.New("stale")
	ErrStoreUnavailable        = errors.New("store_unavailable")
	ErrInvalidRecipient        = errors.New("invalid_recipient")
	ErrRecipientNotFound       = errors.New("recipient_not_found")
	ErrInvalidCurrency         = errors.New("invalid_currency")
	ErrInvalidProvider         = errors.New("invalid_provider")
	ErrInvalidMode             = errors.New("invalid_mode")
	ErrInvalidLimit            = errors.New("invalid_limit")
	ErrInvalidCursor           = pagination.ErrInvalidCursor
	ErrInvalidStatus           = errors.New("invalid_status")
	ErrInvalidPayout           = errors.New("invalid_payout")
	ErrPayoutNotFound          = errors.New("payout_not_found")
	ErrPayoutNotReversible     = errors.New("payout_not_reversible")
	ErrPayoutAlreadyReversed   = errors.New("payout_already_reversed")
	ErrInvalidStatusTransition = errors.New("invalid_status_transition")
	ErrLocked                  = errors.New("locked")
	ErrDuplicateReference      = errors.New("duplicate_reference")
)

// WindowError names the request field that made a window invalid.
type WindowError struct {
	Field  string
	Reason string
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("invalid_window: %s %s", e.Field, e.Reason)
}

func (e *WindowError) Unwrap() error {
	return ErrInvalidWindow
}

func NewWindowError(field, reason string) error {
	return &WindowError{Field: field, Reason: reason}
}

// Row error codes reported by bulk runs.
const (
	CodeInvalidWindow        = "invalid_window"
	CodeNotEligible          = "not_eligible"
	CodeWindowAlreadyClaimed = "window_already_claimed"
	CodeStale                = "stale"
	CodeStoreUnavailable     = "store_unavailable"
	CodeTimeout              = "timeout"
	CodeLocked               = "locked"
	CodeDuplicateReference   = "duplicate_reference"
	CodeInternal             = "internal"
)

// ErrorCode maps an error to the stable code used in per-row results.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidWindow):
		return CodeInvalidWindow
	case errors.Is(err, ErrNotEligible):
		return CodeNotEligible
	case errors.Is(err, ErrWindowAlreadyClaimed):
		return CodeWindowAlreadyClaimed
	case errors.Is(err, ErrStale):
		return CodeStale
	case errors.Is(err, ErrLocked):
		return CodeLocked
	case errors.Is(err, ErrDuplicateReference):
		return CodeDuplicateReference
	case errors.Is(err, ErrStoreUnavailable), db.IsUndefinedTableErr(err):
		return CodeStoreUnavailable
	case errors.Is(err, context.DeadlineExceeded), db.IsStatementTimeoutErr(err):
		return CodeTimeout
	default:
		return CodeInternal
	}
}
