package domain

import "errors"

var (
	ErrInvalidRecipient = errors.New("invalid_recipient")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidCurrency  = errors.New("invalid_currency")
	ErrInvalidEarnedAt  = errors.New("invalid_earned_at")
	ErrInvalidPayout    = errors.New("invalid_payout")
	ErrInvalidClaim     = errors.New("invalid_claim")
	ErrInvalidWindow    = errors.New("invalid_window")
	ErrDuplicateEntry   = errors.New("duplicate_ledger_entry")
	ErrInvalidSyncLimit = errors.New("invalid_sync_limit")
)
