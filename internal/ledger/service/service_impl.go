package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlement/internal/clock"
	"github.com/smallbiznis/settlement/internal/config"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	marketplacedomain "github.com/smallbiznis/settlement/internal/marketplace/domain"
	obsmetrics "github.com/smallbiznis/settlement/internal/observability/metrics"
	"github.com/smallbiznis/settlement/pkg/db"
	"github.com/smallbiznis/settlement/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSyncBatch = 1000

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        ledgerdomain.Repository
	Marketplace marketplacedomain.Repository
	Settings    *config.SettlementConfigHolder
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        ledgerdomain.Repository
	marketplace marketplacedomain.Repository
	settings    *config.SettlementConfigHolder
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("ledger.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		marketplace: p.Marketplace,
		settings:    p.Settings,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) AppendCredit(ctx context.Context, tx *gorm.DB, in ledgerdomain.CreditInput) (*ledgerdomain.LedgerEntry, bool, error) {
	if in.RecipientID == 0 {
		return nil, false, ledgerdomain.ErrInvalidRecipient
	}
	if in.AmountCents <= 0 {
		return nil, false, ledgerdomain.ErrInvalidAmount
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, false, err
	}
	if in.EarnedAt.IsZero() {
		return nil, false, ledgerdomain.ErrInvalidEarnedAt
	}

	entry := &ledgerdomain.LedgerEntry{
		ID:           s.genID.Generate(),
		RecipientID:  in.RecipientID,
		EntryType:    ledgerdomain.EntryTypeSaleCredit,
		AmountCents:  in.AmountCents,
		Currency:     currency,
		EarnedAt:     ledgerdomain.DateOf(in.EarnedAt),
		SourceLineID: in.SourceLineID,
		CreatedAt:    s.clock.Now().UTC(),
	}

	handle := s.handle(tx)
	var inserted bool
	if in.SourceLineID != nil {
		inserted, err = s.repo.InsertCredit(ctx, handle, entry)
	} else {
		err = s.repo.Insert(ctx, handle, entry)
		inserted = err == nil
	}
	if err != nil {
		return nil, false, err
	}
	if inserted {
		s.obsMetrics.RecordLedgerEntry(ctx, string(ledgerdomain.EntryTypeSaleCredit))
	}
	return entry, inserted, nil
}

func (s *Service) AppendDebit(ctx context.Context, tx *gorm.DB, in ledgerdomain.PayoutEntryInput) (*ledgerdomain.LedgerEntry, error) {
	return s.appendPayoutEntry(ctx, tx, ledgerdomain.EntryTypePayoutDebit, -in.AmountCents, in)
}

func (s *Service) AppendReversal(ctx context.Context, tx *gorm.DB, in ledgerdomain.PayoutEntryInput) (*ledgerdomain.LedgerEntry, error) {
	return s.appendPayoutEntry(ctx, tx, ledgerdomain.EntryTypePayoutDebitReversal, in.AmountCents, in)
}

func (s *Service) appendPayoutEntry(ctx context.Context, tx *gorm.DB, entryType ledgerdomain.EntryType, signed int64, in ledgerdomain.PayoutEntryInput) (*ledgerdomain.LedgerEntry, error) {
	if in.RecipientID == 0 {
		return nil, ledgerdomain.ErrInvalidRecipient
	}
	if in.PayoutID == 0 {
		return nil, ledgerdomain.ErrInvalidPayout
	}
	if in.ClaimID == 0 {
		return nil, ledgerdomain.ErrInvalidClaim
	}
	if in.AmountCents <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	earnedAt := in.EarnedAt
	if earnedAt.IsZero() {
		earnedAt = now
	}
	payoutID := in.PayoutID
	claimID := in.ClaimID
	entry := &ledgerdomain.LedgerEntry{
		ID:             s.genID.Generate(),
		RecipientID:    in.RecipientID,
		EntryType:      entryType,
		AmountCents:    signed,
		Currency:       currency,
		EarnedAt:       ledgerdomain.DateOf(earnedAt),
		LinkedPayoutID: &payoutID,
		LinkedClaimID:  &claimID,
		CreatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.handle(tx), entry); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, ledgerdomain.ErrDuplicateEntry
		}
		return nil, err
	}
	s.obsMetrics.RecordLedgerEntry(ctx, string(entryType))
	return entry, nil
}

func (s *Service) SumCredits(ctx context.Context, recipientID snowflake.ID, from, to time.Time) (int64, error) {
	if recipientID == 0 {
		return 0, ledgerdomain.ErrInvalidRecipient
	}
	from = ledgerdomain.DateOf(from)
	to = ledgerdomain.DateOf(to)
	if from.After(to) {
		return 0, ledgerdomain.ErrInvalidWindow
	}
	return s.repo.SumCredits(ctx, s.db, recipientID, from, to)
}

func (s *Service) SumDebitsForClaim(ctx context.Context, claimID snowflake.ID) (int64, error) {
	if claimID == 0 {
		return 0, ledgerdomain.ErrInvalidClaim
	}
	return s.repo.SumForClaim(ctx, s.db, claimID)
}

func (s *Service) ListEntries(ctx context.Context, recipientID snowflake.ID, pageToken string, limit int) ([]ledgerdomain.LedgerEntry, string, bool, error) {
	if recipientID == 0 {
		return nil, "", false, ledgerdomain.ErrInvalidRecipient
	}
	if limit <= 0 || limit > 250 {
		limit = 50
	}

	cursor, err := pagination.DecodeCursor(pageToken)
	if err != nil {
		return nil, "", false, err
	}
	var afterID *snowflake.ID
	if cursor != nil {
		parsed, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, "", false, pagination.ErrInvalidCursor
		}
		afterID = &parsed
	}

	items, err := s.repo.ListByRecipient(ctx, s.db, recipientID, afterID, limit+1)
	if err != nil {
		return nil, "", false, err
	}
	page, info := pagination.BuildCursorPageInfo(items, limit, func(e ledgerdomain.LedgerEntry) string {
		return e.ID.String()
	})
	return page, info.NextPageToken, info.HasMore, nil
}

// SyncSaleCredits appends one sale_credit per verified sale line that has not
// been credited yet, reading the feed in pages of limit lines. Reruns are
// no-ops thanks to the per-line unique key, and a line that fails to credit
// is skipped for the rest of the run.
func (s *Service) SyncSaleCredits(ctx context.Context, limit int) (*ledgerdomain.SyncResult, error) {
	if limit <= 0 || limit > maxSyncBatch {
		return nil, ledgerdomain.ErrInvalidSyncLimit
	}

	currency := s.settings.Get().Payout.DefaultCurrency
	result := &ledgerdomain.SyncResult{}
	var afterID *snowflake.ID
	for {
		lines, err := s.marketplace.ListUncreditedSaleLines(ctx, s.db, afterID, limit)
		if err != nil {
			return nil, err
		}
		result.Scanned += len(lines)

		for _, line := range lines {
			if !line.IsSuccessful() || line.SubtotalCents <= 0 {
				continue
			}
			lineID := line.ID
			_, inserted, err := s.AppendCredit(ctx, nil, ledgerdomain.CreditInput{
				RecipientID:  line.MerchantID,
				AmountCents:  line.SubtotalCents,
				Currency:     currency,
				EarnedAt:     line.OrderedAt,
				SourceLineID: &lineID,
			})
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.log.Warn("failed to credit sale line",
					zap.String("sale_line_id", line.ID.String()),
					zap.String("recipient_id", line.MerchantID.String()),
					zap.Error(err),
				)
				result.Failed++
				continue
			}
			if inserted {
				result.Credited++
			}
		}

		if len(lines) < limit {
			break
		}
		lastID := lines[len(lines)-1].ID
		afterID = &lastID
	}

	s.log.Info("sale credits synced",
		zap.Int("scanned", result.Scanned),
		zap.Int("credited", result.Credited),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func normalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return "", ledgerdomain.ErrInvalidCurrency
	}
	return currency, nil
}
