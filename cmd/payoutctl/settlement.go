package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	settlementdomain "github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func eligibilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eligibility [merchant-id]",
		Short: "Show the next settlement window of a merchant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipientID, err := snowflake.ParseString(args[0])
			if err != nil {
				return fmt.Errorf("invalid merchant id %q", args[0])
			}
			return runWithServices(func(ctx context.Context, svc services) error {
				resp, err := svc.Settlement.ResolveEligibility(ctx, recipientID)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
}

type batchFlags struct {
	mode        string
	cutoff      string
	merchantIDs []string
	cursor      string
	limit       int
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", string(settlementdomain.ModeSettleAll), "settle_all or cutoff")
	cmd.Flags().StringVar(&f.cutoff, "cutoff-date", "", "last sale date to include (YYYY-MM-DD), cutoff mode only")
	cmd.Flags().StringSliceVar(&f.merchantIDs, "merchant", nil, "restrict to these merchant ids")
	cmd.Flags().StringVar(&f.cursor, "cursor", "", "resume after this page cursor")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "merchants per page (0 uses the configured default)")
}

func (f *batchFlags) request() (settlementdomain.PreviewRequest, error) {
	req := settlementdomain.PreviewRequest{
		Mode:   settlementdomain.Mode(strings.TrimSpace(f.mode)),
		Cursor: strings.TrimSpace(f.cursor),
		Limit:  f.limit,
	}
	if f.cutoff != "" {
		cutoff, err := parseDate(f.cutoff)
		if err != nil {
			return req, fmt.Errorf("invalid --cutoff-date: %w", err)
		}
		req.CutoffDate = &cutoff
	}
	for _, raw := range f.merchantIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			return req, fmt.Errorf("invalid --merchant %q", raw)
		}
		req.MerchantIDs = append(req.MerchantIDs, id)
	}
	return req, nil
}

func previewCmd() *cobra.Command {
	var flags batchFlags
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview payable amounts per merchant without writing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			return runWithServices(func(ctx context.Context, svc services) error {
				resp, err := svc.Settlement.PreviewBatch(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func createBatchCmd() *cobra.Command {
	var (
		flags    batchFlags
		currency string
		provider string
		allPages bool
	)
	cmd := &cobra.Command{
		Use:   "create-batch",
		Short: "Create payouts for every eligible merchant in a preview page",
		Long: `Create payouts for every eligible merchant in a preview page.

Each merchant is attempted independently; failures are reported per row and
never stop the run. With --all the command follows next_cursor until the
merchant registry is exhausted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			previewReq, err := flags.request()
			if err != nil {
				return err
			}
			return runWithServices(func(ctx context.Context, svc services) error {
				req := settlementdomain.BatchRequest{
					PreviewRequest: previewReq,
					Currency:       strings.ToUpper(strings.TrimSpace(currency)),
					Provider:       strings.TrimSpace(provider),
					CreatedBy:      actor,
					CreatedVia:     settlementdomain.CreatedViaCLI,
				}
				var pages []*settlementdomain.BatchResult
				for {
					resp, err := svc.Settlement.CreateBatch(ctx, req)
					if err != nil {
						return err
					}
					pages = append(pages, resp)
					if !allPages || !resp.HasMore || resp.NextCursor == "" {
						break
					}
					req.Cursor = resp.NextCursor
				}
				if len(pages) == 1 {
					return printJSON(pages[0])
				}
				return printJSON(mergeBatchPages(pages))
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&currency, "currency", "", "payout currency (defaults to the configured currency)")
	cmd.Flags().StringVar(&provider, "provider", "", "payout provider recorded on each payout")
	cmd.Flags().BoolVar(&allPages, "all", false, "follow cursors through every page")
	return cmd
}

func mergeBatchPages(pages []*settlementdomain.BatchResult) *settlementdomain.BatchResult {
	out := &settlementdomain.BatchResult{}
	for _, page := range pages {
		out.Attempted += page.Attempted
		out.Created += page.Created
		out.Failed += page.Failed
		out.Results = append(out.Results, page.Results...)
		out.NextCursor = page.NextCursor
		out.HasMore = page.HasMore
	}
	return out
}

func createCmd() *cobra.Command {
	var (
		from      string
		to        string
		currency  string
		provider  string
		reference string
		note      string
		expected  int64
	)
	cmd := &cobra.Command{
		Use:   "create [merchant-id]",
		Short: "Create a single payout for an explicit window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipientID, err := snowflake.ParseString(args[0])
			if err != nil {
				return fmt.Errorf("invalid merchant id %q", args[0])
			}
			fromDate, err := parseDate(from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			toDate, err := parseDate(to)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			req := settlementdomain.CreatePayoutRequest{
				RecipientID: recipientID,
				From:        fromDate,
				To:          toDate,
				Currency:    strings.ToUpper(strings.TrimSpace(currency)),
				Provider:    strings.TrimSpace(provider),
				Reference:   strings.TrimSpace(reference),
				Note:        strings.TrimSpace(note),
				CreatedBy:   actor,
				CreatedVia:  settlementdomain.CreatedViaCLI,
			}
			if cmd.Flags().Changed("expected-cents") {
				req.ExpectedCents = &expected
			}

			return runWithServices(func(ctx context.Context, svc services) error {
				resp, err := svc.Settlement.CreatePayout(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first sale date of the window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last sale date of the window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&currency, "currency", "", "payout currency")
	cmd.Flags().StringVar(&provider, "provider", "", "payout provider")
	cmd.Flags().StringVar(&reference, "reference", "", "unique payout reference (generated when empty)")
	cmd.Flags().StringVar(&note, "note", "", "free text note")
	cmd.Flags().Int64Var(&expected, "expected-cents", 0, "refuse the payout unless the amount matches this previewed value")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func reverseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reverse [payout-id]",
		Short: "Release the window of a failed or cancelled payout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payoutID, err := snowflake.ParseString(args[0])
			if err != nil {
				return fmt.Errorf("invalid payout id %q", args[0])
			}
			return runWithServices(func(ctx context.Context, svc services) error {
				if err := svc.Settlement.ReverseFailedPayout(ctx, payoutID); err != nil {
					return err
				}
				resp, err := svc.Settlement.GetPayout(ctx, payoutID)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
}

func transitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transition [payout-id] [completed|failed|cancelled]",
		Short: "Move a pending payout to its final status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payoutID, err := snowflake.ParseString(args[0])
			if err != nil {
				return fmt.Errorf("invalid payout id %q", args[0])
			}
			status := settlementdomain.PayoutStatus(strings.ToLower(strings.TrimSpace(args[1])))
			return runWithServices(func(ctx context.Context, svc services) error {
				resp, err := svc.Settlement.TransitionPayout(ctx, payoutID, status)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(value))
}
