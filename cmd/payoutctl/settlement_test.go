package main

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	settlementdomain "github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchFlagsRequest(t *testing.T) {
	flags := batchFlags{
		mode:        "cutoff",
		cutoff:      "2024-03-05",
		merchantIDs: []string{"1", " 2"},
		limit:       25,
	}

	req, err := flags.request()
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.ModeCutoff, req.Mode)
	require.NotNil(t, req.CutoffDate)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), *req.CutoffDate)
	assert.Equal(t, []snowflake.ID{1, 2}, req.MerchantIDs)
	assert.Equal(t, 25, req.Limit)
}

func TestBatchFlagsRequestRejectsBadInput(t *testing.T) {
	_, err := (&batchFlags{mode: "cutoff", cutoff: "5/3/2024"}).request()
	assert.Error(t, err)

	_, err = (&batchFlags{mode: "settle_all", merchantIDs: []string{"x"}}).request()
	assert.Error(t, err)
}

func TestMergeBatchPages(t *testing.T) {
	merged := mergeBatchPages([]*settlementdomain.BatchResult{
		{Attempted: 2, Created: 1, Failed: 1, Results: make([]settlementdomain.BatchRowResult, 2), NextCursor: "a", HasMore: true},
		{Attempted: 1, Created: 1, Results: make([]settlementdomain.BatchRowResult, 1), NextCursor: "b"},
	})

	assert.Equal(t, 3, merged.Attempted)
	assert.Equal(t, 2, merged.Created)
	assert.Equal(t, 1, merged.Failed)
	assert.Len(t, merged.Results, 3)
	assert.Equal(t, "b", merged.NextCursor)
	assert.False(t, merged.HasMore)
}
