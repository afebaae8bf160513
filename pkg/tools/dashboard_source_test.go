package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticSource_RevenueSummary(t *testing.T) {
	source := NewStaticDashboardSource()

	summary, err := source.RevenueSummary(context.Background(), "user-a", 7)
	require.NoError(t, err)
	require.Equal(t, 7, summary.Days)
	// Only successful transactions count toward gross volume.
	require.Equal(t, int64(1250000+987500), summary.GrossVolume)
	require.Equal(t, 3, summary.TransactionCount)

	// Zero days falls back to the default window.
	summary, err = source.RevenueSummary(context.Background(), "user-a", 0)
	require.NoError(t, err)
	require.Equal(t, 7, summary.Days)
}

func TestStaticSource_SearchTransactions(t *testing.T) {
	source := NewStaticDashboardSource()

	failed, err := source.SearchTransactions(context.Background(), "user-a", TransactionQuery{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "txn_002", failed[0].ID)

	byCustomer, err := source.SearchTransactions(context.Background(), "user-a", TransactionQuery{Customer: "zainab"})
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)

	limited, err := source.SearchTransactions(context.Background(), "user-a", TransactionQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestStaticSource_TransactionDetails(t *testing.T) {
	source := NewStaticDashboardSource()

	byID, err := source.TransactionDetails(context.Background(), "user-a", "txn_001")
	require.NoError(t, err)
	require.Equal(t, "ref-20260801-001", byID.Reference)

	byRef, err := source.TransactionDetails(context.Background(), "user-a", "ref-20260801-002")
	require.NoError(t, err)
	require.Equal(t, "txn_002", byRef.ID)

	_, err = source.TransactionDetails(context.Background(), "user-a", "txn_999")
	require.Error(t, err)
}

func TestStaticSource_SearchFAQ(t *testing.T) {
	source := NewStaticDashboardSource()

	entries, err := source.SearchFAQ(context.Background(), "settlement schedule", 3)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	none, err := source.SearchFAQ(context.Background(), "kubernetes", 3)
	require.NoError(t, err)
	require.Empty(t, none)
}
