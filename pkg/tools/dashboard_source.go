package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DashboardSource is the read-only data boundary the built-in tools query.
// Every call is scoped to a user id taken from the request, never from model
// output.
type DashboardSource interface {
	RevenueSummary(ctx context.Context, userID string, days int) (*RevenueSummary, error)
	SearchTransactions(ctx context.Context, userID string, query TransactionQuery) ([]Transaction, error)
	TransactionDetails(ctx context.Context, userID, transactionID string) (*Transaction, error)
	AccountProfile(ctx context.Context, userID string) (*AccountProfile, error)
	SearchFAQ(ctx context.Context, query string, limit int) ([]FAQEntry, error)
}

// RevenueSummary aggregates a merchant's takings over a trailing window.
type RevenueSummary struct {
	Days             int    `json:"days"`
	Currency         string `json:"currency"`
	GrossVolume      int64  `json:"gross_volume"`
	TransactionCount int    `json:"transaction_count"`
	SuccessRate      string `json:"success_rate"`
}

// TransactionQuery filters a transaction search.
type TransactionQuery struct {
	Status    string `json:"status,omitempty"`
	Reference string `json:"reference,omitempty"`
	Customer  string `json:"customer,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Transaction is one payment record.
type Transaction struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Customer  string    `json:"customer"`
	Channel   string    `json:"channel"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountProfile is the merchant's account standing.
type AccountProfile struct {
	BusinessName     string `json:"business_name"`
	Country          string `json:"country"`
	SettlementBank   string `json:"settlement_bank"`
	SettlementCycle  string `json:"settlement_cycle"`
	ComplianceStatus string `json:"compliance_status"`
}

// FAQEntry is one product documentation snippet.
type FAQEntry struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ========== Static source ==========

// StaticDashboardSource serves canned data. It backs local development and
// tests; production wires an upstream API client behind the same interface.
type StaticDashboardSource struct {
	Transactions []Transaction
	Profile      AccountProfile
	FAQ          []FAQEntry
}

// NewStaticDashboardSource returns a source pre-filled with a small,
// deterministic data set.
func NewStaticDashboardSource() *StaticDashboardSource {
	now := time.Now()
	return &StaticDashboardSource{
		Transactions: []Transaction{
			{ID: "txn_001", Reference: "ref-20260801-001", Amount: 1250000, Currency: "NGN", Status: "success", Customer: "ada@example.com", Channel: "card", CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "txn_002", Reference: "ref-20260801-002", Amount: 430000, Currency: "NGN", Status: "failed", Customer: "emeka@example.com", Channel: "bank_transfer", CreatedAt: now.Add(-26 * time.Hour)},
			{ID: "txn_003", Reference: "ref-20260801-003", Amount: 987500, Currency: "NGN", Status: "success", Customer: "zainab@example.com", Channel: "card", CreatedAt: now.Add(-50 * time.Hour)},
		},
		Profile: AccountProfile{
			BusinessName:     "Demo Stores Ltd",
			Country:          "NG",
			SettlementBank:   "Demo Bank",
			SettlementCycle:  "T+1",
			ComplianceStatus: "verified",
		},
		FAQ: []FAQEntry{
			{Title: "Transaction fees", Content: "Local card transactions attract 1.5% capped at NGN 2000. International cards attract 3.9%."},
			{Title: "Settlement schedule", Content: "Successful transactions settle to your bank account on the next business day (T+1) by default."},
			{Title: "Failed transactions", Content: "Failed charges are not settled and customers are not debited. Common causes are insufficient funds and declined authorizations."},
		},
	}
}

func (s *StaticDashboardSource) RevenueSummary(_ context.Context, _ string, days int) (*RevenueSummary, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)
	var gross int64
	var total, succeeded int
	for _, txn := range s.Transactions {
		if txn.CreatedAt.Before(since) {
			continue
		}
		total++
		if txn.Status == "success" {
			succeeded++
			gross += txn.Amount
		}
	}
	rate := "n/a"
	if total > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(succeeded)/float64(total)*100)
	}
	return &RevenueSummary{
		Days:             days,
		Currency:         "NGN",
		GrossVolume:      gross,
		TransactionCount: total,
		SuccessRate:      rate,
	}, nil
}

func (s *StaticDashboardSource) SearchTransactions(_ context.Context, _ string, query TransactionQuery) ([]Transaction, error) {
	limit := query.Limit
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	var result []Transaction
	for _, txn := range s.Transactions {
		if query.Status != "" && txn.Status != query.Status {
			continue
		}
		if query.Reference != "" && !strings.Contains(txn.Reference, query.Reference) {
			continue
		}
		if query.Customer != "" && !strings.Contains(txn.Customer, query.Customer) {
			continue
		}
		result = append(result, txn)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *StaticDashboardSource) TransactionDetails(_ context.Context, _ string, transactionID string) (*Transaction, error) {
	for _, txn := range s.Transactions {
		if txn.ID == transactionID || txn.Reference == transactionID {
			t := txn
			return &t, nil
		}
	}
	return nil, fmt.Errorf("transaction %s not found", transactionID)
}

func (s *StaticDashboardSource) AccountProfile(_ context.Context, _ string) (*AccountProfile, error) {
	p := s.Profile
	return &p, nil
}

func (s *StaticDashboardSource) SearchFAQ(_ context.Context, query string, limit int) ([]FAQEntry, error) {
	if limit <= 0 || limit > 10 {
		limit = 3
	}
	terms := strings.Fields(strings.ToLower(query))
	var result []FAQEntry
	for _, entry := range s.FAQ {
		haystack := strings.ToLower(entry.Title + " " + entry.Content)
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				result = append(result, entry)
				break
			}
		}
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}
