// Dashboard insight tools: revenue and transaction lookups
package dashboard

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/tools"
)

// Tool IDs
const (
	ToolIDRevenueSummary     tools.ToolID = "get_revenue_summary"
	ToolIDSearchTransactions tools.ToolID = "search_transactions"
	ToolIDTransactionDetails tools.ToolID = "get_transaction_details"
)

func init() {
	tools.Register(tools.ToolDefinition{
		ID:          ToolIDRevenueSummary,
		Name:        "get_revenue_summary",
		Description: "Summarize the merchant's revenue over a trailing number of days.",
		Category:    tools.CategoryInsight,
		Scope:       tools.ScopeBoth,
	}, newRevenueSummaryTool)

	tools.Register(tools.ToolDefinition{
		ID:          ToolIDSearchTransactions,
		Name:        "search_transactions",
		Description: "Search the merchant's transactions by status, reference, or customer.",
		Category:    tools.CategoryInsight,
		Scope:       tools.ScopeBoth,
	}, newSearchTransactionsTool)

	tools.Register(tools.ToolDefinition{
		ID:          ToolIDTransactionDetails,
		Name:        "get_transaction_details",
		Description: "Fetch one transaction by id or reference.",
		Category:    tools.CategoryInsight,
		Scope:       tools.ScopeBoth,
	}, newTransactionDetailsTool)
}

// ========== Revenue summary ==========

type RevenueSummaryInput struct {
	Days int `json:"days,omitempty"`
}

func newRevenueSummaryTool(tc *tools.ToolContext) tool.InvokableTool {
	source := tc.Source
	userID := tc.UserID

	return utils.NewTool(&schema.ToolInfo{
		Name: "get_revenue_summary",
		Desc: "Summarize the merchant's revenue over a trailing number of days: gross volume, transaction count, and success rate.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"days": {
				Type: schema.Integer,
				Desc: "Trailing window in days. Defaults to 7.",
			},
		}),
	}, func(ctx context.Context, input *RevenueSummaryInput) (*tools.RevenueSummary, error) {
		return source.RevenueSummary(ctx, userID, input.Days)
	})
}

// ========== Transaction search ==========

type SearchTransactionsInput struct {
	Status    string `json:"status,omitempty"`
	Reference string `json:"reference,omitempty"`
	Customer  string `json:"customer,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type SearchTransactionsOutput struct {
	Transactions []tools.Transaction `json:"transactions"`
	Count        int                 `json:"count"`
}

func newSearchTransactionsTool(tc *tools.ToolContext) tool.InvokableTool {
	source := tc.Source
	userID := tc.UserID

	return utils.NewTool(&schema.ToolInfo{
		Name: "search_transactions",
		Desc: "Search the merchant's transactions. All filters are optional; results are most recent first.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"status": {
				Type: schema.String,
				Desc: "Filter by status.",
				Enum: []string{"success", "failed", "pending", "abandoned"},
			},
			"reference": {
				Type: schema.String,
				Desc: "Filter by (partial) transaction reference.",
			},
			"customer": {
				Type: schema.String,
				Desc: "Filter by (partial) customer email.",
			},
			"limit": {
				Type: schema.Integer,
				Desc: "Maximum results to return. Defaults to 10, capped at 50.",
			},
		}),
	}, func(ctx context.Context, input *SearchTransactionsInput) (*SearchTransactionsOutput, error) {
		txns, err := source.SearchTransactions(ctx, userID, tools.TransactionQuery{
			Status:    input.Status,
			Reference: input.Reference,
			Customer:  input.Customer,
			Limit:     input.Limit,
		})
		if err != nil {
			return nil, err
		}
		return &SearchTransactionsOutput{Transactions: txns, Count: len(txns)}, nil
	})
}

// ========== Transaction details ==========

type TransactionDetailsInput struct {
	TransactionID string `json:"transaction_id"`
}

func newTransactionDetailsTool(tc *tools.ToolContext) tool.InvokableTool {
	source := tc.Source
	userID := tc.UserID
	pageContext := tc.PageContext

	return utils.NewTool(&schema.ToolInfo{
		Name: "get_transaction_details",
		Desc: "Fetch one of the merchant's transactions by id or reference.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"transaction_id": {
				Type:     schema.String,
				Desc:     "Transaction id or reference.",
				Required: true,
			},
		}),
	}, func(ctx context.Context, input *TransactionDetailsInput) (*tools.Transaction, error) {
		id := input.TransactionID
		// In a pinned transaction conversation the model may omit the id.
		if id == "" && pageContext != nil && pageContext.ResourceType == "transaction" {
			id = pageContext.ResourceID
		}
		if id == "" {
			return nil, fmt.Errorf("transaction_id is required")
		}
		return source.TransactionDetails(ctx, userID, id)
	})
}
