// Product FAQ search tool
package faq

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/tools"
)

const ToolIDSearchFAQ tools.ToolID = "search_faq"

func init() {
	tools.Register(tools.ToolDefinition{
		ID:          ToolIDSearchFAQ,
		Name:        "search_faq",
		Description: "Search product documentation for how the platform works.",
		Category:    tools.CategoryFAQ,
		Scope:       tools.ScopeBoth,
	}, newSearchFAQTool)
}

type SearchFAQInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type SearchFAQOutput struct {
	Entries []tools.FAQEntry `json:"entries"`
}

func newSearchFAQTool(tc *tools.ToolContext) tool.InvokableTool {
	source := tc.Source

	return utils.NewTool(&schema.ToolInfo{
		Name: "search_faq",
		Desc: "Search product documentation: fees, settlement, features, troubleshooting.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Search terms.",
				Required: true,
			},
			"limit": {
				Type: schema.Integer,
				Desc: "Maximum entries to return. Defaults to 3.",
			},
		}),
	}, func(ctx context.Context, input *SearchFAQInput) (*SearchFAQOutput, error) {
		entries, err := source.SearchFAQ(ctx, input.Query, input.Limit)
		if err != nil {
			return nil, err
		}
		return &SearchFAQOutput{Entries: entries}, nil
	})
}
