// Account standing tool
package account

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/tools"
)

const ToolIDAccountProfile tools.ToolID = "get_account_profile"

func init() {
	tools.Register(tools.ToolDefinition{
		ID:          ToolIDAccountProfile,
		Name:        "get_account_profile",
		Description: "Fetch the merchant's account profile, settlement setup, and compliance status.",
		Category:    tools.CategoryAccount,
		Scope:       tools.ScopeBoth,
	}, newAccountProfileTool)
}

type AccountProfileInput struct{}

func newAccountProfileTool(tc *tools.ToolContext) tool.InvokableTool {
	source := tc.Source
	userID := tc.UserID

	return utils.NewTool(&schema.ToolInfo{
		Name:        "get_account_profile",
		Desc:        "Fetch the merchant's account profile: business details, settlement bank and cycle, compliance status.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, func(ctx context.Context, _ *AccountProfileInput) (*tools.AccountProfile, error) {
		return source.AccountProfile(ctx, userID)
	})
}
