package tools

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
)

type noopInput struct{}
type noopOutput struct{}

func noopFactory(name string) ToolFactory {
	return func(_ *ToolContext) tool.InvokableTool {
		return utils.NewTool(&schema.ToolInfo{
			Name:        name,
			Desc:        "test tool",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		}, func(_ context.Context, _ *noopInput) (*noopOutput, error) {
			return &noopOutput{}, nil
		})
	}
}

func TestToolsForMode_ScopeFiltering(t *testing.T) {
	Register(ToolDefinition{ID: "t_both", Name: "t_both", Scope: ScopeBoth}, noopFactory("t_both"))
	Register(ToolDefinition{ID: "t_global", Name: "t_global", Scope: ScopeGlobal}, noopFactory("t_global"))
	Register(ToolDefinition{ID: "t_page", Name: "t_page", Scope: ScopePage}, noopFactory("t_page"))

	names := func(list []tool.BaseTool) []string {
		var out []string
		for _, item := range list {
			info, err := item.Info(context.Background())
			require.NoError(t, err)
			out = append(out, info.Name)
		}
		return out
	}

	globalCtx := &ToolContext{UserID: "user-a"}
	require.ElementsMatch(t, []string{"t_both", "t_global"}, names(ToolsForMode(db.ModeGlobal, globalCtx)))

	pageCtx := &ToolContext{
		UserID:      "user-a",
		PageContext: &db.PageContext{ResourceType: "transaction", ResourceID: "txn_001"},
	}
	require.ElementsMatch(t, []string{"t_both", "t_page"}, names(ToolsForMode(db.ModePage, pageCtx)))

	// A page-scoped tool is withheld when no resource is pinned.
	require.ElementsMatch(t, []string{"t_both"}, names(ToolsForMode(db.ModePage, globalCtx)))
}

func TestGetTool_Unknown(t *testing.T) {
	_, err := GetTool("no_such_tool", &ToolContext{})
	require.Error(t, err)
}
