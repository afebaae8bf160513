package tools

import (
	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
)

// ToolContext carries the per-request bindings a tool factory needs. Tools
// never receive the user id from model output; it is bound here so every data
// lookup is scoped to the authenticated caller.
type ToolContext struct {
	UserID      string
	PageContext *db.PageContext

	Source DashboardSource
}
