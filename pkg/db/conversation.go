// Database models for assistant conversations
package db

import "time"

// Conversation modes
const (
	ModeGlobal = "global"
	ModePage   = "page"
)

// Conversation represents an assistant conversation owned by a dashboard user.
//
// Mode and the page context are set at creation and never change. A page
// conversation always carries both resource fields; a global conversation
// carries neither.
type Conversation struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	UserID string `json:"user_id" gorm:"index;size:36;not null"`
	Title  string `json:"title" gorm:"size:200;default:'New conversation'"`

	Mode             string  `json:"mode" gorm:"size:10;not null;default:'global'"` // global, page
	PageResourceType *string `json:"page_resource_type,omitempty" gorm:"size:50"`
	PageResourceID   *string `json:"page_resource_id,omitempty" gorm:"size:100"`

	// Summarization lifecycle. Messages at or before the watermark are
	// represented only by Summary. TotalTokensUsed is reset to zero on each
	// successful summarization; once SummaryCount reaches the configured cap
	// the conversation is closed.
	IsClosed                bool    `json:"is_closed" gorm:"default:false"`
	SummaryCount            int     `json:"summary_count" gorm:"default:0"`
	Summary                 *string `json:"summary,omitempty" gorm:"type:text"`
	PreviousSummary         *string `json:"previous_summary,omitempty" gorm:"type:text"`
	LastSummarizedMessageID *string `json:"last_summarized_message_id,omitempty" gorm:"size:36"`
	TotalTokensUsed         int     `json:"total_tokens_used" gorm:"default:0"`

	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at" gorm:"index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// PageContext identifies the dashboard resource a page conversation is
// pinned to.
type PageContext struct {
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
}

// PageContext returns the pinned resource, or nil for global conversations.
func (c *Conversation) PageContext() *PageContext {
	if c.Mode != ModePage || c.PageResourceType == nil || c.PageResourceID == nil {
		return nil
	}
	return &PageContext{ResourceType: *c.PageResourceType, ResourceID: *c.PageResourceID}
}

// SummaryText returns the rolling summary, or "" when unset.
func (c *Conversation) SummaryText() string {
	if c.Summary == nil {
		return ""
	}
	return *c.Summary
}

// PreviousSummaryText returns the carried-over summary, or "" when unset.
func (c *Conversation) PreviousSummaryText() string {
	if c.PreviousSummary == nil {
		return ""
	}
	return *c.PreviousSummary
}
