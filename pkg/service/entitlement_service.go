package service

import (
	"log/slog"
	"time"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/config"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/models"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/utils"
)

// EntitlementService enforces the per-user message quota over a sliding
// window. The check is a pure read; nothing is persisted on either outcome.
type EntitlementService struct {
	store  *db.Store
	policy *config.AssistantConfig
	logger *slog.Logger
}

// NewEntitlementService creates the entitlement gate.
func NewEntitlementService(store *db.Store, policy *config.AssistantConfig) *EntitlementService {
	return &EntitlementService{
		store:  store,
		policy: policy,
		logger: utils.GetLogger(),
	}
}

// CheckEntitlement returns nil when the user may send another message, or a
// *models.RateLimitError when the trailing-window count has reached the
// configured limit. A user with exactly `limit` messages in the window is
// rejected.
func (s *EntitlementService) CheckEntitlement(userID string) error {
	limit := s.policy.Limit()
	periodHours := s.policy.PeriodHours()

	count, err := s.store.CountUserMessagesInWindow(userID, time.Duration(periodHours)*time.Hour)
	if err != nil {
		return err
	}

	if count >= int64(limit) {
		s.logger.Info("Message limit reached",
			"userID", userID,
			"count", count,
			"limit", limit,
			"periodHours", periodHours)
		return &models.RateLimitError{
			Limit:        limit,
			PeriodHours:  periodHours,
			CurrentCount: int(count),
		}
	}

	return nil
}
