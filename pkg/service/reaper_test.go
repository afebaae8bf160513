package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/db"
)

func TestReaper_SweepRemovesExpired(t *testing.T) {
	store := newTestStore(t)

	expired := seedConversation(t, store, "user-a")
	require.NoError(t, store.SaveConversationFields(expired.ID, map[string]interface{}{
		"expires_at": time.Now().Add(-time.Hour),
	}))
	seedUserMessage(t, store, expired.ID, time.Now().Add(-2*time.Hour))
	alive := seedConversation(t, store, "user-a")

	reaper := NewReaper(store, time.Hour)
	reaper.sweep()

	_, err := store.FindByIDAndUser(expired.ID, "user-a")
	require.ErrorIs(t, err, db.ErrNotFound)
	_, err = store.FindByIDAndUser(alive.ID, "user-a")
	require.NoError(t, err)

	messages, err := store.FindMessages(expired.ID)
	require.NoError(t, err)
	require.Empty(t, messages)
}
