package repository

import (
	"context"
	"testing"
	"time"

	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPenaltyRepository_MarkPaid(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewPenaltyRepository(tdb.DB)
	ctx := context.Background()

	seed := &PenaltyEntity{
		UserID:    5,
		TontineID: 10,
		Amount:    2000,
		Reason:    "late contribution",
		Status:    string(model.PenaltyStatusUnpaid),
	}
	require.NoError(t, tdb.rawDB.Create(seed).Error)

	t.Run("unpaid transitions to paid", func(t *testing.T) {
		ok, err := repo.MarkPaid(ctx, seed.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)

		p, err := repo.GetByID(ctx, seed.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PenaltyStatusPaid, p.Status)
		require.NotNil(t, p.PaidAt)
	})

	t.Run("second settle is a no-op", func(t *testing.T) {
		ok, err := repo.MarkPaid(ctx, seed.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown penalty", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
