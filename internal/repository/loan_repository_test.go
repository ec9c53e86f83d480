package repository

import (
	"context"
	"testing"

	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanRepository_ApplyRepayment(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewLoanRepository(tdb.DB)
	ctx := context.Background()

	seed := &LoanEntity{
		UserID:    5,
		TontineID: 10,
		Amount:    100_000,
		Status:    string(model.LoanStatusApproved),
	}
	require.NoError(t, tdb.rawDB.Create(seed).Error)

	t.Run("partial repayment keeps loan approved", func(t *testing.T) {
		require.NoError(t, repo.ApplyRepayment(ctx, seed.ID, 40_000))

		loan, err := repo.GetByID(ctx, seed.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(40_000), loan.AmountRepaid)
		assert.Equal(t, model.LoanStatusApproved, loan.Status)
		assert.Equal(t, int64(60_000), loan.Outstanding())
	})

	t.Run("full repayment flips loan to repaid", func(t *testing.T) {
		require.NoError(t, repo.ApplyRepayment(ctx, seed.ID, 60_000))

		loan, err := repo.GetByID(ctx, seed.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100_000), loan.AmountRepaid)
		assert.Equal(t, model.LoanStatusRepaid, loan.Status)
		assert.Equal(t, int64(0), loan.Outstanding())
	})

	t.Run("unknown loan", func(t *testing.T) {
		err := repo.ApplyRepayment(ctx, 9999, 1000)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLoanRepository_GetApproved(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewLoanRepository(tdb.DB)
	ctx := context.Background()

	require.NoError(t, tdb.rawDB.Create(&LoanEntity{UserID: 7, TontineID: 3, Amount: 50_000, Status: string(model.LoanStatusApproved)}).Error)
	require.NoError(t, tdb.rawDB.Create(&LoanEntity{UserID: 7, TontineID: 3, Amount: 20_000, Status: string(model.LoanStatusRepaid)}).Error)

	t.Run("returns approved loan", func(t *testing.T) {
		loan, err := repo.GetApproved(ctx, 7, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(50_000), loan.Amount)
	})

	t.Run("no approved loan", func(t *testing.T) {
		_, err := repo.GetApproved(ctx, 7, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
