package repository

import (
	"context"
	"errors"

	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/ikimina/tontine-gateway/pkg/pg"
	"gorm.io/gorm"
)

type LoanRepository struct {
	*pg.DB
}

func NewLoanRepository(db *pg.DB) *LoanRepository {
	return &LoanRepository{
		db,
	}
}

func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*model.Loan, error) {
	var entity LoanEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toLoanModel(&entity), nil
}

// GetApproved returns the oldest approved loan of the user in the tontine.
func (r *LoanRepository) GetApproved(ctx context.Context, userID, tontineID int64) (*model.Loan, error) {
	var entity LoanEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ? AND tontine_id = ? AND status = ?", userID, tontineID, model.LoanStatusApproved).
		Order("created_at ASC").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toLoanModel(&entity), nil
}

// ApplyRepayment credits a confirmed repayment against the loan and flips
// the loan to repaid once the full amount is covered.
func (r *LoanRepository) ApplyRepayment(ctx context.Context, id int64, amount int64) error {
	res := r.Write(ctx).WithContext(ctx).Model(&LoanEntity{}).
		Where("id = ?", id).
		Update("amount_repaid", gorm.Expr("amount_repaid + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return r.Write(ctx).WithContext(ctx).Model(&LoanEntity{}).
		Where("id = ? AND amount_repaid >= amount AND status = ?", id, model.LoanStatusApproved).
		Update("status", model.LoanStatusRepaid).Error
}
