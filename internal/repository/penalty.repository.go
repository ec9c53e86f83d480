package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/ikimina/tontine-gateway/pkg/pg"
	"gorm.io/gorm"
)

type PenaltyRepository struct {
	*pg.DB
}

func NewPenaltyRepository(db *pg.DB) *PenaltyRepository {
	return &PenaltyRepository{
		db,
	}
}

func (r *PenaltyRepository) GetByID(ctx context.Context, id int64) (*model.Penalty, error) {
	var entity PenaltyEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toPenaltyModel(&entity), nil
}

// MarkPaid flips an unpaid penalty to paid. Reports whether the transition
// happened so a replayed confirmation does not double-settle.
func (r *PenaltyRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time) (bool, error) {
	res := r.Write(ctx).WithContext(ctx).Model(&PenaltyEntity{}).
		Where("id = ? AND status = ?", id, model.PenaltyStatusUnpaid).
		Updates(map[string]interface{}{
			"status":  model.PenaltyStatusPaid,
			"paid_at": paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
