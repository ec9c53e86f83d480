package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/ikimina/tontine-gateway/pkg/pg"
	"gorm.io/gorm"
)

type PollJobRepository struct {
	*pg.DB
}

func NewPollJobRepository(db *pg.DB) *PollJobRepository {
	return &PollJobRepository{
		db,
	}
}

func (r *PollJobRepository) Create(ctx context.Context, job *model.PollJob) (*model.PollJob, error) {
	entity := toPollJobEntity(job)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toPollJobModel(entity), nil
}

func (r *PollJobRepository) GetByRef(ctx context.Context, ref string) (*model.PollJob, error) {
	var entity PollJobEntity
	err := r.Read(ctx).WithContext(ctx).Where("transaction_ref = ?", ref).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toPollJobModel(&entity), nil
}

// Due returns scheduled jobs whose next_run_at has passed, oldest first.
// The scheduler is a single loop, so no row locking is needed here.
func (r *PollJobRepository) Due(ctx context.Context, now time.Time, limit int) ([]*model.PollJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var entities []*PollJobEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND next_run_at <= ?", model.PollJobStatusScheduled, now).
		Order("next_run_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toPollJobModels(entities), nil
}

// Reschedule bumps the attempt counter and pushes next_run_at forward.
// Called before dispatch so a crashed worker just means the job runs again
// at the next interval instead of being lost.
func (r *PollJobRepository) Reschedule(ctx context.Context, id string, attempts int, nextRunAt time.Time) error {
	return r.Write(ctx).WithContext(ctx).Model(&PollJobEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":    attempts,
			"next_run_at": nextRunAt,
		}).Error
}

func (r *PollJobRepository) MarkDone(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, model.PollJobStatusDone)
}

func (r *PollJobRepository) MarkExhausted(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, model.PollJobStatusExhausted)
}

func (r *PollJobRepository) setStatus(ctx context.Context, id string, status model.PollJobStatus) error {
	res := r.Write(ctx).WithContext(ctx).Model(&PollJobEntity{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
