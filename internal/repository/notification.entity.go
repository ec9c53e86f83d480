package repository

import (
	"time"

	"github.com/ikimina/tontine-gateway/internal/model"
)

type NotificationEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64     `db:"user_id"    gorm:"column:user_id;not null;index"`
	Title     string    `db:"title"      gorm:"column:title;not null"`
	Message   string    `db:"message"    gorm:"column:message;not null"`
	Type      string    `db:"type"       gorm:"column:type;not null"`
	IsRead    bool      `db:"is_read"    gorm:"column:is_read;not null;default:false"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (NotificationEntity) TableName() string {
	return "notifications"
}

func toNotificationEntity(n *model.Notification) *NotificationEntity {
	if n == nil {
		return nil
	}
	return &NotificationEntity{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func toNotificationModel(e *NotificationEntity) *model.Notification {
	if e == nil {
		return nil
	}
	return &model.Notification{
		ID:        e.ID,
		UserID:    e.UserID,
		Title:     e.Title,
		Message:   e.Message,
		Type:      e.Type,
		IsRead:    e.IsRead,
		CreatedAt: e.CreatedAt,
	}
}

func toNotificationModels(entities []*NotificationEntity) []*model.Notification {
	if entities == nil {
		return nil
	}
	models := make([]*model.Notification, len(entities))
	for i, e := range entities {
		models[i] = toNotificationModel(e)
	}
	return models
}
