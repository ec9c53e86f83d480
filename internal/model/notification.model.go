package model

import "time"

type Notification struct {
	ID        int64     `json:"id"         db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64     `json:"user_id"    db:"user_id"    gorm:"column:user_id;not null;index"`
	Title     string    `json:"title"      db:"title"      gorm:"column:title;not null"`
	Message   string    `json:"message"    db:"message"    gorm:"column:message;not null"`
	Type      string    `json:"type"       db:"type"       gorm:"column:type;not null"`
	IsRead    bool      `json:"is_read"    db:"is_read"    gorm:"column:is_read;not null;default:false"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }
