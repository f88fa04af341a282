package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeAnswer  NotificationType = "answer"
	NotificationTypeComment NotificationType = "comment"
	NotificationTypeMention NotificationType = "mention"
)

// Notification is append-only: rows are created by the dispatcher and
// only the IsRead flag ever changes afterwards.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UserID      uint             `gorm:"not null;index" json:"user_id"` // Receiver
	User        User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Message     string           `gorm:"type:text;not null" json:"message"`
	Type        NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	ReferenceID uint             `gorm:"index" json:"reference_id"` // Triggering post/comment
	IsRead      bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}
