package models

import (
	"time"
)

type Comment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PostID     uint      `gorm:"not null;index" json:"post_id"`
	Post       Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	User       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	Score      int       `gorm:"default:0;not null" json:"score"`
	IsAccepted bool      `gorm:"default:false;not null" json:"is_accepted"`
	CreatedAt  time.Time `json:"created_at"`

	// Not persisted, filled when rendering responses.
	BodyHTML string `gorm:"-" json:"body_html,omitempty"`
}
