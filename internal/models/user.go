package models

import (
	"time"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"` // Hash
	Role      string    `gorm:"size:20;default:'user';not null" json:"role"` // user, admin
	Karma     int       `gorm:"default:0;not null" json:"karma"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
