package model

import "time"

// Role is a coarse capability level on a user account.
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// User is a platform account. The relationship core only reads and updates
// Active, Frozen, FrozenAt, LastLoginAt and LastActiveAt.
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:128;not null" json:"email"`
	Phone        *string    `gorm:"size:32" json:"-"`
	PasswordHash string     `gorm:"size:72;not null" json:"-"`
	DisplayName  string     `gorm:"size:64" json:"display_name"`
	Role         Role       `gorm:"size:16;default:'USER';not null" json:"role"`
	Active       bool       `gorm:"not null" json:"active"`
	Frozen       bool       `gorm:"not null" json:"frozen"`
	FrozenAt     *time.Time `json:"frozen_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastActiveAt *time.Time `json:"last_active_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
