package model

import "time"

// Session binds one issued token to a user. Deleting the row revokes it.
type Session struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index:idx_session_user;not null" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;size:512;not null" json:"-"`
	Device    string    `gorm:"size:128" json:"device"`
	IP        string    `gorm:"size:45" json:"ip"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	ExpiresAt time.Time `gorm:"index:idx_session_expires;not null" json:"expires_at"`
}

// Live reports whether the session is usable at now.
func (s *Session) Live(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
