package model

import "time"

// FriendRequestStatus is the state of a FriendRequest.
type FriendRequestStatus string

const (
	FriendPending  FriendRequestStatus = "PENDING"
	FriendAccepted FriendRequestStatus = "ACCEPTED"
	FriendRejected FriendRequestStatus = "REJECTED"
)

// FriendRequest is the single relationship record for an unordered pair of
// users. PairLow/PairHigh hold the pair in canonical order so the unique index
// covers both directions.
type FriendRequest struct {
	ID          int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID    int64               `gorm:"index:idx_fr_sender;not null" json:"sender_id"`
	ReceiverID  int64               `gorm:"index:idx_fr_receiver;not null" json:"receiver_id"`
	PairLow     int64               `gorm:"uniqueIndex:idx_fr_pair;not null" json:"-"`
	PairHigh    int64               `gorm:"uniqueIndex:idx_fr_pair;not null" json:"-"`
	Status      FriendRequestStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	RespondedAt *time.Time          `json:"responded_at"`
}

// SetPair fills PairLow/PairHigh from SenderID/ReceiverID.
func (f *FriendRequest) SetPair() {
	f.PairLow, f.PairHigh = OrderedPair(f.SenderID, f.ReceiverID)
}

// Counterparty returns the user on the other side of the request from userID.
func (f *FriendRequest) Counterparty(userID int64) int64 {
	if f.SenderID == userID {
		return f.ReceiverID
	}
	return f.SenderID
}

// OrderedPair returns a and b with the smaller id first.
func OrderedPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// UserBlock is a directed block. Enforcement treats either direction as hiding
// the pair from each other.
type UserBlock struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BlockerID int64     `gorm:"uniqueIndex:idx_block_pair;not null" json:"blocker_id"`
	BlockedID int64     `gorm:"uniqueIndex:idx_block_pair;index:idx_block_blocked;not null" json:"blocked_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ContactType selects which contact field a ContactRequest asks for.
type ContactType string

const (
	ContactEmail ContactType = "EMAIL"
	ContactPhone ContactType = "PHONE"
)

// Valid reports whether t is a known contact channel.
func (t ContactType) Valid() bool {
	return t == ContactEmail || t == ContactPhone
}

// ContactRequestStatus is the state of a ContactRequest.
type ContactRequestStatus string

const (
	ContactPending  ContactRequestStatus = "PENDING"
	ContactApproved ContactRequestStatus = "APPROVED"
	ContactRejected ContactRequestStatus = "REJECTED"
)

// ContactRequest asks the target to disclose an email or phone number.
// PendingKey is set only while the request is pending; the unique index on it
// allows one pending request per (requester, target, type).
type ContactRequest struct {
	ID          int64                `gorm:"primaryKey;autoIncrement" json:"id"`
	RequesterID int64                `gorm:"index:idx_cr_requester;not null" json:"requester_id"`
	TargetID    int64                `gorm:"index:idx_cr_target;not null" json:"target_id"`
	Type        ContactType          `gorm:"size:8;not null" json:"type"`
	Status      ContactRequestStatus `gorm:"size:16;not null" json:"status"`
	PendingKey  *string              `gorm:"uniqueIndex;size:64" json:"-"`
	CreatedAt   time.Time            `json:"created_at"`
	RespondedAt *time.Time           `json:"responded_at"`
}
