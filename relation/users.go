// Package relation holds the relationship ledgers (friend requests, blocks,
// contact requests) and the read façade that derives the status between two
// users. Every operation takes the acting user explicitly.
package relation

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuganosora/neighborly/apperr"
	"github.com/kasuganosora/neighborly/model"
	"gorm.io/gorm"
)

// errUserNotFound is shared by every path that must not reveal whether the
// user is missing, inactive or hidden by a block.
func errUserNotFound() error { return apperr.InvalidArgument("user not found") }

// loadActiveUser returns the user when it exists and is active, nil otherwise.
func loadActiveUser(ctx context.Context, conn *gorm.DB, id int64) (*model.User, error) {
	var u model.User
	err := conn.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load user %d: %w", id, err))
	}
	return &u, nil
}

// blockedBetween reports whether a block exists in either direction.
func blockedBetween(ctx context.Context, conn *gorm.DB, a, b int64) (bool, error) {
	var n int64
	err := conn.WithContext(ctx).Model(&model.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&n).Error
	if err != nil {
		return false, apperr.Internal(fmt.Errorf("check block %d/%d: %w", a, b, err))
	}
	return n > 0, nil
}

// blockedSet returns every user hidden from userID by a block in either direction.
func blockedSet(ctx context.Context, conn *gorm.DB, userID int64) (map[int64]bool, error) {
	var rows []model.UserBlock
	err := conn.WithContext(ctx).
		Where("blocker_id = ? OR blocked_id = ?", userID, userID).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list blocks for %d: %w", userID, err))
	}
	out := make(map[int64]bool, len(rows))
	for _, r := range rows {
		if r.BlockerID == userID {
			out[r.BlockedID] = true
		} else {
			out[r.BlockerID] = true
		}
	}
	return out, nil
}

// Direction selects incoming or outgoing requests in list calls.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// ParseDirection accepts "in" and "out"; empty means "in".
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", DirectionIn:
		return DirectionIn, nil
	case DirectionOut:
		return DirectionOut, nil
	default:
		return "", apperr.InvalidArgument("direction must be in or out")
	}
}
