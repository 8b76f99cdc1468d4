package relation

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuganosora/neighborly/apperr"
	dbadapter "github.com/kasuganosora/neighborly/db"
	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/model"
	"gorm.io/gorm"
)

// BlockService manages directed blocks. Enforcement elsewhere treats a block
// in either direction as hiding the pair from each other.
type BlockService struct {
	db    *gorm.DB
	hooks *hook.HookCenter
}

// NewBlockService creates a BlockService.
func NewBlockService(db *gorm.DB, hooks *hook.HookCenter) *BlockService {
	return &BlockService{db: db, hooks: hooks}
}

// Block records blockerID → targetID. Blocking twice returns the existing row.
func (s *BlockService) Block(ctx context.Context, blockerID, targetID int64) (*model.UserBlock, error) {
	if blockerID == targetID {
		return nil, apperr.InvalidArgument("cannot block yourself")
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", targetID).Count(&n).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("check block target: %w", err))
	}
	if n == 0 {
		return nil, errUserNotFound()
	}

	if existing, err := s.find(ctx, blockerID, targetID); err != nil || existing != nil {
		return existing, err
	}
	b := &model.UserBlock{BlockerID: blockerID, BlockedID: targetID}
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		if dbadapter.IsDuplicateKey(err) {
			return s.find(ctx, blockerID, targetID)
		}
		return nil, apperr.Internal(fmt.Errorf("create block: %w", err))
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{
		Name: hook.BlockCreated, ActorID: blockerID, TargetID: targetID,
		Detail: map[string]interface{}{"block_id": b.ID},
	})
	return b, nil
}

func (s *BlockService) find(ctx context.Context, blockerID, targetID int64) (*model.UserBlock, error) {
	var b model.UserBlock
	err := s.db.WithContext(ctx).Where("blocker_id = ? AND blocked_id = ?", blockerID, targetID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find block: %w", err))
	}
	return &b, nil
}

// Unblock deletes blockID if blockerID created it. Someone else's block looks
// exactly like a missing one.
func (s *BlockService) Unblock(ctx context.Context, blockerID, blockID int64) error {
	var b model.UserBlock
	err := s.db.WithContext(ctx).Where("id = ? AND blocker_id = ?", blockID, blockerID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("block not found")
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("find block %d: %w", blockID, err))
	}
	if err := s.db.WithContext(ctx).Delete(&b).Error; err != nil {
		return apperr.Internal(fmt.Errorf("delete block %d: %w", blockID, err))
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{
		Name: hook.BlockRemoved, ActorID: blockerID, TargetID: b.BlockedID,
		Detail: map[string]interface{}{"block_id": b.ID},
	})
	return nil
}

// IsBlocked reports whether a block exists between a and b in either direction.
func (s *BlockService) IsBlocked(ctx context.Context, a, b int64) (bool, error) {
	return blockedBetween(ctx, s.db, a, b)
}

// List returns the blocks created by blockerID, newest first.
func (s *BlockService) List(ctx context.Context, blockerID int64) ([]model.UserBlock, error) {
	var out []model.UserBlock
	err := s.db.WithContext(ctx).Where("blocker_id = ?", blockerID).Order("id DESC").Find(&out).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list blocks: %w", err))
	}
	return out, nil
}
