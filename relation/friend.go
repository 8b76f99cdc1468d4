package relation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/neighborly/apperr"
	dbadapter "github.com/kasuganosora/neighborly/db"
	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/model"
	"gorm.io/gorm"
)

// FriendService runs the friend-request state machine
// PENDING → {ACCEPTED, REJECTED}. A pair of users has at most one record.
type FriendService struct {
	db               *gorm.DB
	hooks            *hook.HookCenter
	rejectedCooldown time.Duration
	now              func() time.Time
}

// NewFriendService creates a FriendService. A REJECTED record older than
// rejectedCooldown may be re-opened by a new request; zero disables re-opening.
func NewFriendService(db *gorm.DB, hooks *hook.HookCenter, rejectedCooldown time.Duration) *FriendService {
	return &FriendService{db: db, hooks: hooks, rejectedCooldown: rejectedCooldown, now: time.Now}
}

func errRequestExists() error {
	return apperr.Conflict("a friend request already exists between these users")
}

// Send creates a PENDING request from senderID to receiverID.
func (s *FriendService) Send(ctx context.Context, senderID, receiverID int64) (*model.FriendRequest, error) {
	if senderID == receiverID {
		return nil, apperr.InvalidArgument("cannot send a friend request to yourself")
	}
	receiver, err := loadActiveUser(ctx, s.db, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, errUserNotFound()
	}
	blocked, err := blockedBetween(ctx, s.db, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, errUserNotFound()
	}

	existing, err := s.findPair(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	var fr *model.FriendRequest
	if existing != nil {
		fr, err = s.reopen(ctx, existing, senderID, receiverID)
	} else {
		fr, err = s.create(ctx, senderID, receiverID)
	}
	if err != nil {
		return nil, err
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{
		Name: hook.FriendRequestSent, ActorID: senderID, TargetID: receiverID,
		Detail: map[string]interface{}{"request_id": fr.ID},
	})
	return fr, nil
}

func (s *FriendService) create(ctx context.Context, senderID, receiverID int64) (*model.FriendRequest, error) {
	fr := &model.FriendRequest{SenderID: senderID, ReceiverID: receiverID, Status: model.FriendPending}
	fr.SetPair()
	if err := s.db.WithContext(ctx).Create(fr).Error; err != nil {
		if dbadapter.IsDuplicateKey(err) {
			return nil, errRequestExists()
		}
		return nil, apperr.Internal(fmt.Errorf("create friend request: %w", err))
	}
	return fr, nil
}

// reopen turns a REJECTED record past its cooldown into a fresh PENDING
// request. The update is conditional on the row being unchanged, so two
// racing senders cannot both succeed.
func (s *FriendService) reopen(ctx context.Context, fr *model.FriendRequest, senderID, receiverID int64) (*model.FriendRequest, error) {
	if fr.Status != model.FriendRejected || s.rejectedCooldown <= 0 || fr.RespondedAt == nil {
		return nil, errRequestExists()
	}
	now := s.now()
	if now.Sub(*fr.RespondedAt) < s.rejectedCooldown {
		return nil, errRequestExists()
	}
	res := s.db.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", fr.ID, model.FriendRejected).
		Updates(map[string]interface{}{
			"sender_id":    senderID,
			"receiver_id":  receiverID,
			"status":       model.FriendPending,
			"created_at":   now,
			"responded_at": nil,
		})
	if res.Error != nil {
		return nil, apperr.Internal(fmt.Errorf("reopen friend request %d: %w", fr.ID, res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, errRequestExists()
	}
	fr.SenderID, fr.ReceiverID = senderID, receiverID
	fr.Status = model.FriendPending
	fr.CreatedAt = now
	fr.RespondedAt = nil
	return fr, nil
}

func (s *FriendService) findPair(ctx context.Context, a, b int64) (*model.FriendRequest, error) {
	lo, hi := model.OrderedPair(a, b)
	var fr model.FriendRequest
	err := s.db.WithContext(ctx).Where("pair_low = ? AND pair_high = ?", lo, hi).First(&fr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find friend pair: %w", err))
	}
	return &fr, nil
}

func (s *FriendService) load(ctx context.Context, id int64) (*model.FriendRequest, error) {
	var fr model.FriendRequest
	err := s.db.WithContext(ctx).First(&fr, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("friend request not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load friend request %d: %w", id, err))
	}
	return &fr, nil
}

// Respond lets the receiver accept or reject a PENDING request. Accepting
// while the pair is blocked is reported as a missing request.
func (s *FriendService) Respond(ctx context.Context, currentID, requestID int64, accept bool) (*model.FriendRequest, error) {
	fr, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if fr.ReceiverID != currentID {
		return nil, apperr.Forbidden("only the receiver can respond to this request")
	}
	if fr.Status != model.FriendPending {
		return nil, apperr.Conflict("friend request is already %s", fr.Status)
	}
	if accept {
		blocked, err := blockedBetween(ctx, s.db, fr.SenderID, fr.ReceiverID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, apperr.NotFound("friend request not found")
		}
	}

	status, event := model.FriendRejected, hook.FriendRequestRejected
	if accept {
		status, event = model.FriendAccepted, hook.FriendRequestAccepted
	}
	now := s.now()
	res := s.db.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", fr.ID, model.FriendPending).
		Updates(map[string]interface{}{"status": status, "responded_at": now})
	if res.Error != nil {
		return nil, apperr.Internal(fmt.Errorf("respond friend request %d: %w", fr.ID, res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("friend request is no longer pending")
	}
	fr.Status = status
	fr.RespondedAt = &now
	_ = s.hooks.Trigger(ctx, &hook.Event{
		Name: event, ActorID: currentID, TargetID: fr.SenderID,
		Detail: map[string]interface{}{"request_id": fr.ID},
	})
	return fr, nil
}

// Cancel lets the sender withdraw a PENDING request.
func (s *FriendService) Cancel(ctx context.Context, currentID, requestID int64) error {
	fr, err := s.load(ctx, requestID)
	if err != nil {
		return err
	}
	if fr.SenderID != currentID {
		return apperr.Forbidden("only the sender can cancel this request")
	}
	if fr.Status != model.FriendPending {
		return apperr.Conflict("friend request is already %s", fr.Status)
	}
	res := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", fr.ID, model.FriendPending).
		Delete(&model.FriendRequest{})
	if res.Error != nil {
		return apperr.Internal(fmt.Errorf("cancel friend request %d: %w", fr.ID, res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("friend request is no longer pending")
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{
		Name: hook.FriendRequestCancelled, ActorID: currentID, TargetID: fr.ReceiverID,
		Detail: map[string]interface{}{"request_id": fr.ID},
	})
	return nil
}

// Unfriend removes the ACCEPTED record between currentID and otherID.
func (s *FriendService) Unfriend(ctx context.Context, currentID, otherID int64) error {
	lo, hi := model.OrderedPair(currentID, otherID)
	res := s.db.WithContext(ctx).
		Where("pair_low = ? AND pair_high = ? AND status = ?", lo, hi, model.FriendAccepted).
		Delete(&model.FriendRequest{})
	if res.Error != nil {
		return apperr.Internal(fmt.Errorf("unfriend: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("friend not found")
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{Name: hook.FriendRemoved, ActorID: currentID, TargetID: otherID})
	return nil
}

// Friend is one entry of a friend list.
type Friend struct {
	UserID      int64      `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Since       *time.Time `json:"since"`
}

// ListFriends returns the distinct counterparties of userID's ACCEPTED
// records, hiding users on either side of a block.
func (s *FriendService) ListFriends(ctx context.Context, userID int64) ([]Friend, error) {
	var rows []model.FriendRequest
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? OR receiver_id = ?) AND status = ?", userID, userID, model.FriendAccepted).
		Order("responded_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list friends: %w", err))
	}
	hidden, err := blockedSet(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(rows))
	ids := make([]int64, 0, len(rows))
	since := make(map[int64]*time.Time, len(rows))
	for i := range rows {
		other := rows[i].Counterparty(userID)
		if seen[other] || hidden[other] {
			continue
		}
		seen[other] = true
		ids = append(ids, other)
		since[other] = rows[i].RespondedAt
	}
	if len(ids) == 0 {
		return []Friend{}, nil
	}

	var users []model.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("load friends: %w", err))
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}
	out := make([]Friend, 0, len(ids))
	for _, id := range ids {
		out = append(out, Friend{UserID: id, DisplayName: names[id], Since: since[id]})
	}
	return out, nil
}

// ListRequests returns PENDING requests received (in) or sent (out) by userID.
func (s *FriendService) ListRequests(ctx context.Context, userID int64, dir Direction) ([]model.FriendRequest, error) {
	column := "receiver_id"
	if dir == DirectionOut {
		column = "sender_id"
	}
	var rows []model.FriendRequest
	err := s.db.WithContext(ctx).
		Where(column+" = ? AND status = ?", userID, model.FriendPending).
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list friend requests: %w", err))
	}
	hidden, err := blockedSet(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.FriendRequest, 0, len(rows))
	for _, r := range rows {
		if !hidden[r.Counterparty(userID)] {
			out = append(out, r)
		}
	}
	return out, nil
}
