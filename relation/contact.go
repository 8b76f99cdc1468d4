package relation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kasuganosora/neighborly/apperr"
	dbadapter "github.com/kasuganosora/neighborly/db"
	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/message"
	"github.com/kasuganosora/neighborly/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const notAvailable = "Not available"

// ContactService runs the contact-disclosure flow PENDING → {APPROVED, REJECTED}.
// Approval writes the disclosure as a direct message in the same transaction.
type ContactService struct {
	db       *gorm.DB
	messages *message.Service
	hooks    *hook.HookCenter
	logger   *zap.Logger
	now      func() time.Time
}

// NewContactService creates a ContactService.
func NewContactService(db *gorm.DB, messages *message.Service, hooks *hook.HookCenter, logger *zap.Logger) *ContactService {
	return &ContactService{db: db, messages: messages, hooks: hooks, logger: logger, now: time.Now}
}

func pendingKey(requesterID, targetID int64, t model.ContactType) string {
	return fmt.Sprintf("%d:%d:%s", requesterID, targetID, t)
}

// Create asks targetID to disclose a contact field. An identical pending
// request is returned as-is with created=false.
func (s *ContactService) Create(ctx context.Context, requesterID, targetID int64, t model.ContactType) (cr *model.ContactRequest, created bool, err error) {
	t = model.ContactType(strings.ToUpper(string(t)))
	if !t.Valid() {
		return nil, false, apperr.InvalidArgument("type must be EMAIL or PHONE")
	}
	if requesterID == targetID {
		return nil, false, apperr.InvalidArgument("cannot request your own contact details")
	}
	target, err := loadActiveUser(ctx, s.db, targetID)
	if err != nil {
		return nil, false, err
	}
	if target == nil {
		return nil, false, errUserNotFound()
	}
	blocked, err := blockedBetween(ctx, s.db, requesterID, targetID)
	if err != nil {
		return nil, false, err
	}
	if blocked {
		return nil, false, errUserNotFound()
	}

	key := pendingKey(requesterID, targetID, t)
	if existing, err := s.findPending(ctx, key); err != nil || existing != nil {
		return existing, false, err
	}
	cr = &model.ContactRequest{
		RequesterID: requesterID,
		TargetID:    targetID,
		Type:        t,
		Status:      model.ContactPending,
		PendingKey:  &key,
	}
	if err := s.db.WithContext(ctx).Create(cr).Error; err != nil {
		if dbadapter.IsDuplicateKey(err) {
			existing, ferr := s.findPending(ctx, key)
			if ferr != nil {
				return nil, false, ferr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, apperr.Internal(fmt.Errorf("create contact request: %w", err))
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{
		Name: hook.ContactRequested, ActorID: requesterID, TargetID: targetID,
		Detail: map[string]interface{}{"request_id": cr.ID, "type": string(t)},
	})
	return cr, true, nil
}

func (s *ContactService) findPending(ctx context.Context, key string) (*model.ContactRequest, error) {
	var cr model.ContactRequest
	err := s.db.WithContext(ctx).Where("pending_key = ?", key).First(&cr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find pending contact request: %w", err))
	}
	return &cr, nil
}

// Respond lets the target approve or reject a PENDING request. Approval and
// the disclosure message commit together; the inbox notification afterwards
// is best-effort.
func (s *ContactService) Respond(ctx context.Context, currentID, requestID int64, accept bool) (*model.ContactRequest, error) {
	var (
		cr  model.ContactRequest
		msg *model.Message
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&cr, requestID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("contact request not found")
		}
		if err != nil {
			return apperr.Internal(fmt.Errorf("load contact request %d: %w", requestID, err))
		}
		if cr.TargetID != currentID {
			return apperr.Forbidden("only the target can respond to this request")
		}
		if cr.Status != model.ContactPending {
			return apperr.Conflict("contact request is already %s", cr.Status)
		}

		status := model.ContactRejected
		var target *model.User
		if accept {
			blocked, err := blockedBetween(ctx, tx, cr.RequesterID, cr.TargetID)
			if err != nil {
				return err
			}
			if blocked {
				return apperr.NotFound("contact request not found")
			}
			if target, err = loadActiveUser(ctx, tx, cr.TargetID); err != nil {
				return err
			}
			if target == nil {
				return apperr.NotFound("contact request not found")
			}
			status = model.ContactApproved
		}

		now := s.now()
		res := tx.Model(&model.ContactRequest{}).
			Where("id = ? AND status = ?", cr.ID, model.ContactPending).
			Updates(map[string]interface{}{"status": status, "pending_key": nil, "responded_at": now})
		if res.Error != nil {
			return apperr.Internal(fmt.Errorf("respond contact request %d: %w", cr.ID, res.Error))
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("contact request is no longer pending")
		}
		cr.Status = status
		cr.PendingKey = nil
		cr.RespondedAt = &now

		if accept {
			msg, err = s.messages.Send(ctx, tx, cr.TargetID, cr.RequesterID, DisclosureBody(target, cr.Type))
			if err != nil {
				return apperr.Internal(fmt.Errorf("disclosure message: %w", err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := hook.ContactRejected
	detail := map[string]interface{}{"request_id": cr.ID, "type": string(cr.Type)}
	if msg != nil {
		event = hook.ContactApproved
		detail["message_id"] = msg.ID
		s.messages.Notify(ctx, msg)
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{Name: event, ActorID: currentID, TargetID: cr.RequesterID, Detail: detail})
	return &cr, nil
}

// DisclosureBody renders the message sent on approval.
func DisclosureBody(u *model.User, t model.ContactType) string {
	value := notAvailable
	label := "email"
	switch t {
	case model.ContactEmail:
		if u.Email != "" {
			value = u.Email
		}
	case model.ContactPhone:
		label = "phone"
		if u.Phone != nil && strings.TrimSpace(*u.Phone) != "" {
			value = *u.Phone
		}
	}
	return fmt.Sprintf("Contact details shared: %s: %s", label, value)
}

// List returns requests received (in) or sent (out) by userID, newest first.
func (s *ContactService) List(ctx context.Context, userID int64, dir Direction) ([]model.ContactRequest, error) {
	column := "target_id"
	if dir == DirectionOut {
		column = "requester_id"
	}
	var rows []model.ContactRequest
	if err := s.db.WithContext(ctx).Where(column+" = ?", userID).Order("id DESC").Find(&rows).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("list contact requests: %w", err))
	}
	hidden, err := blockedSet(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.ContactRequest, 0, len(rows))
	for _, r := range rows {
		other := r.TargetID
		if other == userID {
			other = r.RequesterID
		}
		if !hidden[other] {
			out = append(out, r)
		}
	}
	return out, nil
}
