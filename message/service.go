// Package message stores direct messages and announces new ones on the
// recipient's inbox channel.
package message

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kasuganosora/neighborly/apperr"
	"github.com/kasuganosora/neighborly/cache"
	"github.com/kasuganosora/neighborly/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxBodyLen       = 4000
	defaultInboxSize = 50
	maxInboxSize     = 200
)

// Service writes and reads direct messages.
type Service struct {
	db     *gorm.DB
	pubsub cache.PubSub
	logger *zap.Logger
}

// New creates a message Service. pubsub may be nil, which disables notifications.
func New(db *gorm.DB, pubsub cache.PubSub, logger *zap.Logger) *Service {
	return &Service{db: db, pubsub: pubsub, logger: logger}
}

// InboxChannel is the pub/sub channel announcing messages for userID.
func InboxChannel(userID int64) string {
	return "inbox:" + strconv.FormatInt(userID, 10)
}

// Send inserts a message. When tx is non-nil the insert joins the caller's
// transaction; the caller must invoke Notify after commit.
func (s *Service) Send(ctx context.Context, tx *gorm.DB, from, to int64, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.InvalidArgument("message body is empty")
	}
	if len(body) > maxBodyLen {
		return nil, apperr.InvalidArgument("message body exceeds %d bytes", maxBodyLen)
	}
	conn := tx
	if conn == nil {
		conn = s.db
	}
	msg := &model.Message{SenderID: from, RecipientID: to, Body: body}
	if err := conn.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

type notification struct {
	MessageID int64 `json:"message_id"`
	SenderID  int64 `json:"sender_id"`
}

// Notify publishes msg on the recipient's inbox channel. Failure is logged
// and otherwise ignored.
func (s *Service) Notify(ctx context.Context, msg *model.Message) {
	if s.pubsub == nil || msg == nil {
		return
	}
	payload, _ := json.Marshal(notification{MessageID: msg.ID, SenderID: msg.SenderID})
	if err := s.pubsub.Publish(ctx, InboxChannel(msg.RecipientID), string(payload)); err != nil {
		s.logger.Warn("inbox notification failed",
			zap.Int64("message_id", msg.ID),
			zap.Int64("recipient_id", msg.RecipientID),
			zap.Error(err))
	}
}

// Inbox returns messages received by userID, newest first. beforeID > 0
// pages backwards from that id.
func (s *Service) Inbox(ctx context.Context, userID int64, beforeID int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = defaultInboxSize
	}
	if limit > maxInboxSize {
		limit = maxInboxSize
	}
	q := s.db.WithContext(ctx).Where("recipient_id = ?", userID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var out []model.Message
	if err := q.Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("inbox %d: %w", userID, err))
	}
	return out, nil
}
