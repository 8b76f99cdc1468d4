package relation

import (
	"context"
	"fmt"

	"github.com/kasuganosora/neighborly/account"
	"github.com/kasuganosora/neighborly/apperr"
	"github.com/kasuganosora/neighborly/model"
	"gorm.io/gorm"
)

// Status is the derived relationship between a viewer and a subject.
type Status string

const (
	StatusNone            Status = "NONE"
	StatusRequestSent     Status = "REQUEST_SENT"
	StatusRequestReceived Status = "REQUEST_RECEIVED"
	StatusFriends         Status = "FRIENDS"
	StatusBlocked         Status = "BLOCKED"
)

// View is what the viewer may learn about the relationship. A blocked pair
// yields only Status and Viewable.
type View struct {
	Status    Status `json:"status"`
	Viewable  bool   `json:"viewable"`
	RequestID *int64 `json:"request_id,omitempty"`
}

// Facade is the single read entry point for relationship status.
type Facade struct {
	db *gorm.DB
}

// NewFacade creates a Facade.
func NewFacade(db *gorm.DB) *Facade {
	return &Facade{db: db}
}

// Status evaluates block, then friendship, then pending direction, then NONE.
// The block check runs first so a blocked party learns nothing else.
func (f *Facade) Status(ctx context.Context, viewerID, subjectID int64) (*View, error) {
	if viewerID == subjectID {
		return &View{Status: StatusNone, Viewable: true}, nil
	}
	blocked, err := blockedBetween(ctx, f.db, viewerID, subjectID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return &View{Status: StatusBlocked, Viewable: false}, nil
	}

	lo, hi := model.OrderedPair(viewerID, subjectID)
	var rows []model.FriendRequest
	err = f.db.WithContext(ctx).
		Where("pair_low = ? AND pair_high = ?", lo, hi).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("relationship status: %w", err))
	}
	if len(rows) == 0 {
		return &View{Status: StatusNone, Viewable: true}, nil
	}
	fr := rows[0]
	switch fr.Status {
	case model.FriendAccepted:
		return &View{Status: StatusFriends, Viewable: true}, nil
	case model.FriendPending:
		id := fr.ID
		if fr.SenderID == viewerID {
			return &View{Status: StatusRequestSent, Viewable: true, RequestID: &id}, nil
		}
		return &View{Status: StatusRequestReceived, Viewable: true, RequestID: &id}, nil
	default:
		return &View{Status: StatusNone, Viewable: true}, nil
	}
}

// Visible reports whether subjectID may be shown to viewerID. Staff bypass
// the block mask.
func (f *Facade) Visible(ctx context.Context, viewer *model.User, subjectID int64) (bool, error) {
	if account.IsStaff(viewer) {
		return true, nil
	}
	var viewerID int64
	if viewer != nil {
		viewerID = viewer.ID
	}
	if viewerID == 0 || viewerID == subjectID {
		return true, nil
	}
	blocked, err := blockedBetween(ctx, f.db, viewerID, subjectID)
	if err != nil {
		return false, err
	}
	return !blocked, nil
}
