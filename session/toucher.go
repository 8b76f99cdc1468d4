package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kasuganosora/neighborly/cache"
	"github.com/kasuganosora/neighborly/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	touchQueueSize  = 1024
	touchFlushEvery = 500 * time.Millisecond
	touchTimeout    = 2 * time.Second
)

// Activity is one authenticated request observed by the gate.
type Activity struct {
	SessionID int64
	UserID    int64
	IP        string
	UserAgent string
	At        time.Time
}

// Toucher records session and user activity off the request path. Updates
// are coalesced per session and throttled to one write per interval through
// a cache marker; a full queue drops the update.
type Toucher struct {
	db       *gorm.DB
	cache    cache.Cache
	interval time.Duration
	logger   *zap.Logger

	ch       chan Activity
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewToucher creates a Toucher and starts its worker.
func NewToucher(db *gorm.DB, c cache.Cache, interval time.Duration, logger *zap.Logger) *Toucher {
	t := &Toucher{
		db:       db,
		cache:    c,
		interval: interval,
		logger:   logger,
		ch:       make(chan Activity, touchQueueSize),
		stopCh:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.worker()
	return t
}

// Touch enqueues a without blocking and reports whether it was accepted.
func (t *Toucher) Touch(a Activity) bool {
	select {
	case <-t.stopCh:
		return false
	default:
	}
	select {
	case t.ch <- a:
		return true
	default:
		t.logger.Debug("session touch queue full, dropping", zap.Int64("session_id", a.SessionID))
		return false
	}
}

// Stop drains the queue, writes what is pending and waits for the worker.
func (t *Toucher) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.wg.Wait()
}

func (t *Toucher) worker() {
	defer t.wg.Done()
	ticker := time.NewTicker(touchFlushEvery)
	defer ticker.Stop()

	pending := make(map[int64]Activity)
	flush := func() {
		for id, a := range pending {
			ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
			if err := t.apply(ctx, a); err != nil {
				t.logger.Warn("session touch failed",
					zap.Int64("session_id", a.SessionID),
					zap.Int64("user_id", a.UserID),
					zap.Error(err))
			}
			cancel()
			delete(pending, id)
		}
	}

	for {
		select {
		case a := <-t.ch:
			pending[a.SessionID] = a
		case <-ticker.C:
			flush()
		case <-t.stopCh:
			for {
				select {
				case a := <-t.ch:
					pending[a.SessionID] = a
				default:
					flush()
					return
				}
			}
		}
	}
}

// apply writes one activity unless another write for the same session
// happened within the interval. A cache failure does not suppress the write.
func (t *Toucher) apply(ctx context.Context, a Activity) error {
	if t.cache != nil && t.interval > 0 {
		key := "session:touch:" + strconv.FormatInt(a.SessionID, 10)
		fresh, err := t.cache.SetNX(ctx, key, "1", t.interval)
		if err != nil {
			t.logger.Warn("session touch throttle unavailable", zap.Error(err))
		} else if !fresh {
			return nil
		}
	}

	err := t.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", a.SessionID).
		Updates(map[string]interface{}{
			"last_seen":  a.At,
			"ip":         a.IP,
			"user_agent": a.UserAgent,
		}).Error
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	err = t.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", a.UserID).
		Update("last_active_at", a.At).Error
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}
