package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	queueSize     = 1024
	batchSize     = 100
	flushInterval = 2 * time.Second
)

// Entry is one audit record before it is queued.
type Entry struct {
	TraceID  string
	ActorID  *int64
	TargetID *int64
	Action   string
	Detail   interface{}
	IP       string
}

// Service writes audit records asynchronously in batches.
type Service struct {
	db       *gorm.DB
	ch       chan *model.AuditLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an entry. A full queue drops the entry with a warning.
func (svc *Service) Log(entry Entry) {
	var detail datatypes.JSON
	if entry.Detail != nil {
		raw, err := json.Marshal(entry.Detail)
		if err != nil {
			svc.logger.Warn("audit detail not serialisable",
				zap.String("action", entry.Action), zap.Error(err))
		} else {
			detail = datatypes.JSON(raw)
		}
	}
	record := &model.AuditLog{
		TraceID:  entry.TraceID,
		ActorID:  entry.ActorID,
		TargetID: entry.TargetID,
		Action:   entry.Action,
		Detail:   detail,
		IP:       entry.IP,
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action))
	}
}

// Subscribe records every service event through hc.
func (svc *Service) Subscribe(hc *hook.HookCenter) {
	hc.RegisterMany(hook.AllEvents, 100, "audit", func(_ context.Context, ev *hook.Event) error {
		svc.Log(Entry{
			TraceID:  ev.Origin.TraceID,
			ActorID:  optionalID(ev.ActorID),
			TargetID: optionalID(ev.TargetID),
			Action:   ev.Name,
			Detail:   ev.Detail,
			IP:       ev.Origin.IP,
		})
		return nil
	})
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// Stop flushes remaining entries and blocks until the worker has exited.
func (svc *Service) Stop(_ context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed",
				zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
