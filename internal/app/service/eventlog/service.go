package eventlog

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/tool"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	clk clock.Clock
	log *zap.SugaredLogger
	wg  sync.WaitGroup
}

func New(db *gorm.DB, clk clock.Clock, log *zap.SugaredLogger) *Service {
	return &Service{db: db, clk: clk, log: log}
}

// Save asynchronously persists a payment event log. Nil input is ignored.
func (s *Service) Save(ctx context.Context, entry *models.PaymentEventLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	if entry.TraceID == "" {
		entry.TraceID = logctx.TraceID(ctx)
	}
	if entry.UserID == nil {
		if uid := logctx.UserID(ctx); uid != "" {
			entry.UserID = &uid
		}
	}
	if entry.EventTime.IsZero() {
		entry.EventTime = s.clk.Now()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save payment event log: %v", err)
		}
	}()
}

// Transition records an engine driven status change.
func (s *Service) Transition(ctx context.Context, paymentID, from, to string, data any) {
	s.Save(ctx, &models.PaymentEventLog{
		PaymentID:  paymentID,
		Source:     models.PaymentEventSourceEngine,
		FromStatus: from,
		ToStatus:   to,
		Data:       toJSON(data),
		Status:     models.PaymentEventLogStatusHandled,
	})
}

// ListByPayment returns the audit trail of one payment, oldest first.
func (s *Service) ListByPayment(ctx context.Context, paymentID string) ([]*models.PaymentEventLog, error) {
	var out []*models.PaymentEventLog
	err := s.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("event_time ASC, id ASC").
		Find(&out).Error
	return out, err
}

// Flush blocks until pending saves finished.
func (s *Service) Flush() {
	s.wg.Wait()
}

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	if raw, ok := v.([]byte); ok {
		return datatypes.JSON(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
