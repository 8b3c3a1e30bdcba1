package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/tool"
	"github.com/fatflowers/gachapon/pkg/types"
)

type Service struct {
	db  *gorm.DB
	clk clock.Clock
	log *zap.SugaredLogger
}

func New(db *gorm.DB, clk clock.Clock, log *zap.SugaredLogger) *Service {
	return &Service{db: db, clk: clk, log: log}
}

// Win describes the outcome of one draw.
type Win struct {
	UserID       string
	MachineID    string
	PaymentID    string
	DrawCreditID string
	Prize        *types.Prize
}

// Append records a won prize as UNCLAIMED using tx (or the service db when tx is nil).
func (s *Service) Append(ctx context.Context, tx *gorm.DB, w Win) (*models.InventoryItem, error) {
	if w.Prize == nil || w.UserID == "" || w.MachineID == "" {
		return nil, fmt.Errorf("%w: incomplete draw result", errs.ErrInvalid)
	}
	item := &models.InventoryItem{
		ID:            tool.PrefixedID("inv"),
		UserID:        w.UserID,
		MachineID:     w.MachineID,
		PrizeID:       w.Prize.ID,
		PaymentID:     w.PaymentID,
		DrawCreditID:  w.DrawCreditID,
		Status:        types.InventoryStatusUnclaimed,
		WonAt:         s.clk.Now(),
		PrizeSnapshot: datatypes.NewJSONType(w.Prize),
	}
	if tx == nil {
		tx = s.db
	}
	if err := tx.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to append inventory: %w", err)
	}
	return item, nil
}

// List returns a user's items newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID string, status types.InventoryStatus) ([]*models.InventoryItem, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*models.InventoryItem
	err := q.Order("won_at DESC, id DESC").Find(&out).Error
	return out, err
}

// Get returns the item only if it belongs to userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: inventory item %s", errs.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Claim moves an UNCLAIMED item to CLAIMED and assigns the collection reference
// the machine operator scans on pickup.
func (s *Service) Claim(ctx context.Context, userID, id string) (*models.InventoryItem, error) {
	return s.advance(ctx, userID, id, types.InventoryStatusClaimed)
}

// Collect moves a CLAIMED item to COLLECTED.
func (s *Service) Collect(ctx context.Context, userID, id string) (*models.InventoryItem, error) {
	return s.advance(ctx, userID, id, types.InventoryStatusCollected)
}

func (s *Service) advance(ctx context.Context, userID, id string, to types.InventoryStatus) (*models.InventoryItem, error) {
	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item.Status.Next() != to {
		return nil, fmt.Errorf("%w: inventory item %s is %s", errs.ErrInvalid, id, item.Status)
	}
	now := s.clk.Now()
	updates := map[string]any{"status": to, "updated_at": now}
	switch to {
	case types.InventoryStatusClaimed:
		updates["claimed_at"] = now
		updates["collection_ref"] = tool.PrefixedID("col")
	case types.InventoryStatusCollected:
		updates["collected_at"] = now
	}
	res := s.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("id = ? AND status = ?", id, item.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, fmt.Errorf("%w: inventory item %s changed concurrently", errs.ErrInvalid, id)
	}
	item.Status = to
	switch to {
	case types.InventoryStatusClaimed:
		item.ClaimedAt = lo.ToPtr(now)
		item.CollectionRef = lo.ToPtr(updates["collection_ref"].(string))
	case types.InventoryStatusCollected:
		item.CollectedAt = lo.ToPtr(now)
	}
	item.UpdatedAt = now
	logctx.FromCtx(ctx, s.log).Infow("inventory_advanced", "item_id", id, "status", to)
	return item, nil
}

