package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/types"
)

// Store persists payments. Status changes go through Transition, which is a
// compare-and-swap on the previous status.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) Create(ctx context.Context, p *models.Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) Get(ctx context.Context, id string) (*models.Payment, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Store) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	return s.first(ctx, "payment_intent_id = ?", intentID)
}

func (s *Store) first(ctx context.Context, query string, arg any) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Where(query, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: payment %v", errs.ErrNotFound, arg)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Transition writes p if its stored status is still prev. It reports false when
// another writer moved the payment first. after runs in the same transaction
// only for the winner; an error from it rolls the transition back.
func (s *Store) Transition(ctx context.Context, p *models.Payment, prev types.PaymentStatus, after func(tx *gorm.DB) error) (bool, error) {
	won := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(p).
			Where("status = ?", prev).
			Select("*").
			Omit("id", "created_at").
			Updates(p)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}
		if after != nil {
			if err := after(tx); err != nil {
				return err
			}
		}
		won = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// ListByUser returns a user's payments newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Payment, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*models.Payment
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// ScanFields are the columns admin filters and sorting may reference.
var ScanFields = map[string]bool{
	"id": true, "user_id": true, "machine_id": true, "status": true, "currency": true,
	"amount": true, "draw_count": true, "payment_method": true, "payment_intent_id": true,
	"created_at": true, "updated_at": true, "completed_at": true, "expires_at": true,
}

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.Payment `json:"items"`
	Total int64             `json:"total"`
}

// filtersAnd is a helper to combine multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// Scan implements paginated admin listing with filters.
func (s *Store) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", errs.ErrInvalid)
	}
	req.Filters = lo.Compact(req.Filters)
	for _, f := range req.Filters {
		if err := f.CheckFields(ScanFields); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrInvalid, err)
		}
	}
	if req.SortBy != "" && !ScanFields[req.SortBy] {
		return nil, fmt.Errorf("%w: sort_by %q is not allowed", errs.ErrInvalid, req.SortBy)
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Payment{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count payments: %w", err)
	}

	var rows []*models.Payment
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}
