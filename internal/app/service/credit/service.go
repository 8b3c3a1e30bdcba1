package credit

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/tool"
	"github.com/fatflowers/gachapon/pkg/types"
)

// ErrNoCredits is returned by Consume when the user has no draws left on the machine.
var ErrNoCredits = fmt.Errorf("%w: no draw credits left", errs.ErrInvalid)

// consumeRetries bounds the compare-and-swap loop when several draws race for the same credit.
const consumeRetries = 5

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Grants builds the credit rows for a completed payment: one for the purchased
// draws and one per EXTRA_SPIN reward with a positive integer value.
func Grants(p *models.Payment) []*models.DrawCredit {
	out := []*models.DrawCredit{{
		ID:         tool.PrefixedID("cr"),
		UserID:     p.UserID,
		MachineID:  p.MachineID,
		SourceType: types.CreditSourcePayment,
		SourceID:   p.ID,
		PaymentID:  p.ID,
		Granted:    p.DrawCount,
		Remaining:  p.DrawCount,
	}}
	for _, r := range p.GetEarnedRewards() {
		if r.RewardType != types.EventRewardTypeExtraSpin {
			continue
		}
		n, err := strconv.Atoi(r.RewardValue)
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, &models.DrawCredit{
			ID:         tool.PrefixedID("cr"),
			UserID:     p.UserID,
			MachineID:  p.MachineID,
			SourceType: types.CreditSourceEventReward,
			SourceID:   r.EventID,
			PaymentID:  p.ID,
			Granted:    n,
			Remaining:  n,
		})
	}
	return out
}

// GrantForPayment stores the credits of p using tx (or the service db when tx is nil)
// and returns the number of draws added.
func (s *Service) GrantForPayment(ctx context.Context, tx *gorm.DB, p *models.Payment) (int, error) {
	if p == nil || p.DrawCount < 1 {
		return 0, fmt.Errorf("%w: nothing to grant", errs.ErrInvalid)
	}
	if tx == nil {
		tx = s.db
	}
	grants := Grants(p)
	if err := tx.WithContext(ctx).Create(&grants).Error; err != nil {
		return 0, fmt.Errorf("failed to grant credits: %w", err)
	}
	total := lo.SumBy(grants, func(c *models.DrawCredit) int { return c.Granted })
	logctx.FromCtx(ctx, s.log).Infow("credits_granted", "payment_id", p.ID, "user_id", p.UserID, "machine_id", p.MachineID, "credits", total)
	return total, nil
}

// Balance returns the remaining draws of a user on a machine.
func (s *Service) Balance(ctx context.Context, userID, machineID string) (int, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.DrawCredit{}).
		Where("user_id = ? AND machine_id = ?", userID, machineID).
		Select("COALESCE(SUM(remaining), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

// List returns the credits of a user, optionally limited to a machine, oldest first.
func (s *Service) List(ctx context.Context, userID, machineID string) ([]*models.DrawCredit, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if machineID != "" {
		q = q.Where("machine_id = ?", machineID)
	}
	var out []*models.DrawCredit
	err := q.Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// Consume spends one draw from the oldest credit with draws left, using tx (or
// the service db when tx is nil).
func (s *Service) Consume(ctx context.Context, tx *gorm.DB, userID, machineID string) (*models.DrawCredit, error) {
	if tx == nil {
		tx = s.db
	}
	for range consumeRetries {
		var c models.DrawCredit
		err := tx.WithContext(ctx).
			Where("user_id = ? AND machine_id = ? AND remaining > 0", userID, machineID).
			Order("created_at ASC, id ASC").
			First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w on machine %s", ErrNoCredits, machineID)
		}
		if err != nil {
			return nil, err
		}
		res := tx.WithContext(ctx).Model(&models.DrawCredit{}).
			Where("id = ? AND remaining = ?", c.ID, c.Remaining).
			Update("remaining", gorm.Expr("remaining - 1"))
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			c.Remaining--
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: draw credit contention on machine %s", errs.ErrInvalid, machineID)
}
