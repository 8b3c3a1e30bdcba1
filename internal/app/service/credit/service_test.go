package credit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/internal/platform/db/dbtest"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/types"
)

func payment(draws int, rewards ...types.EarnedReward) *models.Payment {
	return &models.Payment{
		ID:            "pay_1",
		UserID:        "player_456",
		MachineID:     "machine_001",
		DrawCount:     draws,
		Amount:        decimal.RequireFromString("15.00"),
		EarnedRewards: datatypes.NewJSONType(rewards),
	}
}

func TestGrants(t *testing.T) {
	tests := []struct {
		name    string
		p       *models.Payment
		rows    int
		granted int
	}{
		{"draws only", payment(3), 1, 3},
		{"extra spin", payment(3, types.EarnedReward{EventID: "event_001", RewardType: types.EventRewardTypeExtraSpin, RewardValue: "1"}), 2, 4},
		{"voucher ignored", payment(5, types.EarnedReward{EventID: "event_005", RewardType: types.EventRewardTypeVoucher, RewardValue: "20.00"}), 1, 5},
		{"bad spin value ignored", payment(1, types.EarnedReward{EventID: "x", RewardType: types.EventRewardTypeExtraSpin, RewardValue: "1.5"}), 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Grants(tt.p)
			require.Len(t, rows, tt.rows)
			sum := 0
			for _, r := range rows {
				sum += r.Granted
				require.Equal(t, r.Granted, r.Remaining)
			}
			require.Equal(t, tt.granted, sum)
			require.Equal(t, types.CreditSourcePayment, rows[0].SourceType)
		})
	}
}

func TestGrantConsumeBalance(t *testing.T) {
	s := New(dbtest.Open(t), zap.NewNop().Sugar())
	ctx := context.Background()

	n, err := s.GrantForPayment(ctx, nil, payment(2, types.EarnedReward{EventID: "event_004", RewardType: types.EventRewardTypeExtraSpin, RewardValue: "1"}))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	bal, err := s.Balance(ctx, "player_456", "machine_001")
	require.NoError(t, err)
	require.Equal(t, 3, bal)

	for want := 2; want >= 0; want-- {
		_, err := s.Consume(ctx, nil, "player_456", "machine_001")
		require.NoError(t, err)
		bal, err = s.Balance(ctx, "player_456", "machine_001")
		require.NoError(t, err)
		require.Equal(t, want, bal)
	}

	_, err = s.Consume(ctx, nil, "player_456", "machine_001")
	require.True(t, errors.Is(err, errs.ErrInvalid))

	bal, err = s.Balance(ctx, "player_456", "machine_002")
	require.NoError(t, err)
	require.Zero(t, bal)
}

func TestGrantForPayment_Invalid(t *testing.T) {
	s := New(dbtest.Open(t), zap.NewNop().Sugar())
	_, err := s.GrantForPayment(context.Background(), nil, payment(0))
	require.True(t, errors.Is(err, errs.ErrInvalid))
}

func TestConsume_Concurrent(t *testing.T) {
	s := New(dbtest.Open(t), zap.NewNop().Sugar())
	ctx := context.Background()
	_, err := s.GrantForPayment(ctx, nil, payment(3))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(ctx, nil, "player_456", "machine_001"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 3, ok)

	bal, err := s.Balance(ctx, "player_456", "machine_001")
	require.NoError(t, err)
	require.Zero(t, bal)
}
