package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/platform/db/dbtest"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/types"
)

func newService(t *testing.T) (*Service, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	return New(dbtest.Open(t), clk, zap.NewNop().Sugar()), clk
}

var plushie = &types.Prize{ID: "prize_001", Name: "Limited Edition Plushie", Rarity: types.RarityLegendary}

func TestAppendListGet(t *testing.T) {
	s, clk := newService(t)
	ctx := context.Background()

	first, err := s.Append(ctx, nil, Win{UserID: "u1", MachineID: "machine_001", PaymentID: "pay_1", DrawCreditID: "cr_1", Prize: plushie})
	require.NoError(t, err)
	require.Equal(t, types.InventoryStatusUnclaimed, first.Status)
	clk.Add(time.Minute)
	second, err := s.Append(ctx, nil, Win{UserID: "u1", MachineID: "machine_001", PaymentID: "pay_1", DrawCreditID: "cr_1", Prize: plushie})
	require.NoError(t, err)

	items, err := s.List(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, second.ID, items[0].ID)
	require.Equal(t, "Limited Edition Plushie", items[0].PrizeSnapshot.Data().Name)

	got, err := s.Get(ctx, "u1", first.ID)
	require.NoError(t, err)
	require.Equal(t, "pay_1", got.PaymentID)

	_, err = s.Get(ctx, "u2", first.ID)
	require.True(t, errors.Is(err, errs.ErrNotFound))

	_, err = s.Append(ctx, nil, Win{UserID: "u1", MachineID: "machine_001"})
	require.True(t, errors.Is(err, errs.ErrInvalid))
}

func TestClaimCollect(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	item, err := s.Append(ctx, nil, Win{UserID: "u1", MachineID: "machine_001", Prize: plushie})
	require.NoError(t, err)

	_, err = s.Collect(ctx, "u1", item.ID)
	require.True(t, errors.Is(err, errs.ErrInvalid), "collect before claim")

	claimed, err := s.Claim(ctx, "u1", item.ID)
	require.NoError(t, err)
	require.Equal(t, types.InventoryStatusClaimed, claimed.Status)
	require.NotNil(t, claimed.CollectionRef)
	require.NotNil(t, claimed.ClaimedAt)

	_, err = s.Claim(ctx, "u1", item.ID)
	require.True(t, errors.Is(err, errs.ErrInvalid), "claim twice")

	collected, err := s.Collect(ctx, "u1", item.ID)
	require.NoError(t, err)
	require.Equal(t, types.InventoryStatusCollected, collected.Status)

	stored, err := s.Get(ctx, "u1", item.ID)
	require.NoError(t, err)
	require.Equal(t, types.InventoryStatusCollected, stored.Status)
	require.Equal(t, *claimed.CollectionRef, *stored.CollectionRef)

	unclaimed, err := s.List(ctx, "u1", types.InventoryStatusUnclaimed)
	require.NoError(t, err)
	require.Empty(t, unclaimed)

	_, err = s.Claim(ctx, "u2", item.ID)
	require.True(t, errors.Is(err, errs.ErrNotFound))
}
