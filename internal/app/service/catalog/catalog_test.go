package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/gachapon/pkg/config"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/types"
)

func newService(t *testing.T, at time.Time) *Service {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(at)
	s, err := NewFromCatalog(config.DefaultCatalog(), "MYR", clk)
	require.NoError(t, err)
	return s
}

func TestGetMachine(t *testing.T) {
	s := newService(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	m, err := s.GetMachine(ctx, "machine_001")
	require.NoError(t, err)
	require.Equal(t, "5.00", m.DrawCost)
	require.Equal(t, "MYR", m.Currency)

	_, err = s.GetMachine(ctx, "machine_999")
	require.True(t, errors.Is(err, errs.ErrNotFound))
	require.Len(t, s.ListMachines(ctx), 6)
	require.Equal(t, "machine_001", s.ListMachines(ctx)[0].ID)
}

func TestGetActiveEventsForMachine(t *testing.T) {
	s := newService(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	events, err := s.GetActiveEventsForMachine(ctx, "machine_001")
	require.NoError(t, err)
	ids := lo.Map(events, func(e *types.Event, _ int) string { return e.ID })
	require.ElementsMatch(t, []string{"event_001", "event_002", "event_003", "event_004"}, ids)

	events, err = s.GetActiveEventsForMachine(ctx, "machine_002")
	require.NoError(t, err)
	ids = lo.Map(events, func(e *types.Event, _ int) string { return e.ID })
	require.ElementsMatch(t, []string{"event_002", "event_004", "event_005"}, ids)

	_, err = s.GetActiveEventsForMachine(ctx, "nope")
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestGetActiveEventsForMachine_OutsideWindow(t *testing.T) {
	s := newService(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	events, err := s.GetActiveEventsForMachine(context.Background(), "machine_001")
	require.NoError(t, err)
	require.Empty(t, events)
	require.Empty(t, s.ListEvents(context.Background(), true))
	require.Len(t, s.ListEvents(context.Background(), false), 5)
}

func TestPrizes(t *testing.T) {
	s := newService(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	pool, err := s.Prizes(context.Background(), "machine_002")
	require.NoError(t, err)
	require.Equal(t, []string{"prize_002", "prize_005"}, lo.Map(pool, func(p *types.Prize, _ int) string { return p.ID }))
}

func TestPrizes_SkipsDiscontinued(t *testing.T) {
	c := config.CatalogConfig{
		Prizes: []*types.Prize{
			{ID: "a", Status: types.PrizeStatusDiscontinued},
			{ID: "b", Status: types.PrizeStatusActive},
		},
		Machines: []*types.Machine{{ID: "m1", DrawCost: "1.00"}, {ID: "m2", DrawCost: "1.00", PrizeIDs: []string{"a"}}},
	}
	s, err := NewFromCatalog(c, "", clock.NewMock())
	require.NoError(t, err)

	pool, err := s.Prizes(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, pool, 1)
	require.Equal(t, "b", pool[0].ID)

	_, err = s.Prizes(context.Background(), "m2")
	require.True(t, errors.Is(err, errs.ErrInvalid))
}

func TestNewFromCatalog_RejectsUnknownPrize(t *testing.T) {
	c := config.CatalogConfig{Machines: []*types.Machine{{ID: "m1", PrizeIDs: []string{"ghost"}}}}
	_, err := NewFromCatalog(c, "", clock.NewMock())
	require.Error(t, err)
}

func TestGetEvent(t *testing.T) {
	s := newService(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	e, err := s.GetEvent(context.Background(), "event_003")
	require.NoError(t, err)
	require.Equal(t, types.EventJoinModeManual, e.JoinMode)
	_, err = s.GetEvent(context.Background(), "event_999")
	require.True(t, errors.Is(err, errs.ErrNotFound))
}
