package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	"github.com/fatflowers/gachapon/pkg/config"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/types"
)

// Service serves the machine, prize and event reference data. It is read-only
// after construction.
type Service struct {
	clk      clock.Clock
	machines map[string]*types.Machine
	order    []string
	prizes   map[string]*types.Prize
	events   []*types.Event
}

func New(cfg *config.Config, clk clock.Clock) (*Service, error) {
	return NewFromCatalog(cfg.Catalog, cfg.Payment.Currency, clk)
}

// NewFromCatalog indexes c. Machines without a currency get defaultCurrency.
func NewFromCatalog(c config.CatalogConfig, defaultCurrency string, clk clock.Clock) (*Service, error) {
	s := &Service{
		clk:      clk,
		machines: make(map[string]*types.Machine, len(c.Machines)),
		prizes:   make(map[string]*types.Prize, len(c.Prizes)),
	}
	if defaultCurrency == "" {
		defaultCurrency = types.DefaultCurrency
	}
	for _, p := range c.Prizes {
		s.prizes[p.ID] = p
	}
	for _, m := range c.Machines {
		if _, dup := s.machines[m.ID]; dup {
			return nil, fmt.Errorf("duplicate machine id %s", m.ID)
		}
		for _, pid := range m.PrizeIDs {
			if _, ok := s.prizes[pid]; !ok {
				return nil, fmt.Errorf("machine %s references unknown prize %s", m.ID, pid)
			}
		}
		if m.Currency == "" {
			m.Currency = defaultCurrency
		}
		s.machines[m.ID] = m
		s.order = append(s.order, m.ID)
	}
	s.events = append(s.events, c.Events...)
	return s, nil
}

func (s *Service) ListMachines(_ context.Context) []*types.Machine {
	return lo.Map(s.order, func(id string, _ int) *types.Machine { return s.machines[id] })
}

func (s *Service) GetMachine(_ context.Context, id string) (*types.Machine, error) {
	m, ok := s.machines[id]
	if !ok {
		return nil, fmt.Errorf("%w: machine %s", errs.ErrNotFound, id)
	}
	return m, nil
}

// GetActiveEventsForMachine returns the events running now that cover the machine.
func (s *Service) GetActiveEventsForMachine(ctx context.Context, machineID string) ([]*types.Event, error) {
	if _, err := s.GetMachine(ctx, machineID); err != nil {
		return nil, err
	}
	now := s.clk.Now()
	return lo.Filter(s.events, func(e *types.Event, _ int) bool {
		return e.IsActiveAt(now) && e.AppliesTo(machineID)
	}), nil
}

// ListEvents returns every event ordered by start date, optionally only the active ones.
func (s *Service) ListEvents(_ context.Context, activeOnly bool) []*types.Event {
	now := s.clk.Now()
	out := lo.Filter(s.events, func(e *types.Event, _ int) bool { return !activeOnly || e.IsActiveAt(now) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func (s *Service) GetEvent(_ context.Context, id string) (*types.Event, error) {
	e, ok := lo.Find(s.events, func(e *types.Event) bool { return e.ID == id })
	if !ok {
		return nil, fmt.Errorf("%w: event %s", errs.ErrNotFound, id)
	}
	return e, nil
}

// Prizes returns the active prize pool of a machine. A machine without its own
// pool draws from every active prize.
func (s *Service) Prizes(ctx context.Context, machineID string) ([]*types.Prize, error) {
	m, err := s.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	var pool []*types.Prize
	if len(m.PrizeIDs) == 0 {
		ids := lo.Keys(s.prizes)
		sort.Strings(ids)
		pool = lo.Map(ids, func(id string, _ int) *types.Prize { return s.prizes[id] })
	} else {
		pool = lo.Map(m.PrizeIDs, func(id string, _ int) *types.Prize { return s.prizes[id] })
	}
	pool = lo.Filter(pool, func(p *types.Prize, _ int) bool { return p.Status != types.PrizeStatusDiscontinued })
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: machine %s has no active prizes", errs.ErrInvalid, machineID)
	}
	return pool, nil
}
