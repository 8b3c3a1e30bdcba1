package prize

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/types"
)

// Weights per rarity tier. A prize without a rarity weighs as common.
var Weights = map[types.Rarity]int{
	types.RarityCommon:    60,
	types.RarityRare:      30,
	types.RarityLegendary: 10,
}

// Source is the randomness the selector consumes. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// Selector draws prizes by rarity weight.
type Selector struct {
	mu  sync.Mutex
	rnd Source
}

// NewSelector wraps src. Calls are serialized because *rand.Rand is not safe for
// concurrent use.
func NewSelector(src Source) *Selector {
	return &Selector{rnd: src}
}

// NewDefaultSelector seeds a PCG source from the runtime.
func NewDefaultSelector() *Selector {
	return NewSelector(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

func weightOf(p *types.Prize) int {
	if w, ok := Weights[p.Rarity]; ok {
		return w
	}
	return Weights[types.RarityCommon]
}

// Draw returns one prize from catalog. The pick walks the catalog in order and
// stops at the first prize whose cumulative weight exceeds a uniform value in
// [0, total). An exhausted walk falls back to a uniform pick.
func (s *Selector) Draw(catalog []*types.Prize) (*types.Prize, error) {
	if len(catalog) == 0 {
		return nil, fmt.Errorf("%w: empty prize catalog", errs.ErrInvalid)
	}
	total := 0
	for _, p := range catalog {
		if p == nil {
			return nil, fmt.Errorf("%w: nil prize in catalog", errs.ErrInvalid)
		}
		total += weightOf(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if total > 0 {
		r := s.rnd.IntN(total)
		cumulative := 0
		for _, p := range catalog {
			cumulative += weightOf(p)
			if cumulative > r {
				return p, nil
			}
		}
	}
	return catalog[s.rnd.IntN(len(catalog))], nil
}
