package payment

import (
	"fmt"

	"github.com/fatflowers/gachapon/pkg/types"
)

// Eligibility is the outcome of one event against a purchase size.
type Eligibility struct {
	Event          *types.Event
	Threshold      int
	MeetsThreshold bool
	AutoGrant      bool
	Progress       types.EventProgress
}

// threshold is the stricter of the two minimums an event carries.
func threshold(e *types.Event) int {
	return max(e.MinimumDrawCount, e.MinimumPurchaseSpin, 1)
}

// Evaluate is the single eligibility rule used by both preview and create.
func Evaluate(events []*types.Event, drawCount int) []Eligibility {
	out := make([]Eligibility, 0, len(events))
	for _, e := range events {
		t := threshold(e)
		meets := drawCount >= t
		out = append(out, Eligibility{
			Event:          e,
			Threshold:      t,
			MeetsThreshold: meets,
			AutoGrant:      meets && e.JoinMode == types.EventJoinModeAuto,
			Progress: types.EventProgress{
				CurrentDraws:   drawCount,
				TargetDraws:    t,
				DrawsRemaining: max(t-drawCount, 0),
				Percent:        min(drawCount*100/t, 100),
				WillComplete:   meets,
			},
		})
	}
	return out
}

// ApplicableEvents lists the events a purchase qualifies for.
func ApplicableEvents(es []Eligibility) []types.ApplicableEvent {
	out := []types.ApplicableEvent{}
	for _, el := range es {
		if !el.MeetsThreshold {
			continue
		}
		out = append(out, types.ApplicableEvent{
			EventID:     el.Event.ID,
			Title:       el.Event.Title,
			RewardType:  el.Event.RewardType,
			RewardValue: el.Event.RewardValue,
			JoinMode:    el.Event.JoinMode,
			AutoGranted: el.AutoGrant,
			Progress:    el.Progress,
		})
	}
	return out
}

// EarnedRewards lists the rewards granted automatically on completion.
func EarnedRewards(es []Eligibility) []types.EarnedReward {
	out := []types.EarnedReward{}
	for _, el := range es {
		if !el.AutoGrant {
			continue
		}
		out = append(out, types.EarnedReward{
			EventID:     el.Event.ID,
			EventTitle:  el.Event.Title,
			RewardType:  el.Event.RewardType,
			RewardValue: el.Event.RewardValue,
			Message:     rewardMessage(el.Event),
		})
	}
	return out
}

func rewardMessage(e *types.Event) string {
	switch e.RewardType {
	case types.EventRewardTypeExtraSpin:
		return fmt.Sprintf("%s: +%s extra spin", e.Title, e.RewardValue)
	case types.EventRewardTypeVoucher:
		return fmt.Sprintf("%s: voucher worth %s", e.Title, e.RewardValue)
	case types.EventRewardTypeDiscount:
		return fmt.Sprintf("%s: %s discount on your next purchase", e.Title, e.RewardValue)
	case types.EventRewardTypeFreePrize:
		return fmt.Sprintf("%s: free prize unlocked", e.Title)
	}
	return e.Title
}
