package types

// EarnedReward is a promotion reward attached to a payment at creation time.
type EarnedReward struct {
	EventID     string          `json:"event_id"`
	EventTitle  string          `json:"event_title"`
	RewardType  EventRewardType `json:"reward_type"`
	RewardValue string          `json:"reward_value"`
	Message     string          `json:"message"`
}

// EventProgress describes how far a purchase gets toward an event threshold.
type EventProgress struct {
	CurrentDraws   int  `json:"current_draws"`
	TargetDraws    int  `json:"target_draws"`
	DrawsRemaining int  `json:"draws_remaining"`
	Percent        int  `json:"percent"`
	WillComplete   bool `json:"will_complete"`
}

type ApplicableEvent struct {
	EventID     string          `json:"event_id"`
	Title       string          `json:"title"`
	RewardType  EventRewardType `json:"reward_type"`
	RewardValue string          `json:"reward_value"`
	JoinMode    EventJoinMode   `json:"join_mode"`
	AutoGranted bool            `json:"auto_granted"`
	Progress    EventProgress   `json:"progress"`
}
