package types

type InventoryStatus string

const (
	InventoryStatusUnclaimed InventoryStatus = "UNCLAIMED"
	InventoryStatusClaimed   InventoryStatus = "CLAIMED"
	InventoryStatusCollected InventoryStatus = "COLLECTED"
)

// Next returns the only status reachable from s, or "" when s is final.
func (s InventoryStatus) Next() InventoryStatus {
	switch s {
	case InventoryStatusUnclaimed:
		return InventoryStatusClaimed
	case InventoryStatusClaimed:
		return InventoryStatusCollected
	}
	return ""
}

type CreditSourceType string

const (
	CreditSourcePayment     CreditSourceType = "PAYMENT"
	CreditSourceEventReward CreditSourceType = "EVENT_REWARD"
)
