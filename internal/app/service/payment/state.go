package payment

import "github.com/fatflowers/gachapon/pkg/types"

// transitions lists the statuses reachable from each status. Anything not listed
// is rejected; terminal statuses other than SUCCEEDED have no entry.
var transitions = map[types.PaymentStatus][]types.PaymentStatus{
	types.PaymentStatusCreated: {
		types.PaymentStatusRequiresPaymentMethod,
		types.PaymentStatusRequiresCustomerAction,
		types.PaymentStatusRequiresCapture,
		types.PaymentStatusProcessing,
		types.PaymentStatusCancelled,
		types.PaymentStatusFailed,
	},
	types.PaymentStatusRequiresPaymentMethod: {
		types.PaymentStatusRequiresCustomerAction,
		types.PaymentStatusRequiresCapture,
		types.PaymentStatusProcessing,
		types.PaymentStatusCancelled,
		types.PaymentStatusFailed,
	},
	types.PaymentStatusRequiresCustomerAction: {
		types.PaymentStatusRequiresCapture,
		types.PaymentStatusProcessing,
		types.PaymentStatusCancelled,
		types.PaymentStatusFailed,
	},
	types.PaymentStatusRequiresCapture: {
		types.PaymentStatusProcessing,
		types.PaymentStatusCancelled,
		types.PaymentStatusFailed,
	},
	types.PaymentStatusProcessing: {
		types.PaymentStatusSucceeded,
		types.PaymentStatusCancelled,
		types.PaymentStatusFailed,
	},
	types.PaymentStatusSucceeded: {
		types.PaymentStatusRefunded,
	},
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to types.PaymentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// confirmable statuses move to PROCESSING on confirm.
func confirmable(s types.PaymentStatus) bool {
	switch s {
	case types.PaymentStatusCreated,
		types.PaymentStatusRequiresPaymentMethod,
		types.PaymentStatusRequiresCustomerAction,
		types.PaymentStatusRequiresCapture:
		return true
	}
	return false
}
