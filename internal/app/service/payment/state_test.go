package payment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/gachapon/pkg/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to types.PaymentStatus
		want     bool
	}{
		{types.PaymentStatusCreated, types.PaymentStatusProcessing, true},
		{types.PaymentStatusCreated, types.PaymentStatusRequiresPaymentMethod, true},
		{types.PaymentStatusRequiresCapture, types.PaymentStatusProcessing, true},
		{types.PaymentStatusRequiresCustomerAction, types.PaymentStatusFailed, true},
		{types.PaymentStatusProcessing, types.PaymentStatusSucceeded, true},
		{types.PaymentStatusProcessing, types.PaymentStatusCreated, false},
		{types.PaymentStatusCreated, types.PaymentStatusSucceeded, false},
		{types.PaymentStatusSucceeded, types.PaymentStatusRefunded, true},
		{types.PaymentStatusSucceeded, types.PaymentStatusCancelled, false},
		{types.PaymentStatusCancelled, types.PaymentStatusProcessing, false},
		{types.PaymentStatusFailed, types.PaymentStatusSucceeded, false},
		{types.PaymentStatusRefunded, types.PaymentStatusSucceeded, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			require.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStatusesHaveNoExitExceptRefund(t *testing.T) {
	all := []types.PaymentStatus{
		types.PaymentStatusCreated, types.PaymentStatusRequiresPaymentMethod,
		types.PaymentStatusRequiresCustomerAction, types.PaymentStatusRequiresCapture,
		types.PaymentStatusProcessing, types.PaymentStatusSucceeded, types.PaymentStatusCancelled,
		types.PaymentStatusFailed, types.PaymentStatusRefunded,
	}
	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			if from == types.PaymentStatusSucceeded && to == types.PaymentStatusRefunded {
				continue
			}
			require.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}
