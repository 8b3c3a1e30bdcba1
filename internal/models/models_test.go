package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/gachapon/pkg/types"
)

func TestTableNames(t *testing.T) {
	require.Equal(t, "payment", Payment{}.TableName())
	require.Equal(t, "qr_credential", QRCredential{}.TableName())
	require.Equal(t, "inventory_item", InventoryItem{}.TableName())
	require.Equal(t, "draw_credit", DrawCredit{}.TableName())
	require.Equal(t, "payment_event_log", PaymentEventLog{}.TableName())
}

func TestQRCredential_State(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	q := &QRCredential{ExpiresAt: now.Add(2 * time.Minute)}
	require.False(t, q.IsConsumed())
	require.False(t, q.IsExpiredAt(now))
	require.True(t, q.IsExpiredAt(now.Add(2*time.Minute)))

	q.ConsumedAt = &now
	require.True(t, q.IsConsumed())
}

func TestPayment_IsTerminal(t *testing.T) {
	var nilPayment *Payment
	require.False(t, nilPayment.IsTerminal())
	require.False(t, (&Payment{Status: types.PaymentStatusProcessing}).IsTerminal())
	require.True(t, (&Payment{Status: types.PaymentStatusRefunded}).IsTerminal())
}
