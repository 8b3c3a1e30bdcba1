package qrcode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/gachapon/internal/platform/db/dbtest"
	"github.com/fatflowers/gachapon/pkg/errs"
)

func newIssuer(t *testing.T) (*Issuer, *clock.Mock) {
	t.Helper()
	s, err := NewSealer("test-salt", "test-secret")
	require.NoError(t, err)
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	return NewIssuer(Options{DB: dbtest.Open(t), Sealer: s, Clock: clk}), clk
}

func TestIssueDecode(t *testing.T) {
	iss, clk := newIssuer(t)
	cred, err := iss.Issue(context.Background(), "player_456", "machine_001", "pay_1")
	require.NoError(t, err)
	require.Equal(t, clk.Now().Add(2*time.Minute), cred.ExpiresAt)

	p, err := iss.Decode(cred.Code)
	require.NoError(t, err)
	require.Equal(t, cred.ID, p.QRID)
	require.Equal(t, "player_456", p.UserID)
	require.Equal(t, "machine_001", p.MachineID)
	require.Equal(t, "pay_1", p.PaymentID)
	require.Equal(t, clk.Now().UnixMilli(), p.IssuedAt)
}

func TestValidate_Order(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid", func(t *testing.T) {
		iss, _ := newIssuer(t)
		_, err := iss.Validate(ctx, nil, "garbage")
		require.True(t, errors.Is(err, errs.ErrInvalid))
	})

	t.Run("not found", func(t *testing.T) {
		iss, _ := newIssuer(t)
		code, err := iss.sealer.Seal([]byte(`{"qr_id":"qr_missing","user_id":"u","machine_id":"m","payment_id":"p","issued_at":1}`))
		require.NoError(t, err)
		_, err = iss.Validate(ctx, nil, code)
		require.True(t, errors.Is(err, errs.ErrNotFound))
	})

	t.Run("already used", func(t *testing.T) {
		iss, _ := newIssuer(t)
		cred, err := iss.Issue(ctx, "u", "machine_001", "pay_1")
		require.NoError(t, err)
		got, err := iss.Validate(ctx, nil, cred.Code)
		require.NoError(t, err)
		require.True(t, got.IsConsumed())
		_, err = iss.Validate(ctx, nil, cred.Code)
		require.True(t, errors.Is(err, errs.ErrAlreadyUsed))
	})

	t.Run("used stays used after expiry", func(t *testing.T) {
		iss, clk := newIssuer(t)
		cred, err := iss.Issue(ctx, "u", "machine_001", "pay_1")
		require.NoError(t, err)
		_, err = iss.Validate(ctx, nil, cred.Code)
		require.NoError(t, err)
		clk.Add(10 * time.Minute)
		_, err = iss.Validate(ctx, nil, cred.Code)
		require.True(t, errors.Is(err, errs.ErrAlreadyUsed))
	})

	t.Run("expired", func(t *testing.T) {
		iss, clk := newIssuer(t)
		cred, err := iss.Issue(ctx, "u", "machine_001", "pay_1")
		require.NoError(t, err)
		clk.Add(2 * time.Minute)
		_, err = iss.Validate(ctx, nil, cred.Code)
		require.True(t, errors.Is(err, errs.ErrExpired))
	})

	t.Run("just before expiry", func(t *testing.T) {
		iss, clk := newIssuer(t)
		cred, err := iss.Issue(ctx, "u", "machine_001", "pay_1")
		require.NoError(t, err)
		clk.Add(2*time.Minute - time.Second)
		_, err = iss.Validate(ctx, nil, cred.Code)
		require.NoError(t, err)
	})
}

func TestValidate_ConcurrentRedeemOnce(t *testing.T) {
	iss, _ := newIssuer(t)
	ctx := context.Background()
	cred, err := iss.Issue(ctx, "u", "machine_001", "pay_1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := iss.Validate(ctx, nil, cred.Code)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, used := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errs.ErrAlreadyUsed):
			used++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 7, used)
}

func TestLatestForPayment(t *testing.T) {
	iss, clk := newIssuer(t)
	ctx := context.Background()

	_, err := iss.LatestForPayment(ctx, "u", "pay_1")
	require.True(t, errors.Is(err, errs.ErrNotFound))

	first, err := iss.Issue(ctx, "u", "machine_001", "pay_1")
	require.NoError(t, err)
	clk.Add(time.Second)
	second, err := iss.Issue(ctx, "u", "machine_001", "pay_1")
	require.NoError(t, err)

	got, err := iss.LatestForPayment(ctx, "u", "pay_1")
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)

	_, err = iss.Validate(ctx, nil, second.Code)
	require.NoError(t, err)
	got, err = iss.LatestForPayment(ctx, "u", "pay_1")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	_, err = iss.LatestForPayment(ctx, "someone-else", "pay_1")
	require.True(t, errors.Is(err, errs.ErrNotFound))

	clk.Add(5 * time.Minute)
	_, err = iss.LatestForPayment(ctx, "u", "pay_1")
	require.True(t, errors.Is(err, errs.ErrNotFound))
}
