package order_test

import (
	"testing"

	"dispatch/internal/core/domain/model/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "pending", order.Pending.String())
	assert.Equal(t, "preparing", order.Preparing.String())
	assert.Equal(t, "out_for_delivery", order.OutForDelivery.String())
	assert.Equal(t, "delivered", order.Delivered.String())
	assert.Equal(t, "cancelled", order.Cancelled.String())
	assert.Equal(t, "unknown", order.Unknown.String())
	assert.Equal(t, "unknown", order.Status(42).String())
}

func TestStatusFromString(t *testing.T) {
	t.Run("round trips every valid status", func(t *testing.T) {
		for _, s := range []order.Status{
			order.Pending, order.Preparing, order.OutForDelivery, order.Delivered, order.Cancelled,
		} {
			parsed, err := order.StatusFromString(s.String())
			require.NoError(t, err)
			assert.Equal(t, s, parsed)
		}
	})

	t.Run("rejects unrecognized names", func(t *testing.T) {
		_, err := order.StatusFromString("ready")
		require.Error(t, err)

		_, err = order.StatusFromString("")
		require.Error(t, err)
	})
}

func TestStatus_Validate(t *testing.T) {
	require.NoError(t, order.Pending.Validate())
	require.NoError(t, order.Cancelled.Validate())
	require.Error(t, order.Unknown.Validate())
	require.Error(t, order.Status(99).Validate())
}

func TestStatus_Transitions(t *testing.T) {
	t.Run("happy path is monotonic", func(t *testing.T) {
		s, err := order.Pending.StartPreparing()
		require.NoError(t, err)
		assert.Equal(t, order.Preparing, s)

		s, err = s.MarkReady()
		require.NoError(t, err)
		assert.Equal(t, order.OutForDelivery, s)

		s, err = s.Deliver()
		require.NoError(t, err)
		assert.Equal(t, order.Delivered, s)
		assert.True(t, s.IsTerminal())
	})

	t.Run("cancel allowed from pending and preparing only", func(t *testing.T) {
		for _, s := range []order.Status{order.Pending, order.Preparing} {
			got, err := s.Cancel()
			require.NoError(t, err)
			assert.Equal(t, order.Cancelled, got)
		}

		for _, s := range []order.Status{order.OutForDelivery, order.Delivered, order.Cancelled, order.Unknown} {
			_, err := s.Cancel()
			require.Error(t, err, "cancel from %s must fail", s)
		}
	})

	t.Run("no skipping states", func(t *testing.T) {
		_, err := order.Pending.MarkReady()
		require.Error(t, err)

		_, err = order.Pending.Deliver()
		require.Error(t, err)

		_, err = order.Preparing.Deliver()
		require.Error(t, err)
	})

	t.Run("terminal states reject everything", func(t *testing.T) {
		for _, s := range []order.Status{order.Delivered, order.Cancelled} {
			_, err := s.StartPreparing()
			require.Error(t, err)
			_, err = s.MarkReady()
			require.Error(t, err)
			_, err = s.Deliver()
			require.Error(t, err)
			_, err = s.Cancel()
			require.Error(t, err)
		}
	})
}
