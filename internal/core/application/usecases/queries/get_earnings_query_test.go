package queries_test

import (
	"testing"

	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGetEarningsQuery(t *testing.T) {
	t.Run("valid deliverer id", func(t *testing.T) {
		delivererID := kernel.NewUUID()

		query, err := queries.NewGetEarningsQuery(delivererID)
		require.NoError(t, err)
		require.NoError(t, query.Validate())
		assert.True(t, query.DelivererID().IsEqual(delivererID))
	})

	t.Run("empty deliverer id", func(t *testing.T) {
		_, err := queries.NewGetEarningsQuery(kernel.UUID{})
		require.Error(t, err)
	})

	t.Run("zero value query is not constructed", func(t *testing.T) {
		var query queries.GetEarningsQuery
		require.ErrorIs(t, query.Validate(), queries.ErrGetEarningsQueryIsNotConstructed)
	})
}
