package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "firmo/pkg/domain"
	"firmo/pkg/platform/sentinel"
)

func TestAppendProgress(t *testing.T) {
	t.Run("records a completion", func(t *testing.T) {
		w := New(id.NewPropertyID())
		at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		w.AppendProgress(id.RoleTenant, at)

		require.True(t, w.Completed(id.RoleTenant))
		assert.Equal(t, at, w.Data.BiometricProgress[id.RoleTenant].CompletedAt)
	})

	t.Run("never overwrites an existing entry", func(t *testing.T) {
		w := New(id.NewPropertyID())
		first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		later := first.Add(2 * time.Hour)

		w.AppendProgress(id.RoleTenant, first)
		w.AppendProgress(id.RoleTenant, later)

		assert.Equal(t, first, w.Data.BiometricProgress[id.RoleTenant].CompletedAt,
			"replayed completion must not move the original timestamp")
	})

	t.Run("keeps earlier roles when later roles complete", func(t *testing.T) {
		w := New(id.NewPropertyID())
		w.AppendProgress(id.RoleTenant, time.Now())
		w.AppendProgress(id.RoleGuarantor, time.Now())
		w.AppendProgress(id.RoleLandlord, time.Now())

		assert.True(t, w.Completed(id.RoleTenant))
		assert.True(t, w.Completed(id.RoleGuarantor))
		assert.True(t, w.Completed(id.RoleLandlord))
		assert.Len(t, w.Data.BiometricProgress, 3)
	})

	t.Run("initializes a nil map", func(t *testing.T) {
		w := &Workflow{PropertyID: id.NewPropertyID()}
		w.AppendProgress(id.RoleTenant, time.Now())
		assert.True(t, w.Completed(id.RoleTenant))
	})
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips a workflow", func(t *testing.T) {
		store := NewInMemoryStore()
		w := New(id.NewPropertyID())
		w.Status = StatusPendingTenant
		w.AppendProgress(id.RoleTenant, time.Now())

		require.NoError(t, store.Save(ctx, w))

		found, err := store.FindByProperty(ctx, w.PropertyID)
		require.NoError(t, err)
		assert.Equal(t, StatusPendingTenant, found.Status)
		assert.True(t, found.Completed(id.RoleTenant))
	})

	t.Run("returns ErrNotFound for an unknown property", func(t *testing.T) {
		store := NewInMemoryStore()
		_, err := store.FindByProperty(ctx, id.NewPropertyID())
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("stored records are isolated from caller mutations", func(t *testing.T) {
		store := NewInMemoryStore()
		w := New(id.NewPropertyID())
		require.NoError(t, store.Save(ctx, w))

		found, err := store.FindByProperty(ctx, w.PropertyID)
		require.NoError(t, err)
		found.AppendProgress(id.RoleTenant, time.Now())

		again, err := store.FindByProperty(ctx, w.PropertyID)
		require.NoError(t, err)
		assert.False(t, again.Completed(id.RoleTenant))
	})
}
