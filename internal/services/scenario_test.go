package services

import (
	"context"
	"testing"

	"github.com/featureboard/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDarkModeLifecycle walks one request from creation to deletion.
func TestDarkModeLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := createUser(t, f.db, "u1@example.com", models.RoleUser)
	u2 := createUser(t, f.db, "u2@example.com", models.RoleUser)
	admin := createUser(t, f.db, "admin@example.com", models.RoleAdmin)

	f1, err := f.features.Create(ctx, u1.ID, &CreateFeatureRequest{Title: "Dark mode", Description: "Add dark theme"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, f1.Status)

	count, err := f.votes.CountFor(ctx, f1.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = f.votes.AddVote(ctx, u2.ID, f1.ID)
	require.NoError(t, err)
	count, _ = f.votes.CountFor(ctx, f1.ID)
	assert.Equal(t, int64(1), count)

	_, err = f.votes.AddVote(ctx, u2.ID, f1.ID)
	assert.ErrorIs(t, err, ErrDuplicateVote)
	count, _ = f.votes.CountFor(ctx, f1.ID)
	assert.Equal(t, int64(1), count)

	view, err := f.features.UpdateStatus(ctx, f1.ID, "PLANNED", identity(admin))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlanned, view.Status)
	assert.Equal(t, int64(1), view.VoteCount)

	require.NoError(t, f.features.Delete(ctx, f1.ID, identity(admin)))

	_, err = f.votes.CountFor(ctx, f1.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	views, err := f.listing.List(ctx, ListFilter{}, "")
	require.NoError(t, err)
	for _, v := range views {
		assert.NotEqual(t, f1.ID, v.ID)
	}
}
