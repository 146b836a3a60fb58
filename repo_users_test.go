package jobsculpt_test

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-jobsculpt"
)

func TestUsersCreateClassifiesCollisions(t *testing.T) {
	ctx := context.Background()
	users := newTestRepo(t).Users()

	first, err := users.Create(ctx, &jobsculpt.User{
		Email:    "Username.Owner@example.com",
		Username: "owner",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, "username.owner@example.com", first.Email)

	_, err = users.Create(ctx, &jobsculpt.User{
		Email:    "username.owner@example.com",
		Username: "another",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, jobsculpt.ErrDuplicateEmail), "unexpected error: %v", err)
	assert.False(t, errors.Is(err, jobsculpt.ErrUsernameTaken))

	_, err = users.Create(ctx, &jobsculpt.User{
		Email:    "someone@example.com",
		Username: "owner",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, jobsculpt.ErrUsernameTaken), "unexpected error: %v", err)
	assert.Equal(t, 400, jobsculpt.AsError(err).Code)
}

func TestUsersLookups(t *testing.T) {
	ctx := context.Background()
	users := newTestRepo(t).Users()

	created, err := users.Create(ctx, &jobsculpt.User{Email: "frank@example.com", Username: "frank"})
	require.NoError(t, err)

	profile, err := users.GetProfile(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "frank", profile.Username)

	byLogin, err := users.GetByLogin(ctx, "", "frank")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byLogin.ID)

	byIdentifier, err := users.GetByIdentifier(ctx, "frank@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byIdentifier.ID)

	exists, err := users.UsernameExists(ctx, "frank")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = users.UsernameExists(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = users.GetProfile(ctx, uuid.New())
	assert.True(t, errors.Is(err, jobsculpt.ErrUserNotFound))
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryNotFound))

	assert.True(t, errors.Is(users.SetRole(ctx, uuid.New(), jobsculpt.RoleEmployer), jobsculpt.ErrUserNotFound))
}
