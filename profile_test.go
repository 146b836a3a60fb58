package jobsculpt_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-jobsculpt"
)

func TestSkills(t *testing.T) {
	ctx := context.Background()

	t.Run("add and remove", func(t *testing.T) {
		env := newTestEnv(t)
		uid := env.register(t, "ivan@example.com", "").User.ID.String()

		skills, err := env.auther.AddSkill(ctx, uid, " Go ", "expert")
		require.NoError(t, err)
		require.Len(t, skills, 1)
		assert.Equal(t, "Go", skills[0].Name)
		assert.Equal(t, "expert", skills[0].Proficiency)

		_, err = env.auther.AddSkill(ctx, uid, "Go", "beginner")
		assert.True(t, errors.Is(err, jobsculpt.ErrSkillExists))

		skills, err = env.auther.RemoveSkill(ctx, uid, "Go")
		require.NoError(t, err)
		assert.Empty(t, skills)

		_, err = env.auther.RemoveSkill(ctx, uid, "Go")
		assert.True(t, errors.Is(err, jobsculpt.ErrSkillNotFound))
	})

	t.Run("limit leaves the list unchanged", func(t *testing.T) {
		env := newTestEnv(t)
		uid := env.register(t, "ivan@example.com", "").User.ID.String()

		for i := 0; i < jobsculpt.MaxUserSkills; i++ {
			_, err := env.auther.AddSkill(ctx, uid, fmt.Sprintf("skill-%02d", i), "")
			require.NoError(t, err)
		}

		_, err := env.auther.AddSkill(ctx, uid, "one-too-many", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, jobsculpt.ErrSkillLimitReached))
		assert.Equal(t, 400, jobsculpt.AsError(err).Code)

		user, err := env.auther.CurrentUser(ctx, uid)
		require.NoError(t, err)
		assert.Len(t, user.Skills, jobsculpt.MaxUserSkills)
		assert.NotContains(t, user.SkillNames(), "one-too-many")
	})

	t.Run("empty name", func(t *testing.T) {
		env := newTestEnv(t)
		uid := env.register(t, "ivan@example.com", "").User.ID.String()

		_, err := env.auther.AddSkill(ctx, uid, "  ", "")
		assert.True(t, goerrors.IsCategory(err, goerrors.CategoryValidation))
	})

	t.Run("hiring skills", func(t *testing.T) {
		env := newTestEnv(t)
		uid := env.register(t, "judy@example.com", "employer").User.ID.String()

		skills, err := env.auther.AddHiringSkill(ctx, uid, "Rust")
		require.NoError(t, err)
		require.Len(t, skills, 1)

		_, err = env.auther.AddHiringSkill(ctx, uid, "Rust")
		assert.True(t, errors.Is(err, jobsculpt.ErrSkillExists))

		skills, err = env.auther.RemoveHiringSkill(ctx, uid, "Rust")
		require.NoError(t, err)
		assert.Empty(t, skills)
	})
}

func TestRemoveDevice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	res := env.register(t, "ken@example.com", "")
	uid := res.User.ID.String()

	_, err := env.auther.Login(ctx, jobsculpt.LoginMessage{
		Email: "ken@example.com", Password: testPassword,
	}, deviceFrom(firefoxLinux))
	require.NoError(t, err)

	devices, err := env.auther.RemoveDevice(ctx, uid, res.User.Devices[0].DeviceName)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.NotEqual(t, res.User.Devices[0].DeviceName, devices[0].DeviceName)

	_, err = env.auther.RemoveDevice(ctx, uid, "Netscape on OS/2")
	assert.True(t, errors.Is(err, jobsculpt.ErrDeviceNotFound))

	_, err = env.auther.RemoveDevice(ctx, uid, "")
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryValidation))
}

func TestChangeRole(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	uid := env.register(t, "leo@example.com", "").User.ID.String()

	user, err := env.auther.ChangeRole(ctx, uid, "employer")
	require.NoError(t, err)
	assert.Equal(t, jobsculpt.RoleEmployer, user.Role)
	assert.Equal(t, 1, env.sink.count(jobsculpt.ActivityEventRoleChanged))

	_, err = env.auther.ChangeRole(ctx, uid, "admin")
	assert.True(t, errors.Is(err, jobsculpt.ErrInvalidRole))

	_, err = env.auther.ChangeRole(ctx, uid, "")
	assert.True(t, errors.Is(err, jobsculpt.ErrInvalidRole))

	_, err = env.auther.ChangeRole(ctx, "not-a-uuid", "employer")
	assert.True(t, errors.Is(err, jobsculpt.ErrUserNotFound))
}
