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

func backendJob() jobsculpt.PostJobMessage {
	return jobsculpt.PostJobMessage{
		Title:          "Backend Engineer",
		Description:    "Build APIs",
		CompanyName:    "Acme",
		Salary:         120000,
		Duration:       "full-time",
		SelectedSkills: []string{"Go", "SQL", "Go", " "},
	}
}

func TestPostJob(t *testing.T) {
	ctx := context.Background()

	t.Run("employer posts", func(t *testing.T) {
		env := newTestEnv(t)
		boss := env.register(t, "boss@example.com", "employer").User.ID.String()

		job, err := env.jobs.PostJob(ctx, boss, backendJob())
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, job.ID)
		assert.Equal(t, []string{"Go", "SQL"}, job.RequiredSkills)
		assert.Equal(t, env.clock.Now(), job.PostedDate)
		assert.Empty(t, job.Applicants)
		assert.Equal(t, 1, env.sink.count(jobsculpt.ActivityEventJobPosted))

		mine, err := env.jobs.EmployerJobs(ctx, boss)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.ElementsMatch(t, []string{"Go", "SQL"}, mine[0].RequiredSkills)
	})

	t.Run("job seeker is refused", func(t *testing.T) {
		env := newTestEnv(t)
		seeker := env.register(t, "seeker@example.com", "").User.ID.String()

		_, err := env.jobs.PostJob(ctx, seeker, backendJob())
		assert.True(t, errors.Is(err, jobsculpt.ErrEmployerOnly))
		assert.Equal(t, 403, jobsculpt.AsError(err).Code)
	})

	t.Run("invalid payload", func(t *testing.T) {
		env := newTestEnv(t)
		boss := env.register(t, "boss@example.com", "employer").User.ID.String()

		msg := backendJob()
		msg.Title = ""
		_, err := env.jobs.PostJob(ctx, boss, msg)
		require.Error(t, err)
		assert.True(t, goerrors.IsCategory(err, goerrors.CategoryValidation))
		assert.Contains(t, err.Error(), "jobTitle")
	})
}

func TestJobQueries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	boss := env.register(t, "boss@example.com", "employer").User.ID.String()
	other := env.register(t, "other@example.com", "employer").User.ID.String()
	seeker := env.register(t, "seeker@example.com", "").User.ID.String()

	goJob, err := env.jobs.PostJob(ctx, boss, backendJob())
	require.NoError(t, err)

	design := backendJob()
	design.Title = "Designer"
	design.SelectedSkills = []string{"Figma"}
	_, err = env.jobs.PostJob(ctx, other, design)
	require.NoError(t, err)

	all, err := env.jobs.AllJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byBoss, err := env.jobs.JobsByEmployer(ctx, boss)
	require.NoError(t, err)
	require.Len(t, byBoss, 1)
	assert.Equal(t, goJob.ID, byBoss[0].ID)

	none, err := env.jobs.JobsByEmployer(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Empty(t, none)

	found, err := env.jobs.FindJobs(ctx, seeker, []string{"SQL", "Cobol"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, goJob.ID, found[0].ID)

	found, err = env.jobs.FindJobs(ctx, seeker, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*testEnv, string, string, *jobsculpt.Job) {
		env := newTestEnv(t)
		boss := env.register(t, "boss@example.com", "employer").User.ID.String()
		seeker := env.register(t, "seeker@example.com", "").User.ID.String()
		job, err := env.jobs.PostJob(ctx, boss, backendJob())
		require.NoError(t, err)
		return env, boss, seeker, job
	}

	t.Run("applying twice leaves one application", func(t *testing.T) {
		env, boss, seeker, job := setup(t)
		msg := jobsculpt.ApplyJobMessage{JobID: job.ID.String(), UserID: seeker, CoverLetter: "hire me"}

		require.NoError(t, env.jobs.Apply(ctx, seeker, msg))

		err := env.jobs.Apply(ctx, seeker, msg)
		assert.True(t, errors.Is(err, jobsculpt.ErrAlreadyApplied))

		view, err := env.jobs.Applicants(ctx, boss, job.ID.String())
		require.NoError(t, err)
		require.Len(t, view.Applicants, 1)
		assert.Equal(t, "hire me", view.Applicants[0].CoverLetter)
		require.Len(t, view.UserDetails, 1)
		assert.Equal(t, "seeker", view.UserDetails[0].Username)
		assert.Equal(t, 1, env.sink.count(jobsculpt.ActivityEventJobApplied))
	})

	t.Run("cannot apply for someone else", func(t *testing.T) {
		env, boss, seeker, job := setup(t)

		err := env.jobs.Apply(ctx, boss, jobsculpt.ApplyJobMessage{JobID: job.ID.String(), UserID: seeker})
		assert.True(t, errors.Is(err, jobsculpt.ErrNotJobOwner))
	})

	t.Run("unknown job", func(t *testing.T) {
		env, _, seeker, _ := setup(t)

		err := env.jobs.Apply(ctx, seeker, jobsculpt.ApplyJobMessage{JobID: uuid.NewString(), UserID: seeker})
		assert.True(t, errors.Is(err, jobsculpt.ErrJobNotFound))

		err = env.jobs.Apply(ctx, seeker, jobsculpt.ApplyJobMessage{JobID: "nope", UserID: seeker})
		assert.True(t, errors.Is(err, jobsculpt.ErrJobNotFound))
	})

	t.Run("only the owner sees applicants", func(t *testing.T) {
		env, _, seeker, job := setup(t)

		_, err := env.jobs.Applicants(ctx, seeker, job.ID.String())
		assert.True(t, errors.Is(err, jobsculpt.ErrNotJobOwner))
	})
}

func TestDeleteJob(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	boss := env.register(t, "boss@example.com", "employer").User.ID.String()
	seeker := env.register(t, "seeker@example.com", "").User.ID.String()

	job, err := env.jobs.PostJob(ctx, boss, backendJob())
	require.NoError(t, err)
	require.NoError(t, env.jobs.Apply(ctx, seeker, jobsculpt.ApplyJobMessage{JobID: job.ID.String(), UserID: seeker}))

	err = env.jobs.DeleteJob(ctx, seeker, job.ID.String())
	assert.True(t, errors.Is(err, jobsculpt.ErrNotJobOwner))

	require.NoError(t, env.jobs.DeleteJob(ctx, boss, job.ID.String()))
	assert.Equal(t, 1, env.sink.count(jobsculpt.ActivityEventJobDeleted))

	_, err = env.repo.Jobs().GetListing(ctx, job.ID)
	assert.True(t, errors.Is(err, jobsculpt.ErrJobNotFound))

	applicants, err := env.repo.Jobs().ListApplicants(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, applicants)

	err = env.jobs.DeleteJob(ctx, boss, job.ID.String())
	assert.True(t, errors.Is(err, jobsculpt.ErrJobNotFound))
}
