package jobsculpt

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// Jobs is the job listing store. Listings never carry applicants: those
// are only reachable through ListApplicants and ListApplicantUsers.
type Jobs interface {
	repository.Repository[*Job]

	Create(ctx context.Context, job *Job, criteria ...repository.InsertCriteria) (*Job, error)
	CreateTx(ctx context.Context, tx bun.IDB, job *Job, criteria ...repository.InsertCriteria) (*Job, error)
	GetListing(ctx context.Context, id uuid.UUID) (*Job, error)
	ListAll(ctx context.Context) ([]*Job, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Job, error)
	ListBySkills(ctx context.Context, skills []string) ([]*Job, error)
	DeleteCascade(ctx context.Context, id uuid.UUID) error
	DeleteCascadeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	Apply(ctx context.Context, applicant *JobApplicant) error
	ListApplicants(ctx context.Context, jobID uuid.UUID) ([]*JobApplicant, error)
	ListApplicantUsers(ctx context.Context, jobID uuid.UUID) ([]*User, error)
}

type jobs struct {
	repository.Repository[*Job]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Jobs                        = (*jobs)(nil)
	_ repository.Repository[*Job] = (*jobs)(nil)
)

// NewJobsRepository returns a bun backed Jobs store. Lists are not paged.
func NewJobsRepository(db *bun.DB) Jobs {
	handlers := repository.ModelHandlers[*Job]{
		NewRecord: func() *Job { return &Job{} },
		GetID: func(j *Job) uuid.UUID {
			if j == nil {
				return uuid.Nil
			}
			return j.ID
		},
		SetID: func(j *Job, id uuid.UUID) {
			if j != nil {
				j.ID = id
			}
		},
	}

	return &jobs{
		Repository: repository.NewRepositoryWithConfig(db, handlers, nil,
			repository.WithDefaultListPagination(0, 0),
		),
		db:  db,
		now: time.Now,
	}
}

// SelectJobListing loads required skills, newest listing first
func SelectJobListing() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Relation("Skills", orderByID).
			OrderExpr("?TableAlias.posted_date DESC")
	}
}

func (r *jobs) Create(ctx context.Context, job *Job, criteria ...repository.InsertCriteria) (*Job, error) {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := r.CreateTx(ctx, tx, job, criteria...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// CreateTx inserts the job with one job_skills row per distinct required skill
func (r *jobs) CreateTx(ctx context.Context, tx bun.IDB, job *Job, criteria ...repository.InsertCriteria) (*Job, error) {
	if job.PostedDate.IsZero() {
		job.PostedDate = r.now()
	}

	if _, err := r.Repository.CreateTx(ctx, tx, job, criteria...); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create job")
	}

	job.Skills = job.Skills[:0]
	for _, name := range uniqueNames(job.RequiredSkills) {
		job.Skills = append(job.Skills, &JobSkill{
			ID:    ulid.Make().String(),
			JobID: job.ID,
			Name:  name,
		})
	}

	if len(job.Skills) > 0 {
		if _, err := tx.NewInsert().Model(&job.Skills).Returning("NULL").Exec(ctx); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store job skills")
		}
	}

	job.hydrate()
	return job, nil
}

func (r *jobs) GetListing(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := r.Repository.GetByID(ctx, id.String(), SelectJobListing())
	if err != nil {
		if isRecordNotFound(err) {
			return nil, fmt.Errorf("%w: id %s", ErrJobNotFound, id)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load job")
	}
	job.hydrate()
	return job, nil
}

func (r *jobs) ListAll(ctx context.Context) ([]*Job, error) {
	return r.list(ctx)
}

func (r *jobs) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Job, error) {
	return r.list(ctx, repository.SelectBy("user_id", "=", ownerID.String()))
}

// ListBySkills returns jobs requiring at least one of skills
func (r *jobs) ListBySkills(ctx context.Context, skills []string) ([]*Job, error) {
	names := uniqueNames(skills)
	if len(names) == 0 {
		return []*Job{}, nil
	}

	matching := r.db.NewSelect().
		Model((*JobSkill)(nil)).
		Column("job_id").
		Where("name IN (?)", bun.In(names))

	return r.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id IN (?)", matching)
	})
}

func (r *jobs) list(ctx context.Context, criteria ...repository.SelectCriteria) ([]*Job, error) {
	criteria = append([]repository.SelectCriteria{SelectJobListing()}, criteria...)
	out, _, err := r.Repository.List(ctx, criteria...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list jobs")
	}
	return hydrateJobs(out), nil
}

func (r *jobs) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return r.DeleteCascadeTx(ctx, tx, id)
	})
}

// DeleteCascadeTx removes the job with its skills and applications
func (r *jobs) DeleteCascadeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	job, err := r.Repository.GetByIDTx(ctx, tx, id.String())
	if err != nil {
		if isRecordNotFound(err) {
			return fmt.Errorf("%w: id %s", ErrJobNotFound, id)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load job")
	}

	if _, err := tx.NewDelete().Model((*JobSkill)(nil)).Where("job_id = ?", id).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete job skills")
	}

	if _, err := tx.NewDelete().Model((*JobApplicant)(nil)).Where("job_id = ?", id).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete job applicants")
	}

	if err := r.Repository.DeleteTx(ctx, tx, job); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete job")
	}

	return nil
}

// Apply records an application. The (job_id, user_id) constraint makes a
// repeated application a no-op reported as ErrAlreadyApplied.
func (r *jobs) Apply(ctx context.Context, applicant *JobApplicant) error {
	if applicant.ID == "" {
		applicant.ID = ulid.Make().String()
	}
	if applicant.AppliedAt.IsZero() {
		applicant.AppliedAt = r.now()
	}

	res, err := r.db.NewInsert().
		Model(applicant).
		On("CONFLICT (job_id, user_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply to job")
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyApplied
	}

	return nil
}

func (r *jobs) ListApplicants(ctx context.Context, jobID uuid.UUID) ([]*JobApplicant, error) {
	var out []*JobApplicant
	err := r.db.NewSelect().
		Model(&out).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list applicants")
	}
	return out, nil
}

func (r *jobs) ListApplicantUsers(ctx context.Context, jobID uuid.UUID) ([]*User, error) {
	applicants := r.db.NewSelect().
		Model((*JobApplicant)(nil)).
		Column("user_id").
		Where("job_id = ?", jobID)

	var out []*User
	err := r.db.NewSelect().
		Model(&out).
		Where("?TableAlias.id IN (?)", applicants).
		Relation("Skills", orderByID).
		Order("username ASC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list applicant users")
	}
	return out, nil
}

func hydrateJobs(in []*Job) []*Job {
	if in == nil {
		return []*Job{}
	}
	for _, j := range in {
		j.hydrate()
	}
	return in
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
