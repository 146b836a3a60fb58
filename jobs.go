package jobsculpt

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// PostJobMessage is the payload of a new listing
type PostJobMessage struct {
	Title          string   `json:"jobTitle"`
	Description    string   `json:"jobDescription"`
	CompanyName    string   `json:"companyName"`
	Salary         float64  `json:"salary"`
	Duration       string   `json:"duration"`
	SelectedSkills []string `json:"selectedSkills"`
}

func (m PostJobMessage) Type() string { return "job.post" }

func (m PostJobMessage) Validate() error {
	err := validation.ValidateStruct(&m,
		validation.Field(&m.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.Description, validation.Required),
		validation.Field(&m.CompanyName, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.Salary, validation.Min(float64(0))),
		validation.Field(&m.Duration, validation.Length(0, 100)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, validationMessage(err))
	}
	return nil
}

// ApplyJobMessage is an application to a job on behalf of UserID
type ApplyJobMessage struct {
	JobID       string `json:"jobId"`
	UserID      string `json:"userId"`
	CoverLetter string `json:"coverLetter"`
}

func (m ApplyJobMessage) Type() string { return "job.apply" }

// ApplicantsView is the owner's view of a job's applications
type ApplicantsView struct {
	Applicants  []*JobApplicant `json:"applicants"`
	UserDetails []*User         `json:"userDetails"`
}

// JobBoard posts, lists and applies to jobs on behalf of authenticated users
type JobBoard struct {
	repo         RepositoryManager
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// NewJobBoard returns a JobBoard on repo
func NewJobBoard(repo RepositoryManager) *JobBoard {
	return &JobBoard{
		repo:         repo,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (b *JobBoard) WithLogger(logger Logger) *JobBoard {
	if logger != nil {
		b.logger = logger
	}
	return b
}

func (b *JobBoard) WithActivitySink(sink ActivitySink) *JobBoard {
	b.activitySink = normalizeActivitySink(sink)
	return b
}

func (b *JobBoard) WithClock(now func() time.Time) *JobBoard {
	if now != nil {
		b.now = now
	}
	return b
}

// PostJob publishes a listing owned by userID
func (b *JobBoard) PostJob(ctx context.Context, userID string, msg PostJobMessage) (*Job, error) {
	owner, err := b.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !owner.Role.CanPostJobs() {
		return nil, ErrEmployerOnly
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	job, err := b.repo.Jobs().Create(ctx, &Job{
		UserID:         owner.ID,
		Title:          strings.TrimSpace(msg.Title),
		Description:    msg.Description,
		CompanyName:    strings.TrimSpace(msg.CompanyName),
		Salary:         msg.Salary,
		Duration:       msg.Duration,
		PostedDate:     b.now(),
		RequiredSkills: msg.SelectedSkills,
	})
	if err != nil {
		b.logger.Error("PostJob error", "user_id", userID, "error", err)
		return nil, err
	}

	b.emit(ctx, ActivityEventJobPosted, userID, map[string]any{
		"job_id": job.ID.String(),
		"title":  job.Title,
	})

	return job, nil
}

// EmployerJobs lists the caller's own listings
func (b *JobBoard) EmployerJobs(ctx context.Context, userID string) ([]*Job, error) {
	owner, err := b.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return b.repo.Jobs().ListByOwner(ctx, owner.ID)
}

// JobsByEmployer lists the listings of any employer. An unknown id yields
// an empty list.
func (b *JobBoard) JobsByEmployer(ctx context.Context, employerID string) ([]*Job, error) {
	id, err := uuid.Parse(strings.TrimSpace(employerID))
	if err != nil {
		return []*Job{}, nil
	}
	return b.repo.Jobs().ListByOwner(ctx, id)
}

func (b *JobBoard) AllJobs(ctx context.Context) ([]*Job, error) {
	return b.repo.Jobs().ListAll(ctx)
}

// DeleteJob removes a listing. Only its owner may delete it.
func (b *JobBoard) DeleteJob(ctx context.Context, userID, jobID string) error {
	owner, err := b.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	job, err := b.loadJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.UserID != owner.ID {
		return ErrNotJobOwner
	}

	if err := b.repo.Jobs().DeleteCascade(ctx, job.ID); err != nil {
		return err
	}

	b.emit(ctx, ActivityEventJobDeleted, userID, map[string]any{
		"job_id": job.ID.String(),
	})

	return nil
}

// FindJobs returns listings requiring any of skills
func (b *JobBoard) FindJobs(ctx context.Context, userID string, skills []string) ([]*Job, error) {
	if _, err := b.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	return b.repo.Jobs().ListBySkills(ctx, skills)
}

// Apply records an application of the caller. The caller can only apply
// for themselves and only once per job.
func (b *JobBoard) Apply(ctx context.Context, callerID string, msg ApplyJobMessage) error {
	if strings.TrimSpace(msg.UserID) != callerID {
		return ErrNotJobOwner
	}

	job, err := b.loadJob(ctx, msg.JobID)
	if err != nil {
		return err
	}

	applicant, err := b.loadUser(ctx, msg.UserID)
	if err != nil {
		return err
	}

	err = b.repo.Jobs().Apply(ctx, &JobApplicant{
		JobID:       job.ID,
		UserID:      applicant.ID,
		CoverLetter: msg.CoverLetter,
		AppliedAt:   b.now(),
	})
	if err != nil {
		return err
	}

	b.emit(ctx, ActivityEventJobApplied, callerID, map[string]any{
		"job_id": job.ID.String(),
	})

	return nil
}

// Applicants lists the applications to a job owned by userID, along with
// the applicants' profiles
func (b *JobBoard) Applicants(ctx context.Context, userID, jobID string) (*ApplicantsView, error) {
	owner, err := b.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	job, err := b.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.UserID != owner.ID {
		return nil, ErrNotJobOwner
	}

	applicants, err := b.repo.Jobs().ListApplicants(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	users, err := b.repo.Jobs().ListApplicantUsers(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	if applicants == nil {
		applicants = []*JobApplicant{}
	}
	if users == nil {
		users = []*User{}
	}

	return &ApplicantsView{
		Applicants:  applicants,
		UserDetails: users,
	}, nil
}

func (b *JobBoard) loadUser(ctx context.Context, userID string) (*User, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	return b.repo.Users().GetProfile(ctx, id)
}

func (b *JobBoard) loadJob(ctx context.Context, jobID string) (*Job, error) {
	id, err := uuid.Parse(strings.TrimSpace(jobID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJobNotFound, err)
	}
	return b.repo.Jobs().GetListing(ctx, id)
}

func (b *JobBoard) emit(ctx context.Context, eventType ActivityEventType, userID string, meta map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{ID: userID, Type: "user"},
		UserID:     userID,
		Metadata:   meta,
		OccurredAt: b.now(),
	}
	if err := normalizeActivitySink(b.activitySink).Record(ctx, event); err != nil {
		b.logger.Warn("activity sink record error", "error", err)
	}
}
