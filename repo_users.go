package jobsculpt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Users is the user store. Every write has a Tx variant that runs on the
// given bun.IDB so callers can compose them inside RunInTx.
type Users interface {
	repository.Repository[*User]

	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	GetProfile(ctx context.Context, id uuid.UUID) (*User, error)
	GetProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByLogin(ctx context.Context, email, username string) (*User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	SetRole(ctx context.Context, id uuid.UUID, role UserRole) error

	RecordDevice(ctx context.Context, device *Device) (bool, error)
	RecordDeviceTx(ctx context.Context, tx bun.IDB, device *Device) (bool, error)
	ListDevices(ctx context.Context, userID uuid.UUID) ([]*Device, error)
	RemoveDevice(ctx context.Context, userID uuid.UUID, deviceName string) error

	AddSkill(ctx context.Context, userID uuid.UUID, name, proficiency string) (*UserSkill, error)
	AddSkillTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, name, proficiency string) (*UserSkill, error)
	RemoveSkill(ctx context.Context, userID uuid.UUID, name string) error
	ListSkills(ctx context.Context, userID uuid.UUID) ([]*UserSkill, error)

	AddHiringSkill(ctx context.Context, userID uuid.UUID, name string) (*HiringSkill, error)
	RemoveHiringSkill(ctx context.Context, userID uuid.UUID, name string) error
	ListHiringSkills(ctx context.Context, userID uuid.UUID) ([]*HiringSkill, error)
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// UsersOption configures the users repository
type UsersOption func(*users)

// WithUsersClock overrides the clock used for timestamps
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

// NewUsersRepository returns a bun backed Users store
func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
		GetIdentifierValue: func(u *User) string {
			if u == nil {
				return ""
			}
			return u.Email
		},
		ResolveIdentifier: resolveUserIdentifier,
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}
	return repoUsers
}

// SelectUserProfile eager loads the per user collections in id order
func SelectUserProfile() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Relation("Devices", orderByID).
			Relation("Skills", orderByID).
			Relation("HiringSkills", orderByID)
	}
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

// CreateTx inserts the user. Email and username uniqueness are enforced by
// the table constraints: a violation on username yields ErrUsernameTaken,
// any other unique violation yields ErrDuplicateEmail.
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record, a.now())
	record.Email = normalizeEmail(record.Email)

	created, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err == nil {
		return created, nil
	}

	column, ok := uniqueViolation(err)
	if !ok && repository.IsDuplicatedKey(err) {
		// the driver error was mapped without its source
		column, ok = a.duplicateColumn(ctx, tx, record), true
	}

	switch {
	case ok && column == "username":
		return nil, fmt.Errorf("%w: %w", ErrUsernameTaken, err)
	case ok:
		return nil, fmt.Errorf("%w: %w", ErrDuplicateEmail, err)
	}
	return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
}

// duplicateColumn names the column a failed insert of record collided on
func (a *users) duplicateColumn(ctx context.Context, tx bun.IDB, record *User) string {
	n, err := a.Repository.CountTx(ctx, tx, repository.SelectBy("email", "=", record.Email))
	if err == nil && n > 0 {
		return "email"
	}
	n, err = a.Repository.CountTx(ctx, tx, repository.SelectBy("username", "=", record.Username))
	if err == nil && n > 0 {
		return "username"
	}
	return "email"
}

func (a *users) GetProfile(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetProfileTx(ctx, a.db, id)
}

func (a *users) GetProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	user, err := a.Repository.GetByIDTx(ctx, tx, id.String(), SelectUserProfile())
	return user, userLookupError(err, "id", id)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = normalizeEmail(email)
	user, err := a.Repository.Get(ctx, repository.SelectBy("email", "=", email), SelectUserProfile())
	return user, userLookupError(err, "email", email)
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(username)
	user, err := a.Repository.Get(ctx, repository.SelectBy("username", "=", username), SelectUserProfile())
	return user, userLookupError(err, "username", username)
}

func (a *users) GetByGoogleID(ctx context.Context, googleID string) (*User, error) {
	if strings.TrimSpace(googleID) == "" {
		return nil, ErrUserNotFound
	}
	user, err := a.Repository.Get(ctx, repository.SelectBy("google_id", "=", googleID), SelectUserProfile())
	return user, userLookupError(err, "google_id", googleID)
}

// GetByLogin resolves a login identifier, preferring email over username
func (a *users) GetByLogin(ctx context.Context, email, username string) (*User, error) {
	if email = normalizeEmail(email); email != "" {
		user, err := a.GetByIdentifier(ctx, email, SelectUserProfile())
		if err == nil || username == "" || !isNotFound(err) {
			return user, err
		}
	}
	if username = strings.TrimSpace(username); username != "" {
		return a.GetByIdentifier(ctx, username, SelectUserProfile())
	}
	return nil, ErrUserNotFound
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

// GetByIdentifierTx looks the user up by id, email or username, whichever
// shape identifier has
func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	user, err := a.Repository.GetByIdentifierTx(ctx, tx, identifier, criteria...)
	return user, userLookupError(err, "identifier", identifier)
}

func (a *users) UsernameExists(ctx context.Context, username string) (bool, error) {
	n, err := a.Repository.Count(ctx, repository.SelectBy("username", "=", strings.TrimSpace(username)))
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username")
	}
	return n > 0, nil
}

func (a *users) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return a.updateColumns(ctx, a.db, &User{ID: id, EmailVerified: true}, "email_verified")
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.updateColumns(ctx, tx, &User{ID: id, PasswordHash: passwordHash}, "password_hash")
}

func (a *users) SetRole(ctx context.Context, id uuid.UUID, role UserRole) error {
	if !role.IsValid() {
		return ErrInvalidRole
	}
	return a.updateColumns(ctx, a.db, &User{ID: id, Role: role}, "role")
}

// updateColumns writes columns of record, matched by its primary key, and
// bumps updated_at
func (a *users) updateColumns(ctx context.Context, tx bun.IDB, record *User, columns ...string) error {
	record.UpdatedAt = a.now()
	columns = append(columns, "updated_at")

	_, err := a.Repository.UpdateTx(ctx, tx, record, repository.UpdateColumns(columns...))
	switch {
	case err == nil:
		return nil
	case repository.IsSQLExpectedCountViolation(err), isRecordNotFound(err):
		return fmt.Errorf("%w: id %s", ErrUserNotFound, record.ID)
	default:
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user")
	}
}

func (a *users) RecordDevice(ctx context.Context, device *Device) (bool, error) {
	return a.RecordDeviceTx(ctx, a.db, device)
}

// RecordDeviceTx inserts device unless the user already has one with the
// same fingerprint, in which case only its last login time moves. It
// reports whether a new record was created.
func (a *users) RecordDeviceTx(ctx context.Context, tx bun.IDB, device *Device) (bool, error) {
	if device.ID == "" {
		device.ID = ulid.Make().String()
	}
	if device.Fingerprint == "" {
		device.Fingerprint = DeviceFingerprint(device.DeviceName, device.Location)
	}
	if device.LastLogin.IsZero() {
		device.LastLogin = a.now()
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = device.LastLogin
	}

	res, err := tx.NewInsert().
		Model(device).
		On("CONFLICT (user_id, fingerprint) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record device")
	}

	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	_, err = tx.NewUpdate().
		Model((*Device)(nil)).
		Set("last_login = ?", device.LastLogin).
		Where("user_id = ?", device.UserID).
		Where("fingerprint = ?", device.Fingerprint).
		Exec(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update device last login")
	}

	return false, nil
}

func (a *users) ListDevices(ctx context.Context, userID uuid.UUID) ([]*Device, error) {
	var devices []*Device
	err := a.db.NewSelect().
		Model(&devices).
		Where("user_id = ?", userID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list devices")
	}
	return devices, nil
}

// RemoveDevice deletes every device of the user carrying deviceName
func (a *users) RemoveDevice(ctx context.Context, userID uuid.UUID, deviceName string) error {
	res, err := a.db.NewDelete().
		Model((*Device)(nil)).
		Where("user_id = ?", userID).
		Where("device_name = ?", deviceName).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove device")
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceName)
	}

	return nil
}

func (a *users) AddSkill(ctx context.Context, userID uuid.UUID, name, proficiency string) (*UserSkill, error) {
	var skill *UserSkill
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		skill, err = a.AddSkillTx(ctx, tx, userID, name, proficiency)
		return err
	})
	return skill, err
}

// AddSkillTx appends a skill while holding the user row lock so the count
// check and the insert cannot interleave with another add.
func (a *users) AddSkillTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, name, proficiency string) (*UserSkill, error) {
	name = strings.TrimSpace(name)

	if err := lockUser(ctx, tx, userID); err != nil {
		return nil, err
	}

	count, err := tx.NewSelect().
		Model((*UserSkill)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count skills")
	}

	if count >= MaxUserSkills {
		return nil, ErrSkillLimitReached
	}

	skill := &UserSkill{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Name:        name,
		Proficiency: proficiency,
		CreatedAt:   a.now(),
	}

	if _, err := tx.NewInsert().Model(skill).Returning("NULL").Exec(ctx); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, fmt.Errorf("%w: %w", ErrSkillExists, err)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to add skill")
	}

	return skill, nil
}

func (a *users) RemoveSkill(ctx context.Context, userID uuid.UUID, name string) error {
	res, err := a.db.NewDelete().
		Model((*UserSkill)(nil)).
		Where("user_id = ?", userID).
		Where("name = ?", strings.TrimSpace(name)).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove skill")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSkillNotFound
	}
	return nil
}

func (a *users) ListSkills(ctx context.Context, userID uuid.UUID) ([]*UserSkill, error) {
	var skills []*UserSkill
	err := a.db.NewSelect().
		Model(&skills).
		Where("user_id = ?", userID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list skills")
	}
	return skills, nil
}

func (a *users) AddHiringSkill(ctx context.Context, userID uuid.UUID, name string) (*HiringSkill, error) {
	skill := &HiringSkill{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		CreatedAt: a.now(),
	}

	if _, err := a.db.NewInsert().Model(skill).Returning("NULL").Exec(ctx); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, fmt.Errorf("%w: %w", ErrSkillExists, err)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to add hiring skill")
	}

	return skill, nil
}

func (a *users) RemoveHiringSkill(ctx context.Context, userID uuid.UUID, name string) error {
	res, err := a.db.NewDelete().
		Model((*HiringSkill)(nil)).
		Where("user_id = ?", userID).
		Where("name = ?", strings.TrimSpace(name)).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove hiring skill")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSkillNotFound
	}
	return nil
}

func (a *users) ListHiringSkills(ctx context.Context, userID uuid.UUID) ([]*HiringSkill, error) {
	var skills []*HiringSkill
	err := a.db.NewSelect().
		Model(&skills).
		Where("user_id = ?", userID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list hiring skills")
	}
	return skills, nil
}

// lockUser takes a row lock on postgres. SQLite serializes writers already.
func lockUser(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	q := tx.NewSelect().
		Model((*User)(nil)).
		Column("id").
		Where("id = ?", userID)

	if tx.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}

	var id uuid.UUID
	if err := q.Scan(ctx, &id); err != nil {
		if isRecordNotFound(err) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to lock user")
	}
	return nil
}

// userLookupError maps a repository miss to ErrUserNotFound
func userLookupError(err error, column string, value any) error {
	switch {
	case err == nil:
		return nil
	case isRecordNotFound(err):
		return fmt.Errorf("%w: %s %v", ErrUserNotFound, column, value)
	default:
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}
}

func resolveUserIdentifier(identifier string) []repository.IdentifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]repository.IdentifierOption, 0, 3)
	if _, err := uuid.Parse(trimmed); err == nil {
		options = append(options, repository.IdentifierOption{Column: "id", Value: trimmed})
	}
	if strings.Contains(trimmed, "@") {
		options = append(options, repository.IdentifierOption{Column: "email", Value: normalizeEmail(trimmed)})
	}
	return append(options, repository.IdentifierOption{Column: "username", Value: trimmed})
}

func isRecordNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}

func orderByID(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("id ASC")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isNotFound(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryNotFound)
}
