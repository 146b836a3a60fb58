package jobsculpt

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

const (
	// MaxUserSkills caps the number of skills a user can hold
	MaxUserSkills = 12

	DefaultProfileImage = "noImage"
	DefaultTheme        = "light"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID             `bun:"id,pk,type:uuid" json:"id"`
	Username       string                `bun:"username,notnull,unique" json:"userName"`
	Email          string                `bun:"email,notnull,unique" json:"email"`
	PasswordHash   string                `bun:"password_hash" json:"-"`
	GoogleID       string                `bun:"google_id,nullzero,unique" json:"googleId,omitempty"`
	IsGoogleUser   bool                  `bun:"is_google_user,notnull" json:"isGoogleUser"`
	EmailVerified  bool                  `bun:"email_verified,notnull" json:"emailVerified"`
	Role           UserRole              `bun:"role,notnull" json:"role"`
	Name           string                `bun:"name" json:"name,omitempty"`
	DateOfBirth    *time.Time            `bun:"date_of_birth,nullzero" json:"dob,omitempty"`
	About          string                `bun:"about" json:"about,omitempty"`
	ProfileImage   string                `bun:"profile_image,notnull" json:"profileImage"`
	Theme          string                `bun:"theme,notnull" json:"theme"`
	Education      []EducationEntry      `bun:"education" json:"education"`
	WorkExperience []WorkExperienceEntry `bun:"work_experience" json:"workExperience"`
	CreatedAt      time.Time             `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt      time.Time             `bun:"updated_at,notnull" json:"updatedAt"`

	Devices      []*Device      `bun:"rel:has-many,join:id=user_id" json:"devices"`
	Skills       []*UserSkill   `bun:"rel:has-many,join:id=user_id" json:"skills"`
	HiringSkills []*HiringSkill `bun:"rel:has-many,join:id=user_id" json:"hiringSkills"`
}

// Identity returns the user as an Identity for token generation
func (u *User) Identity() Identity {
	if u == nil {
		return nil
	}
	return userIdentity{user: u}
}

// userIdentity exists because User's fields shadow the Identity method names
type userIdentity struct {
	user *User
}

func (i userIdentity) ID() string       { return i.user.ID.String() }
func (i userIdentity) Username() string { return i.user.Username }
func (i userIdentity) Email() string    { return i.user.Email }
func (i userIdentity) Role() string     { return string(i.user.Role) }

// SkillNames returns the names of the user's skills in order
func (u *User) SkillNames() []string {
	out := make([]string, 0, len(u.Skills))
	for _, s := range u.Skills {
		out = append(out, s.Name)
	}
	return out
}

// EducationEntry is a single education record
type EducationEntry struct {
	Institution  string     `json:"institution"`
	Degree       string     `json:"degree,omitempty"`
	FieldOfStudy string     `json:"fieldOfStudy"`
	From         time.Time  `json:"from"`
	To           *time.Time `json:"to,omitempty"`
	Description  string     `json:"description,omitempty"`
}

// WorkExperienceEntry is a single position held
type WorkExperienceEntry struct {
	Company     string     `json:"company"`
	Position    string     `json:"position"`
	From        time.Time  `json:"from"`
	To          *time.Time `json:"to,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Location is the approximate geographic origin of a request
type Location struct {
	Country   string `json:"country"`
	City      string `json:"city"`
	TimeZone  string `json:"timeZone"`
	Continent string `json:"continent"`
	Currency  string `json:"currency"`
}

// Device is a known client a user has logged in from
type Device struct {
	bun.BaseModel `bun:"table:user_devices,alias:dev"`
	ID            string    `bun:"id,pk" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid,unique:user_devices_fingerprint" json:"-"`
	Fingerprint   string    `bun:"fingerprint,notnull,unique:user_devices_fingerprint" json:"-"`
	DeviceName    string    `bun:"device_name,notnull" json:"deviceName"`
	Platform      string    `bun:"platform,notnull" json:"platform"`
	IP            string    `bun:"ip" json:"ip"`
	Location      Location  `bun:"location" json:"location"`
	LastLogin     time.Time `bun:"last_login,notnull" json:"lastLogin"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// DeviceFingerprint derives the device uniqueness key. Two logins map to
// the same device when name, city, country and time zone all match.
func DeviceFingerprint(deviceName string, loc Location) string {
	h := sha256.New()
	h.Write([]byte(strings.Join([]string{
		deviceName,
		loc.City,
		loc.Country,
		loc.TimeZone,
	}, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}

// NewDevice builds a device record for userID from a resolved fingerprint
func NewDevice(userID uuid.UUID, fp Fingerprint, at time.Time) *Device {
	return &Device{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Fingerprint: DeviceFingerprint(fp.DeviceName, fp.Location),
		DeviceName:  fp.DeviceName,
		Platform:    fp.Platform,
		IP:          fp.IP,
		Location:    fp.Location,
		LastLogin:   at,
		CreatedAt:   at,
	}
}

// UserSkill is a (skill, proficiency) pair on a user profile
type UserSkill struct {
	bun.BaseModel `bun:"table:user_skills,alias:usk"`
	ID            string    `bun:"id,pk" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid,unique:user_skills_name" json:"-"`
	Name          string    `bun:"name,notnull,unique:user_skills_name" json:"skill"`
	Proficiency   string    `bun:"proficiency" json:"proficiency,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// HiringSkill is a skill an employer hires for
type HiringSkill struct {
	bun.BaseModel `bun:"table:employer_skills,alias:esk"`
	ID            string    `bun:"id,pk" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid,unique:employer_skills_name" json:"-"`
	Name          string    `bun:"name,notnull,unique:employer_skills_name" json:"skill"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// Job is a posted job listing
type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:job"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"userId"`
	Title         string    `bun:"title,notnull" json:"jobTitle"`
	Description   string    `bun:"description,notnull" json:"jobDescription"`
	CompanyName   string    `bun:"company_name,notnull" json:"companyName"`
	Salary        float64   `bun:"salary,notnull" json:"salary"`
	Duration      string    `bun:"duration,notnull" json:"duration"`
	PostedDate    time.Time `bun:"posted_date,notnull" json:"postedDate"`

	Skills         []*JobSkill     `bun:"rel:has-many,join:id=job_id" json:"-"`
	RequiredSkills []string        `bun:"-" json:"requiredSkills"`
	Applicants     []*JobApplicant `bun:"rel:has-many,join:id=job_id" json:"-"`
}

// JobSkill is a required skill of a job
type JobSkill struct {
	bun.BaseModel `bun:"table:job_skills,alias:jsk"`
	ID            string    `bun:"id,pk" json:"id"`
	JobID         uuid.UUID `bun:"job_id,notnull,type:uuid,unique:job_skills_name" json:"-"`
	Name          string    `bun:"name,notnull,unique:job_skills_name" json:"name"`
}

// JobApplicant is one application to a job. A user applies at most once.
type JobApplicant struct {
	bun.BaseModel `bun:"table:job_applicants,alias:japp"`
	ID            string    `bun:"id,pk" json:"id"`
	JobID         uuid.UUID `bun:"job_id,notnull,type:uuid,unique:job_applicants_user" json:"-"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid,unique:job_applicants_user" json:"userId"`
	CoverLetter   string    `bun:"cover_letter,notnull" json:"coverLetter"`
	AppliedAt     time.Time `bun:"applied_at,notnull" json:"appliedAt"`
}

// CatalogSkill is an entry of the curated global skill list
type CatalogSkill struct {
	bun.BaseModel `bun:"table:catalog_skills,alias:csk"`
	ID            string `bun:"id,pk" json:"id"`
	Name          string `bun:"name,notnull,unique" json:"skill"`
}

func (j *Job) hydrate() {
	j.RequiredSkills = make([]string, 0, len(j.Skills))
	for _, s := range j.Skills {
		j.RequiredSkills = append(j.RequiredSkills, s.Name)
	}
}

func prepareUserDefaults(record *User, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Role == "" {
		record.Role = RoleJobSeeker
	}

	if record.ProfileImage == "" {
		record.ProfileImage = DefaultProfileImage
	}

	if record.Theme == "" {
		record.Theme = DefaultTheme
	}

	if record.Education == nil {
		record.Education = []EducationEntry{}
	}

	if record.WorkExperience == nil {
		record.WorkExperience = []WorkExperienceEntry{}
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}
