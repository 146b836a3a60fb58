package jobsculpt

import (
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-jobsculpt/middleware/tokenware"
)

const (
	// TokenCookie carries the session token set by the redirect flow
	TokenCookie = "token"
	stateCookie = "oauth_state"
)

type ControllerRoutes struct {
	Auth string
	Jobs string
}

// Controller exposes the account workflow and the job board over HTTP
type Controller struct {
	Logger  Logger
	Auther  *Auther
	Jobs    *JobBoard
	States  *StateSigner
	Limiter *IPRateLimiter
	Routes  *ControllerRoutes
	// SecureCookies marks cookies Secure, disable for plain http development
	SecureCookies bool

	protect    fiber.Handler
	extractors []tokenware.Extractor
	contextKey string
}

type ControllerOption func(*Controller) *Controller

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithJobBoard(jobs *JobBoard) ControllerOption {
	return func(c *Controller) *Controller {
		c.Jobs = jobs
		return c
	}
}

func WithStateSigner(states *StateSigner) ControllerOption {
	return func(c *Controller) *Controller {
		c.States = states
		return c
	}
}

func WithRateLimiter(limiter *IPRateLimiter) ControllerOption {
	return func(c *Controller) *Controller {
		c.Limiter = limiter
		return c
	}
}

func WithSecureCookies(secure bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.SecureCookies = secure
		return c
	}
}

// NewController returns a controller for auther. It panics without one.
func NewController(auther *Auther, opts ...ControllerOption) *Controller {
	if auther == nil {
		panic("Missing Auther in controller...")
	}

	c := &Controller{
		Logger:        defLogger{},
		Auther:        auther,
		SecureCookies: true,
		Routes: &ControllerRoutes{
			Auth: "/api/auth",
			Jobs: "/api/jobs",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Jobs == nil {
		c.Jobs = NewJobBoard(auther.repo).WithLogger(c.Logger)
	}

	if c.States == nil {
		c.States = NewStateSigner([]byte(auther.cfg.GetSigningKey()), 10*time.Minute)
	}

	lookup := auther.cfg.GetTokenLookup()
	c.contextKey = auther.cfg.GetContextKey()
	c.extractors = tokenware.GetExtractors(lookup, "")
	c.protect = tokenware.New(tokenware.Config{
		ContextKey:      c.contextKey,
		TokenLookup:     lookup,
		TokenValidator:  auther,
		ContextEnricher: ContextEnricherAdapter,
		ValidationListeners: []tokenware.ValidationListener{
			c.keepRawToken,
		},
	})

	return c
}

// RegisterRoutes mounts the auth and jobs routes on app
func RegisterRoutes(app fiber.Router, auther *Auther, opts ...ControllerOption) *Controller {
	c := NewController(auther, opts...)

	var limit fiber.Handler = func(fc *fiber.Ctx) error { return fc.Next() }
	if c.Limiter != nil {
		limit = c.Limiter.Middleware()
	}

	auth := app.Group(c.Routes.Auth)
	auth.Post("/register", limit, c.Register)
	auth.Post("/check-username", c.CheckUsername)
	auth.Post("/login", limit, c.Login)
	auth.Post("/auth-user", c.protect, c.AuthUser)
	auth.Post("/check-email-validated", c.protect, c.CheckEmailValidated)
	auth.Post("/send-email-verification-link", c.protect, c.SendVerificationLink)
	auth.Get("/verify-email", c.VerifyEmail)
	auth.Post("/google", limit, c.GoogleLogin)
	auth.Get("/google", limit, c.GoogleRedirect)
	auth.Get("/google/callback", c.GoogleCallback)
	auth.Post("/logout", c.protect, c.Logout)
	auth.Post("/forgot-password", limit, c.ForgotPassword)
	auth.Post("/reset-password", limit, c.ResetPassword)
	auth.Post("/remove-device", c.protect, c.RemoveDevice)
	auth.Post("/check-token", c.CheckToken)
	auth.Post("/change-role", c.protect, c.ChangeRole)
	auth.Post("/add-skill", c.protect, c.AddSkill)
	auth.Post("/remove-skill", c.protect, c.RemoveSkill)
	auth.Post("/add-hiring-skill", c.protect, c.AddHiringSkill)
	auth.Post("/remove-hiring-skill", c.protect, c.RemoveHiringSkill)

	jobs := app.Group(c.Routes.Jobs)
	jobs.Post("/post-job", c.protect, c.PostJob)
	jobs.Get("/employer-jobs", c.protect, c.EmployerJobs)
	jobs.Get("/employer-jobs/:employerId", c.JobsByEmployer)
	jobs.Get("/all-jobs", c.AllJobs)
	jobs.Delete("/delete-job/:id", c.protect, c.DeleteJob)
	jobs.Post("/find-jobs", c.protect, c.FindJobs)
	jobs.Post("/apply-job", c.protect, c.ApplyJob)
	jobs.Get("/applicants/:jobId", c.protect, c.Applicants)
	jobs.Get("/job-applicants/:jobId", c.protect, c.JobApplicants)

	return c
}

func (a *Controller) keepRawToken(c *fiber.Ctx, _ tokenware.AuthClaims) error {
	raw, err := tokenware.ExtractRawToken(c, a.extractors)
	if err != nil {
		return err
	}
	c.SetUserContext(withRawToken(c.UserContext(), raw))
	return nil
}

func (a *Controller) claims(c *fiber.Ctx) (*JWTClaims, error) {
	claims, ok := GetRouterClaims(c, a.contextKey)
	if !ok {
		return nil, ErrMissingToken
	}
	return claims, nil
}

func deviceRequest(c *fiber.Ctx) DeviceRequest {
	return DeviceRequest{
		UserAgent:    c.Get(fiber.HeaderUserAgent),
		PlatformHint: c.Get("Sec-CH-UA-Platform"),
		IP:           c.IP(),
	}
}

func bind(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "Invalid request body")
	}
	return nil
}

func msg(c *fiber.Ctx, text string) error {
	return c.JSON(fiber.Map{"msg": text})
}

// sessionPayload is the body returned by every sign in
func sessionPayload(res *AuthResult) fiber.Map {
	out := fiber.Map{
		"token": res.Token,
		"theme": res.User.Theme,
		"user":  res.User,
	}
	if !res.User.EmailVerified {
		out["msg"] = "Email is not validated"
	}
	return out
}

func (a *Controller) Register(c *fiber.Ctx) error {
	payload := RegisterUserMessage{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	res, err := a.Auther.Register(c.UserContext(), payload, deviceRequest(c))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"token": res.Token})
}

type usernamePayload struct {
	Username string `json:"userName"`
}

func (a *Controller) CheckUsername(c *fiber.Ctx) error {
	payload := usernamePayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	available, err := a.Auther.CheckUsername(c.UserContext(), payload.Username)
	if err != nil {
		return err
	}

	text := "Username is available"
	if !available {
		text = "Username already exists"
	}

	return c.JSON(fiber.Map{"msg": text, "available": available})
}

func (a *Controller) Login(c *fiber.Ctx) error {
	payload := LoginMessage{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	res, err := a.Auther.Login(c.UserContext(), payload, deviceRequest(c))
	if err != nil {
		return err
	}

	return c.JSON(sessionPayload(res))
}

func (a *Controller) AuthUser(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	user, err := a.Auther.CurrentUser(c.UserContext(), claims.UserID())
	if err != nil {
		return err
	}

	return c.JSON(user)
}

func (a *Controller) CheckEmailValidated(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	verified, err := a.Auther.EmailVerified(c.UserContext(), claims.UserID())
	if err != nil {
		return err
	}

	if verified {
		return msg(c, "Email is validated")
	}
	return msg(c, "Email is not validated")
}

func (a *Controller) SendVerificationLink(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	if err := a.Auther.SendVerificationLink(c.UserContext(), claims.UserID()); err != nil {
		return err
	}

	return msg(c, "Email sent")
}

func (a *Controller) VerifyEmail(c *fiber.Ctx) error {
	redirect, err := a.Auther.VerifyEmail(c.UserContext(), c.Query("token"))
	if err != nil {
		return err
	}
	return c.Redirect(redirect, fiber.StatusFound)
}

func (a *Controller) GoogleLogin(c *fiber.Ctx) error {
	payload := OAuthLoginMessage{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	res, err := a.Auther.OAuthLogin(c.UserContext(), payload, deviceRequest(c))
	if err != nil {
		return err
	}

	return c.JSON(sessionPayload(res))
}

// GoogleRedirect starts the authorization code flow
func (a *Controller) GoogleRedirect(c *fiber.Ctx) error {
	exchanger := a.Auther.CodeExchanger()
	if exchanger == nil {
		return fiber.NewError(fiber.StatusNotFound, "Google sign in is not configured")
	}

	state, nonce, err := a.States.Issue()
	if err != nil {
		return err
	}

	a.setCookie(c, stateCookie, nonce, time.Now().Add(10*time.Minute))

	return c.Redirect(exchanger.AuthCodeURL(state), fiber.StatusFound)
}

// GoogleCallback finishes the flow, sets the token cookie and sends the
// browser to the dashboard. Failures land on the login page.
func (a *Controller) GoogleCallback(c *fiber.Ctx) error {
	failure := a.Auther.frontendURL("/login")

	nonce := c.Cookies(stateCookie)
	a.clearCookie(c, stateCookie)

	if err := a.States.Verify(c.Query("state"), nonce); err != nil {
		a.Logger.Warn("oauth callback state rejected", "error", err)
		return c.Redirect(failure, fiber.StatusFound)
	}

	res, err := a.Auther.OAuthCallback(c.UserContext(), c.Query("code"), deviceRequest(c))
	if err != nil {
		a.Logger.Warn("oauth callback failed", "error", err)
		return c.Redirect(failure, fiber.StatusFound)
	}

	a.setCookie(c, TokenCookie, res.Token, res.Claims.Expires())

	return c.Redirect(a.Auther.frontendURL("/dashboard"), fiber.StatusFound)
}

func (a *Controller) Logout(c *fiber.Ctx) error {
	if err := a.Auther.Logout(c.UserContext(), rawToken(c.UserContext())); err != nil {
		return err
	}
	a.clearCookie(c, TokenCookie)
	return msg(c, "Logged out successfully")
}

type emailPayload struct {
	Email string `json:"email"`
}

func (a *Controller) ForgotPassword(c *fiber.Ctx) error {
	payload := emailPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	if err := a.Auther.ForgotPassword(c.UserContext(), payload.Email); err != nil {
		return err
	}

	return msg(c, "If the email is registered, a password reset link has been sent")
}

func (a *Controller) ResetPassword(c *fiber.Ctx) error {
	payload := FinalizePasswordResetMessage{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	if err := a.Auther.ResetPassword(c.UserContext(), payload.Token, payload.Password); err != nil {
		return err
	}

	return msg(c, "Password reset successful")
}

type devicePayload struct {
	DeviceName string `json:"deviceName"`
}

func (a *Controller) RemoveDevice(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	payload := devicePayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	devices, err := a.Auther.RemoveDevice(c.UserContext(), claims.UserID(), payload.DeviceName)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"msg": "Device removed", "devices": devices})
}

// CheckToken reports validity only, claims are never returned
func (a *Controller) CheckToken(c *fiber.Ctx) error {
	raw, err := tokenware.ExtractRawToken(c, a.extractors)
	if err != nil {
		return c.JSON(fiber.Map{"valid": false})
	}
	return c.JSON(fiber.Map{"valid": a.Auther.CheckToken(c.UserContext(), raw)})
}

type rolePayload struct {
	Role string `json:"role"`
}

func (a *Controller) ChangeRole(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	payload := rolePayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	user, err := a.Auther.ChangeRole(c.UserContext(), claims.UserID(), payload.Role)
	if err != nil {
		return err
	}

	return c.JSON(user)
}

type skillPayload struct {
	Skill       string `json:"skill"`
	Proficiency string `json:"proficiency"`
}

func (a *Controller) AddSkill(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	payload := skillPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	skills, err := a.Auther.AddSkill(c.UserContext(), claims.UserID(), payload.Skill, payload.Proficiency)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"skills": skills})
}

func (a *Controller) RemoveSkill(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	payload := skillPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	skills, err := a.Auther.RemoveSkill(c.UserContext(), claims.UserID(), payload.Skill)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"skills": skills})
}

func (a *Controller) AddHiringSkill(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	payload := skillPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	skills, err := a.Auther.AddHiringSkill(c.UserContext(), claims.UserID(), payload.Skill)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"hiringSkills": skills})
}

func (a *Controller) RemoveHiringSkill(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	payload := skillPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	skills, err := a.Auther.RemoveHiringSkill(c.UserContext(), claims.UserID(), payload.Skill)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"hiringSkills": skills})
}

func (a *Controller) PostJob(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	payload := PostJobMessage{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	job, err := a.Jobs.PostJob(c.UserContext(), claims.UserID(), payload)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"msg": "Job posted successfully", "success": true, "job": job})
}

func (a *Controller) EmployerJobs(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	jobs, err := a.Jobs.EmployerJobs(c.UserContext(), claims.UserID())
	if err != nil {
		return err
	}

	return c.JSON(jobs)
}

func (a *Controller) JobsByEmployer(c *fiber.Ctx) error {
	jobs, err := a.Jobs.JobsByEmployer(c.UserContext(), c.Params("employerId"))
	if err != nil {
		return err
	}
	return c.JSON(jobs)
}

func (a *Controller) AllJobs(c *fiber.Ctx) error {
	jobs, err := a.Jobs.AllJobs(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(jobs)
}

func (a *Controller) DeleteJob(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	if err := a.Jobs.DeleteJob(c.UserContext(), claims.UserID(), c.Params("id")); err != nil {
		return err
	}

	return msg(c, "Job removed")
}

type findJobsPayload struct {
	Skills []struct {
		Skill string `json:"skill"`
	} `json:"skills"`
}

func (a *Controller) FindJobs(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	payload := findJobsPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	names := make([]string, 0, len(payload.Skills))
	for _, s := range payload.Skills {
		names = append(names, s.Skill)
	}

	jobs, err := a.Jobs.FindJobs(c.UserContext(), claims.UserID(), names)
	if err != nil {
		return err
	}

	return c.JSON(jobs)
}

func (a *Controller) ApplyJob(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	payload := ApplyJobMessage{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	if err := a.Jobs.Apply(c.UserContext(), claims.UserID(), payload); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

func (a *Controller) Applicants(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	view, err := a.Jobs.Applicants(c.UserContext(), claims.UserID(), c.Params("jobId"))
	if err != nil {
		return err
	}

	return c.JSON(view.Applicants)
}

func (a *Controller) JobApplicants(c *fiber.Ctx) error {
	claims, err := a.claims(c)
	if err != nil {
		return err
	}

	view, err := a.Jobs.Applicants(c.UserContext(), claims.UserID(), c.Params("jobId"))
	if err != nil {
		return err
	}

	return c.JSON(view)
}

func (a *Controller) setCookie(c *fiber.Ctx, name, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *Controller) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
