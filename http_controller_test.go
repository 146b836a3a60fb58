package jobsculpt_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-jobsculpt"
)

// MockCodeExchanger implements jobsculpt.CodeExchanger
type MockCodeExchanger struct {
	mock.Mock
}

func (m *MockCodeExchanger) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (m *MockCodeExchanger) Exchange(ctx context.Context, code string) (*jobsculpt.FederatedIdentity, error) {
	args := m.Called(ctx, code)
	if id, ok := args.Get(0).(*jobsculpt.FederatedIdentity); ok {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestApp(t *testing.T, env *testEnv) *fiber.App {
	t.Helper()
	app := jobsculpt.NewApp(jobsculpt.ServerConfig{}, jobsculpt.NopLogger{})
	jobsculpt.RegisterRoutes(app, env.auther,
		jobsculpt.WithControllerLogger(jobsculpt.NopLogger{}),
		jobsculpt.WithJobBoard(env.jobs),
		jobsculpt.WithSecureCookies(false),
	)
	return app
}

type apiResponse struct {
	Status  int
	Body    map[string]any
	Raw     []byte
	Header  http.Header
	Cookies []*http.Cookie
}

func doJSON(t *testing.T, app *fiber.App, method, path, token, ua string, body any) apiResponse {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if ua == "" {
		ua = chromeMac
	}
	req.Header.Set("User-Agent", ua)
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}

	res, err := app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	out := apiResponse{Status: res.StatusCode, Raw: raw, Header: res.Header, Cookies: res.Cookies()}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out.Body))
	}
	return out
}

func TestHTTPSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(t, env)

	res := doJSON(t, app, http.MethodPost, "/api/auth/register", "", "", map[string]any{
		"email":    "mallory@example.com",
		"password": testPassword,
		"role":     "employer",
	})
	require.Equal(t, http.StatusOK, res.Status, string(res.Raw))
	registered, _ := res.Body["token"].(string)
	require.NotEmpty(t, registered)

	res = doJSON(t, app, http.MethodPost, "/api/auth/register", "", "", map[string]any{
		"email":    "mallory@example.com",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "User already exists", res.Body["msg"])

	res = doJSON(t, app, http.MethodPost, "/api/auth/login", "", firefoxLinux, map[string]any{
		"email":    "mallory@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, res.Status, string(res.Raw))
	token, _ := res.Body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "Email is not validated", res.Body["msg"])
	assert.Equal(t, jobsculpt.DefaultTheme, res.Body["theme"])

	user, _ := res.Body["user"].(map[string]any)
	require.NotNil(t, user)
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, user, "PasswordHash")
	devices, _ := user["devices"].([]any)
	assert.Len(t, devices, 2)
	assert.Len(t, env.notifier.byKind("device"), 1)

	res = doJSON(t, app, http.MethodPost, "/api/auth/auth-user", token, "", nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "mallory@example.com", res.Body["email"])

	res = doJSON(t, app, http.MethodPost, "/api/auth/check-token", token, "", nil)
	assert.Equal(t, true, res.Body["valid"])

	res = doJSON(t, app, http.MethodPost, "/api/auth/logout", token, "", nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Logged out successfully", res.Body["msg"])

	res = doJSON(t, app, http.MethodPost, "/api/auth/auth-user", token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	res = doJSON(t, app, http.MethodPost, "/api/auth/check-token", token, "", nil)
	assert.Equal(t, false, res.Body["valid"])

	res = doJSON(t, app, http.MethodPost, "/api/auth/auth-user", registered, "", nil)
	assert.Equal(t, http.StatusOK, res.Status, "other sessions stay valid")
}

func TestHTTPProtectedRoutes(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(t, env)

	res := doJSON(t, app, http.MethodPost, "/api/auth/auth-user", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, "No token, authorization denied", res.Body["msg"])

	res = doJSON(t, app, http.MethodPost, "/api/auth/auth-user", "garbage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, "Token is not valid", res.Body["msg"])
}

func TestHTTPLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(t, env)
	env.register(t, "nina@example.com", "")

	wrong := doJSON(t, app, http.MethodPost, "/api/auth/login", "", "", map[string]any{
		"email": "nina@example.com", "password": "wrong",
	})
	unknown := doJSON(t, app, http.MethodPost, "/api/auth/login", "", "", map[string]any{
		"email": "ghost@example.com", "password": "wrong",
	})

	assert.Equal(t, http.StatusBadRequest, wrong.Status)
	assert.Equal(t, wrong.Status, unknown.Status)
	assert.Equal(t, "Invalid Credentials", wrong.Body["msg"])
	assert.Equal(t, wrong.Body, unknown.Body)

	res := doJSON(t, app, http.MethodPost, "/api/auth/login", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.Status)
}

func TestHTTPMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(t, env)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHTTPCheckUsername(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(t, env)
	env.register(t, "oscar@example.com", "")

	res := doJSON(t, app, http.MethodPost, "/api/auth/check-username", "", "", map[string]any{"userName": "oscar"})
	assert.Equal(t, false, res.Body["available"])
	assert.Equal(t, "Username already exists", res.Body["msg"])

	res = doJSON(t, app, http.MethodPost, "/api/auth/check-username", "", "", map[string]any{"userName": "free-name"})
	assert.Equal(t, true, res.Body["available"])
}

func TestHTTPVerifyEmailRedirects(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(t, env)
	reg := env.register(t, "pam@example.com", "")

	res := doJSON(t, app, http.MethodPost, "/api/auth/send-email-verification-link", reg.Token, "", nil)
	require.Equal(t, http.StatusOK, res.Status, string(res.Raw))
	assert.Equal(t, "Email sent", res.Body["msg"])

	link := env.notifier.byKind("verify")[0].Link
	u, err := url.Parse(link)
	require.NoError(t, err)

	res = doJSON(t, app, http.MethodGet, u.RequestURI(), "", "", nil)
	assert.Equal(t, http.StatusFound, res.Status)
	assert.Equal(t, "http://frontend.test/login", res.Header.Get("Location"))

	res = doJSON(t, app, http.MethodPost, "/api/auth/check-email-validated", reg.Token, "", nil)
	assert.Equal(t, "Email is validated", res.Body["msg"])
}

func TestHTTPPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(t, env)
	env.register(t, "quinn@example.com", "")

	known := doJSON(t, app, http.MethodPost, "/api/auth/forgot-password", "", "", map[string]any{"email": "quinn@example.com"})
	unknown := doJSON(t, app, http.MethodPost, "/api/auth/forgot-password", "", "", map[string]any{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusOK, known.Status)
	assert.Equal(t, known.Body, unknown.Body)

	token := tokenFromLink(t, env.notifier.byKind("reset")[0].Link)

	res := doJSON(t, app, http.MethodPost, "/api/auth/reset-password", "", "", map[string]any{
		"token": token, "password": "fresh password",
	})
	assert.Equal(t, http.StatusOK, res.Status)

	res = doJSON(t, app, http.MethodPost, "/api/auth/reset-password", "", "", map[string]any{
		"token": token, "password": "fresh password",
	})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "Invalid or expired token", res.Body["msg"])
}

func TestHTTPProfileRoutes(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(t, env)
	reg := env.register(t, "rita@example.com", "")

	res := doJSON(t, app, http.MethodPost, "/api/auth/add-skill", reg.Token, "", map[string]any{"skill": "Go", "proficiency": "expert"})
	require.Equal(t, http.StatusOK, res.Status, string(res.Raw))
	skills, _ := res.Body["skills"].([]any)
	assert.Len(t, skills, 1)

	res = doJSON(t, app, http.MethodPost, "/api/auth/change-role", reg.Token, "", map[string]any{"role": "employer"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "employer", res.Body["role"])

	res = doJSON(t, app, http.MethodPost, "/api/auth/add-hiring-skill", reg.Token, "", map[string]any{"skill": "Rust"})
	require.Equal(t, http.StatusOK, res.Status)
	hiring, _ := res.Body["hiringSkills"].([]any)
	assert.Len(t, hiring, 1)

	res = doJSON(t, app, http.MethodPost, "/api/auth/remove-device", reg.Token, "", map[string]any{"deviceName": "Unknown Browser on Unknown OS"})
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestHTTPJobRoutes(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(t, env)
	boss := env.register(t, "sam@example.com", "employer")
	seeker := env.register(t, "tina@example.com", "")

	res := doJSON(t, app, http.MethodPost, "/api/jobs/post-job", seeker.Token, "", backendJob())
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = doJSON(t, app, http.MethodPost, "/api/jobs/post-job", boss.Token, "", backendJob())
	require.Equal(t, http.StatusOK, res.Status, string(res.Raw))
	assert.Equal(t, true, res.Body["success"])
	job, _ := res.Body["job"].(map[string]any)
	jobID, _ := job["id"].(string)
	require.NotEmpty(t, jobID)

	res = doJSON(t, app, http.MethodGet, "/api/jobs/all-jobs", "", "", nil)
	require.Equal(t, http.StatusOK, res.Status)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(res.Raw, &all))
	assert.Len(t, all, 1)

	res = doJSON(t, app, http.MethodPost, "/api/jobs/find-jobs", seeker.Token, "", map[string]any{
		"skills": []map[string]string{{"skill": "SQL"}},
	})
	require.Equal(t, http.StatusOK, res.Status)
	var found []map[string]any
	require.NoError(t, json.Unmarshal(res.Raw, &found))
	assert.Len(t, found, 1)

	apply := map[string]any{"jobId": jobID, "userId": seeker.User.ID.String(), "coverLetter": "pick me"}
	res = doJSON(t, app, http.MethodPost, "/api/jobs/apply-job", seeker.Token, "", apply)
	assert.Equal(t, http.StatusOK, res.Status)

	res = doJSON(t, app, http.MethodPost, "/api/jobs/apply-job", seeker.Token, "", apply)
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = doJSON(t, app, http.MethodGet, "/api/jobs/job-applicants/"+jobID, boss.Token, "", nil)
	require.Equal(t, http.StatusOK, res.Status)
	applicants, _ := res.Body["applicants"].([]any)
	assert.Len(t, applicants, 1)

	res = doJSON(t, app, http.MethodGet, "/api/jobs/applicants/"+jobID, seeker.Token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	res = doJSON(t, app, http.MethodDelete, "/api/jobs/delete-job/"+jobID, boss.Token, "", nil)
	assert.Equal(t, http.StatusOK, res.Status)

	res = doJSON(t, app, http.MethodGet, "/api/jobs/employer-jobs/"+boss.User.ID.String(), "", "", nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.JSONEq(t, "[]", string(res.Raw))
}

func TestHTTPJobListsHideApplications(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(t, env)
	boss := env.register(t, "uma@example.com", "employer")
	seeker := env.register(t, "victor@example.com", "")
	other := env.register(t, "wendy@example.com", "")

	res := doJSON(t, app, http.MethodPost, "/api/jobs/post-job", boss.Token, "", backendJob())
	require.Equal(t, http.StatusOK, res.Status, string(res.Raw))
	job, _ := res.Body["job"].(map[string]any)
	jobID, _ := job["id"].(string)
	require.NotEmpty(t, jobID)

	const letter = "private cover letter for the hiring manager"
	res = doJSON(t, app, http.MethodPost, "/api/jobs/apply-job", seeker.Token, "", map[string]any{
		"jobId": jobID, "userId": seeker.User.ID.String(), "coverLetter": letter,
	})
	require.Equal(t, http.StatusOK, res.Status, string(res.Raw))

	listings := []apiResponse{
		doJSON(t, app, http.MethodGet, "/api/jobs/all-jobs", "", "", nil),
		doJSON(t, app, http.MethodGet, "/api/jobs/employer-jobs/"+boss.User.ID.String(), "", "", nil),
		doJSON(t, app, http.MethodPost, "/api/jobs/find-jobs", other.Token, "", map[string]any{
			"skills": []map[string]string{{"skill": "Go"}},
		}),
	}
	for _, res := range listings {
		require.Equal(t, http.StatusOK, res.Status, string(res.Raw))

		var jobs []map[string]any
		require.NoError(t, json.Unmarshal(res.Raw, &jobs))
		require.Len(t, jobs, 1)
		assert.NotContains(t, jobs[0], "applicants")
		assert.NotContains(t, string(res.Raw), letter)
		assert.NotContains(t, string(res.Raw), seeker.User.ID.String())
	}

	res = doJSON(t, app, http.MethodGet, "/api/jobs/applicants/"+jobID, boss.Token, "", nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, string(res.Raw), letter)
}

func TestHTTPGoogleRedirectFlow(t *testing.T) {
	env := newTestEnv(t)

	exchanger := &MockCodeExchanger{}
	exchanger.On("Exchange", mock.Anything, "good-code").Return(&jobsculpt.FederatedIdentity{
		Subject: "sub-42", Email: "uma@example.com", EmailVerified: true,
	}, nil).Once()
	exchanger.On("Exchange", mock.Anything, "bad-code").Return(nil, errors.New("invalid_grant")).Once()
	env.auther.WithCodeExchanger(exchanger)

	app := newTestApp(t, env)

	start := func() (state string, cookie *http.Cookie) {
		res := doJSON(t, app, http.MethodGet, "/api/auth/google", "", "", nil)
		require.Equal(t, http.StatusFound, res.Status)

		loc, err := url.Parse(res.Header.Get("Location"))
		require.NoError(t, err)
		state = loc.Query().Get("state")
		require.NotEmpty(t, state)

		for _, c := range res.Cookies {
			if c.Name == "oauth_state" {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		return state, cookie
	}

	callback := func(state, code string, cookie *http.Cookie) *http.Response {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state="+url.QueryEscape(state)+"&code="+code, nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		res, err := app.Test(req, -1)
		require.NoError(t, err)
		return res
	}

	t.Run("success sets the session cookie", func(t *testing.T) {
		state, cookie := start()
		res := callback(state, "good-code", cookie)

		assert.Equal(t, http.StatusFound, res.StatusCode)
		assert.Equal(t, "http://frontend.test/dashboard", res.Header.Get("Location"))

		var session *http.Cookie
		for _, c := range res.Cookies() {
			if c.Name == jobsculpt.TokenCookie {
				session = c
			}
		}
		require.NotNil(t, session)
		assert.True(t, session.HttpOnly)
		assert.True(t, env.auther.CheckToken(context.Background(), session.Value))
	})

	t.Run("state without its cookie is rejected", func(t *testing.T) {
		state, _ := start()
		res := callback(state, "good-code", nil)

		assert.Equal(t, http.StatusFound, res.StatusCode)
		assert.Equal(t, "http://frontend.test/login", res.Header.Get("Location"))
	})

	t.Run("provider failure lands on login", func(t *testing.T) {
		state, cookie := start()
		res := callback(state, "bad-code", cookie)

		assert.Equal(t, http.StatusFound, res.StatusCode)
		assert.Equal(t, "http://frontend.test/login", res.Header.Get("Location"))
	})

	exchanger.AssertExpectations(t)
}

func TestHTTPGoogleRedirectDisabled(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(t, env)

	res := doJSON(t, app, http.MethodGet, "/api/auth/google", "", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
}
