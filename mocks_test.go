package jobsculpt_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-jobsculpt"
)

const testSigningKey = "test-signing-key-0123456789"

// testConfig implements jobsculpt.Config
type testConfig struct {
	tokenTTL    time.Duration
	extendedTTL time.Duration
	frontend    string
	backend     string
}

func newTestConfig() *testConfig {
	return &testConfig{
		tokenTTL:    time.Hour,
		extendedTTL: 365 * 24 * time.Hour,
		frontend:    "http://frontend.test",
		backend:     "http://backend.test",
	}
}

func (c *testConfig) GetSigningKey() string                         { return testSigningKey }
func (c *testConfig) GetIssuer() string                             { return "jobsculpt-test" }
func (c *testConfig) GetTokenExpiration() time.Duration             { return c.tokenTTL }
func (c *testConfig) GetExtendedTokenExpiration() time.Duration     { return c.extendedTTL }
func (c *testConfig) GetVerificationTokenExpiration() time.Duration { return time.Hour }
func (c *testConfig) GetResetTokenExpiration() time.Duration        { return time.Hour }
func (c *testConfig) GetContextKey() string                         { return "user" }
func (c *testConfig) GetTokenLookup() string                        { return "header:x-auth-token" }
func (c *testConfig) GetFrontendURL() string                        { return c.frontend }
func (c *testConfig) GetBackendURL() string                         { return c.backend }

// MockActivitySink implements jobsculpt.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event jobsculpt.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockTokenVerifier implements jobsculpt.TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(ctx context.Context, token string) (*jobsculpt.FederatedIdentity, error) {
	args := m.Called(ctx, token)
	if id, ok := args.Get(0).(*jobsculpt.FederatedIdentity); ok {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockGeoLocator implements jobsculpt.GeoLocator
type MockGeoLocator struct {
	mock.Mock
}

func (m *MockGeoLocator) Lookup(ctx context.Context, ip string) (jobsculpt.Location, error) {
	args := m.Called(ctx, ip)
	return args.Get(0).(jobsculpt.Location), args.Error(1)
}

type sentMail struct {
	Kind   string
	To     string
	Link   string
	Device *jobsculpt.Device
}

// recordingNotifier keeps every notification in memory
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) SendVerificationLink(_ context.Context, to, link string) error {
	return n.add(sentMail{Kind: "verify", To: to, Link: link})
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, to, link string) error {
	return n.add(sentMail{Kind: "reset", To: to, Link: link})
}

func (n *recordingNotifier) SendNewDeviceAlert(_ context.Context, to string, device *jobsculpt.Device) error {
	return n.add(sentMail{Kind: "device", To: to, Device: device})
}

func (n *recordingNotifier) add(m sentMail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
	return n.err
}

func (n *recordingNotifier) byKind(kind string) []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMail
	for _, m := range n.sent {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// recordingSink keeps every activity event in memory
type recordingSink struct {
	mu     sync.Mutex
	events []jobsculpt.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event jobsculpt.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count(eventType jobsculpt.ActivityEventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// fakeClock is a settable clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	repo     jobsculpt.RepositoryManager
	auther   *jobsculpt.Auther
	jobs     *jobsculpt.JobBoard
	notifier *recordingNotifier
	sink     *recordingSink
	revoked  *jobsculpt.MemoryRevocationStore
	clock    *fakeClock
	cfg      *testConfig
}

func newTestRepo(t *testing.T) jobsculpt.RepositoryManager {
	t.Helper()

	db, err := jobsculpt.OpenDB(jobsculpt.DBConfig{
		Driver: jobsculpt.DriverSQLite,
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, jobsculpt.CreateSchema(context.Background(), db))

	return jobsculpt.NewRepositoryManager(db)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:     newTestRepo(t),
		notifier: &recordingNotifier{},
		sink:     &recordingSink{},
		clock:    newFakeClock(),
		cfg:      newTestConfig(),
	}
	env.revoked = jobsculpt.NewMemoryRevocationStore().WithClock(env.clock.Now)

	env.auther = jobsculpt.NewAuthenticator(env.repo, env.cfg).
		WithLogger(jobsculpt.NopLogger{}).
		WithClock(env.clock.Now).
		WithPasswordHasher(jobsculpt.BcryptHasher{Cost: bcrypt.MinCost}).
		WithRevocationStore(env.revoked).
		WithDeviceResolver(jobsculpt.NewDeviceResolver(nil)).
		WithNotifier(env.notifier).
		WithActivitySink(env.sink)

	env.jobs = jobsculpt.NewJobBoard(env.repo).
		WithLogger(jobsculpt.NopLogger{}).
		WithActivitySink(env.sink).
		WithClock(env.clock.Now)

	return env
}

const (
	chromeMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	firefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	testPassword  = "correct horse battery"
	localClientIP = "127.0.0.1"
)

func deviceFrom(ua string) jobsculpt.DeviceRequest {
	return jobsculpt.DeviceRequest{UserAgent: ua, PlatformHint: `"macOS"`, IP: localClientIP}
}

func (e *testEnv) register(t *testing.T, email, role string) *jobsculpt.AuthResult {
	t.Helper()
	res, err := e.auther.Register(context.Background(), jobsculpt.RegisterUserMessage{
		Email:    email,
		Password: testPassword,
		Role:     role,
	}, deviceFrom(chromeMac))
	require.NoError(t, err)
	return res
}
