package jobsculpt

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	DefaultGoogleTokenInfoURL = "https://www.googleapis.com/oauth2/v3/tokeninfo"
	DefaultGoogleUserInfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
	DefaultFederationTimeout  = 5 * time.Second
)

// FederatedIdentity is what an identity provider asserts about a user
type FederatedIdentity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// TokenVerifier exchanges a provider issued token for the identity it
// asserts. It must fail closed with ErrFederationFailed.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*FederatedIdentity, error)
}

// CodeExchanger drives the authorization code redirect flow
type CodeExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*FederatedIdentity, error)
}

// GoogleTokenVerifier validates Google ID tokens with the tokeninfo endpoint
type GoogleTokenVerifier struct {
	endpoint string
	audience string
	client   *http.Client
}

var _ TokenVerifier = (*GoogleTokenVerifier)(nil)

// NewGoogleTokenVerifier returns a verifier. When audience is set the
// token's aud claim must match it.
func NewGoogleTokenVerifier(endpoint, audience string, client *http.Client) *GoogleTokenVerifier {
	if endpoint == "" {
		endpoint = DefaultGoogleTokenInfoURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultFederationTimeout}
	}
	return &GoogleTokenVerifier{
		endpoint: endpoint,
		audience: audience,
		client:   client,
	}
}

type googleClaims struct {
	Subject          string `json:"sub"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Audience         string `json:"aud"`
	EmailVerified    any    `json:"email_verified"`
	ErrorDescription string `json:"error_description"`
}

func (g googleClaims) verified() bool {
	switch v := g.EmailVerified.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func (g *GoogleTokenVerifier) Verify(ctx context.Context, token string) (*FederatedIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrFederationFailed)
	}

	endpoint := g.endpoint + "?id_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFederationFailed, err)
	}

	res, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFederationFailed, err)
	}
	defer res.Body.Close()

	var claims googleClaims
	if err := json.NewDecoder(res.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFederationFailed, err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrFederationFailed, res.StatusCode, claims.ErrorDescription)
	}

	if g.audience != "" && claims.Audience != g.audience {
		return nil, fmt.Errorf("%w: audience mismatch", ErrFederationFailed)
	}

	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", ErrFederationFailed)
	}

	return &FederatedIdentity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.verified(),
	}, nil
}

// GoogleOAuthConfig holds the client registration
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	UserInfoURL  string
	// Endpoint overrides google.Endpoint, used by tests
	Endpoint *oauth2.Endpoint
}

// GoogleCodeExchanger implements CodeExchanger with golang.org/x/oauth2
type GoogleCodeExchanger struct {
	config      *oauth2.Config
	userInfoURL string
}

var _ CodeExchanger = (*GoogleCodeExchanger)(nil)

// NewGoogleCodeExchanger returns an exchanger for cfg
func NewGoogleCodeExchanger(cfg GoogleOAuthConfig) *GoogleCodeExchanger {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	userInfo := cfg.UserInfoURL
	if userInfo == "" {
		userInfo = DefaultGoogleUserInfoURL
	}

	return &GoogleCodeExchanger{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfo,
	}
}

func (g *GoogleCodeExchanger) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

func (g *GoogleCodeExchanger) Exchange(ctx context.Context, code string) (*FederatedIdentity, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrFederationFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultFederationTimeout)
	defer cancel()

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFederationFailed, err)
	}

	client := g.config.Client(ctx, token)
	res, err := client.Get(g.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFederationFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFederationFailed, res.StatusCode)
	}

	var info googleClaims
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFederationFailed, err)
	}

	if info.Subject == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", ErrFederationFailed)
	}

	return &FederatedIdentity{
		Subject:       info.Subject,
		Email:         info.Email,
		Name:          info.Name,
		EmailVerified: info.verified(),
	}, nil
}

// StateSigner issues OAuth state values bound to a nonce kept in a cookie.
// The state carries the nonce and an expiry signed with HMAC-SHA256.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewStateSigner returns a signer, ttl defaults to ten minutes
func NewStateSigner(key []byte, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateSigner{
		key: key,
		ttl: ttl,
		now: time.Now,
	}
}

// Issue returns the state parameter and the nonce to store client side
func (s *StateSigner) Issue() (state, nonce string, err error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate nonce")
	}
	nonce = base64.RawURLEncoding.EncodeToString(b)

	exp := strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)
	payload := nonce + "." + exp
	return payload + "." + s.sign(payload), nonce, nil
}

// Verify checks the signature, the expiry and that state matches nonce
func (s *StateSigner) Verify(state, nonce string) error {
	parts := strings.Split(state, ".")
	if len(parts) != 3 || nonce == "" {
		return ErrInvalidState
	}

	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(s.sign(payload))) {
		return ErrInvalidState
	}

	if !hmac.Equal([]byte(parts[0]), []byte(nonce)) {
		return ErrInvalidState
	}

	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || s.now().Unix() > exp {
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrStateExpired)
	}

	return nil
}

func (s *StateSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
