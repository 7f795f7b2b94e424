// Package session owns the client-side session lifecycle: password login
// against the backend, logout, the cached user profile, and the state
// machine anonymous -> authenticating -> authenticated -> (expired |
// loggedOut) -> anonymous. Leaving a terminal state always clears all local
// session data before control returns to the caller.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulnwatch/vulnwatch-client/authmode"
	"github.com/vulnwatch/vulnwatch-client/credentials"
	"github.com/vulnwatch/vulnwatch-client/credstore"
	"github.com/vulnwatch/vulnwatch-client/resterror"
)

// State is the session lifecycle state.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

// User-facing messages produced by login failures. The Forbidden remap is
// login-specific; general calls keep the server's own message.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgNetworkError       = "Network error"
)

const authenticatePath = "/authentication/authenticate/"

// Profile is the cached denormalized snapshot of the signed-in user. It is
// display data only and never proves authentication.
type Profile struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	FullName        string `json:"full_name"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Email           string `json:"email,omitempty"`
	IsSuperuser     bool   `json:"is_superuser,omitempty"`
	SettingListSize int    `json:"setting_list_size,omitempty"`
	SettingTheme    string `json:"setting_theme,omitempty"`
}

// Manager drives the session lifecycle for one backend.
type Manager struct {
	baseURL     string
	store       credstore.Store
	resolver    *authmode.Resolver
	provider    credentials.TokenProvider
	http        *http.Client
	localScheme string
	logger      zerolog.Logger

	lock  sync.Mutex
	state State
}

type ManagerOption func(*Manager)

// WithTokenProvider wires the federated provider so logout can trigger
// provider-side sign-out and expiry can attempt silent renewal.
func WithTokenProvider(provider credentials.TokenProvider) ManagerOption {
	return func(m *Manager) {
		m.provider = provider
	}
}

func WithHTTPClient(httpClient *http.Client) ManagerOption {
	return func(m *Manager) {
		m.http = httpClient
	}
}

// WithLocalScheme overrides the Authorization scheme used for the profile
// fetch right after login.
func WithLocalScheme(scheme string) ManagerOption {
	return func(m *Manager) {
		m.localScheme = scheme
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(baseURL string, store credstore.Store, resolver *authmode.Resolver, options ...ManagerOption) (*Manager, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[NewManager] baseURL is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	if resolver == nil {
		return nil, errors.New("[NewManager] resolver is required")
	}

	manager := &Manager{
		baseURL:     strings.TrimRight(baseURL, "/"),
		store:       store,
		resolver:    resolver,
		http:        &http.Client{},
		localScheme: credentials.DefaultLocalScheme,
		logger:      log.Logger,
		state:       StateAnonymous,
	}
	for _, opt := range options {
		opt(manager)
	}
	if resolver.Resolve().Mode != authmode.ModeAnonymous {
		manager.state = StateAuthenticated
	}
	return manager, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// Login authenticates with username/password and stores the issued session
// token plus a fresh profile snapshot. A Forbidden rejection surfaces as
// "Invalid credentials"; every other failure surfaces as "Network error".
func (m *Manager) Login(ctx context.Context, username, password string) (*Profile, error) {
	m.setState(StateAuthenticating)

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		m.setState(StateAnonymous)
		return nil, errors.Wrap(err, "[Manager.Login] encode credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+authenticatePath, bytes.NewReader(body))
	if err != nil {
		m.setState(StateAnonymous)
		return nil, errors.Wrap(err, "[Manager.Login] build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		m.setState(StateAnonymous)
		return nil, resterror.New(resterror.KindNetworkFailure, 0, msgNetworkError)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		m.setState(StateAnonymous)
		return nil, resterror.New(resterror.KindNetworkFailure, 0, msgNetworkError)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.setState(StateAnonymous)
		return nil, m.loginError(resp.StatusCode, responseBody)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(responseBody, &payload); err != nil || payload.Token == "" {
		m.setState(StateAnonymous)
		return nil, resterror.New(resterror.KindServerError, resp.StatusCode, msgNetworkError)
	}

	if err := m.store.Set(credstore.KeySessionToken, payload.Token); err != nil {
		m.setState(StateAnonymous)
		return nil, errors.Wrap(err, "[Manager.Login] persist session token")
	}

	profile, err := m.fetchProfile(ctx, payload.Token)
	if err != nil {
		// The session itself is valid; the profile snapshot can be refreshed
		// on the next fetch.
		m.logger.Warn().Err(err).Msg("profile fetch after login failed")
	}

	m.setState(StateAuthenticated)
	return profile, nil
}

// loginError maps a login rejection to its user-facing message: the
// backend's Forbidden signal means bad credentials, everything else is
// reported as a network-level problem.
func (m *Manager) loginError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		message = payload.Detail
	}

	if status == http.StatusForbidden || strings.Contains(message, "Forbidden") {
		return resterror.New(resterror.KindClientRejected, status, msgInvalidCredentials)
	}
	return resterror.New(resterror.KindNetworkFailure, status, msgNetworkError)
}

// Logout clears all local session data unconditionally and additionally
// triggers provider-side sign-out when federated mode was active. The
// session always re-enters the anonymous state.
func (m *Manager) Logout(ctx context.Context) error {
	federatedWasActive := m.resolver.IsFederatedActive() && !m.resolver.IsLocalSessionActive()

	m.clearLocalData()
	m.setState(StateAnonymous)

	if federatedWasActive && m.provider != nil {
		if err := m.provider.SignOut(ctx); err != nil {
			return errors.Wrap(err, "[Manager.Logout] provider sign-out")
		}
	}
	return nil
}

// HandleAuthExpired reacts to a 401/403 received outside of login. Local
// sessions terminate immediately. Federated sessions first try a silent
// renewal; if interaction is required the interactive sign-in is started and
// the session is treated as unrecovered for the current context.
func (m *Manager) HandleAuthExpired(ctx context.Context) (recovered bool, err error) {
	if m.resolver.IsLocalSessionActive() {
		m.clearLocalData()
		m.setState(StateAnonymous)
		return false, nil
	}

	if m.resolver.IsFederatedActive() && m.provider != nil {
		if _, silentErr := m.provider.SilentToken(ctx); silentErr == nil {
			return true, nil
		} else if errors.Is(silentErr, credentials.ErrInteractionRequired) {
			if interactErr := m.provider.BeginInteractive(ctx); interactErr != nil {
				return false, errors.Wrap(interactErr, "[Manager.HandleAuthExpired] interactive sign-in")
			}
			return false, nil
		} else {
			m.logger.Error().Err(silentErr).Msg("silent renewal after authorization failure failed")
		}
	}

	m.clearLocalData()
	m.setState(StateAnonymous)
	return false, nil
}

// CachedProfile returns the profile snapshot stored at login time, if any.
func (m *Manager) CachedProfile() (*Profile, bool) {
	raw, ok := m.store.Get(credstore.KeyUserProfile)
	if !ok || raw == "" {
		return nil, false
	}
	var profile Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		m.logger.Warn().Err(err).Msg("corrupt cached profile, ignoring")
		return nil, false
	}
	return &profile, true
}

func (m *Manager) setState(state State) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.state = state
}

func (m *Manager) clearLocalData() {
	for _, key := range credstore.SessionKeys {
		if err := m.store.Remove(key); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("failed to clear session key")
		}
	}
}

// fetchProfile loads and caches the signed-in user's profile along with the
// display preferences it carries.
func (m *Manager) fetchProfile(ctx context.Context, token string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/users/me/", nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.fetchProfile] build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", m.localScheme+" "+token)

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, resterror.FromTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resterror.FromTransport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resterror.FromStatus(resp.StatusCode, body)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, errors.Wrap(err, "[Manager.fetchProfile] decode profile")
	}

	if err := m.store.Set(credstore.KeyUserProfile, string(body)); err != nil {
		return nil, errors.Wrap(err, "[Manager.fetchProfile] cache profile")
	}
	if profile.SettingListSize > 0 {
		if err := m.store.Set(credstore.KeyListPageSize, strconv.Itoa(profile.SettingListSize)); err != nil {
			return nil, errors.Wrap(err, "[Manager.fetchProfile] cache list size")
		}
	}
	if profile.SettingTheme != "" {
		if err := m.store.Set(credstore.KeyTheme, profile.SettingTheme); err != nil {
			return nil, errors.Wrap(err, "[Manager.fetchProfile] cache theme")
		}
	}
	return &profile, nil
}
