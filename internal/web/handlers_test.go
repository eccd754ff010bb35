// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/memberwall/memberwall/internal/auth"
	"github.com/memberwall/memberwall/internal/auth/memstore"
	"github.com/memberwall/memberwall/internal/auth/mocks"
	"github.com/memberwall/memberwall/internal/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// plainHasher keeps handler tests fast; hashing itself is tested in auth.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain:" + password, nil
}

func (plainHasher) Verify(password, hash string) bool { return hash == "plain:"+password }

func (plainHasher) NeedsUpgrade(string) bool { return false }

type fixture struct {
	router     *gin.Engine
	identities *memstore.IdentityStore
	sessions   *memstore.SessionStore
	logs       *bytes.Buffer
}

func newFixtureWithSessions(t *testing.T, sessions auth.SessionStore, opts ...Option) *fixture {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	identities := memstore.NewIdentityStore()
	mgr, err := auth.NewSessionManager(sessions, auth.WithSessionLogger(logger))
	require.NoError(t, err)
	authSvc, err := auth.NewAuthServiceWithLogger(identities, mgr, plainHasher{}, logger)
	require.NoError(t, err)
	roles, err := auth.NewRoleServiceWithLogger(identities, identities, logger)
	require.NoError(t, err)

	h, err := NewHandler(authSvc, roles, append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)

	f := &fixture{router: h.Router(), identities: identities, logs: &logs}
	if ms, ok := sessions.(*memstore.SessionStore); ok {
		f.sessions = ms
	}
	return f
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithSessions(t, memstore.NewSessionStore(), opts...)
}

func (f *fixture) do(t *testing.T, method, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seed(t *testing.T, role auth.Role, username, email, password string) {
	t.Helper()
	p, err := auth.NewPrincipal(username, email, "plain:"+password)
	require.NoError(t, err)
	require.NoError(t, f.identities.Insert(context.Background(), role, p))
}

func (f *fixture) loginAs(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/login", url.Values{"email": {email}, "password": {password}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", SessionCookieName)
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func signupForm(username, password, email string) url.Values {
	return url.Values{"username": {username}, "password": {password}, "email": {email}}
}

func TestSignup_EstablishesSessionAndRedirects(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/signup", signupForm("alice", "secret", "alice@example.com"), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/members", rec.Header().Get("Location"))

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, int(auth.SessionTTL.Seconds()), cookie.MaxAge)

	rec = f.do(t, http.MethodGet, "/members", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"alice","role":"standard"}`, rec.Body.String())
}

func TestSignup_AcceptsJSONBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/signup",
		strings.NewReader(`{"username":"alice","password":"secret","email":"alice@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestSignup_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		form      url.Values
		wantField string
	}{
		{name: "non alphanumeric username", form: signupForm("al ice", "secret", "a@example.com"), wantField: "username"},
		{name: "long username", form: signupForm(strings.Repeat("a", 21), "secret", "a@example.com"), wantField: "username"},
		{name: "empty password", form: signupForm("alice", "", "a@example.com"), wantField: "password"},
		{name: "long password", form: signupForm("alice", strings.Repeat("p", 21), "a@example.com"), wantField: "password"},
		{name: "bad email", form: signupForm("alice", "secret", "not-an-email"), wantField: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(t, http.MethodPost, "/signup", tt.form, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, auth.CodeValidation, body.Code)
			assert.Equal(t, tt.wantField, body.Field)
			assert.NotEmpty(t, body.Message)
			assert.Empty(t, rec.Result().Cookies())
			assert.Equal(t, 0, f.sessions.Len())
		})
	}
}

func TestSignup_DuplicateAcrossCollections(t *testing.T) {
	for _, role := range auth.Roles {
		t.Run(role.String(), func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, role, "alice", "alice@example.com", "secret")

			rec := f.do(t, http.MethodPost, "/signup", signupForm("alice", "other", "new@example.com"), nil)
			require.Equal(t, http.StatusConflict, rec.Code)
			assert.Equal(t, auth.CodeDuplicateIdentity, decodeError(t, rec).Code)
		})
	}
}

func TestLogin_RotatesSession(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/signup", signupForm("alice", "secret", "alice@example.com"), nil)
	first := sessionCookie(t, rec)

	rec = f.do(t, http.MethodPost, "/login", url.Values{"email": {"alice@example.com"}, "password": {"secret"}}, first)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/members", rec.Header().Get("Location"))
	second := sessionCookie(t, rec)
	assert.NotEqual(t, first.Value, second.Value)

	rec = f.do(t, http.MethodGet, "/members", nil, first)
	assert.Equal(t, http.StatusSeeOther, rec.Code, "previous token no longer authenticates")
	rec = f.do(t, http.MethodGet, "/members", nil, second)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_FailuresShareOneResponse(t *testing.T) {
	f := newFixture(t)
	f.seed(t, auth.RoleStandard, "alice", "alice@example.com", "secret")

	unknown := f.do(t, http.MethodPost, "/login", url.Values{"email": {"nobody@example.com"}, "password": {"secret"}}, nil)
	wrong := f.do(t, http.MethodPost, "/login", url.Values{"email": {"alice@example.com"}, "password": {"nope"}}, nil)

	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
	assert.Equal(t, auth.LoginFailedMessage, decodeError(t, wrong).Message)
	assert.Empty(t, wrong.Result().Cookies())
}

func TestLogin_FailureKeepsExistingSession(t *testing.T) {
	f := newFixture(t)
	f.seed(t, auth.RoleStandard, "alice", "alice@example.com", "secret")
	cookie := f.loginAs(t, "alice@example.com", "secret")

	rec := f.do(t, http.MethodPost, "/login", url.Values{"email": {"alice@example.com"}, "password": {"nope"}}, cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/members", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code, "failed login does not disturb the existing session")
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.seed(t, auth.RoleStandard, "alice", "alice@example.com", "secret")
	cookie := f.loginAs(t, "alice@example.com", "secret")

	rec := f.do(t, http.MethodGet, "/logout", nil, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cleared := sessionCookie(t, rec)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	rec = f.do(t, http.MethodGet, "/members", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = f.do(t, http.MethodGet, "/logout", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code, "logout without a session succeeds")
}

func TestMembers_AnonymousRedirectsHome(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/members", nil, &http.Cookie{Name: SessionCookieName, Value: "forged"})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestHome(t *testing.T) {
	f := newFixture(t)
	f.seed(t, auth.RoleStandard, "alice", "alice@example.com", "secret")

	rec := f.do(t, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	cookie := f.loginAs(t, "alice@example.com", "secret")
	rec = f.do(t, http.MethodGet, "/", nil, cookie)
	assert.JSONEq(t, `{"authenticated":true,"username":"alice"}`, rec.Body.String())
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	f.seed(t, auth.RoleElevated, "root", "root@example.com", "secret")

	rec := f.do(t, http.MethodGet, "/me", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	cookie := f.loginAs(t, "root@example.com", "secret")
	rec = f.do(t, http.MethodGet, "/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var me meResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.True(t, me.Authenticated)
	assert.Equal(t, "root", me.Username)
	assert.Equal(t, "root@example.com", me.Email)
	assert.Equal(t, "elevated", me.Role)
	require.NotNil(t, me.ExpiresAt)
}

func TestSessionForRemovedPrincipalIsAnonymous(t *testing.T) {
	f := newFixture(t)
	f.seed(t, auth.RoleStandard, "alice", "alice@example.com", "secret")
	cookie := f.loginAs(t, "alice@example.com", "secret")
	require.NoError(t, f.identities.Remove(context.Background(), auth.RoleStandard, "alice"))

	rec := f.do(t, http.MethodGet, "/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/members", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, 0, f.sessions.Len())
}

func TestAdmin_RequiresElevatedRole(t *testing.T) {
	f := newFixture(t)
	f.seed(t, auth.RoleStandard, "alice", "alice@example.com", "secret")
	standard := f.loginAs(t, "alice@example.com", "secret")

	for name, cookie := range map[string]*http.Cookie{"anonymous": nil, "standard": standard} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/admin/principals", nil, cookie)
			require.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, auth.CodeForbidden, decodeError(t, rec).Code)

			rec = f.do(t, http.MethodPost, "/admin/role", url.Values{"username": {"alice"}, "role": {"elevated"}}, cookie)
			require.Equal(t, http.StatusForbidden, rec.Code)
		})
	}

	p, err := auth.LocatePrincipal(context.Background(), f.identities, "alice")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStandard, p.Role)
}

func TestAdmin_SetRoleAndList(t *testing.T) {
	f := newFixture(t)
	f.seed(t, auth.RoleElevated, "root", "root@example.com", "secret")
	f.seed(t, auth.RoleStandard, "alice", "alice@example.com", "secret")
	admin := f.loginAs(t, "root@example.com", "secret")

	rec := f.do(t, http.MethodPost, "/admin/role", url.Values{"username": {"alice"}, "role": {"elevated"}}, admin)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/admin/principals", rec.Header().Get("Location"))

	rec = f.do(t, http.MethodGet, "/admin/principals", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []principalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, "elevated", list[0].Role)
	assert.Equal(t, "root", list[1].Username)

	alice := f.loginAs(t, "alice@example.com", "secret")
	rec = f.do(t, http.MethodGet, "/members", nil, alice)
	assert.JSONEq(t, `{"username":"alice","role":"elevated"}`, rec.Body.String())
}

func TestAdmin_SetRoleRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	f.seed(t, auth.RoleElevated, "root", "root@example.com", "secret")
	admin := f.loginAs(t, "root@example.com", "secret")

	rec := f.do(t, http.MethodPost, "/admin/role", url.Values{"username": {"root"}, "role": {"superuser"}}, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "role", decodeError(t, rec).Field)

	rec = f.do(t, http.MethodPost, "/admin/role", url.Values{"role": {"standard"}}, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username", decodeError(t, rec).Field)

	rec = f.do(t, http.MethodPost, "/admin/role", url.Values{"username": {"ghost"}, "role": {"elevated"}}, admin)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, auth.CodeIdentityNotFound, decodeError(t, rec).Code)
}

func TestStoreUnavailable(t *testing.T) {
	sessions := mocks.NewMockSessionStore(t)
	sessions.On("GetByTokenHash", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	f := newFixtureWithSessions(t, sessions)

	rec := f.do(t, http.MethodGet, "/members", nil, &http.Cookie{Name: SessionCookieName, Value: "token"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, auth.CodeStoreUnavailable, decodeError(t, rec).Code)
	assert.Contains(t, f.logs.String(), "request failed")
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, NotFoundBody, rec.Body.String())
}

func TestMiddleware_RequestIDAndAccessLog(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/", nil, nil)
	id := rec.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)

	logs := f.logs.String()
	assert.Contains(t, logs, `"msg":"http request"`)
	assert.Contains(t, logs, `"path":"/"`)
	assert.Contains(t, logs, `"status":200`)
}

func TestMiddleware_Metrics(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	f := newFixture(t, WithMetrics(m))

	f.do(t, http.MethodGet, "/", nil, nil)
	f.do(t, http.MethodGet, "/nowhere", nil, nil)

	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/", "GET", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("unmatched", "GET", "404")), 0)
}

func TestNewHandler_RequiresServices(t *testing.T) {
	_, err := NewHandler(nil, nil)
	assert.Error(t, err)
}
