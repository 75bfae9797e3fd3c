package httpserver

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/dmitrijs2005/accounts/internal/server/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// memSessions is an in-memory sessions.Repository.
type memSessions struct {
	mu   sync.Mutex
	rows map[uuid.UUID]models.Session
}

func (r *memSessions) Save(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[s.ID] = *s
	return nil
}

func (r *memSessions) Find(_ context.Context, id uuid.UUID) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (r *memSessions) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memSessions) DeleteByUser(context.Context, int64) (int64, error)    { return 0, nil }
func (r *memSessions) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

// fakeFlow accepts password "p1" for user 1 and records the last inputs.
type fakeFlow struct {
	lastUpdate   services.UpdateInput
	lastRegister services.RegisterInput
	failWith     error
}

func (f *fakeFlow) LoginForm(_ context.Context, s *session.Session) (services.Result, error) {
	_, bound := s.User()
	return services.Render{View: common.RouteLogin, Data: map[string]any{services.DataLoggedIn: bound}}, nil
}

func (f *fakeFlow) Login(_ context.Context, s *session.Session, in services.LoginInput) (services.Result, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if in.Password != "p1" {
		s.AddFlash(common.FlashError, services.MsgLoginFailed)
		return services.Redirect{Route: common.RouteLogin}, nil
	}
	s.SetUser(1)
	return services.Redirect{Route: common.RouteUserEdit}, nil
}

func (f *fakeFlow) RegisterForm(context.Context, *session.Session) (services.Result, error) {
	return services.Render{View: common.RouteUserRegister, Data: map[string]any{}}, nil
}

func (f *fakeFlow) Register(_ context.Context, _ *session.Session, in services.RegisterInput) (services.Result, error) {
	f.lastRegister = in
	return services.Render{View: common.RouteUserRegister, Data: map[string]any{
		services.DataErrors: []string{services.MsgEmailTaken},
		services.DataEmail:  in.Email,
	}}, nil
}

func (f *fakeFlow) Edit(_ context.Context, s *session.Session) (services.Result, error) {
	if _, ok := s.User(); !ok {
		s.AddFlash(common.FlashError, services.MsgLoginFirst)
		return services.Redirect{Route: common.RouteLogin}, nil
	}
	return services.Render{View: common.RouteUserEdit, Data: map[string]any{
		services.DataEmail: "a@x.com",
		services.DataName:  "<Ann>",
	}}, nil
}

func (f *fakeFlow) Update(_ context.Context, s *session.Session, in services.UpdateInput) (services.Result, error) {
	f.lastUpdate = in
	s.AddFlash(common.FlashSuccess, services.MsgUpdated)
	return services.Redirect{Route: common.RouteUserEdit}, nil
}

func (f *fakeFlow) Delete(_ context.Context, s *session.Session) (services.Result, error) {
	s.Clear()
	s.AddFlash(common.FlashSuccess, services.MsgDeleted)
	return services.Redirect{Route: common.RouteLogin}, nil
}

func (f *fakeFlow) Logout(_ context.Context, s *session.Session) (services.Result, error) {
	s.Clear()
	return services.Redirect{Route: common.RouteLogin}, nil
}

type countingRecorder struct {
	mu   sync.Mutex
	hits map[string]int
}

func (c *countingRecorder) HTTPRequest(route string, code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hits == nil {
		c.hits = map[string]int{}
	}
	c.hits[route+" "+http.StatusText(code)]++
}

type harness struct {
	srv      *Server
	handler  http.Handler
	flow     *fakeFlow
	repo     *memSessions
	recorder *countingRecorder
	cookie   *http.Cookie
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		flow:     &fakeFlow{},
		repo:     &memSessions{rows: map[uuid.UUID]models.Session{}},
		recorder: &countingRecorder{},
	}
	mgr := session.NewManager(h.repo, []byte("k"), time.Hour, logging.Discard())
	h.srv = NewServer("127.0.0.1:0", logging.Discard(), h.flow, mgr, Options{
		CookieName: "sid",
		Metrics:    http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "metrics") }),
		Recorder:   h.recorder,
	})
	h.handler = h.srv.Routes()
	return h
}

// do sends a request carrying the last cookie and remembers the new one.
func (h *harness) do(t *testing.T, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			h.cookie = c
		}
	}
	return rec
}

func TestLoginPage(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Login</h1>")
	assert.NotContains(t, rec.Body.String(), "You are logged in")

	require.NotNil(t, h.cookie)
	assert.True(t, h.cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, h.cookie.SameSite)
	assert.Equal(t, 3600, h.cookie.MaxAge)
}

func TestLoginFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/", url.Values{"email": {"a@x.com"}, "password": {"bad"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = h.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, rec.Body.String(), services.MsgLoginFailed)

	// flashes are shown once
	rec = h.do(t, http.MethodGet, "/", nil)
	assert.NotContains(t, rec.Body.String(), services.MsgLoginFailed)

	rec = h.do(t, http.MethodPost, "/", url.Values{"email": {"a@x.com"}, "password": {"p1"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/user/edit", rec.Header().Get("Location"))

	rec = h.do(t, http.MethodGet, "/user/edit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="a@x.com"`)
	assert.Contains(t, rec.Body.String(), "&lt;Ann&gt;")

	rec = h.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, rec.Body.String(), "You are logged in")
}

func TestEditRequiresLogin(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/user/edit", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = h.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, rec.Body.String(), services.MsgLoginFirst)
}

func TestUpdatePassesFormFields(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/user/edit", url.Values{
		"password":            {"p1"},
		"email":               {"b@x.com"},
		"name":                {"Bea"},
		"new_password":        {"p2"},
		"new_password_repeat": {"p2"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/user/edit", rec.Header().Get("Location"))
	assert.Equal(t, services.UpdateInput{
		Password: "p1", Email: "b@x.com", Name: "Bea", NewPassword: "p2", NewPasswordRepeat: "p2",
	}, h.flow.lastUpdate)
}

func TestRegisterRendersErrors(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/user/register", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/user/register", url.Values{"email": {"a@x.com"}, "name": {"Ann"}, "password": {"p1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), services.MsgEmailTaken)
	assert.Contains(t, rec.Body.String(), `value="a@x.com"`)
	assert.Equal(t, "Ann", h.flow.lastRegister.Name)
}

func TestDeleteAndLogoutRotateSession(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/", url.Values{"email": {"a@x.com"}, "password": {"p1"}})
	before := h.cookie.Value

	rec := h.do(t, http.MethodPost, "/user/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotEqual(t, before, h.cookie.Value)
	assert.Len(t, h.repo.rows, 1)

	rec = h.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, rec.Body.String(), services.MsgDeleted)
	assert.NotContains(t, rec.Body.String(), "You are logged in")

	rec = h.do(t, http.MethodGet, "/logout", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestDeleteRejectsGet(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/user/delete", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFlowErrorIs500(t *testing.T) {
	h := newHarness(t)
	h.flow.failWith = errors.New("db down")

	rec := h.do(t, http.MethodPost, "/", url.Values{"email": {"a@x.com"}, "password": {"p1"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
	assert.Equal(t, 1, h.recorder.hits["login Internal Server Error"])
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = h.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestRequestsAreCounted(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodGet, "/", nil)
	h.do(t, http.MethodGet, "/logout", nil)

	assert.Equal(t, 1, h.recorder.hits["login OK"])
	assert.Equal(t, 1, h.recorder.hits["logout See Other"])
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.srv.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	srv := NewServer("127.0.0.1:99999", logging.Discard(), &fakeFlow{}, nil, Options{})
	require.Error(t, srv.Run(context.Background()))
}
