// Package httpserver exposes the account flow over HTTP: form posts in,
// rendered pages or redirects out, with the session carried in a signed
// cookie.
package httpserver

import (
	"context"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/dmitrijs2005/accounts/internal/server/session"
)

const shutdownTimeout = 5 * time.Second

// AccountFlow is the flow controller driven by the handlers.
type AccountFlow interface {
	LoginForm(ctx context.Context, s *session.Session) (services.Result, error)
	Login(ctx context.Context, s *session.Session, in services.LoginInput) (services.Result, error)
	RegisterForm(ctx context.Context, s *session.Session) (services.Result, error)
	Register(ctx context.Context, s *session.Session, in services.RegisterInput) (services.Result, error)
	Edit(ctx context.Context, s *session.Session) (services.Result, error)
	Update(ctx context.Context, s *session.Session, in services.UpdateInput) (services.Result, error)
	Delete(ctx context.Context, s *session.Session) (services.Result, error)
	Logout(ctx context.Context, s *session.Session) (services.Result, error)
}

// SessionStore loads and saves sessions by cookie token.
type SessionStore interface {
	Load(ctx context.Context, token string) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) (string, error)
	TTL() time.Duration
}

// RequestRecorder counts served requests by route name.
type RequestRecorder interface {
	HTTPRequest(route string, code int)
}

// Options tunes the cookie and the optional endpoints.
type Options struct {
	CookieName   string
	CookieSecure bool
	// Metrics is served on /metrics when non-nil.
	Metrics  http.Handler
	Recorder RequestRecorder
}

// paths for each route name, used when following a Redirect
var routePaths = map[string]string{
	common.RouteLogin:        "/",
	common.RouteUserEdit:     "/user/edit",
	common.RouteUserUpdate:   "/user/edit",
	common.RouteUserRegister: "/user/register",
	common.RouteLogout:       "/logout",
	common.RouteUserDelete:   "/user/delete",
}

type Server struct {
	address  string
	flow     AccountFlow
	sessions SessionStore
	opts     Options
	logger   logging.Logger
	tmpl     *template.Template
}

func NewServer(address string, l logging.Logger, flow AccountFlow, sessions SessionStore, opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "accounts_session"
	}
	return &Server{
		address:  address,
		flow:     flow,
		sessions: sessions,
		opts:     opts,
		logger:   l.With("module", "http_server"),
		tmpl:     loadTemplates(),
	}
}

// Routes builds the request multiplexer.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", s.handle(common.RouteLogin, s.loginForm))
	mux.Handle("POST /{$}", s.handle(common.RouteLogin, s.login))
	mux.Handle("GET /user/register", s.handle(common.RouteUserRegister, s.registerForm))
	mux.Handle("POST /user/register", s.handle(common.RouteUserRegister, s.register))
	mux.Handle("GET /user/edit", s.handle(common.RouteUserEdit, s.edit))
	mux.Handle("POST /user/edit", s.handle(common.RouteUserUpdate, s.update))
	mux.Handle("POST /user/delete", s.handle(common.RouteUserDelete, s.delete))
	mux.Handle("GET /logout", s.handle(common.RouteLogout, s.logout))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}

	return mux
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on l until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", l.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
