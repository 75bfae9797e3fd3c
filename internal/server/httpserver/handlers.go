package httpserver

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/dmitrijs2005/accounts/internal/server/session"
)

type flowFunc func(ctx context.Context, sess *session.Session, r *http.Request) (services.Result, error)

func (s *Server) loginForm(ctx context.Context, sess *session.Session, _ *http.Request) (services.Result, error) {
	return s.flow.LoginForm(ctx, sess)
}

func (s *Server) login(ctx context.Context, sess *session.Session, r *http.Request) (services.Result, error) {
	return s.flow.Login(ctx, sess, services.LoginInput{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	})
}

func (s *Server) registerForm(ctx context.Context, sess *session.Session, _ *http.Request) (services.Result, error) {
	return s.flow.RegisterForm(ctx, sess)
}

func (s *Server) register(ctx context.Context, sess *session.Session, r *http.Request) (services.Result, error) {
	return s.flow.Register(ctx, sess, services.RegisterInput{
		Email:    r.PostForm.Get("email"),
		Name:     r.PostForm.Get("name"),
		Password: r.PostForm.Get("password"),
	})
}

func (s *Server) edit(ctx context.Context, sess *session.Session, _ *http.Request) (services.Result, error) {
	return s.flow.Edit(ctx, sess)
}

func (s *Server) update(ctx context.Context, sess *session.Session, r *http.Request) (services.Result, error) {
	return s.flow.Update(ctx, sess, services.UpdateInput{
		Password:          r.PostForm.Get("password"),
		Email:             r.PostForm.Get("email"),
		Name:              r.PostForm.Get("name"),
		NewPassword:       r.PostForm.Get("new_password"),
		NewPasswordRepeat: r.PostForm.Get("new_password_repeat"),
	})
}

func (s *Server) delete(ctx context.Context, sess *session.Session, _ *http.Request) (services.Result, error) {
	return s.flow.Delete(ctx, sess)
}

func (s *Server) logout(ctx context.Context, sess *session.Session, _ *http.Request) (services.Result, error) {
	return s.flow.Logout(ctx, sess)
}

// handle wraps fn with session load/save, result dispatch, logging and
// request counting.
func (s *Server) handle(route string, fn flowFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		code := s.serve(ctx, w, r, fn)

		s.logger.Info(ctx, "request",
			"method", r.Method,
			"route", route,
			"status", code,
			"duration", time.Since(start),
		)
		if s.opts.Recorder != nil {
			s.opts.Recorder.HTTPRequest(route, code)
		}
	})
}

func (s *Server) serve(ctx context.Context, w http.ResponseWriter, r *http.Request, fn flowFunc) int {
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return http.StatusBadRequest
		}
	}

	var token string
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		token = c.Value
	}
	sess, err := s.sessions.Load(ctx, token)
	if err != nil {
		return s.internalError(ctx, w, "load session", err)
	}

	res, err := fn(ctx, sess, r)
	if err != nil {
		return s.internalError(ctx, w, "handle request", err)
	}

	// render into a buffer so template errors still produce a clean 500
	var body bytes.Buffer
	if page, ok := res.(services.Render); ok {
		data := make(map[string]any, len(page.Data)+2)
		for k, v := range page.Data {
			data[k] = v
		}
		data["flashes"] = sess.PopFlashes()
		data["title"] = titles[page.View]
		if err := s.tmpl.ExecuteTemplate(&body, page.View+".html", data); err != nil {
			return s.internalError(ctx, w, "render template", err)
		}
	}

	newToken, err := s.sessions.Save(ctx, sess)
	if err != nil {
		return s.internalError(ctx, w, "save session", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    newToken,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	switch res := res.(type) {
	case services.Redirect:
		path, ok := routePaths[res.Route]
		if !ok {
			path = "/"
		}
		http.Redirect(w, r, path, http.StatusSeeOther)
		return http.StatusSeeOther
	case services.Render:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = body.WriteTo(w)
		return http.StatusOK
	default:
		return s.internalError(ctx, w, "dispatch result", errUnknownResult)
	}
}

func (s *Server) internalError(ctx context.Context, w http.ResponseWriter, op string, err error) int {
	s.logger.Error(ctx, "request failed", "operation", op, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
	return http.StatusInternalServerError
}
