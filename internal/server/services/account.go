// Package services contains the account flow controller. Every operation
// takes the caller's session explicitly and returns a Result; the service
// itself keeps no per-request state.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accounts/internal/server/session"
	"github.com/samber/oops"
)

// EventRecorder counts account flow outcomes.
type EventRecorder interface {
	AuthEvent(event, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) AuthEvent(string, string) {}

// AccountService implements login, registration, profile edit, deletion and
// logout on top of the user store, the hasher and the session binding.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      auth.PasswordHasher
	logger      logging.Logger
	events      EventRecorder
}

// NewAccountService wires the service. events may be nil.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, h auth.PasswordHasher, logger logging.Logger, events EventRecorder) *AccountService {
	if events == nil {
		events = noopRecorder{}
	}
	return &AccountService{db: db, repomanager: m, hasher: h, logger: logger, events: events}
}

// LoginForm renders the login page.
func (s *AccountService) LoginForm(ctx context.Context, sess *session.Session) (Result, error) {
	_, bound := sess.User()
	return Render{View: common.RouteLogin, Data: map[string]any{DataLoggedIn: bound}}, nil
}

// Login binds the session to the user whose email and password match.
// Unknown email and wrong password produce the same response.
func (s *AccountService) Login(ctx context.Context, sess *session.Session, in LoginInput) (Result, error) {
	email := models.NormalizeEmail(in.Email)
	users := s.repomanager.Users(s.db)

	user, err := users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, oops.Code("ACCOUNT_LOGIN_FAILED").With("operation", "find user by email").Wrap(err)
	}

	target := auth.DummyHash
	if user != nil {
		target = user.PasswordHash
	}
	// always verify so unknown emails cost the same as known ones
	ok := s.hasher.Verify(in.Password, target)
	if user == nil || !ok {
		return s.loginFailed(ctx, sess), nil
	}

	// the row may have changed between the lookup and the verify
	live, err := users.FindByEmailAndHash(ctx, email, user.PasswordHash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.loginFailed(ctx, sess), nil
		}
		return nil, oops.Code("ACCOUNT_LOGIN_FAILED").With("operation", "confirm user").Wrap(err)
	}

	sess.SetUser(live.ID)
	s.upgradeHash(ctx, live, in.Password)

	s.events.AuthEvent("login", "ok")
	s.logger.Info(ctx, "login ok", "user_id", live.ID)
	return Redirect{Route: common.RouteUserEdit}, nil
}

func (s *AccountService) loginFailed(ctx context.Context, sess *session.Session) Result {
	s.events.AuthEvent("login", "invalid_credentials")
	s.logger.Info(ctx, "login failed", "reason", common.ErrInvalidCredentials)
	sess.AddFlash(common.FlashError, MsgLoginFailed)
	return Redirect{Route: common.RouteLogin}
}

// upgradeHash replaces a legacy or outdated hash after a successful login.
// Failures are logged and otherwise ignored.
func (s *AccountService) upgradeHash(ctx context.Context, u *models.User, password string) {
	if !s.hasher.NeedsUpgrade(u.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn(ctx, "rehash failed", "user_id", u.ID, "error", err)
		return
	}
	updated := *u
	updated.PasswordHash = hash
	if err := s.repomanager.Users(s.db).Update(ctx, &updated); err != nil {
		s.logger.Warn(ctx, "rehash not stored", "user_id", u.ID, "error", err)
		return
	}
	s.logger.Info(ctx, "password hash upgraded", "user_id", u.ID)
}

// RegisterForm renders the empty registration page.
func (s *AccountService) RegisterForm(ctx context.Context, sess *session.Session) (Result, error) {
	return Render{View: common.RouteUserRegister, Data: map[string]any{}}, nil
}

// Register creates an account, binds the session to it and sends the
// client to the login page. A taken email re-renders the form.
func (s *AccountService) Register(ctx context.Context, sess *session.Session, in RegisterInput) (Result, error) {
	if errs := in.validate(); len(errs) > 0 {
		return registerForm(in, errs), nil
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:        models.NormalizeEmail(in.Email),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			s.events.AuthEvent("register", "conflict")
			return registerForm(in, []string{MsgEmailTaken}), nil
		}
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").With("operation", "create user").Wrap(err)
	}

	sess.SetUser(u.ID)
	sess.AddFlash(common.FlashSuccess, MsgRegistered)

	s.events.AuthEvent("register", "ok")
	s.logger.Info(ctx, "registered", "user_id", u.ID)
	return Redirect{Route: common.RouteLogin}, nil
}

func registerForm(in RegisterInput, errs []string) Render {
	return Render{View: common.RouteUserRegister, Data: map[string]any{
		DataErrors: errs,
		DataEmail:  in.Email,
		DataName:   in.Name,
	}}
}

// Edit renders the profile form for the logged-in user.
func (s *AccountService) Edit(ctx context.Context, sess *session.Session) (Result, error) {
	user, err := s.currentUser(ctx, sess)
	if err != nil {
		return s.unauthenticated(sess, err)
	}
	return Render{View: common.RouteUserEdit, Data: map[string]any{
		DataEmail: user.Email,
		DataName:  user.Name,
	}}, nil
}

// Update applies the profile form after re-checking the current password.
// Name and email are always replaced; the hash only when a new password is
// given.
func (s *AccountService) Update(ctx context.Context, sess *session.Session, in UpdateInput) (Result, error) {
	user, err := s.currentUser(ctx, sess)
	if err != nil {
		return s.unauthenticated(sess, err)
	}

	if errs := in.validate(); len(errs) > 0 {
		return Render{View: common.RouteUserEdit, Data: map[string]any{
			DataErrors: errs,
			DataEmail:  in.Email,
			DataName:   in.Name,
		}}, nil
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.events.AuthEvent("update", "password_mismatch")
		s.logger.Info(ctx, "update rejected", "user_id", user.ID, "reason", common.ErrCurrentPasswordMismatch)
		sess.AddFlash(common.FlashError, MsgCurrentPassword)
		return Redirect{Route: common.RouteUserEdit}, nil
	}

	updated := *user
	updated.Name = strings.TrimSpace(in.Name)
	updated.Email = models.NormalizeEmail(in.Email)
	if in.NewPassword != "" {
		hash, err := s.hasher.Hash(in.NewPassword)
		if err != nil {
			return nil, oops.Code("ACCOUNT_UPDATE_FAILED").With("operation", "hash password").Wrap(err)
		}
		updated.PasswordHash = hash
	}

	if err := s.repomanager.Users(s.db).Update(ctx, &updated); err != nil {
		switch {
		case errors.Is(err, common.ErrConflict):
			s.events.AuthEvent("update", "conflict")
			sess.AddFlash(common.FlashError, MsgEmailTaken)
			return Redirect{Route: common.RouteUserEdit}, nil
		case errors.Is(err, common.ErrorNotFound):
			// deleted since currentUser resolved it
			return s.unauthenticated(sess, common.ErrNotAuthenticated)
		}
		return nil, oops.Code("ACCOUNT_UPDATE_FAILED").With("operation", "update user").Wrap(err)
	}

	s.events.AuthEvent("update", "ok")
	s.logger.Info(ctx, "profile updated", "user_id", user.ID, "password_changed", in.NewPassword != "")
	sess.AddFlash(common.FlashSuccess, MsgUpdated)
	return Redirect{Route: common.RouteUserEdit}, nil
}

// Delete removes the logged-in user's row and every session bound to it,
// then logs the caller out.
func (s *AccountService) Delete(ctx context.Context, sess *session.Session) (Result, error) {
	user, err := s.currentUser(ctx, sess)
	if err != nil {
		return s.unauthenticated(sess, err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).Delete(ctx, user.ID); err != nil {
			return err
		}
		if _, err := s.repomanager.Sessions(tx).DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code("ACCOUNT_DELETE_FAILED").With("user_id", user.ID).Wrap(err)
	}

	s.events.AuthEvent("delete", "ok")
	s.logger.Info(ctx, "account deleted", "user_id", user.ID)

	res, err := s.Logout(ctx, sess)
	if err != nil {
		return nil, err
	}
	sess.AddFlash(common.FlashSuccess, MsgDeleted)
	return res, nil
}

// Logout resets the session. It has no precondition and cannot fail.
func (s *AccountService) Logout(ctx context.Context, sess *session.Session) (Result, error) {
	sess.Clear()
	s.events.AuthEvent("logout", "ok")
	return Redirect{Route: common.RouteLogin}, nil
}

// CurrentUser returns the user the session is bound to, or
// common.ErrNotAuthenticated when unbound or dangling.
func (s *AccountService) CurrentUser(ctx context.Context, sess *session.Session) (*models.User, error) {
	return s.currentUser(ctx, sess)
}

func (s *AccountService) currentUser(ctx context.Context, sess *session.Session) (*models.User, error) {
	id, ok := sess.User()
	if !ok {
		return nil, common.ErrNotAuthenticated
	}
	u, err := s.repomanager.Users(s.db).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "session bound to missing user", "user_id", id)
			return nil, common.ErrNotAuthenticated
		}
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").With("user_id", id).Wrap(err)
	}
	return u, nil
}

// unauthenticated turns ErrNotAuthenticated into the login redirect and
// passes anything else through.
func (s *AccountService) unauthenticated(sess *session.Session, err error) (Result, error) {
	if !errors.Is(err, common.ErrNotAuthenticated) {
		return nil, err
	}
	s.events.AuthEvent("access", "not_authenticated")
	sess.AddFlash(common.FlashError, MsgLoginFirst)
	return Redirect{Route: common.RouteLogin}, nil
}
