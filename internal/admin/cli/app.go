package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/dmitrijs2005/accounts/internal/server/session"
)

// Flow is the part of the account flow controller the console uses.
type Flow interface {
	Login(ctx context.Context, s *session.Session, in services.LoginInput) (services.Result, error)
	Register(ctx context.Context, s *session.Session, in services.RegisterInput) (services.Result, error)
	Update(ctx context.Context, s *session.Session, in services.UpdateInput) (services.Result, error)
	Delete(ctx context.Context, s *session.Session) (services.Result, error)
	Logout(ctx context.Context, s *session.Session) (services.Result, error)
	CurrentUser(ctx context.Context, s *session.Session) (*models.User, error)
}

// App holds the console state: one session for the whole run.
type App struct {
	flow Flow
	sess *session.Session
	in   *bufio.Reader
	out  io.Writer
}

func NewApp(flow Flow, in io.Reader, out io.Writer) *App {
	return &App{flow: flow, sess: session.New(), in: bufio.NewReader(in), out: out}
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

// text prompts for one line.
func (a *App) text(prompt string) (string, error) {
	return GetSimpleText(a.in, prompt, a.out)
}

// password prompts without echo and returns the value as a string.
func (a *App) password(prompt string) (string, error) {
	pw, err := GetPassword(prompt, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

func (a *App) isLoggedIn() bool {
	_, ok := a.sess.User()
	return ok
}

// status is shown in the prompt.
func (a *App) status(ctx context.Context) string {
	if !a.isLoggedIn() {
		return ""
	}
	u, err := a.flow.CurrentUser(ctx, a.sess)
	if err != nil {
		return ""
	}
	return u.Email
}

// report prints what the flow asked for: pending flashes, form errors and
// where a browser would have been sent.
func (a *App) report(res services.Result) {
	for _, f := range a.sess.PopFlashes() {
		a.println(fmt.Sprintf("[%s] %s", f.Kind, f.Message))
	}
	switch r := res.(type) {
	case services.Render:
		if errs, ok := r.Data[services.DataErrors].([]string); ok {
			for _, e := range errs {
				a.println("[error] " + e)
			}
		}
	case services.Redirect:
		a.println("-> " + r.Route)
	}
}

func (a *App) Register(ctx context.Context) error {
	email, err := a.text("Email")
	if err != nil {
		return err
	}
	name, err := a.text("Name")
	if err != nil {
		return err
	}
	pw, err := a.password("Password")
	if err != nil {
		return err
	}
	res, err := a.flow.Register(ctx, a.sess, services.RegisterInput{Email: email, Name: name, Password: pw})
	if err != nil {
		return err
	}
	a.report(res)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.text("Email")
	if err != nil {
		return err
	}
	pw, err := a.password("Password")
	if err != nil {
		return err
	}
	res, err := a.flow.Login(ctx, a.sess, services.LoginInput{Email: email, Password: pw})
	if err != nil {
		return err
	}
	a.report(res)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	u, err := a.flow.CurrentUser(ctx, a.sess)
	if err != nil {
		if errors.Is(err, common.ErrNotAuthenticated) {
			a.println("not logged in")
			return nil
		}
		return err
	}
	a.println(fmt.Sprintf("#%d %s <%s>", u.ID, u.Name, u.Email))
	return nil
}

// Edit asks for the new profile; empty answers keep the current values.
func (a *App) Edit(ctx context.Context) error {
	u, err := a.flow.CurrentUser(ctx, a.sess)
	if err != nil {
		if errors.Is(err, common.ErrNotAuthenticated) {
			a.println("[error] " + services.MsgLoginFirst)
			return nil
		}
		return err
	}

	email, err := a.text(fmt.Sprintf("Email [%s]", u.Email))
	if err != nil {
		return err
	}
	if email == "" {
		email = u.Email
	}
	name, err := a.text(fmt.Sprintf("Name [%s]", u.Name))
	if err != nil {
		return err
	}
	if name == "" {
		name = u.Name
	}
	current, err := a.password("Current password")
	if err != nil {
		return err
	}
	newPw, err := a.password("New password (empty to keep)")
	if err != nil {
		return err
	}
	repeat := ""
	if newPw != "" {
		if repeat, err = a.password("Repeat new password"); err != nil {
			return err
		}
	}

	res, err := a.flow.Update(ctx, a.sess, services.UpdateInput{
		Password: current, Email: email, Name: name, NewPassword: newPw, NewPasswordRepeat: repeat,
	})
	if err != nil {
		return err
	}
	a.report(res)
	return nil
}

func (a *App) Delete(ctx context.Context) error {
	answer, err := a.text("Type 'yes' to delete your account")
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") {
		a.println("cancelled")
		return nil
	}
	res, err := a.flow.Delete(ctx, a.sess)
	if err != nil {
		return err
	}
	a.report(res)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	res, err := a.flow.Logout(ctx, a.sess)
	if err != nil {
		return err
	}
	a.report(res)
	return nil
}
