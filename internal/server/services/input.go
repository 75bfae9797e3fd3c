package services

import "strings"

// LoginInput is the submitted login form.
type LoginInput struct {
	Email    string
	Password string
}

// RegisterInput is the submitted registration form.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// UpdateInput is the submitted profile form. Password is the current one;
// NewPassword may be empty to keep it.
type UpdateInput struct {
	Password          string
	Email             string
	Name              string
	NewPassword       string
	NewPasswordRepeat string
}

func (in RegisterInput) validate() []string {
	var errs []string
	if !validEmail(in.Email) {
		errs = append(errs, MsgInvalidEmail)
	}
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, MsgNameRequired)
	}
	if in.Password == "" {
		errs = append(errs, MsgPasswordRequired)
	}
	return errs
}

func (in UpdateInput) validate() []string {
	var errs []string
	if !validEmail(in.Email) {
		errs = append(errs, MsgInvalidEmail)
	}
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, MsgNameRequired)
	}
	if in.Password == "" {
		errs = append(errs, MsgPasswordRequired)
	}
	if in.NewPassword != in.NewPasswordRepeat {
		errs = append(errs, MsgPasswordsDiffer)
	}
	return errs
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
