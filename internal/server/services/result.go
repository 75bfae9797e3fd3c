package services

// Result tells the transport what to do after an operation: render a view
// or redirect to a named route.
type Result interface {
	isResult()
}

// Render asks for View to be rendered with Data.
type Render struct {
	View string
	Data map[string]any
}

// Redirect asks for a redirect to the named route.
type Redirect struct {
	Route string
}

func (Render) isResult()   {}
func (Redirect) isResult() {}

// Data keys set by AccountService on Render results.
const (
	DataErrors   = "errors"
	DataEmail    = "email"
	DataName     = "name"
	DataLoggedIn = "logged_in"
)

// Messages shown to the user.
const (
	MsgLoginFailed      = "User is not found with given email and password combination."
	MsgLoginFirst       = "Please login first."
	MsgRegistered       = "Your account has been created successfully."
	MsgEmailTaken       = "Email is already registered."
	MsgPasswordsDiffer  = "The password fields must match."
	MsgCurrentPassword  = "Current password is wrong!"
	MsgUpdated          = "Your data has been updated!"
	MsgDeleted          = "Your account has been deleted successfully."
	MsgInvalidEmail     = "Please enter a valid email address."
	MsgNameRequired     = "Name must not be empty."
	MsgPasswordRequired = "Password must not be empty."
)
