package httpserver

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

func loadTemplates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

// page titles by view name
var titles = map[string]string{
	"login":         "Login",
	"user_register": "Register",
	"user_edit":     "Your account",
}
