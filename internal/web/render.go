// Package web renders the application's HTML pages from embedded templates.
// The markup is deliberately minimal; this service is about the routes, not
// the presentation.
package web

import (
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"bookreview/internal/forms"
	"bookreview/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes the embedded page templates.
type Renderer struct {
	tmpl *template.Template
	log  *zap.Logger
}

func NewRenderer(log *zap.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl, log: log}, nil
}

// HTML writes the named template with the given status code.
func (r *Renderer) HTML(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := r.tmpl.ExecuteTemplate(w, name, data); err != nil {
		r.log.Error("render template", zap.String("template", name), zap.Error(err))
	}
}

// LoginPage is the data for templates/login.html.
type LoginPage struct {
	Flashes  []string
	Errors   []forms.FieldError
	Username string
}

// RegisterPage is the data for templates/register.html.
type RegisterPage struct {
	Flashes  []string
	Errors   []forms.FieldError
	Username string
}

// IndexPage is the data for templates/index.html.
type IndexPage struct {
	Flashes []string
	Query   string
	Results []models.Book
}

// BookPage is the data for templates/book.html.
type BookPage struct {
	Flashes   []string
	Errors    []forms.FieldError
	Book      *models.Book
	Reviews   []models.Review
	OwnReview *models.Review
	Details   models.BookDetails
	Form      forms.ReviewInput
}

// EditReviewPage is the data for templates/edit_review.html.
type EditReviewPage struct {
	Flashes []string
	Errors  []forms.FieldError
	Review  *models.Review
	Form    forms.ReviewInput
}
