// Package forms defines the typed inputs for the three HTML forms and a
// small composable validation pipeline returning field-level errors.
package forms

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// FieldError describes a single failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Check inspects a value and returns an error message, or "" if it passes.
type Check func(value string) string

// Field binds a named value to the checks that must hold for it.
type Field struct {
	Name   string
	Value  string
	Checks []Check
}

// Run applies each field's checks in order, collecting the first failure
// per field.
func Run(fields ...Field) []FieldError {
	var errs []FieldError
	for _, f := range fields {
		for _, check := range f.Checks {
			if msg := check(f.Value); msg != "" {
				errs = append(errs, FieldError{Field: f.Name, Message: msg})
				break
			}
		}
	}
	return errs
}

// Required rejects empty values.
func Required() Check {
	return func(v string) string {
		if strings.TrimSpace(v) == "" {
			return "This field is required."
		}
		return ""
	}
}

// EqualTo rejects values that differ from other.
func EqualTo(other, label string) Check {
	return func(v string) string {
		if v != other {
			return fmt.Sprintf("Field must be equal to %s.", label)
		}
		return ""
	}
}

// IntBetween rejects values that do not parse as an integer in [min, max].
func IntBetween(min, max int) Check {
	return func(v string) string {
		n, err := strconv.Atoi(v)
		if err != nil || n < min || n > max {
			return fmt.Sprintf("Value must be a number between %d and %d.", min, max)
		}
		return ""
	}
}

// LoginInput is the parsed POST /login form.
type LoginInput struct {
	Username   string
	Password   string
	RememberMe bool
}

// ParseLogin decodes and validates the login form.
func ParseLogin(r *http.Request) (LoginInput, []FieldError) {
	in := LoginInput{
		Username:   r.PostFormValue("username"),
		Password:   r.PostFormValue("password"),
		RememberMe: r.PostFormValue("remember_me") != "",
	}
	errs := Run(
		Field{Name: "username", Value: in.Username, Checks: []Check{Required()}},
		Field{Name: "password", Value: in.Password, Checks: []Check{Required()}},
	)
	return in, errs
}

// RegisterInput is the parsed POST /register form.
type RegisterInput struct {
	Username  string
	Password  string
	Password2 string
}

// ParseRegister decodes and validates the registration form.
func ParseRegister(r *http.Request) (RegisterInput, []FieldError) {
	in := RegisterInput{
		Username:  r.PostFormValue("username"),
		Password:  r.PostFormValue("password"),
		Password2: r.PostFormValue("password2"),
	}
	errs := Run(
		Field{Name: "username", Value: in.Username, Checks: []Check{Required()}},
		Field{Name: "password", Value: in.Password, Checks: []Check{Required()}},
		Field{Name: "password2", Value: in.Password2, Checks: []Check{Required(), EqualTo(in.Password, "password")}},
	)
	return in, errs
}

// ReviewInput is the parsed review form (POST /book/{id} and /editReview/{id}).
type ReviewInput struct {
	Title   string
	Content string
	Rating  int
}

// ParseReview decodes and validates the review form.
func ParseReview(r *http.Request) (ReviewInput, []FieldError) {
	rawRating := r.PostFormValue("rating")
	in := ReviewInput{
		Title:   r.PostFormValue("title"),
		Content: r.PostFormValue("content"),
	}
	errs := Run(
		Field{Name: "title", Value: in.Title, Checks: []Check{Required()}},
		Field{Name: "content", Value: in.Content, Checks: []Check{Required()}},
		Field{Name: "rating", Value: rawRating, Checks: []Check{Required(), IntBetween(1, 5)}},
	)
	if len(errs) == 0 {
		in.Rating, _ = strconv.Atoi(rawRating)
	}
	return in, errs
}
