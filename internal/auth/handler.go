package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"bookreview/internal/forms"
	"bookreview/internal/models"
	"bookreview/internal/store"
	"bookreview/internal/web"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Sessions defines the session operations the auth handlers need.
type Sessions interface {
	Create(ctx context.Context, userID string, remember bool) (string, error)
	Get(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
	AddFlash(ctx context.Context, sessionID, message string) error
	PopFlashes(ctx context.Context, sessionID string) ([]string, error)
}

// Handler holds the login, registration, and logout HTTP handlers.
type Handler struct {
	users    UserStore
	sessions Sessions
	render   *web.Renderer
	log      *zap.Logger
}

func NewHandler(users UserStore, sessions Sessions, render *web.Renderer, log *zap.Logger) *Handler {
	return &Handler{users: users, sessions: sessions, render: render, log: log}
}

// LoginForm renders the login page. Already-authenticated users are sent home.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.isAuthenticated(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render.HTML(w, http.StatusOK, "login.html", web.LoginPage{
		Flashes: h.flashes(r),
	})
}

// Login processes the login form. Unknown username and wrong password are
// indistinguishable in the response.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.isAuthenticated(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	in, fieldErrs := forms.ParseLogin(r)
	if len(fieldErrs) > 0 {
		h.render.HTML(w, http.StatusOK, "login.html", web.LoginPage{
			Errors:   fieldErrs,
			Username: in.Username,
		})
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), in.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.log.Error("login lookup", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		h.render.HTML(w, http.StatusOK, "login.html", web.LoginPage{
			Flashes:  []string{"Incorrect username or password"},
			Username: in.Username,
		})
		return
	}

	sid, err := h.sessions.Create(r.Context(), formatUserID(user.ID), in.RememberMe)
	if err != nil {
		h.log.Error("session create", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	SetSessionCookie(w, sid, in.RememberMe)

	if err := h.sessions.AddFlash(r.Context(), sid, "You are now logged in as "+user.Username); err != nil {
		h.log.Warn("add flash", zap.Error(err))
	}
	http.Redirect(w, r, safeNext(r), http.StatusSeeOther)
}

// RegisterForm renders the registration page.
func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	if h.isAuthenticated(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render.HTML(w, http.StatusOK, "register.html", web.RegisterPage{
		Flashes: h.flashes(r),
	})
}

// Register processes the registration form. The plaintext password is never
// stored.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h.isAuthenticated(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	in, fieldErrs := forms.ParseRegister(r)
	if len(fieldErrs) == 0 {
		_, err := h.users.GetUserByUsername(r.Context(), in.Username)
		switch {
		case err == nil:
			fieldErrs = append(fieldErrs, forms.FieldError{
				Field:   "username",
				Message: "Please use a different username.",
			})
		case !errors.Is(err, store.ErrNotFound):
			h.log.Error("register lookup", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	if len(fieldErrs) > 0 {
		h.render.HTML(w, http.StatusOK, "register.html", web.RegisterPage{
			Errors:   fieldErrs,
			Username: in.Username,
		})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := h.users.CreateUser(r.Context(), in.Username, string(hashed)); err != nil {
		h.log.Error("create user", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.flash(w, r, "You are now a registered user!")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Logout clears the session unconditionally and redirects to the login page.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.log.Warn("session delete", zap.Error(err))
		}
	}
	ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) isAuthenticated(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return false
	}
	val, err := h.sessions.Get(r.Context(), cookie.Value)
	return err == nil && val != ""
}

// flashes pops any pending flash messages for the current session.
func (h *Handler) flashes(r *http.Request) []string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	msgs, err := h.sessions.PopFlashes(r.Context(), cookie.Value)
	if err != nil {
		h.log.Warn("pop flashes", zap.Error(err))
		return nil
	}
	return msgs
}

// flash queues a message for the next rendered page, creating an anonymous
// session to carry it if the request has none.
func (h *Handler) flash(w http.ResponseWriter, r *http.Request, message string) {
	sid := ""
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		sid = cookie.Value
	}
	if sid == "" {
		newSID, err := h.sessions.Create(r.Context(), "", false)
		if err != nil {
			h.log.Warn("anonymous session create", zap.Error(err))
			return
		}
		SetSessionCookie(w, newSID, false)
		sid = newSID
	}
	if err := h.sessions.AddFlash(r.Context(), sid, message); err != nil {
		h.log.Warn("add flash", zap.Error(err))
	}
}

// safeNext returns the post-login redirect target. Only relative paths are
// honored; anything carrying a scheme or host falls back to the home page.
func safeNext(r *http.Request) string {
	next := r.URL.Query().Get("next")
	if next == "" {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

func formatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}
