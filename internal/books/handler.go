package books

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookreview/internal/auth"
	"bookreview/internal/forms"
	"bookreview/internal/middleware"
	"bookreview/internal/models"
	"bookreview/internal/store"
	"bookreview/internal/web"
)

// legacyGoodreadsKey is the credential the JSON lookup endpoint has always
// used instead of the configured one. Kept for compatibility; see DESIGN.md.
const legacyGoodreadsKey = "ow2ypDLGjjsQgTc2etsz7w"

// Store defines the book and review persistence the handlers need.
type Store interface {
	SearchBooks(ctx context.Context, query string) ([]models.Book, error)
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error)
	ReviewsForBook(ctx context.Context, bookID int64) ([]models.Review, error)
	CreateReview(ctx context.Context, review *models.Review) error
	GetReview(ctx context.Context, id int64) (*models.Review, error)
	UpdateReview(ctx context.Context, review *models.Review) error
	DeleteReview(ctx context.Context, id int64) error
}

// Flashes defines the flash-message operations the handlers need.
type Flashes interface {
	AddFlash(ctx context.Context, sessionID, message string) error
	PopFlashes(ctx context.Context, sessionID string) ([]string, error)
}

// MetadataGateway fetches external book enrichment.
type MetadataGateway interface {
	Details(ctx context.Context, isbn, apiKey string) models.BookDetails
	RatingSummary(ctx context.Context, isbn, apiKey string) (*float64, *int64)
}

// Handler holds the search, book-detail, review, and JSON lookup handlers.
type Handler struct {
	store        Store
	sessions     Flashes
	gateway      MetadataGateway
	render       *web.Renderer
	log          *zap.Logger
	goodreadsKey string
}

func NewHandler(st Store, sessions Flashes, gateway MetadataGateway, render *web.Renderer, log *zap.Logger, goodreadsKey string) *Handler {
	return &Handler{
		store:        st,
		sessions:     sessions,
		gateway:      gateway,
		render:       render,
		log:          log,
		goodreadsKey: goodreadsKey,
	}
}

// Index renders the home page with the search form.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.render.HTML(w, http.StatusOK, "index.html", web.IndexPage{
		Flashes: h.popFlashes(r),
	})
}

// IndexPost redirects a home-page search submission to the search route.
func (h *Handler) IndexPost(w http.ResponseWriter, r *http.Request) {
	query := r.PostFormValue("search-query")
	http.Redirect(w, r, "/search/"+url.PathEscape(query), http.StatusSeeOther)
}

// Search renders the books matching the query, or flashes and redirects
// home when nothing matches.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	if unescaped, err := url.PathUnescape(query); err == nil {
		query = unescaped
	}

	results, err := h.store.SearchBooks(r.Context(), query)
	if err != nil {
		h.log.Error("search books", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if len(results) == 0 {
		h.flash(r, "No books for your query ("+query+"). Please try again.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.render.HTML(w, http.StatusOK, "index.html", web.IndexPage{
		Flashes: h.popFlashes(r),
		Query:   query,
		Results: results,
	})
}

// Book renders the detail page for one book: its reviews, whether the
// current user already reviewed it, and external enrichment. On POST it
// first handles a review submission.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	bookID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	book, err := h.store.GetBook(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.log.Error("get book", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	reviews, err := h.store.ReviewsForBook(r.Context(), bookID)
	if err != nil {
		h.log.Error("reviews for book", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	ownReview := reviewByUser(reviews, userID)

	var inlineFlashes []string
	var form forms.ReviewInput
	if r.Method == http.MethodPost {
		in, fieldErrs := forms.ParseReview(r)
		switch {
		case len(fieldErrs) > 0:
			form = in
			inlineFlashes = append(inlineFlashes, "Please fill out all review fields.")
		case ownReview != nil:
			inlineFlashes = append(inlineFlashes, "You already reviewed this book")
		default:
			review := &models.Review{
				Title:   in.Title,
				Content: in.Content,
				Rating:  in.Rating,
				BookID:  bookID,
				UserID:  userID,
			}
			if err := h.store.CreateReview(r.Context(), review); err != nil {
				h.log.Error("create review", zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			h.flash(r, "Review added")
			http.Redirect(w, r, "/book/"+strconv.FormatInt(bookID, 10), http.StatusSeeOther)
			return
		}
	}

	details := h.gateway.Details(r.Context(), book.ISBN, h.goodreadsKey)

	h.render.HTML(w, http.StatusOK, "book.html", web.BookPage{
		Flashes:   append(h.popFlashes(r), inlineFlashes...),
		Book:      book,
		Reviews:   reviews,
		OwnReview: ownReview,
		Details:   details,
		Form:      form,
	})
}

// EditReview renders (GET) or applies (POST) edits to a review. Only the
// review's owner gets past the ownership check; everyone else receives a
// terse denial.
func (h *Handler) EditReview(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	review, ok := h.ownedReview(w, r, userID)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		h.render.HTML(w, http.StatusOK, "edit_review.html", web.EditReviewPage{
			Flashes: h.popFlashes(r),
			Review:  review,
			Form: forms.ReviewInput{
				Title:   review.Title,
				Content: review.Content,
				Rating:  review.Rating,
			},
		})
		return
	}

	in, fieldErrs := forms.ParseReview(r)
	if len(fieldErrs) > 0 {
		h.render.HTML(w, http.StatusOK, "edit_review.html", web.EditReviewPage{
			Flashes: append(h.popFlashes(r), "Please fill out all review fields."),
			Review:  review,
			Form:    in,
		})
		return
	}

	review.Title = in.Title
	review.Content = in.Content
	review.Rating = in.Rating
	if err := h.store.UpdateReview(r.Context(), review); err != nil {
		h.log.Error("update review", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.flash(r, "Review updated")
	http.Redirect(w, r, "/book/"+strconv.FormatInt(review.BookID, 10), http.StatusSeeOther)
}

// DeleteReview deletes the current user's review and returns to the book.
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	review, ok := h.ownedReview(w, r, userID)
	if !ok {
		return
	}

	if err := h.store.DeleteReview(r.Context(), review.ID); err != nil {
		h.log.Error("delete review", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.flash(r, "Review deleted")
	http.Redirect(w, r, "/book/"+strconv.FormatInt(review.BookID, 10), http.StatusSeeOther)
}

// BookJSON is the public JSON lookup by ISBN. Any failure at all collapses
// to {"success": false}.
func (h *Handler) BookJSON(w http.ResponseWriter, r *http.Request) {
	isbn := chi.URLParam(r, "isbn")

	book, err := h.store.GetBookByISBN(r.Context(), isbn)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}

	rating, count := h.gateway.RatingSummary(r.Context(), book.ISBN, legacyGoodreadsKey)
	writeJSON(w, http.StatusOK, map[string]any{
		"title":         book.Title,
		"author":        book.Author,
		"year":          book.Year,
		"isbn":          book.ISBN,
		"review_count":  count,
		"average_score": rating,
	})
}

// ownedReview loads the review from the URL and enforces ownership, writing
// the denial response itself when the check fails.
func (h *Handler) ownedReview(w http.ResponseWriter, r *http.Request, userID int64) (*models.Review, bool) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		accessDenied(w)
		return nil, false
	}
	review, err := h.store.GetReview(r.Context(), reviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			accessDenied(w)
			return nil, false
		}
		h.log.Error("get review", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if review.UserID != userID {
		accessDenied(w)
		return nil, false
	}
	return review, true
}

func accessDenied(w http.ResponseWriter) {
	http.Error(w, "Access denied", http.StatusForbidden)
}

// reviewByUser returns the first review by userID, relying on the
// one-review-per-user convention.
func reviewByUser(reviews []models.Review, userID int64) *models.Review {
	for i := range reviews {
		if reviews[i].UserID == userID {
			return &reviews[i]
		}
	}
	return nil
}

func (h *Handler) flash(r *http.Request, message string) {
	cookie, err := r.Cookie(auth.SessionCookie)
	if err != nil {
		return
	}
	if err := h.sessions.AddFlash(r.Context(), cookie.Value, message); err != nil {
		h.log.Warn("add flash", zap.Error(err))
	}
}

func (h *Handler) popFlashes(r *http.Request) []string {
	cookie, err := r.Cookie(auth.SessionCookie)
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

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
