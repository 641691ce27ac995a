package books

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookreview/internal/auth"
	"bookreview/internal/middleware"
	"bookreview/internal/models"
	"bookreview/internal/store"
	"bookreview/internal/web"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu           sync.Mutex
	books        []models.Book
	reviews      []models.Review
	nextReviewID int64
}

func (f *fakeStore) SearchBooks(_ context.Context, query string) ([]models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := strings.ToLower(query)
	var out []models.Book
	for _, b := range f.books {
		if strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.ISBN), q) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) GetBook(_ context.Context, id int64) (*models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.books {
		if f.books[i].ID == id {
			b := f.books[i]
			return &b, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetBookByISBN(_ context.Context, isbn string) (*models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.books {
		if f.books[i].ISBN == isbn {
			b := f.books[i]
			return &b, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ReviewsForBook(_ context.Context, bookID int64) ([]models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Review
	for _, r := range f.reviews {
		if r.BookID == bookID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateReview(_ context.Context, review *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextReviewID++
	review.ID = f.nextReviewID
	f.reviews = append(f.reviews, *review)
	return nil
}

func (f *fakeStore) GetReview(_ context.Context, id int64) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reviews {
		if f.reviews[i].ID == id {
			r := f.reviews[i]
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) UpdateReview(_ context.Context, review *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reviews {
		if f.reviews[i].ID == review.ID {
			f.reviews[i].Title = review.Title
			f.reviews[i].Content = review.Content
			f.reviews[i].Rating = review.Rating
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) DeleteReview(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reviews {
		if f.reviews[i].ID == id {
			f.reviews = append(f.reviews[:i], f.reviews[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// fakeFlashes is an in-memory Flashes implementation.
type fakeFlashes struct {
	mu      sync.Mutex
	flashes map[string][]string
}

func newFakeFlashes() *fakeFlashes {
	return &fakeFlashes{flashes: make(map[string][]string)}
}

func (f *fakeFlashes) AddFlash(_ context.Context, sid, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flashes[sid] = append(f.flashes[sid], message)
	return nil
}

func (f *fakeFlashes) PopFlashes(_ context.Context, sid string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.flashes[sid]
	delete(f.flashes, sid)
	return msgs, nil
}

// fakeGateway returns canned enrichment and records the API key it was
// handed.
type fakeGateway struct {
	details models.BookDetails
	rating  *float64
	count   *int64
	lastKey string
}

func (f *fakeGateway) Details(_ context.Context, _, apiKey string) models.BookDetails {
	f.lastKey = apiKey
	return f.details
}

func (f *fakeGateway) RatingSummary(_ context.Context, _, apiKey string) (*float64, *int64) {
	f.lastKey = apiKey
	return f.rating, f.count
}

func ptr[T any](v T) *T { return &v }

var testBooks = []models.Book{
	{ID: 1, ISBN: "0261103571", Title: "The Fellowship of the Ring", Author: "J.R.R. Tolkien", Year: 1954},
	{ID: 2, ISBN: "0261102362", Title: "The Two Towers", Author: "J.R.R. Tolkien", Year: 1954},
	{ID: 3, ISBN: "0747532699", Title: "Harry Potter and the Philosopher's Stone", Author: "J.K. Rowling", Year: 1997},
}

type fixture struct {
	handler *Handler
	store   *fakeStore
	flashes *fakeFlashes
	gateway *fakeGateway
	router  *chi.Mux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	renderer, err := web.NewRenderer(zap.NewNop())
	require.NoError(t, err)

	st := &fakeStore{books: testBooks}
	fl := newFakeFlashes()
	gw := &fakeGateway{}
	h := NewHandler(st, fl, gw, renderer, zap.NewNop(), "configured-key")

	r := chi.NewRouter()
	r.Get("/", h.Index)
	r.Post("/", h.IndexPost)
	r.Get("/search/{query}", h.Search)
	r.Get("/book/{id}", h.Book)
	r.Post("/book/{id}", h.Book)
	r.Get("/editReview/{id}", h.EditReview)
	r.Post("/editReview/{id}", h.EditReview)
	r.Get("/deleteReview/{id}", h.DeleteReview)
	r.Get("/api/{isbn}", h.BookJSON)

	return &fixture{handler: h, store: st, flashes: fl, gateway: gw, router: r}
}

// do serves a request as userID with a session cookie attached.
func (f *fixture) do(method, target string, form url.Values, userID int64) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	r := httptest.NewRequest(method, target, body)
	if form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if userID != 0 {
		r.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: "sid-test"})
		r = r.WithContext(middleware.WithUserID(r.Context(), userID))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func TestSearchMatchesTitleAuthorISBN(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/search/tolkien", nil, 1)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "The Fellowship of the Ring")
	assert.Contains(t, body, "The Two Towers")
	assert.NotContains(t, body, "Harry Potter")

	w = f.do(http.MethodGet, "/search/0747532699", nil, 1)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Harry Potter")
}

func TestSearchNoResultsRedirectsHome(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/search/asimov", nil, 1)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t,
		[]string{"No books for your query (asimov). Please try again."},
		f.flashes.flashes["sid-test"])
}

func TestIndexPostRedirectsToSearch(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/", url.Values{"search-query": {"tolkien"}}, 1)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/search/tolkien", w.Header().Get("Location"))
}

func TestBookDetailRendersReviewsAndEnrichment(t *testing.T) {
	f := newFixture(t)
	f.store.reviews = []models.Review{
		{ID: 1, Title: "Loved it", Content: "Wonderful", Rating: 5, BookID: 1, UserID: 2, Username: "sam"},
	}
	f.gateway.details = models.BookDetails{
		GoodreadsRating:       ptr(4.36),
		GoodreadsRatingsCount: ptr(int64(2500000)),
		Description:           ptr("The first part of the trilogy."),
		Cover:                 ptr("http://covers.example/fotr.jpg"),
	}

	w := f.do(http.MethodGet, "/book/1", nil, 1)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "The Fellowship of the Ring")
	assert.Contains(t, body, "Loved it")
	assert.Contains(t, body, "sam")
	assert.Contains(t, body, "4.36")
	assert.Contains(t, body, "The first part of the trilogy.")
	assert.Contains(t, body, "http://covers.example/fotr.jpg")
	assert.Equal(t, "configured-key", f.gateway.lastKey)
}

func TestBookDetailDegradesWhenGatewayFails(t *testing.T) {
	f := newFixture(t)
	// fakeGateway zero value: every enrichment field nil

	w := f.do(http.MethodGet, "/book/1", nil, 1)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "The Fellowship of the Ring")
	assert.NotContains(t, body, "Goodreads:")
}

func TestBookNotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/book/99", nil, 1)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitReview(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/book/1", url.Values{
		"title": {"A classic"}, "content": {"Read it twice."}, "rating": {"5"},
	}, 7)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/book/1", w.Header().Get("Location"))
	assert.Equal(t, []string{"Review added"}, f.flashes.flashes["sid-test"])

	require.Len(t, f.store.reviews, 1)
	got := f.store.reviews[0]
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, int64(1), got.BookID)
	assert.Equal(t, 5, got.Rating)
}

func TestSubmitReviewTwiceLeavesSetUnchanged(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/book/1", url.Values{
		"title": {"A classic"}, "content": {"Read it twice."}, "rating": {"5"},
	}, 7)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Len(t, f.store.reviews, 1)

	w = f.do(http.MethodPost, "/book/1", url.Values{
		"title": {"Again"}, "content": {"Changed my mind."}, "rating": {"2"},
	}, 7)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "You already reviewed this book")

	require.Len(t, f.store.reviews, 1)
	assert.Equal(t, "A classic", f.store.reviews[0].Title)
	assert.Equal(t, 5, f.store.reviews[0].Rating)
}

func TestSubmitReviewValidationFailure(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/book/1", url.Values{
		"title": {"No rating"}, "content": {"Oops"},
	}, 7)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please fill out all review fields.")
	assert.Empty(t, f.store.reviews)
}

func TestEditReviewOwnerOnly(t *testing.T) {
	f := newFixture(t)
	f.store.reviews = []models.Review{
		{ID: 1, Title: "Mine", Content: "Original", Rating: 3, BookID: 1, UserID: 7},
	}
	f.store.nextReviewID = 1

	w := f.do(http.MethodGet, "/editReview/1", nil, 8)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Access denied")
	assert.NotContains(t, w.Body.String(), "Original")

	w = f.do(http.MethodGet, "/editReview/1", nil, 7)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mine")
	assert.Contains(t, w.Body.String(), "Original")
}

func TestEditReviewUpdates(t *testing.T) {
	f := newFixture(t)
	f.store.reviews = []models.Review{
		{ID: 1, Title: "Mine", Content: "Original", Rating: 3, BookID: 1, UserID: 7},
	}
	f.store.nextReviewID = 1

	w := f.do(http.MethodPost, "/editReview/1", url.Values{
		"title": {"Revised"}, "content": {"Even better on reread."}, "rating": {"4"},
	}, 7)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/book/1", w.Header().Get("Location"))
	assert.Equal(t, []string{"Review updated"}, f.flashes.flashes["sid-test"])

	assert.Equal(t, "Revised", f.store.reviews[0].Title)
	assert.Equal(t, 4, f.store.reviews[0].Rating)
}

func TestEditUnknownReviewDenied(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/editReview/42", nil, 7)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Access denied")
}

func TestDeleteReview(t *testing.T) {
	f := newFixture(t)
	f.store.reviews = []models.Review{
		{ID: 1, Title: "Mine", Content: "Original", Rating: 3, BookID: 1, UserID: 7},
	}
	f.store.nextReviewID = 1

	w := f.do(http.MethodGet, "/deleteReview/1", nil, 8)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Len(t, f.store.reviews, 1)

	w = f.do(http.MethodGet, "/deleteReview/1", nil, 7)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/book/1", w.Header().Get("Location"))
	assert.Equal(t, []string{"Review deleted"}, f.flashes.flashes["sid-test"])
	assert.Empty(t, f.store.reviews)
}

func TestBookJSONUnknownISBN(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/9999999999", nil, 0)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": false}`, w.Body.String())
}

func TestBookJSON(t *testing.T) {
	f := newFixture(t)
	f.gateway.rating = ptr(4.36)
	f.gateway.count = ptr(int64(2500000))

	w := f.do(http.MethodGet, "/api/0261103571", nil, 0)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"title": "The Fellowship of the Ring",
		"author": "J.R.R. Tolkien",
		"year": 1954,
		"isbn": "0261103571",
		"review_count": 2500000,
		"average_score": 4.36
	}`, w.Body.String())
	assert.Equal(t, legacyGoodreadsKey, f.gateway.lastKey)
}

func TestBookJSONNullRatingFields(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/0261103571", nil, 0)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"title": "The Fellowship of the Ring",
		"author": "J.R.R. Tolkien",
		"year": 1954,
		"isbn": "0261103571",
		"review_count": null,
		"average_score": null
	}`, w.Body.String())
}
