package books

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"bookreview/internal/models"
)

const (
	goodreadsBaseURL = "https://www.goodreads.com"
	googleBaseURL    = "https://www.googleapis.com"
)

// Gateway fetches best-effort book enrichment from the Goodreads ratings
// service and the Google Books metadata service. Every lookup failure is
// suppressed to nil fields; callers never see an error.
type Gateway struct {
	goodreadsURL string
	googleURL    string
	httpClient   *http.Client
	log          *zap.Logger
}

func NewGateway(log *zap.Logger) *Gateway {
	return &Gateway{
		goodreadsURL: goodreadsBaseURL,
		googleURL:    googleBaseURL,
		httpClient:   &http.Client{},
		log:          log,
	}
}

// checkResp drains the body and reports non-2xx statuses as errors.
func checkResp(resp *http.Response, service, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%s %s returned %d: %s", service, path, resp.StatusCode, string(body))
}

// RatingSummary calls the Goodreads review-counts endpoint for one ISBN.
// Both fields are nil on any failure.
func (g *Gateway) RatingSummary(ctx context.Context, isbn, apiKey string) (avgRating *float64, ratingsCount *int64) {
	q := url.Values{"key": {apiKey}, "isbns": {isbn}}
	resp, err := g.get(ctx, g.goodreadsURL+"/book/review_counts.json?"+q.Encode())
	if err != nil {
		g.log.Warn("goodreads fetch", zap.String("isbn", isbn), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if err := checkResp(resp, "goodreads", "/book/review_counts.json"); err != nil {
		g.log.Warn("goodreads fetch", zap.String("isbn", isbn), zap.Error(err))
		return nil, nil
	}

	// Goodreads serves average_rating as a string.
	var out struct {
		Books []struct {
			AverageRating string `json:"average_rating"`
			RatingsCount  int64  `json:"ratings_count"`
		} `json:"books"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out.Books) == 0 {
		g.log.Warn("goodreads decode", zap.String("isbn", isbn), zap.Error(err))
		return nil, nil
	}
	rating, err := strconv.ParseFloat(out.Books[0].AverageRating, 64)
	if err != nil {
		g.log.Warn("goodreads rating parse", zap.String("isbn", isbn), zap.Error(err))
		return nil, nil
	}
	count := out.Books[0].RatingsCount
	return &rating, &count
}

// Metadata calls the Google Books volumes endpoint for one ISBN. The
// description and cover are extracted independently, so a response missing
// only the cover still yields the description.
func (g *Gateway) Metadata(ctx context.Context, isbn string) (description, cover *string) {
	resp, err := g.get(ctx, g.googleURL+"/books/v1/volumes?q=isbn:"+url.QueryEscape(isbn))
	if err != nil {
		g.log.Warn("google books fetch", zap.String("isbn", isbn), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if err := checkResp(resp, "google-books", "/books/v1/volumes"); err != nil {
		g.log.Warn("google books fetch", zap.String("isbn", isbn), zap.Error(err))
		return nil, nil
	}

	var out struct {
		Items []struct {
			VolumeInfo struct {
				Description *string `json:"description"`
				ImageLinks  struct {
					Thumbnail *string `json:"thumbnail"`
				} `json:"imageLinks"`
			} `json:"volumeInfo"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out.Items) == 0 {
		g.log.Warn("google books decode", zap.String("isbn", isbn), zap.Error(err))
		return nil, nil
	}
	info := out.Items[0].VolumeInfo
	return info.Description, info.ImageLinks.Thumbnail
}

// Details combines both upstream lookups for the book-detail page.
func (g *Gateway) Details(ctx context.Context, isbn, apiKey string) models.BookDetails {
	var d models.BookDetails
	d.GoodreadsRating, d.GoodreadsRatingsCount = g.RatingSummary(ctx, isbn, apiKey)
	d.Description, d.Cover = g.Metadata(ctx, isbn)
	return d
}

func (g *Gateway) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return g.httpClient.Do(req)
}
