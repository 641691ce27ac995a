package models

import "time"

// User represents a row in the users table.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialize
	CreatedAt    time.Time `json:"created_at"`
}

// Book represents a row in the books table. Books are seeded externally;
// the application never creates or modifies them.
type Book struct {
	ID     int64  `json:"id"`
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   int    `json:"year"`
}

// Review is one user's review of one book. The application allows at most
// one review per (user, book) pair.
type Review struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Rating  int    `json:"rating"`
	BookID  int64  `json:"book_id"`
	UserID  int64  `json:"user_id"`

	// Username is the reviewer's name, populated by the store on reads
	// that join against users. Not a column of the reviews table.
	Username string `json:"username,omitempty"`
}

// BookDetails holds best-effort enrichment fetched from the external
// ratings and metadata services. Every field is nil when the corresponding
// upstream lookup fails.
type BookDetails struct {
	GoodreadsRating       *float64 `json:"goodreads_rating"`
	GoodreadsRatingsCount *int64   `json:"goodreads_ratings_count"`
	Description           *string  `json:"description"`
	Cover                 *string  `json:"cover"`
}
