package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookreview/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// PostgresStore handles user, book, and review CRUD against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash)
		 VALUES ($1, $2)
		 RETURNING id, username, created_at`,
		username, passwordHash,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, wrapErr("get user by username", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, wrapErr("get user by id", err)
	}
	return &u, nil
}

// SearchBooks matches the query case-insensitively as a substring of the
// title, author, or ISBN.
func (s *PostgresStore) SearchBooks(ctx context.Context, query string) ([]models.Book, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, isbn, title, author, year FROM books
		 WHERE title ILIKE '%' || $1 || '%'
		    OR author ILIKE '%' || $1 || '%'
		    OR isbn ILIKE '%' || $1 || '%'
		 ORDER BY id`,
		query,
	)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Year); err != nil {
			return nil, fmt.Errorf("search books: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *PostgresStore) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	var b models.Book
	err := s.pool.QueryRow(ctx,
		`SELECT id, isbn, title, author, year FROM books WHERE id = $1`, id,
	).Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Year)
	if err != nil {
		return nil, wrapErr("get book", err)
	}
	return &b, nil
}

func (s *PostgresStore) GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	var b models.Book
	err := s.pool.QueryRow(ctx,
		`SELECT id, isbn, title, author, year FROM books WHERE isbn = $1`, isbn,
	).Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Year)
	if err != nil {
		return nil, wrapErr("get book by isbn", err)
	}
	return &b, nil
}

// ReviewsForBook returns all reviews of a book, joined with the reviewer's
// username for display.
func (s *PostgresStore) ReviewsForBook(ctx context.Context, bookID int64) ([]models.Review, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.title, r.content, r.rating, r.book_id, r.user_id, u.username
		 FROM reviews r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.book_id = $1
		 ORDER BY r.id`,
		bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("reviews for book: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.Title, &r.Content, &r.Rating, &r.BookID, &r.UserID, &r.Username); err != nil {
			return nil, fmt.Errorf("reviews for book: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (s *PostgresStore) CreateReview(ctx context.Context, review *models.Review) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO reviews (title, content, rating, book_id, user_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		review.Title, review.Content, review.Rating, review.BookID, review.UserID,
	).Scan(&review.ID)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	var r models.Review
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, content, rating, book_id, user_id FROM reviews WHERE id = $1`, id,
	).Scan(&r.ID, &r.Title, &r.Content, &r.Rating, &r.BookID, &r.UserID)
	if err != nil {
		return nil, wrapErr("get review", err)
	}
	return &r, nil
}

func (s *PostgresStore) UpdateReview(ctx context.Context, review *models.Review) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE reviews SET title = $1, content = $2, rating = $3 WHERE id = $4`,
		review.Title, review.Content, review.Rating, review.ID,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteReview(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
