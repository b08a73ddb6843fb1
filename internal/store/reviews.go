package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"revu/internal/database"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Review struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	UserID    int64     `json:"user_id"`
	Headline  string    `json:"headline"`
	Rating    int       `json:"rating"` // 0-5
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined fields
	Author string `json:"author,omitempty"`
}

type ReviewsStore struct {
	db *pgxpool.Pool
}

func insertReview(ctx context.Context, q rowQuerier, review *Review) error {
	query := `
	   INSERT INTO reviews (ticket_id, user_id, headline, rating, body)
	   VALUES ($1, $2, $3, $4, $5)
	   RETURNING id, created_at, updated_at
	`
	return q.QueryRow(ctx, query,
		review.TicketID,
		review.UserID,
		review.Headline,
		review.Rating,
		review.Body,
	).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
}

func (s *ReviewsStore) Create(ctx context.Context, review *Review) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return insertReview(ctx, s.db, review)
}

// CreateWithTicket inserts the ticket and its review as one transaction. If
// either insert fails, neither row survives, so a failed review never leaves
// an orphan ticket behind.
func (s *ReviewsStore) CreateWithTicket(ctx context.Context, ticket *Ticket, review *Review) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return database.WithTx(s.db, ctx, func(tx pgx.Tx) error {
		if err := insertTicket(ctx, tx, ticket); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}

		review.TicketID = ticket.ID
		if err := insertReview(ctx, tx, review); err != nil {
			return fmt.Errorf("create review: %w", err)
		}
		return nil
	})
}

func (s *ReviewsStore) GetByID(ctx context.Context, reviewID int64) (*Review, error) {
	query := `
	   SELECT r.id, r.ticket_id, r.user_id, r.headline, r.rating, r.body, r.created_at, r.updated_at, u.username
	   FROM reviews r
	   JOIN users u ON u.id = r.user_id
	   WHERE r.id = $1
	`
	return s.getOne(ctx, query, reviewID)
}

// GetByTicket returns the review attached to a ticket. One review per ticket
// is an application convention, not a database constraint, so the newest wins
// if the convention was ever broken.
func (s *ReviewsStore) GetByTicket(ctx context.Context, ticketID int64) (*Review, error) {
	query := `
	   SELECT r.id, r.ticket_id, r.user_id, r.headline, r.rating, r.body, r.created_at, r.updated_at, u.username
	   FROM reviews r
	   JOIN users u ON u.id = r.user_id
	   WHERE r.ticket_id = $1
	   ORDER BY r.created_at DESC
	   LIMIT 1
	`
	return s.getOne(ctx, query, ticketID)
}

func (s *ReviewsStore) getOne(ctx context.Context, query string, arg any) (*Review, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var review Review
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&review.ID,
		&review.TicketID,
		&review.UserID,
		&review.Headline,
		&review.Rating,
		&review.Body,
		&review.CreatedAt,
		&review.UpdatedAt,
		&review.Author,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

func (s *ReviewsStore) List(ctx context.Context) ([]Review, error) {
	query := `
	   SELECT r.id, r.ticket_id, r.user_id, r.headline, r.rating, r.body, r.created_at, r.updated_at, u.username
	   FROM reviews r
	   JOIN users u ON u.id = r.user_id
	   ORDER BY r.created_at DESC, r.id DESC
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReviews(rows)
}

func scanReviews(rows pgx.Rows) ([]Review, error) {
	var reviews []Review
	for rows.Next() {
		var review Review
		err := rows.Scan(
			&review.ID,
			&review.TicketID,
			&review.UserID,
			&review.Headline,
			&review.Rating,
			&review.Body,
			&review.CreatedAt,
			&review.UpdatedAt,
			&review.Author,
		)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (s *ReviewsStore) Update(ctx context.Context, review *Review) error {
	query := `
	   UPDATE reviews
	   SET headline = $1, rating = $2, body = $3, updated_at = now()
	   WHERE id = $4
	   RETURNING updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := s.db.QueryRow(ctx, query, review.Headline, review.Rating, review.Body, review.ID).
		Scan(&review.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *ReviewsStore) Delete(ctx context.Context, reviewID int64) error {
	query := `DELETE FROM reviews WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, reviewID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
