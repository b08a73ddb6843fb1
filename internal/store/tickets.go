package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Ticket struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Joined fields
	Author string  `json:"author,omitempty"`
	Review *Review `json:"review,omitempty"`
}

type TicketsStore struct {
	db *pgxpool.Pool
}

// rowQuerier is satisfied by both pgxpool.Pool and pgx.Tx, so single inserts
// and the combined ticket+review transaction share the same statements.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTicket(ctx context.Context, q rowQuerier, ticket *Ticket) error {
	query := `
	   INSERT INTO tickets (user_id, title, description, image_url)
	   VALUES ($1, $2, $3, $4)
	   RETURNING id, created_at, updated_at
	`
	return q.QueryRow(ctx, query,
		ticket.UserID,
		ticket.Title,
		ticket.Description,
		ticket.ImageURL,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (s *TicketsStore) Create(ctx context.Context, ticket *Ticket) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return insertTicket(ctx, s.db, ticket)
}

func (s *TicketsStore) GetByID(ctx context.Context, ticketID int64) (*Ticket, error) {
	query := `
	   SELECT t.id, t.user_id, t.title, t.description, t.image_url, t.created_at, t.updated_at, u.username
	   FROM tickets t
	   JOIN users u ON u.id = t.user_id
	   WHERE t.id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var ticket Ticket
	err := s.db.QueryRow(ctx, query, ticketID).Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.Title,
		&ticket.Description,
		&ticket.ImageURL,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.Author,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

// List returns every ticket, newest first. The listing is deliberately global:
// browsing other members' tickets is how reviewers find requests to answer.
func (s *TicketsStore) List(ctx context.Context) ([]Ticket, error) {
	query := `
	   SELECT t.id, t.user_id, t.title, t.description, t.image_url, t.created_at, t.updated_at, u.username
	   FROM tickets t
	   JOIN users u ON u.id = t.user_id
	   ORDER BY t.created_at DESC, t.id DESC
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]Ticket, error) {
	var tickets []Ticket
	for rows.Next() {
		var ticket Ticket
		err := rows.Scan(
			&ticket.ID,
			&ticket.UserID,
			&ticket.Title,
			&ticket.Description,
			&ticket.ImageURL,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.Author,
		)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (s *TicketsStore) Update(ctx context.Context, ticket *Ticket) error {
	query := `
	   UPDATE tickets
	   SET title = $1, description = $2, updated_at = now()
	   WHERE id = $3
	   RETURNING updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := s.db.QueryRow(ctx, query, ticket.Title, ticket.Description, ticket.ID).
		Scan(&ticket.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Delete removes the ticket; its review, if any, goes with it via the cascade
// on reviews.ticket_id.
func (s *TicketsStore) Delete(ctx context.Context, ticketID int64) error {
	query := `DELETE FROM tickets WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, ticketID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TicketsStore) SetImage(ctx context.Context, ticketID int64, imageURL *string) error {
	query := `UPDATE tickets SET image_url = $1, updated_at = now() WHERE id = $2`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, imageURL, ticketID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
