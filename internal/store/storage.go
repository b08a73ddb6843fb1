package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	QueryTimeoutDuration = time.Second * 5
)

type Storage struct {
	Users interface {
		Create(context.Context, *User) error
		GetByID(context.Context, int64) (*User, error)
		GetByUsername(context.Context, string) (*User, error)
		GetByEmail(context.Context, string) (*User, error)
		SaveRefreshToken(ctx context.Context, userID int64, refreshToken string) error
		GetRefreshToken(ctx context.Context, userID int64) (string, error)
		DeleteRefreshToken(ctx context.Context, userID int64) error
		UpdateResetToken(ctx context.Context, email, resetToken string, resetTokenExpires time.Time) error
		GetByResetToken(ctx context.Context, resetToken string) (*User, error)
		UpdatePassword(ctx context.Context, user *User) error
	}
	Tickets interface {
		Create(context.Context, *Ticket) error
		GetByID(context.Context, int64) (*Ticket, error)
		List(context.Context) ([]Ticket, error)
		Update(context.Context, *Ticket) error
		Delete(context.Context, int64) error
		SetImage(ctx context.Context, ticketID int64, imageURL *string) error
	}
	Reviews interface {
		Create(context.Context, *Review) error
		CreateWithTicket(ctx context.Context, ticket *Ticket, review *Review) error
		GetByID(context.Context, int64) (*Review, error)
		GetByTicket(context.Context, int64) (*Review, error)
		List(context.Context) ([]Review, error)
		Update(context.Context, *Review) error
		Delete(context.Context, int64) error
	}
	Follows interface {
		Follow(ctx context.Context, followerID, followedID int64) error
		Unfollow(ctx context.Context, followerID, followedID int64) error
		Following(ctx context.Context, userID int64) ([]FollowedUser, error)
		Followers(ctx context.Context, userID int64) ([]FollowedUser, error)
	}
	Posts interface {
		Own(ctx context.Context, userID int64) ([]Post, error)
		Feed(ctx context.Context, userID int64) ([]Post, error)
	}
}

func NewStorage(db *pgxpool.Pool) Storage {
	return Storage{
		Users:   &UsersStore{db},
		Tickets: &TicketsStore{db},
		Reviews: &ReviewsStore{db},
		Follows: &FollowsStore{db},
		Posts:   &PostsStore{db},
	}
}
