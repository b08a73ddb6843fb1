package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FollowedUser is one end of a follow edge, as shown in the follow lists.
type FollowedUser struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	FollowedAt time.Time `json:"followed_at"`
}

type FollowsStore struct {
	db *pgxpool.Pool
}

// Follow inserts the (follower, followed) edge. The primary key makes the pair
// unique; a second attempt surfaces as ErrConflict.
func (s *FollowsStore) Follow(ctx context.Context, followerID, followedID int64) error {
	query := `
	   INSERT INTO user_follows (follower_id, followed_id) VALUES ($1, $2)
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := s.db.Exec(ctx, query, followerID, followedID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("failed to follow user: %w", err)
	}
	return nil
}

func (s *FollowsStore) Unfollow(ctx context.Context, followerID, followedID int64) error {
	query := `
	   DELETE FROM user_follows
	   WHERE follower_id = $1 AND followed_id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, query, followerID, followedID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Following lists the users userID follows.
func (s *FollowsStore) Following(ctx context.Context, userID int64) ([]FollowedUser, error) {
	query := `
	   SELECT u.id, u.username, f.created_at
	   FROM user_follows f
	   JOIN users u ON u.id = f.followed_id
	   WHERE f.follower_id = $1
	   ORDER BY f.created_at DESC
	`
	return s.list(ctx, query, userID)
}

// Followers lists the users following userID.
func (s *FollowsStore) Followers(ctx context.Context, userID int64) ([]FollowedUser, error) {
	query := `
	   SELECT u.id, u.username, f.created_at
	   FROM user_follows f
	   JOIN users u ON u.id = f.follower_id
	   WHERE f.followed_id = $1
	   ORDER BY f.created_at DESC
	`
	return s.list(ctx, query, userID)
}

func (s *FollowsStore) list(ctx context.Context, query string, userID int64) ([]FollowedUser, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []FollowedUser
	for rows.Next() {
		var u FollowedUser
		if err := rows.Scan(&u.ID, &u.Username, &u.FollowedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
