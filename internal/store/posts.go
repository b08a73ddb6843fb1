package store

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostKind string

const (
	PostKindTicket PostKind = "TICKET"
	PostKindReview PostKind = "REVIEW"
)

// Post is a tagged union over tickets and reviews: exactly one of Ticket and
// Review is set, according to Kind.
type Post struct {
	Kind   PostKind `json:"kind"`
	Ticket *Ticket  `json:"ticket,omitempty"`
	Review *Review  `json:"review,omitempty"`
}

func (p Post) createdAt() time.Time {
	if p.Kind == PostKindTicket {
		return p.Ticket.CreatedAt
	}
	return p.Review.CreatedAt
}

func (p Post) id() int64 {
	if p.Kind == PostKindTicket {
		return p.Ticket.ID
	}
	return p.Review.ID
}

// mergePosts tags and merges the two collections into one reverse-chronological
// list. Ties on created_at fall back to id descending, then reviews before
// tickets, so the ordering is fully deterministic.
func mergePosts(tickets []Ticket, reviews []Review) []Post {
	posts := make([]Post, 0, len(tickets)+len(reviews))
	for i := range tickets {
		posts = append(posts, Post{Kind: PostKindTicket, Ticket: &tickets[i]})
	}
	for i := range reviews {
		posts = append(posts, Post{Kind: PostKindReview, Review: &reviews[i]})
	}

	sort.Slice(posts, func(i, j int) bool {
		ti, tj := posts[i].createdAt(), posts[j].createdAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		if posts[i].id() != posts[j].id() {
			return posts[i].id() > posts[j].id()
		}
		return posts[i].Kind == PostKindReview && posts[j].Kind == PostKindTicket
	})

	return posts
}

type PostsStore struct {
	db *pgxpool.Pool
}

// Own returns every ticket and review the user authored, merged and sorted.
func (s *PostsStore) Own(ctx context.Context, userID int64) ([]Post, error) {
	ticketsQuery := `
	   SELECT t.id, t.user_id, t.title, t.description, t.image_url, t.created_at, t.updated_at, u.username
	   FROM tickets t
	   JOIN users u ON u.id = t.user_id
	   WHERE t.user_id = $1
	`
	reviewsQuery := `
	   SELECT r.id, r.ticket_id, r.user_id, r.headline, r.rating, r.body, r.created_at, r.updated_at, u.username
	   FROM reviews r
	   JOIN users u ON u.id = r.user_id
	   WHERE r.user_id = $1
	`
	return s.aggregate(ctx, ticketsQuery, reviewsQuery, userID)
}

// feedScope is the visibility rule for a user's feed: a ticket is in scope
// when the viewer or a followed user authored it, a review when its author is
// the viewer or followed, or when it answers one of the viewer's own tickets.
type feedScope struct {
	viewerID int64
	followed map[int64]bool
}

func (fs feedScope) includesTicket(authorID int64) bool {
	return authorID == fs.viewerID || fs.followed[authorID]
}

func (fs feedScope) includesReview(authorID, ticketOwnerID int64) bool {
	return authorID == fs.viewerID || ticketOwnerID == fs.viewerID || fs.followed[authorID]
}

func (s *PostsStore) scopeFor(ctx context.Context, viewerID int64) (feedScope, error) {
	rows, err := s.db.Query(ctx, `SELECT followed_id FROM user_follows WHERE follower_id = $1`, viewerID)
	if err != nil {
		return feedScope{}, err
	}
	defer rows.Close()

	followed := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return feedScope{}, err
		}
		followed[id] = true
	}
	return feedScope{viewerID: viewerID, followed: followed}, rows.Err()
}

// Feed returns the posts in the user's feed scope. The queries narrow to a
// candidate set and every row still passes through the feedScope predicate
// before it is kept.
func (s *PostsStore) Feed(ctx context.Context, userID int64) ([]Post, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	scope, err := s.scopeFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	ticketsQuery := `
	   SELECT t.id, t.user_id, t.title, t.description, t.image_url, t.created_at, t.updated_at, u.username
	   FROM tickets t
	   JOIN users u ON u.id = t.user_id
	   WHERE t.user_id = $1
	      OR t.user_id IN (SELECT followed_id FROM user_follows WHERE follower_id = $1)
	`
	ticketRows, err := s.db.Query(ctx, ticketsQuery, userID)
	if err != nil {
		return nil, err
	}
	candidates, err := scanTickets(ticketRows)
	ticketRows.Close()
	if err != nil {
		return nil, err
	}

	tickets := make([]Ticket, 0, len(candidates))
	for _, t := range candidates {
		if scope.includesTicket(t.UserID) {
			tickets = append(tickets, t)
		}
	}

	reviews, err := s.feedReviews(ctx, userID, scope)
	if err != nil {
		return nil, err
	}

	return mergePosts(tickets, reviews), nil
}

func (s *PostsStore) feedReviews(ctx context.Context, userID int64, scope feedScope) ([]Review, error) {
	query := `
	   SELECT r.id, r.ticket_id, r.user_id, r.headline, r.rating, r.body, r.created_at, r.updated_at, u.username, t.user_id
	   FROM reviews r
	   JOIN users u ON u.id = r.user_id
	   JOIN tickets t ON t.id = r.ticket_id
	   WHERE r.user_id = $1
	      OR t.user_id = $1
	      OR r.user_id IN (SELECT followed_id FROM user_follows WHERE follower_id = $1)
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var review Review
		var ticketOwnerID int64
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
			&ticketOwnerID,
		)
		if err != nil {
			return nil, err
		}
		if !scope.includesReview(review.UserID, ticketOwnerID) {
			continue
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (s *PostsStore) aggregate(ctx context.Context, ticketsQuery, reviewsQuery string, userID int64) ([]Post, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	ticketRows, err := s.db.Query(ctx, ticketsQuery, userID)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(ticketRows)
	ticketRows.Close()
	if err != nil {
		return nil, err
	}

	reviewRows, err := s.db.Query(ctx, reviewsQuery, userID)
	if err != nil {
		return nil, err
	}
	reviews, err := scanReviews(reviewRows)
	reviewRows.Close()
	if err != nil {
		return nil, err
	}

	return mergePosts(tickets, reviews), nil
}
