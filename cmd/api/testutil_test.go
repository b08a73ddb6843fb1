package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"revu/internal/auth"
	"revu/internal/ratelimiter"
	"revu/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ---- in-memory stores ----

type mockUsersStore struct {
	nextID int64
	byID   map[int64]*store.User
}

func newMockUsersStore() *mockUsersStore {
	return &mockUsersStore{nextID: 1, byID: map[int64]*store.User{}}
}

func (m *mockUsersStore) add(user *store.User) *store.User {
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	m.nextID++
	m.byID[user.ID] = user
	return user
}

func (m *mockUsersStore) Create(_ context.Context, user *store.User) error {
	for _, u := range m.byID {
		if u.Username == user.Username {
			return store.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return store.ErrDuplicateEmail
		}
	}
	m.add(user)
	return nil
}

func (m *mockUsersStore) GetByID(_ context.Context, id int64) (*store.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockUsersStore) GetByUsername(_ context.Context, username string) (*store.User, error) {
	for _, u := range m.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockUsersStore) GetByEmail(_ context.Context, email string) (*store.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockUsersStore) SaveRefreshToken(_ context.Context, userID int64, token string) error {
	u, ok := m.byID[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.RefreshToken = token
	return nil
}

func (m *mockUsersStore) GetRefreshToken(_ context.Context, userID int64) (string, error) {
	u, ok := m.byID[userID]
	if !ok {
		return "", store.ErrNotFound
	}
	return u.RefreshToken, nil
}

func (m *mockUsersStore) DeleteRefreshToken(_ context.Context, userID int64) error {
	u, ok := m.byID[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.RefreshToken = ""
	return nil
}

func (m *mockUsersStore) UpdateResetToken(_ context.Context, email, token string, expires time.Time) error {
	for _, u := range m.byID {
		if u.Email == email {
			u.ResetPasswordToken = token
			u.ResetPasswordExpires = expires
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *mockUsersStore) GetByResetToken(_ context.Context, token string) (*store.User, error) {
	for _, u := range m.byID {
		if u.ResetPasswordToken != "" && u.ResetPasswordToken == token {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockUsersStore) UpdatePassword(_ context.Context, user *store.User) error {
	if _, ok := m.byID[user.ID]; !ok {
		return store.ErrNotFound
	}
	m.byID[user.ID] = user
	return nil
}

type mockTicketsStore struct {
	nextID int64
	byID   map[int64]*store.Ticket
}

func newMockTicketsStore() *mockTicketsStore {
	return &mockTicketsStore{nextID: 1, byID: map[int64]*store.Ticket{}}
}

func (m *mockTicketsStore) Create(_ context.Context, ticket *store.Ticket) error {
	ticket.ID = m.nextID
	ticket.CreatedAt = time.Now()
	m.nextID++
	copied := *ticket
	m.byID[ticket.ID] = &copied
	return nil
}

func (m *mockTicketsStore) GetByID(_ context.Context, id int64) (*store.Ticket, error) {
	if t, ok := m.byID[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockTicketsStore) List(_ context.Context) ([]store.Ticket, error) {
	var tickets []store.Ticket
	for _, t := range m.byID {
		tickets = append(tickets, *t)
	}
	return tickets, nil
}

func (m *mockTicketsStore) Update(_ context.Context, ticket *store.Ticket) error {
	if _, ok := m.byID[ticket.ID]; !ok {
		return store.ErrNotFound
	}
	copied := *ticket
	m.byID[ticket.ID] = &copied
	return nil
}

func (m *mockTicketsStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *mockTicketsStore) SetImage(_ context.Context, id int64, url *string) error {
	t, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	t.ImageURL = url
	return nil
}

type mockReviewsStore struct {
	nextID  int64
	byID    map[int64]*store.Review
	tickets *mockTicketsStore

	// failCombined makes CreateWithTicket fail at the review step without
	// leaving a ticket behind, mimicking a rolled-back transaction.
	failCombined bool
}

func newMockReviewsStore(tickets *mockTicketsStore) *mockReviewsStore {
	return &mockReviewsStore{nextID: 1, byID: map[int64]*store.Review{}, tickets: tickets}
}

func (m *mockReviewsStore) Create(_ context.Context, review *store.Review) error {
	review.ID = m.nextID
	review.CreatedAt = time.Now()
	m.nextID++
	copied := *review
	m.byID[review.ID] = &copied
	return nil
}

func (m *mockReviewsStore) CreateWithTicket(ctx context.Context, ticket *store.Ticket, review *store.Review) error {
	if m.failCombined {
		return fmt.Errorf("create review: simulated failure")
	}
	if err := m.tickets.Create(ctx, ticket); err != nil {
		return err
	}
	review.TicketID = ticket.ID
	return m.Create(ctx, review)
}

func (m *mockReviewsStore) GetByID(_ context.Context, id int64) (*store.Review, error) {
	if rv, ok := m.byID[id]; ok {
		copied := *rv
		return &copied, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockReviewsStore) GetByTicket(_ context.Context, ticketID int64) (*store.Review, error) {
	for _, rv := range m.byID {
		if rv.TicketID == ticketID {
			copied := *rv
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockReviewsStore) List(_ context.Context) ([]store.Review, error) {
	var reviews []store.Review
	for _, rv := range m.byID {
		reviews = append(reviews, *rv)
	}
	return reviews, nil
}

func (m *mockReviewsStore) Update(_ context.Context, review *store.Review) error {
	if _, ok := m.byID[review.ID]; !ok {
		return store.ErrNotFound
	}
	copied := *review
	m.byID[review.ID] = &copied
	return nil
}

func (m *mockReviewsStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type followEdge struct {
	followerID, followedID int64
}

type mockFollowsStore struct {
	edges map[followEdge]time.Time
	users *mockUsersStore
}

func newMockFollowsStore(users *mockUsersStore) *mockFollowsStore {
	return &mockFollowsStore{edges: map[followEdge]time.Time{}, users: users}
}

func (m *mockFollowsStore) Follow(_ context.Context, followerID, followedID int64) error {
	edge := followEdge{followerID, followedID}
	if _, ok := m.edges[edge]; ok {
		return store.ErrConflict
	}
	m.edges[edge] = time.Now()
	return nil
}

func (m *mockFollowsStore) Unfollow(_ context.Context, followerID, followedID int64) error {
	edge := followEdge{followerID, followedID}
	if _, ok := m.edges[edge]; !ok {
		return store.ErrNotFound
	}
	delete(m.edges, edge)
	return nil
}

func (m *mockFollowsStore) Following(_ context.Context, userID int64) ([]store.FollowedUser, error) {
	var out []store.FollowedUser
	for edge, at := range m.edges {
		if edge.followerID == userID {
			u := m.users.byID[edge.followedID]
			out = append(out, store.FollowedUser{ID: u.ID, Username: u.Username, FollowedAt: at})
		}
	}
	return out, nil
}

func (m *mockFollowsStore) Followers(_ context.Context, userID int64) ([]store.FollowedUser, error) {
	var out []store.FollowedUser
	for edge, at := range m.edges {
		if edge.followedID == userID {
			u := m.users.byID[edge.followerID]
			out = append(out, store.FollowedUser{ID: u.ID, Username: u.Username, FollowedAt: at})
		}
	}
	return out, nil
}

type mockPostsStore struct {
	own  []store.Post
	feed []store.Post
}

func (m *mockPostsStore) Own(_ context.Context, _ int64) ([]store.Post, error) {
	return m.own, nil
}

func (m *mockPostsStore) Feed(_ context.Context, _ int64) ([]store.Post, error) {
	return m.feed, nil
}

type mockMailer struct{}

func (mockMailer) Send(_, _, _ string, _ any) (int, error) { return 200, nil }

// ---- harness ----

type testEnv struct {
	app     *application
	mux     http.Handler
	users   *mockUsersStore
	tickets *mockTicketsStore
	reviews *mockReviewsStore
	follows *mockFollowsStore
	posts   *mockPostsStore
	logs    *observer.ObservedLogs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMockUsersStore()
	tickets := newMockTicketsStore()
	reviews := newMockReviewsStore(tickets)
	follows := newMockFollowsStore(users)
	posts := &mockPostsStore{}
	core, logs := observer.New(zapcore.WarnLevel)

	app := &application{
		config: config{
			env: "test",
			auth: authConfig{
				basic: basicConfig{user: "admin", pass: "admin"},
			},
			rateLimiter: ratelimiter.Config{Enabled: false},
		},
		store: store.Storage{
			Users:   users,
			Tickets: tickets,
			Reviews: reviews,
			Follows: follows,
			Posts:   posts,
		},
		logger:        zap.New(core).Sugar(),
		mailer:        mockMailer{},
		authenticator: auth.NewJWTAuthenticator("test-secret", "test-refresh-secret", "revu", "revu", time.Hour, 24*time.Hour),
		rateLimiter:   ratelimiter.NewFixedWindowLimiter(1000, time.Minute),
	}

	return &testEnv{
		app:     app,
		mux:     app.mount(),
		users:   users,
		tickets: tickets,
		reviews: reviews,
		follows: follows,
		posts:   posts,
		logs:    logs,
	}
}

func (env *testEnv) createUser(t *testing.T, username string) *store.User {
	t.Helper()

	user := &store.User{Username: username, Email: username + "@example.com"}
	require.NoError(t, user.Password.Set("password-123"))
	env.users.add(user)
	return user
}

func (env *testEnv) tokenFor(t *testing.T, user *store.User) string {
	t.Helper()

	access, _, err := env.app.authenticator.GenerateTokens(user.ID)
	require.NoError(t, err)
	return access
}

func (env *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)
	return rr
}
