package main

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"revu/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (env *testEnv) createTicket(t *testing.T, owner *store.User, title string) *store.Ticket {
	t.Helper()

	ticket := &store.Ticket{UserID: owner.ID, Title: title, Author: owner.Username}
	require.NoError(t, env.tickets.Create(context.Background(), ticket))
	return ticket
}

func reviewPayload(rating int) map[string]any {
	return map[string]any{
		"headline": "solid work",
		"rating":   rating,
		"body":     "explanation of the rating",
	}
}

func TestCreateReview_RatingBounds(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ticket := env.createTicket(t, alice, "review my essay")
	token := env.tokenFor(t, bob)
	path := fmt.Sprintf("/v1/tickets/%d/reviews", ticket.ID)

	cases := []struct {
		rating   int
		expected int
	}{
		{-1, http.StatusBadRequest},
		{0, http.StatusCreated},
		{5, http.StatusCreated},
		{6, http.StatusBadRequest},
	}

	for _, tc := range cases {
		rr := env.request(t, http.MethodPost, path, token, reviewPayload(tc.rating))
		assert.Equalf(t, tc.expected, rr.Code, "rating %d", tc.rating)
	}
}

func TestCreateReview_MissingTicket(t *testing.T) {
	env := newTestEnv(t)
	bob := env.createUser(t, "bob")

	rr := env.request(t, http.MethodPost, "/v1/tickets/999/reviews",
		env.tokenFor(t, bob), reviewPayload(3))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateReview_RatingRequired(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ticket := env.createTicket(t, alice, "review my essay")

	rr := env.request(t, http.MethodPost, fmt.Sprintf("/v1/tickets/%d/reviews", ticket.ID),
		env.tokenFor(t, bob), map[string]any{"headline": "no rating", "body": "oops"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateReview_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ticket := env.createTicket(t, alice, "review my essay")

	review := &store.Review{TicketID: ticket.ID, UserID: bob.ID, Headline: "fine", Rating: 3}
	require.NoError(t, env.reviews.Create(context.Background(), review))

	path := fmt.Sprintf("/v1/reviews/%d", review.ID)
	update := map[string]any{"headline": "changed my mind", "rating": 1}

	// The ticket owner is not the review owner; mutation must be forbidden.
	rr := env.request(t, http.MethodPatch, path, env.tokenFor(t, alice), update)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.request(t, http.MethodPatch, path, env.tokenFor(t, bob), update)
	require.Equal(t, http.StatusOK, rr.Code)

	stored, err := env.reviews.GetByID(context.Background(), review.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed my mind", stored.Headline)
	assert.Equal(t, 1, stored.Rating)
}

func TestDeleteReview_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ticket := env.createTicket(t, alice, "review my essay")

	review := &store.Review{TicketID: ticket.ID, UserID: bob.ID, Headline: "fine", Rating: 3}
	require.NoError(t, env.reviews.Create(context.Background(), review))

	path := fmt.Sprintf("/v1/reviews/%d", review.ID)

	rr := env.request(t, http.MethodDelete, path, env.tokenFor(t, alice), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.request(t, http.MethodDelete, path, env.tokenFor(t, bob), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	_, err := env.reviews.GetByID(context.Background(), review.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func combinedPayload() map[string]any {
	return map[string]any{
		"title":           "my own book pick",
		"description":     "self-reviewed",
		"review_headline": "great read",
		"review_rating":   4,
		"review_body":     "thoroughly enjoyed it",
	}
}

func TestCreateTicketAndReview_Succeeds(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")

	rr := env.request(t, http.MethodPost, "/v1/reviews", env.tokenFor(t, alice), combinedPayload())
	require.Equal(t, http.StatusCreated, rr.Code)

	tickets, err := env.tickets.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 1)

	review, err := env.reviews.GetByTicket(context.Background(), tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, review.UserID)
	assert.Equal(t, 4, review.Rating)
}

func TestCreateTicketAndReview_FailureLeavesNoOrphanTicket(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	env.reviews.failCombined = true

	rr := env.request(t, http.MethodPost, "/v1/reviews", env.tokenFor(t, alice), combinedPayload())
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	tickets, err := env.tickets.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tickets, "a failed combined create must not leave a ticket behind")
}

func TestCreateTicketAndReview_InvalidRating(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")

	payload := combinedPayload()
	payload["review_rating"] = 9

	rr := env.request(t, http.MethodPost, "/v1/reviews", env.tokenFor(t, alice), payload)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
