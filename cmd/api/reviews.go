package main

import (
	"errors"
	"net/http"
	"strconv"

	"revu/internal/store"

	"github.com/go-chi/chi/v5"
)

type CreateReviewPayload struct {
	Headline string `json:"headline" validate:"required,max=128"`
	Rating   *int   `json:"rating" validate:"required,gte=0,lte=5"`
	Body     string `json:"body" validate:"max=8192"`
}

// createReviewHandler attaches a review to an existing ticket. The ticket must
// exist; a missing one is a 404, not a silent insert against a dangling id.
func (app *application) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	ticket, ok := app.ticketFromURL(w, r)
	if !ok {
		return
	}

	var payload CreateReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	review := &store.Review{
		TicketID: ticket.ID,
		UserID:   user.ID,
		Headline: payload.Headline,
		Rating:   *payload.Rating,
		Body:     payload.Body,
		Author:   user.Username,
	}

	if err := app.store.Reviews.Create(r.Context(), review); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

type CreateTicketAndReviewPayload struct {
	Title          string `json:"title" validate:"required,max=128"`
	Description    string `json:"description" validate:"max=2048"`
	ReviewHeadline string `json:"review_headline" validate:"required,max=128"`
	ReviewRating   *int   `json:"review_rating" validate:"required,gte=0,lte=5"`
	ReviewBody     string `json:"review_body" validate:"max=8192"`
}

// createTicketAndReviewHandler creates a ticket and its review in one request,
// both owned by the current user. The two inserts run in a single transaction,
// so a review failure cannot leave an orphan ticket.
func (app *application) createTicketAndReviewHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateTicketAndReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	ticket := &store.Ticket{
		UserID:      user.ID,
		Title:       payload.Title,
		Description: payload.Description,
		Author:      user.Username,
	}
	review := &store.Review{
		UserID:   user.ID,
		Headline: payload.ReviewHeadline,
		Rating:   *payload.ReviewRating,
		Body:     payload.ReviewBody,
		Author:   user.Username,
	}

	if err := app.store.Reviews.CreateWithTicket(r.Context(), ticket, review); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ticket.Review = review

	if err := app.jsonResponse(w, http.StatusCreated, ticket); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) listReviewsHandler(w http.ResponseWriter, r *http.Request) {
	reviews, err := app.store.Reviews.List(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, reviews); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getReviewHandler(w http.ResponseWriter, r *http.Request) {
	review, ok := app.reviewFromURL(w, r)
	if !ok {
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateReviewPayload struct {
	Headline *string `json:"headline" validate:"omitempty,max=128"`
	Rating   *int    `json:"rating" validate:"omitempty,gte=0,lte=5"`
	Body     *string `json:"body" validate:"omitempty,max=8192"`
}

func (app *application) updateReviewHandler(w http.ResponseWriter, r *http.Request) {
	review, ok := app.ownedReviewFromURL(w, r)
	if !ok {
		return
	}

	var payload UpdateReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if payload.Headline != nil {
		review.Headline = *payload.Headline
	}
	if payload.Rating != nil {
		review.Rating = *payload.Rating
	}
	if payload.Body != nil {
		review.Body = *payload.Body
	}

	if err := app.store.Reviews.Update(r.Context(), review); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	review, ok := app.ownedReviewFromURL(w, r)
	if !ok {
		return
	}

	if err := app.store.Reviews.Delete(r.Context(), review.ID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "review deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) reviewFromURL(w http.ResponseWriter, r *http.Request) (*store.Review, bool) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return nil, false
	}

	review, err := app.store.Reviews.GetByID(r.Context(), reviewID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return nil, false
	}
	return review, true
}

func (app *application) ownedReviewFromURL(w http.ResponseWriter, r *http.Request) (*store.Review, bool) {
	review, ok := app.reviewFromURL(w, r)
	if !ok {
		return nil, false
	}

	user := getUserFromContext(r)
	if review.UserID != user.ID {
		app.forbiddenResponse(w, r)
		return nil, false
	}
	return review, true
}
