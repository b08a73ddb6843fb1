package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"revu/internal/store"

	"github.com/go-chi/chi/v5"
)

type FollowUserPayload struct {
	Username string `json:"username" validate:"required,max=150"`
}

// followUserHandler creates a follow edge towards the named user. The checks
// mirror the follow rules: the target must exist, must not already be
// followed, and must not be the current user.
func (app *application) followUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload FollowUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	follower := getUserFromContext(r)
	ctx := r.Context()

	followed, err := app.store.Users.GetByUsername(ctx, payload.Username)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, fmt.Errorf("user %s does not exist", payload.Username))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if followed.ID == follower.ID {
		app.badRequestResponse(w, r, errors.New("you cannot follow yourself"))
		return
	}

	if err := app.store.Follows.Follow(ctx, follower.ID, followed.ID); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			app.conflictResponse(w, r, errors.New("user already followed"))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (app *application) unfollowUserHandler(w http.ResponseWriter, r *http.Request) {
	follower := getUserFromContext(r)

	unfollowedID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid user ID"))
		return
	}

	if err := app.store.Follows.Unfollow(r.Context(), follower.ID, unfollowedID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listFollowsHandler returns both directions of the current user's follow
// edges: who they follow and who follows them.
func (app *application) listFollowsHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	ctx := r.Context()

	following, err := app.store.Follows.Following(ctx, user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	followers, err := app.store.Follows.Followers(ctx, user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	response := map[string][]store.FollowedUser{
		"following": following,
		"followers": followers,
	}

	if err := app.jsonResponse(w, http.StatusOK, response); err != nil {
		app.internalServerError(w, r, err)
	}
}
