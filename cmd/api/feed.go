package main

import "net/http"

// getPostsHandler returns the current user's own tickets and reviews as one
// reverse-chronological list.
func (app *application) getPostsHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	posts, err := app.store.Posts.Own(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, posts); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getFeedHandler returns the personalized feed: posts from followed users, the
// user's own posts, and reviews answering the user's tickets.
func (app *application) getFeedHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	posts, err := app.store.Posts.Feed(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, posts); err != nil {
		app.internalServerError(w, r, err)
	}
}
