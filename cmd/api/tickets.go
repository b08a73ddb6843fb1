package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"revu/internal/store"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/go-chi/chi/v5"
)

type CreateTicketPayload struct {
	Title       string `json:"title" validate:"required,max=128"`
	Description string `json:"description" validate:"max=2048"`
}

func (app *application) createTicketHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateTicketPayload
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

	if err := app.store.Tickets.Create(r.Context(), ticket); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, ticket); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) listTicketsHandler(w http.ResponseWriter, r *http.Request) {
	tickets, err := app.store.Tickets.List(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, tickets); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getTicketHandler(w http.ResponseWriter, r *http.Request) {
	ticket, ok := app.ticketFromURL(w, r)
	if !ok {
		return
	}

	// One review per ticket is a convention; absence is not an error.
	review, err := app.store.Reviews.GetByTicket(r.Context(), ticket.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		app.internalServerError(w, r, err)
		return
	}
	ticket.Review = review

	if err := app.jsonResponse(w, http.StatusOK, ticket); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateTicketPayload struct {
	Title       *string `json:"title" validate:"omitempty,max=128"`
	Description *string `json:"description" validate:"omitempty,max=2048"`
}

func (app *application) updateTicketHandler(w http.ResponseWriter, r *http.Request) {
	ticket, ok := app.ownedTicketFromURL(w, r)
	if !ok {
		return
	}

	var payload UpdateTicketPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if payload.Title != nil {
		ticket.Title = *payload.Title
	}
	if payload.Description != nil {
		ticket.Description = *payload.Description
	}

	if err := app.store.Tickets.Update(r.Context(), ticket); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, ticket); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteTicketHandler(w http.ResponseWriter, r *http.Request) {
	ticket, ok := app.ownedTicketFromURL(w, r)
	if !ok {
		return
	}

	if err := app.store.Tickets.Delete(r.Context(), ticket.ID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "ticket deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) uploadTicketImageHandler(w http.ResponseWriter, r *http.Request) {
	ticket, ok := app.ownedTicketFromURL(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(2 << 20); err != nil { // 2 MB
		app.badRequestResponse(w, r, errors.New("unable to parse form, file size limit is 2MB"))
		return
	}

	file, fileHeader, err := r.FormFile("image")
	if err != nil {
		app.badRequestResponse(w, r, errors.New("unable to retrieve file"))
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType != "image/jpeg" && contentType != "image/png" {
		app.badRequestResponse(w, r, errors.New("only JPEG and PNG images are allowed"))
		return
	}

	overwrite := true
	uploadParams := uploader.UploadParams{
		PublicID:       fmt.Sprintf("/%d", ticket.ID),
		Overwrite:      &overwrite,
		Folder:         "ticket_images",
		Transformation: "w_800,h_600,c_limit,q_auto",
	}

	uploadResult, err := app.cld.Upload.Upload(context.Background(), file, uploadParams)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Tickets.SetImage(r.Context(), ticket.ID, &uploadResult.SecureURL); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"image_url": uploadResult.SecureURL}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteTicketImageHandler(w http.ResponseWriter, r *http.Request) {
	ticket, ok := app.ownedTicketFromURL(w, r)
	if !ok {
		return
	}

	if ticket.ImageURL == nil {
		app.notFoundResponse(w, r, errors.New("ticket has no image"))
		return
	}

	publicID := fmt.Sprintf("ticket_images/%d", ticket.ID)
	if _, err := app.cld.Upload.Destroy(context.Background(), uploader.DestroyParams{PublicID: publicID}); err != nil {
		app.logger.Errorw("error deleting ticket image from cloudinary", "ticket_id", ticket.ID, "error", err)
	}

	if err := app.store.Tickets.SetImage(r.Context(), ticket.ID, nil); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "image removed"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// ticketFromURL parses {ticketID} and loads the ticket, answering 400/404
// itself when that fails.
func (app *application) ticketFromURL(w http.ResponseWriter, r *http.Request) (*store.Ticket, bool) {
	ticketID, err := strconv.ParseInt(chi.URLParam(r, "ticketID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid ticket ID"))
		return nil, false
	}

	ticket, err := app.store.Tickets.GetByID(r.Context(), ticketID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return nil, false
	}
	return ticket, true
}

// ownedTicketFromURL additionally requires the current user to own the ticket.
// Mutations by anyone else are rejected with 403.
func (app *application) ownedTicketFromURL(w http.ResponseWriter, r *http.Request) (*store.Ticket, bool) {
	ticket, ok := app.ticketFromURL(w, r)
	if !ok {
		return nil, false
	}

	user := getUserFromContext(r)
	if ticket.UserID != user.ID {
		app.forbiddenResponse(w, r)
		return nil, false
	}
	return ticket, true
}
