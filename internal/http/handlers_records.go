package http

import (
	"errors"
	"net/http"

	"glowbudget/internal/core"
	"glowbudget/internal/log"
	"glowbudget/internal/validate"
)

// handleCreateRecord validates and stores a new record. The response is the
// form itself: blank on success, refilled with inline errors on 422.
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		bodyError(err).Write(w)
		return
	}

	in := body.recordInput()
	rec, err := s.store.AddRecord(r.Context(), in)
	if err != nil {
		s.recordError(w, r, "", in, err, log.OpCreate)
		return
	}

	resp := NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerRecordsChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Record added: " + rec.Description)
	s.render(w, r, resp, "form.html", newFormView(s.store.Settings(), nil, s.now()))
}

// handleUpdateRecord replaces the editable fields of an existing record.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	id := r.PathValue("id")
	body, err := readBody(w, r)
	if err != nil {
		bodyError(err).Write(w)
		return
	}

	in := body.recordInput()
	rec, err := s.store.UpdateRecord(r.Context(), id, in)
	if err != nil {
		s.recordError(w, r, id, in, err, log.OpUpdate)
		return
	}

	resp := NewHTMXResponse().
		TriggerRecordsChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Record updated: " + rec.Description)
	s.render(w, r, resp, "form.html", newFormView(s.store.Settings(), nil, s.now()))
}

// handleDeleteRecord removes a record once the request carries confirm=1.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}

	err := s.store.DeleteRecord(r.Context(), r.PathValue("id"), IsConfirmed(r.Form.Get(ParamConfirm)))
	switch {
	case err == nil:
	case notConfirmed(w, err):
		return
	case errors.Is(err, core.ErrRecordNotFound):
		NotFoundError("Record not found").Write(w)
		return
	default:
		s.fail(w, r, log.OpDelete, err)
		return
	}

	NewHTMXResponse().
		TriggerRecordsChanged().
		TriggerSuccessNotification("Record deleted.").
		Write(w)
}

// recordError maps a failed create or update to a response. Field errors
// re-render the form with every message shown next to its input.
func (s *Server) recordError(w http.ResponseWriter, r *http.Request, id string, in validate.RecordInput, err error, op string) {
	var fe validate.FieldErrors
	switch {
	case errors.As(err, &fe):
		form := newFormView(s.store.Settings(), nil, s.now())
		form.ID = id
		form.Values = in
		form.Errors = fe
		resp := NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification("Please fix the highlighted fields.")
		s.render(w, r, resp, "form.html", form)
	case errors.Is(err, core.ErrRecordNotFound):
		NotFoundError("Record not found").Write(w)
	default:
		s.fail(w, r, op, err)
	}
}
