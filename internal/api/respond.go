package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-queue-scheduling/internal/appointment"
	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{
		Error:     code,
		Details:   details,
		Retryable: status == http.StatusConflict,
	})
}

// handleError maps an application error onto its HTTP status. Internal
// errors are logged and never leak their message.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.Validation:
		status = http.StatusBadRequest
	case apperr.Forbidden:
		status = http.StatusForbidden
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Conflict:
		status = http.StatusConflict
	case apperr.Rejected:
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, status, "internal_error", "internal server error")
		return
	}
	writeError(w, status, apperr.CodeOf(err), err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON: "+err.Error())
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// dateQuery reads an optional YYYY-MM-DD query parameter.
func dateQuery(w http.ResponseWriter, r *http.Request, name string) (calendar.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return calendar.Date{}, true
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, err.Error())
		return calendar.Date{}, false
	}
	return d, true
}

func pageQuery(w http.ResponseWriter, r *http.Request) (appointment.Page, bool) {
	var page appointment.Page
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a non-negative integer")
			return appointment.Page{}, false
		}
		*dst = n
	}
	return page, true
}
