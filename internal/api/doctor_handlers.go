package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/doctor-queue-scheduling/internal/doctor"
	"github.com/hackgods/doctor-queue-scheduling/internal/scheduling"
)

func registerDoctorHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduling.DoctorInput
		if !decodeJSON(w, r, &req) {
			return
		}

		doc, err := svc.RegisterDoctor(r.Context(), caller(r), req)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDoctorResponse(doc))
	}
}

func listDoctorsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := doctor.Filter{Specialization: q.Get("specialization")}
		if raw := q.Get("active"); raw != "" {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_active", "active must be true or false")
				return
			}
			filter.ActiveOnly = active
		}

		docs := svc.ListDoctors(r.Context(), filter)
		resp := make([]DoctorResponse, len(docs))
		for i, d := range docs {
			resp[i] = toDoctorResponse(d)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getDoctorHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := svc.GetDoctor(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(doc))
	}
}

func updateDoctorHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduling.DoctorPatchInput
		if !decodeJSON(w, r, &req) {
			return
		}

		doc, err := svc.UpdateDoctor(r.Context(), caller(r), chi.URLParam(r, "id"), req)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(doc))
	}
}

func deactivateDoctorHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.DeactivateDoctor(r.Context(), caller(r), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, DeactivateResponse{
			Doctor:                toDoctorResponse(res.Doctor),
			ScheduledAppointments: res.ScheduledAppointments,
			ActiveQueueEntries:    res.ActiveQueueEntries,
		})
	}
}

func reactivateDoctorHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := svc.ReactivateDoctor(r.Context(), caller(r), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(doc))
	}
}

func doctorAvailabilityHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := dateQuery(w, r, "date")
		if !ok {
			return
		}
		if date.IsZero() {
			date = svc.Today()
		}

		av, err := svc.DoctorAvailability(r.Context(), chi.URLParam(r, "id"), date)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(av))
	}
}
