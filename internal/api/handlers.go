package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/doctor-queue-scheduling/internal/appointment"
	"github.com/hackgods/doctor-queue-scheduling/internal/scheduling"
)

func caller(r *http.Request) scheduling.Caller {
	c, _ := CallerFrom(r.Context())
	return c
}

func bookAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduling.BookAppointmentInput
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.BookAppointment(r.Context(), caller(r), req)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), caller(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), caller(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var req scheduling.RescheduleInput
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.RescheduleAppointment(r.Context(), caller(r), id, req)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.CompleteAppointment(r.Context(), caller(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func noShowAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.MarkNoShow(r.Context(), caller(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listPatientAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, ok := pageQuery(w, r)
		if !ok {
			return
		}

		appts, err := svc.ListPatientAppointments(r.Context(), caller(r), chi.URLParam(r, "id"), page)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse(appts, page))
	}
}

func listDoctorAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, ok := pageQuery(w, r)
		if !ok {
			return
		}

		appts, err := svc.ListDoctorAppointments(r.Context(), caller(r), chi.URLParam(r, "id"), page)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse(appts, page))
	}
}

func doctorScheduleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := dateQuery(w, r, "date")
		if !ok {
			return
		}

		appts, err := svc.DoctorSchedule(r.Context(), caller(r), chi.URLParam(r, "id"), date)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentList(appts))
	}
}

func listResponse(appts []appointment.Appointment, page appointment.Page) AppointmentListResponse {
	page = page.Normalize()
	return AppointmentListResponse{
		Items:  toAppointmentList(appts),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
}

func statsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context(), caller(r))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toStatsResponse(stats))
	}
}
