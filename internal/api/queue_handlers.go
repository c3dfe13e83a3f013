package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/doctor-queue-scheduling/internal/scheduling"
)

func joinQueueHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduling.JoinQueueInput
		if !decodeJSON(w, r, &req) {
			return
		}

		ticket, err := svc.JoinQueue(r.Context(), caller(r), req)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, TicketResponse{
			Entry:                toQueueEntryResponse(ticket.Entry),
			Position:             ticket.Position,
			EstimatedWaitMinutes: ticket.EstimatedWait.Minutes(),
		})
	}
}

func leaveQueueHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := svc.LeaveQueue(r.Context(), caller(r), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueEntryResponse(entry))
	}
}

func queuePositionHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos, err := svc.QueuePosition(r.Context(), caller(r), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPositionResponse(pos))
	}
}

func removeQueueEntryHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		entry, err := svc.RemoveQueueEntry(r.Context(), caller(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueEntryResponse(entry))
	}
}

func queueOverviewHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := svc.QueueOverview(r.Context(), caller(r))
		if err != nil {
			handleError(w, r, err)
			return
		}
		resp := make([]QueueSummaryResponse, len(summaries))
		for i, s := range summaries {
			resp[i] = toSummaryResponse(s)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func queueStatusHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.QueueStatus(r.Context(), caller(r), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueStatusResponse(status))
	}
}

func toQueueStatusResponse(s scheduling.QueueStatus) QueueStatusResponse {
	resp := QueueStatusResponse{QueueSummaryResponse: toSummaryResponse(s.Summary)}
	if s.Waiting != nil {
		resp.Waiting = make([]QueueEntryResponse, len(s.Waiting))
		for i, e := range s.Waiting {
			resp.Waiting[i] = toQueueEntryResponse(e)
		}
	}
	return resp
}

// advanceQueueHandler answers 204 when nobody is waiting.
func advanceQueueHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, ok, err := svc.AdvanceQueue(r.Context(), caller(r), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, toQueueEntryResponse(entry))
	}
}

func completeConsultationHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := svc.CompleteConsultation(r.Context(), caller(r), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toQueueEntryResponse(entry))
	}
}
