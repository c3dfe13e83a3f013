package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-queue-scheduling/internal/events"
	"github.com/hackgods/doctor-queue-scheduling/internal/scheduling"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Subscriber is the part of events.Hub the watch endpoint needs.
type Subscriber interface {
	Subscribe(doctorID string) (<-chan events.Event, func())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WatchMessage is one frame on the watch stream. The first frame is the
// current status; every later frame carries the event and the status after it.
type WatchMessage struct {
	Event  *events.Event        `json:"event,omitempty"`
	Status QueueSummaryResponse `json:"status"`
}

func watchQueueHandler(svc *scheduling.Service, hub Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "id")
		c := caller(r)

		// subscribe first so nothing is lost between the snapshot and the stream
		ch, cancel := hub.Subscribe(doctorID)
		defer cancel()

		status, err := svc.QueueStatus(r.Context(), c, doctorID)
		if err != nil {
			handleError(w, r, err)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// the upgrader already wrote the error response
			return
		}
		defer ws.Close()

		log := zerolog.Ctx(r.Context()).With().Str("doctor_id", doctorID).Logger()
		log.Debug().Msg("queue watcher connected")

		closed := make(chan struct{})
		go readPump(ws, closed)

		if err := writeFrame(ws, WatchMessage{Status: toSummaryResponse(status.Summary)}); err != nil {
			return
		}

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-closed:
				log.Debug().Msg("queue watcher disconnected")
				return
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				status, err := svc.QueueStatus(r.Context(), c, doctorID)
				if err != nil {
					log.Warn().Err(err).Msg("queue status for watcher failed")
					return
				}
				if err := writeFrame(ws, WatchMessage{Event: &ev, Status: toSummaryResponse(status.Summary)}); err != nil {
					return
				}
			case <-ticker.C:
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func writeFrame(ws *websocket.Conn, msg WatchMessage) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(msg)
}

// readPump drains client frames so pongs and close messages are processed.
func readPump(ws *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
