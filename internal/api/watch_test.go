package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-queue-scheduling/internal/events"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestWatchStreamsSnapshotThenEvents(t *testing.T) {
	s := newTestServer(t, nil)
	doc := s.registerDoctor(t)

	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	ws, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/queue/doctors/"+doc.ID+"/watch"), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first WatchMessage
	require.NoError(t, ws.ReadJSON(&first))
	assert.Nil(t, first.Event)
	assert.Equal(t, doc.ID, first.Status.DoctorID)
	assert.Equal(t, 0, first.Status.WaitingCount)

	rec := s.do(t, http.MethodPost, "/queue/join", patientCaller("P-7"), map[string]string{
		"patientId": "P-7",
		"doctorId":  doc.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var next WatchMessage
	require.NoError(t, ws.ReadJSON(&next))
	require.NotNil(t, next.Event)
	assert.Equal(t, events.QueueJoined, next.Event.Type)
	assert.Equal(t, "P-7", next.Event.PatientID)
	assert.Equal(t, 1, next.Status.WaitingCount)
	require.NotNil(t, next.Status.Next)
}

func TestWatchUnknownDoctorFailsBeforeUpgrade(t *testing.T) {
	s := newTestServer(t, nil)

	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/queue/doctors/DOC-00000000/watch"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
