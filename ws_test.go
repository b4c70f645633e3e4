package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsReply struct {
	Type   string `json:"type"`
	LoadID string `json:"load_id"`
	Frame  struct {
		Minute float64 `json:"minute"`
		Mode   string  `json:"mode"`
	} `json:"frame"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func dialPlay(t *testing.T, s *Server, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/play?"+query, nil)
	require.NoError(t, err)
	// runs before srv.Close so the handler's read loop ends
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) wsReply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wsReply
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) []wsReply {
	t.Helper()
	var seen []wsReply
	for {
		msg := readReply(t, conn)
		seen = append(seen, msg)
		if msg.Type == typ {
			return seen
		}
	}
}

func TestHandlePlay_RunsToEndOfDay(t *testing.T) {
	s := newLoadedServer(t)
	s.cfg.Playback.Interval = time.Millisecond
	s.cfg.Playback.MinutesPerTick = 2

	conn := dialPlay(t, s, "date=2024-06-01&minute=1420&mode=speed")
	msgs := readUntil(t, conn, "end")

	frames := msgs[:len(msgs)-1]
	require.Len(t, frames, 11)
	assert.Equal(t, 1420.0, frames[0].Frame.Minute)
	assert.Equal(t, 1440.0, frames[len(frames)-1].Frame.Minute)
	for _, f := range frames {
		assert.Equal(t, "frame", f.Type)
		assert.Equal(t, "speed", f.Frame.Mode)
		assert.Equal(t, s.loads.Current().ID, f.LoadID)
	}

	// paused at the end, a seek redraws once
	require.NoError(t, conn.WriteJSON(playCommand{Type: cmdSeek, Minute: 540}))
	msg := readReply(t, conn)
	assert.Equal(t, "frame", msg.Type)
	assert.Equal(t, 540.0, msg.Frame.Minute)

	require.NoError(t, conn.WriteJSON(playCommand{Type: cmdMode, Mode: "activity"}))
	msg = readReply(t, conn)
	assert.Equal(t, "activity", msg.Frame.Mode)

	session, err := s.db.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, "activity", session.ColorMode)
}

func TestHandlePlay_Commands(t *testing.T) {
	s := newLoadedServer(t)
	s.cfg.Playback.Interval = time.Hour

	conn := dialPlay(t, s, "date=2024-06-01&minute=600")
	first := readReply(t, conn)
	assert.Equal(t, 600.0, first.Frame.Minute)

	require.NoError(t, conn.WriteJSON(playCommand{Type: cmdPause}))
	require.NoError(t, conn.WriteJSON(playCommand{Type: cmdMode, Mode: "rainbow"}))
	msg := readReply(t, conn)
	assert.Equal(t, "error", msg.Type)

	require.NoError(t, conn.WriteJSON(playCommand{Type: "rewind"}))
	msg = readReply(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "rewind")

	require.NoError(t, conn.WriteJSON(playCommand{Type: cmdSeek, Minute: 5000}))
	msg = readReply(t, conn)
	assert.Equal(t, 1440.0, msg.Frame.Minute)
}

func TestHandlePlay_EmptyDay(t *testing.T) {
	s := newLoadedServer(t)
	s.cfg.Playback.Interval = time.Hour

	conn := dialPlay(t, s, "date=2023-01-01")
	msg := readReply(t, conn)
	assert.Equal(t, "empty", msg.Type)
	assert.NotEmpty(t, msg.Message)

	msg = readReply(t, conn)
	assert.Equal(t, "frame", msg.Type)
}

func TestHandlePlay_RejectsBeforeUpgrade(t *testing.T) {
	s := newLoadedServer(t)
	rec := get(t, s, "/api/play?date=bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// a plain GET is not a websocket handshake
	rec = get(t, s, "/api/play?date=2024-06-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePlay_EmptyDayAfterDayRequest(t *testing.T) {
	s := newLoadedServer(t)
	s.cfg.Playback.Interval = time.Hour

	// warms the bucket cache with the empty day
	decode[DayResponse](t, get(t, s, "/api/day?date=2023-01-01"))

	conn := dialPlay(t, s, "date=2023-01-01")
	msg := readReply(t, conn)
	assert.Equal(t, "empty", msg.Type)
}
