package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rewind/internal/playback"
	"rewind/internal/timeline"
)

// CheckOrigin is left nil so cross-origin upgrades are refused
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const wsWriteTimeout = 10 * time.Second

// Playback messages from the client
const (
	cmdSeek  = "seek"
	cmdMode  = "mode"
	cmdPause = "pause"
	cmdPlay  = "play"
)

type playCommand struct {
	Type   string  `json:"type"`
	Minute float64 `json:"minute,omitempty"`
	Mode   string  `json:"mode,omitempty"`
}

// playMessage is sent to the client: a frame, the end of the day, or an error
type playMessage struct {
	Type    string          `json:"type"`
	LoadID  string          `json:"load_id,omitempty"`
	Frame   *playback.Frame `json:"frame,omitempty"`
	GeoJSON json.RawMessage `json:"geojson,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// wsDrawer writes frames to a connection. gorilla/websocket allows only
// one concurrent writer.
type wsDrawer struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	loadID string
}

func (d *wsDrawer) send(msg playMessage) error {
	msg.LoadID = d.loadID
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return d.conn.WriteJSON(msg)
}

func (d *wsDrawer) Draw(f playback.Frame) error {
	fc, err := f.FeatureCollection().MarshalJSON()
	if err != nil {
		return err
	}
	return d.send(playMessage{Type: "frame", Frame: &f, GeoJSON: fc})
}

func (d *wsDrawer) sendError(err error) {
	d.send(playMessage{Type: "error", Error: err.Error()})
}

// GET /api/play - Animates a day over a WebSocket
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.loaded()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := parseDayQuery(r, loaded)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	mode := s.cfg.Mode()
	if m := r.URL.Query().Get("mode"); m != "" {
		if mode, err = playback.ParseColorMode(m); err != nil {
			s.writeError(w, r, badRequest("%v", err))
			return
		}
	}

	bucket, bucketErr := s.dayBucket(r.Context(), loaded, q)
	if bucketErr != nil && !errors.Is(bucketErr, timeline.ErrNoDataForDate) {
		s.writeError(w, r, bucketErr)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := s.log.Named("playback").With(zap.String("date", q.Date), zap.String("load_id", loaded.ID))
	cfg := s.cfg.PlayerConfig(mode)
	cfg.Logger = log
	player := playback.NewPlayer(bucket, cfg)
	if minute, err := strconv.ParseFloat(r.URL.Query().Get("minute"), 64); err == nil {
		player.Seek(minute)
	}

	out := &wsDrawer{conn: conn, loadID: loaded.ID}
	if bucketErr != nil {
		out.send(playMessage{Type: "empty", Message: bucketErr.Error()})
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmds := make(chan playCommand)
	go func() {
		defer close(cmds)
		for {
			var cmd playCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	// at most one Run is active; runCancel is non-nil while it is
	var runCancel context.CancelFunc
	runDone := make(chan error, 1)
	play := func() {
		if runCancel != nil {
			return
		}
		var runCtx context.Context
		runCtx, runCancel = context.WithCancel(ctx)
		go func() { runDone <- player.Run(runCtx, out) }()
	}
	stop := func() {
		if runCancel == nil {
			return
		}
		runCancel()
		<-runDone
		runCancel = nil
	}
	// redraw shows a seek or mode change while paused
	redraw := func() {
		if runCancel != nil {
			return
		}
		frame, err := player.Frame()
		if err != nil {
			out.sendError(err)
			return
		}
		out.Draw(frame)
	}

	play()
	for {
		select {
		case cmd, ok := <-cmds:
			if !ok {
				stop()
				return
			}
			switch cmd.Type {
			case cmdSeek:
				player.Seek(cmd.Minute)
				redraw()
			case cmdMode:
				m, err := playback.ParseColorMode(cmd.Mode)
				if err != nil {
					out.sendError(err)
					continue
				}
				player.SetMode(m)
				s.saveSession(Session{ColorMode: string(m)})
				redraw()
			case cmdPause:
				stop()
			case cmdPlay:
				play()
			default:
				out.sendError(errors.New("unknown command " + strconv.Quote(cmd.Type)))
			}

		case err := <-runDone:
			runCancel()
			runCancel = nil
			switch {
			case err == nil:
				out.send(playMessage{Type: "end"})
			case errors.Is(err, context.Canceled):
			default:
				log.Warn("playback stopped", zap.Error(err))
				out.sendError(err)
			}
		}
	}
}
