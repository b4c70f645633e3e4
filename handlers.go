package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"rewind/internal/playback"
	"rewind/internal/timeline"
)

type Server struct {
	db    *DB
	cfg   *Config
	loads *LoadManager
	tz    *TimezoneFinder
	tmpl  *Templates
	log   *zap.Logger

	mu     sync.Mutex
	bucket *cachedBucket
}

// cachedBucket is the most recently requested day
type cachedBucket struct {
	key    SummaryKey
	loadID string
	bucket *timeline.DayBucket
}

type httpError struct {
	code int
	msg  string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(format string, args ...any) *httpError {
	return &httpError{code: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

var errNothingLoaded = &httpError{code: http.StatusConflict, msg: "no timeline loaded"}

// writeError maps an error to a status code and logs server-side failures
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var he *httpError
	if errors.As(err, &he) {
		http.Error(w, he.msg, he.code)
		return
	}
	if errors.Is(err, context.Canceled) {
		// client went away
		return
	}
	s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// dayQuery is the date/timezone/mode selection shared by the day endpoints
type dayQuery struct {
	Date   string
	Loc    *time.Location
	UseRaw bool
}

// parseScope reads tz and raw, defaulting to how the current document was loaded
func parseScope(r *http.Request, loaded *Loaded) (*time.Location, bool, error) {
	q := r.URL.Query()

	loc := loaded.Location()
	if tz := q.Get("tz"); tz != "" {
		var err error
		if loc, err = timeline.LoadTimezone(tz); err != nil {
			return nil, false, badRequest("unknown timezone %q", tz)
		}
	}

	useRaw := loaded.UseRaw
	if raw := q.Get("raw"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, false, badRequest("invalid raw flag %q", raw)
		}
		useRaw = v
	}
	return loc, loaded.Doc.UsesRaw(useRaw), nil
}

func parseDayQuery(r *http.Request, loaded *Loaded) (dayQuery, error) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return dayQuery{}, badRequest("date parameter required (YYYY-MM-DD)")
	}
	if _, err := timeline.ParseDate(date); err != nil {
		return dayQuery{}, badRequest("invalid date format, use YYYY-MM-DD")
	}
	loc, useRaw, err := parseScope(r, loaded)
	if err != nil {
		return dayQuery{}, err
	}
	return dayQuery{Date: date, Loc: loc, UseRaw: useRaw}, nil
}

func (s *Server) loaded() (*Loaded, error) {
	loaded := s.loads.Current()
	if loaded == nil {
		return nil, errNothingLoaded
	}
	return loaded, nil
}

// dayBucket builds the bucket for q, reusing the last one when the same day
// of the same document is requested again.
func (s *Server) dayBucket(ctx context.Context, loaded *Loaded, q dayQuery) (*timeline.DayBucket, error) {
	key := SummaryKey{DocHash: loaded.Hash, Timezone: q.Loc.String(), UseRaw: q.UseRaw, Date: q.Date}

	s.mu.Lock()
	cached := s.bucket
	s.mu.Unlock()
	if cached != nil && cached.key == key && cached.loadID == loaded.ID {
		if cached.bucket.Len() == 0 {
			return cached.bucket, timeline.ErrNoDataForDate
		}
		return cached.bucket, nil
	}

	bucket, err := timeline.BuildDayBucket(ctx, loaded.Doc, q.Date, q.Loc, timeline.LoadOptions{
		UseRaw: q.UseRaw,
		Scan:   timeline.ScanOptions{ChunkSize: s.cfg.ChunkSize},
		Logger: s.log.Named("extract"),
	})
	if err != nil && !errors.Is(err, timeline.ErrNoDataForDate) {
		return nil, err
	}

	s.mu.Lock()
	s.bucket = &cachedBucket{key: key, loadID: loaded.ID, bucket: bucket}
	s.mu.Unlock()
	return bucket, err
}

// saveSession records the viewer's latest selection, keeping fields the
// update leaves empty.
func (s *Server) saveSession(update Session) {
	session, err := s.db.LoadSession()
	if err != nil || session == nil {
		session = &Session{Timezone: s.cfg.Timezone, ColorMode: s.cfg.ColorMode}
	}
	if update.Date != "" {
		session.Date = update.Date
	}
	if update.Timezone != "" {
		session.Timezone = update.Timezone
		session.UseRaw = update.UseRaw
	}
	if update.ColorMode != "" {
		session.ColorMode = update.ColorMode
	}
	if err := s.db.SaveSession(*session); err != nil {
		s.log.Warn("failed to save session", zap.Error(err))
	}
}

// GET / - Viewer page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	session, _ := s.db.LoadSession()
	data := IndexData{
		Timezone:       s.cfg.Timezone,
		ColorMode:      s.cfg.ColorMode,
		UseRaw:         s.cfg.UseRaw,
		IntervalMillis: s.cfg.Playback.Interval.Milliseconds(),
	}
	if session != nil {
		data.Timezone, data.UseRaw, data.Date = session.Timezone, session.UseRaw, session.Date
		if session.ColorMode != "" {
			data.ColorMode = session.ColorMode
		}
	}
	if loaded := s.loads.Current(); loaded != nil {
		data.Loaded = true
		data.Records = loaded.Records
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Render(w, "index.html", data); err != nil {
		s.log.Error("failed to render index", zap.Error(err))
	}
}

// POST /api/load - Load a timeline export with SSE progress
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	maxBytes := s.cfg.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "no file uploaded", http.StatusBadRequest)
			return
		}
		defer file.Close()
		body = file
	}

	data, err := io.ReadAll(body)
	if err != nil {
		http.Error(w, "failed to read upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	req := LoadRequest{Timezone: r.FormValue("timezone"), UseRaw: s.cfg.UseRaw}
	if req.Timezone == "" {
		req.Timezone = s.cfg.Timezone
	}
	if raw := r.FormValue("raw"); raw != "" {
		if req.UseRaw, err = strconv.ParseBool(raw); err != nil {
			http.Error(w, "invalid raw flag", http.StatusBadRequest)
			return
		}
	}
	if _, err := timeline.LoadTimezone(req.Timezone); err != nil {
		http.Error(w, "unknown timezone", http.StatusBadRequest)
		return
	}

	_, ch, unsubscribe := s.loads.Start(data, req)
	defer unsubscribe()
	s.streamProgress(w, r, ch)
}

// GET /api/load/events - Follow a running load with SSE
func (s *Server) handleLoadEvents(w http.ResponseWriter, r *http.Request) {
	loadID := r.URL.Query().Get("id")
	if loadID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	ch, unsubscribe := s.loads.Subscribe(loadID)
	defer unsubscribe()
	s.streamProgress(w, r, ch)
}

func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request, ch <-chan LoadProgress) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case progress, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			if progress.Complete {
				return
			}
		}
	}
}

// StatusResponse is the API response for /api/status
type StatusResponse struct {
	Loaded   bool      `json:"loaded"`
	LoadID   string    `json:"load_id,omitempty"`
	Records  int       `json:"records,omitempty"`
	Days     int       `json:"days,omitempty"`
	Timezone string    `json:"timezone,omitempty"`
	UseRaw   bool      `json:"use_raw"`
	HasRaw   bool      `json:"has_raw"`
	LoadedAt time.Time `json:"loaded_at,omitzero"`
	Session  *Session  `json:"session,omitempty"`
}

// GET /api/status - Describes the loaded document and saved session
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{}
	if session, err := s.db.LoadSession(); err == nil {
		resp.Session = session
	}
	if loaded := s.loads.Current(); loaded != nil {
		resp.Loaded = true
		resp.LoadID = loaded.ID
		resp.Records = loaded.Records
		resp.Days = len(loaded.Dates)
		resp.Timezone = loaded.Timezone
		resp.UseRaw = loaded.UseRaw
		resp.HasRaw = loaded.Doc.HasRawSignals()
		resp.LoadedAt = loaded.LoadedAt
	}
	writeJSON(w, resp)
}

// DatesResponse is the API response for /api/dates
type DatesResponse struct {
	LoadID   string   `json:"load_id"`
	Timezone string   `json:"timezone"`
	UseRaw   bool     `json:"use_raw"`
	Dates    []string `json:"dates"`
	Message  string   `json:"message,omitempty"`
}

// GET /api/dates - Lists the dates of the loaded document in a timezone
func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.loaded()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loc, useRaw, err := parseScope(r, loaded)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := DatesResponse{LoadID: loaded.ID, Timezone: loc.String(), UseRaw: useRaw}
	if resp.Timezone == loaded.Timezone && useRaw == loaded.UseRaw {
		resp.Dates = loaded.Dates
	} else {
		resp.Dates, err = timeline.UniqueDates(r.Context(), loaded.Doc, loc, useRaw,
			timeline.ScanOptions{ChunkSize: s.cfg.ChunkSize})
		if errors.Is(err, timeline.ErrEmptyDateResult) {
			resp.Message = err.Error()
		} else if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	s.saveSession(Session{Timezone: resp.Timezone, UseRaw: useRaw})
	writeJSON(w, resp)
}

// DayResponse is the API response for /api/day
type DayResponse struct {
	LoadID   string                   `json:"load_id"`
	Summary  *DaySummary              `json:"summary"`
	Polyline string                   `json:"polyline"`
	Points   []timeline.LocationPoint `json:"points,omitempty"`
	Message  string                   `json:"message,omitempty"`
}

// GET /api/day - Returns a day's summary and encoded route
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
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

	bucket, err := s.dayBucket(r.Context(), loaded, q)
	if err != nil && !errors.Is(err, timeline.ErrNoDataForDate) {
		s.writeError(w, r, err)
		return
	}

	resp := DayResponse{LoadID: loaded.ID}
	if err != nil {
		resp.Message = err.Error()
	}

	key := SummaryKey{DocHash: loaded.Hash, Timezone: q.Loc.String(), UseRaw: q.UseRaw, Date: q.Date}
	resp.Summary, err = s.db.GetDaySummary(key)
	if err != nil {
		s.log.Warn("failed to read day summary", zap.Error(err))
	}
	if resp.Summary == nil {
		resp.Summary = SummarizeDay(bucket)
		if err := s.db.PutDaySummary(key, resp.Summary); err != nil {
			s.log.Warn("failed to cache day summary", zap.Error(err))
		}
	}

	path := bucketPath(bucket)
	if simplify := r.URL.Query().Get("simplify"); simplify != "" && len(path) > 2 {
		tolerance, err := strconv.ParseFloat(simplify, 64)
		if err != nil || tolerance < 0 {
			tolerance = ToleranceFromBound(resp.Summary.Bound())
		}
		path = SimplifyPath(path, tolerance)
	}
	resp.Polyline = EncodePath(path)

	if r.URL.Query().Get("points") == "1" {
		resp.Points = bucket.Points
	}

	s.saveSession(Session{Date: q.Date})
	writeJSON(w, resp)
}

// FrameResponse is the API response for /api/frame
type FrameResponse struct {
	LoadID  string          `json:"load_id"`
	Frame   playback.Frame  `json:"frame"`
	GeoJSON json.RawMessage `json:"geojson"`
}

// GET /api/frame - Renders the route and marker at a minute of the day
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
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

	minute, err := strconv.ParseFloat(r.URL.Query().Get("minute"), 64)
	if err != nil || minute < 0 || minute >= playback.MinutesPerDay {
		s.writeError(w, r, badRequest("minute must be in [0, %d)", playback.MinutesPerDay))
		return
	}
	mode := s.cfg.Mode()
	if m := r.URL.Query().Get("mode"); m != "" {
		if mode, err = playback.ParseColorMode(m); err != nil {
			s.writeError(w, r, badRequest("%v", err))
			return
		}
	}

	bucket, err := s.dayBucket(r.Context(), loaded, q)
	if err != nil && !errors.Is(err, timeline.ErrNoDataForDate) {
		s.writeError(w, r, err)
		return
	}

	frame, err := playback.NewFrame(bucket, minute, mode, s.cfg.MaxSegments)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fc, err := frame.FeatureCollection().MarshalJSON()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, FrameResponse{LoadID: loaded.ID, Frame: frame, GeoJSON: fc})
}

// GET /api/timezone - Suggests a timezone from the document's first position
func (s *Server) handleTimezone(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.loaded()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pt, ok := firstPoint(loaded.Doc, loaded.UseRaw)
	if !ok {
		writeJSON(w, TimezoneSuggestion{Timezone: s.cfg.Timezone})
		return
	}
	writeJSON(w, s.tz.Lookup(pt.LatLng))
}

// GET /api/export.kml - Downloads a day as KML
func (s *Server) handleExportKML(w http.ResponseWriter, r *http.Request) {
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
	bucket, err := s.dayBucket(r.Context(), loaded, q)
	if errors.Is(err, timeline.ErrNoDataForDate) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="timeline-%s.kml"`, q.Date))
	if err := WriteKML(w, bucket); err != nil {
		s.log.Error("failed to write KML", zap.String("date", q.Date), zap.Error(err))
	}
}
