package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rewind/internal/timeline"
)

// Load stages reported over SSE
const (
	StageParsing    = "parsing"
	StageScanning   = "scanning"
	StageDone       = "done"
	StageEmpty      = "empty"
	StageFailed     = "failed"
	StageSuperseded = "superseded"
)

// LoadRequest selects how a document is interpreted
type LoadRequest struct {
	Timezone string `json:"timezone"`
	UseRaw   bool   `json:"use_raw"`
}

// LoadProgress is sent via SSE while a document loads
type LoadProgress struct {
	LoadID   string   `json:"load_id"`
	Stage    string   `json:"stage"`
	Done     int      `json:"done"`
	Total    int      `json:"total"`
	Percent  float64  `json:"percent"`
	Dates    []string `json:"dates,omitempty"`
	Message  string   `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
	Complete bool     `json:"complete"`
}

// Loaded is an accepted document together with the dates it covers.
// It is replaced wholesale by later loads, never mutated.
type Loaded struct {
	ID       string
	Hash     string
	Doc      *timeline.Document
	Records  int
	Dates    []string
	Timezone string
	UseRaw   bool
	LoadedAt time.Time
}

// Location is the timezone the dates were computed in
func (l *Loaded) Location() *time.Location {
	loc, err := timeline.LoadTimezone(l.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadManager owns the current document. Only the most recently started
// load may replace it; earlier loads still running are cancelled and their
// results dropped.
type LoadManager struct {
	db  *DB
	cfg *Config
	log *zap.Logger

	// persistMu orders cache writes so the last committed load wins
	persistMu sync.Mutex

	mu       sync.RWMutex
	current  *Loaded
	activeID string
	cancel   context.CancelFunc
	streams  map[string][]chan LoadProgress // SSE subscribers per load
}

// NewLoadManager creates a new load manager
func NewLoadManager(db *DB, cfg *Config, log *zap.Logger) *LoadManager {
	return &LoadManager{
		db:      db,
		cfg:     cfg,
		log:     log,
		streams: make(map[string][]chan LoadProgress),
	}
}

// Current returns the loaded document, or nil before the first load
func (lm *LoadManager) Current() *Loaded {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.current
}

// Subscribe returns a channel that receives progress updates for a load.
// The returned function should be called to unsubscribe when done.
func (lm *LoadManager) Subscribe(loadID string) (<-chan LoadProgress, func()) {
	ch := make(chan LoadProgress, 16)

	lm.mu.Lock()
	lm.streams[loadID] = append(lm.streams[loadID], ch)
	lm.mu.Unlock()

	unsubscribe := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()

		subs := lm.streams[loadID]
		for i, sub := range subs {
			if sub == ch {
				lm.streams[loadID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
		// already closed by closeStreams()
	}

	return ch, unsubscribe
}

// broadcast sends progress to all subscribers (non-blocking)
func (lm *LoadManager) broadcast(progress LoadProgress) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	for _, ch := range lm.streams[progress.LoadID] {
		select {
		case ch <- progress:
		default:
			// Drop if channel is full (slow consumer)
		}
	}
}

// closeStreams closes all subscriber channels for a load
func (lm *LoadManager) closeStreams(loadID string) {
	lm.mu.Lock()
	subs := lm.streams[loadID]
	delete(lm.streams, loadID)
	lm.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// Start begins loading data in the background, cancelling any load still
// in flight. The returned channel is subscribed before the load starts,
// so it sees every update; it is closed when the load finishes.
func (lm *LoadManager) Start(data []byte, req LoadRequest) (string, <-chan LoadProgress, func()) {
	loadID := uuid.New().String()
	ch, unsubscribe := lm.Subscribe(loadID)

	ctx, cancel := context.WithCancel(context.Background())
	lm.mu.Lock()
	if lm.cancel != nil {
		lm.cancel()
	}
	lm.activeID = loadID
	lm.cancel = cancel
	lm.mu.Unlock()

	go func() {
		defer lm.closeStreams(loadID)
		defer cancel()
		if _, err := lm.run(ctx, loadID, data, req, true); err != nil {
			lm.log.Debug("load ended without replacing the document",
				zap.String("load_id", loadID), zap.Error(err))
		}
	}()

	return loadID, ch, unsubscribe
}

// Load runs a load synchronously under the same generation rules as Start
func (lm *LoadManager) Load(ctx context.Context, data []byte, req LoadRequest, persist bool) (*Loaded, error) {
	loadID := uuid.New().String()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lm.mu.Lock()
	if lm.cancel != nil {
		lm.cancel()
	}
	lm.activeID = loadID
	lm.cancel = cancel
	lm.mu.Unlock()

	return lm.run(ctx, loadID, data, req, persist)
}

// errSuperseded means a newer load started before this one finished
var errSuperseded = errors.New("superseded by a newer load")

func (lm *LoadManager) run(ctx context.Context, loadID string, data []byte, req LoadRequest, persist bool) (*Loaded, error) {
	log := lm.log.With(zap.String("load_id", loadID))
	started := time.Now()

	fail := func(stage string, err error) (*Loaded, error) {
		progress := LoadProgress{LoadID: loadID, Stage: stage, Error: err.Error(), Complete: true}
		if stage == StageEmpty {
			progress.Error = ""
			progress.Message = err.Error()
		}
		lm.broadcast(progress)
		return nil, err
	}

	loc, err := timeline.LoadTimezone(req.Timezone)
	if err != nil {
		return fail(StageFailed, err)
	}

	lm.broadcast(LoadProgress{LoadID: loadID, Stage: StageParsing, Message: "Parsing timeline file..."})
	doc, err := timeline.ParseDocument(bytes.NewReader(data))
	if err != nil {
		return fail(StageFailed, err)
	}

	records := len(doc.SemanticSegments)
	if doc.UsesRaw(req.UseRaw) {
		records = len(doc.RawSignals)
	}
	lm.broadcast(LoadProgress{
		LoadID:  loadID,
		Stage:   StageScanning,
		Total:   records,
		Message: fmt.Sprintf("Found %d records, scanning dates...", records),
	})

	dates, err := timeline.UniqueDates(ctx, doc, loc, req.UseRaw, timeline.ScanOptions{
		ChunkSize: lm.cfg.ChunkSize,
		Progress: func(done, total int) {
			lm.broadcast(LoadProgress{
				LoadID:  loadID,
				Stage:   StageScanning,
				Done:    done,
				Total:   total,
				Percent: float64(done) / float64(total) * 100,
			})
		},
	})
	switch {
	case errors.Is(err, timeline.ErrEmptyDateResult):
		return fail(StageEmpty, err)
	case errors.Is(err, context.Canceled):
		return fail(StageSuperseded, errSuperseded)
	case err != nil:
		return fail(StageFailed, err)
	}

	sum := sha256.Sum256(data)
	loaded := &Loaded{
		ID:       loadID,
		Hash:     hex.EncodeToString(sum[:]),
		Doc:      doc,
		Records:  records,
		Dates:    dates,
		Timezone: loc.String(),
		UseRaw:   doc.UsesRaw(req.UseRaw),
		LoadedAt: time.Now(),
	}

	lm.mu.Lock()
	if lm.activeID != loadID {
		lm.mu.Unlock()
		return fail(StageSuperseded, errSuperseded)
	}
	lm.current = loaded
	lm.mu.Unlock()

	if persist {
		lm.persist(log, loaded, data)
	}

	log.Info("timeline loaded",
		zap.Int("records", records),
		zap.Int("dates", len(dates)),
		zap.String("timezone", loaded.Timezone),
		zap.Bool("raw", loaded.UseRaw),
		zap.Duration("took", time.Since(started)))

	lm.broadcast(LoadProgress{
		LoadID:   loadID,
		Stage:    StageDone,
		Done:     records,
		Total:    records,
		Percent:  100,
		Dates:    dates,
		Message:  fmt.Sprintf("Loaded %d records covering %d days", records, len(dates)),
		Complete: true,
	})
	return loaded, nil
}

// persist caches the document for the next startup. Failures only cost
// session restore, so they are logged rather than returned. A load that is
// no longer current by the time it gets here is not written.
func (lm *LoadManager) persist(log *zap.Logger, loaded *Loaded, data []byte) {
	lm.persistMu.Lock()
	defer lm.persistMu.Unlock()

	if lm.Current() != loaded {
		log.Debug("skipping cache write for replaced load")
		return
	}
	if err := lm.db.Put(keyDocument, data); err != nil {
		log.Error("failed to cache document", zap.Error(err))
		return
	}
	session := Session{Timezone: loaded.Timezone, UseRaw: loaded.UseRaw, ColorMode: lm.cfg.ColorMode}
	if prev, err := lm.db.LoadSession(); err == nil && prev != nil {
		session.ColorMode = prev.ColorMode
	}
	if err := lm.db.SaveSession(session); err != nil {
		log.Error("failed to save session", zap.Error(err))
	}
	if n, err := lm.db.PruneDaySummaries(loaded.Hash); err != nil {
		log.Error("failed to prune day summaries", zap.Error(err))
	} else if n > 0 {
		log.Debug("pruned day summaries", zap.Int64("rows", n))
	}
}

// Restore reloads the cached document from the previous run, if any
func (lm *LoadManager) Restore(ctx context.Context) (*Session, error) {
	session, err := lm.db.LoadSession()
	if err != nil {
		return nil, err
	}
	data, err := lm.db.Get(keyDocument)
	if err != nil || data == nil {
		return session, err
	}

	req := LoadRequest{Timezone: lm.cfg.Timezone, UseRaw: lm.cfg.UseRaw}
	if session != nil {
		req = LoadRequest{Timezone: session.Timezone, UseRaw: session.UseRaw}
	}
	if _, err := lm.Load(ctx, data, req, false); err != nil {
		return session, fmt.Errorf("restoring cached document: %w", err)
	}
	return session, nil
}
