package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "time/tzdata"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	dbPath := flag.String("db", "./data/rewind.db", "database path")
	configPath := flag.String("config", "", "config file (default $XDG_CONFIG_HOME/rewind/config.yaml)")
	flag.Parse()

	if err := run(*addr, *dbPath, *configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr, dbPath, configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	log := newLogger(level)
	defer log.Sync()

	db, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	tz, err := NewTimezoneFinder()
	if err != nil {
		log.Warn("timezone suggestions will use longitude offsets", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loads := NewLoadManager(db, cfg, log.Named("load"))
	if session, err := loads.Restore(ctx); err != nil {
		log.Warn("could not restore previous session", zap.Error(err))
	} else if session != nil {
		log.Info("restored session",
			zap.String("date", session.Date),
			zap.String("timezone", session.Timezone))
	}

	server := &Server{
		db:    db,
		cfg:   cfg,
		loads: loads,
		tz:    tz,
		tmpl:  NewTemplates(nil),
		log:   log.Named("http"),
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", addr))
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/load", s.handleLoad)
	mux.HandleFunc("/api/load/events", s.handleLoadEvents)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/dates", s.handleDates)
	mux.HandleFunc("/api/day", s.handleDay)
	mux.HandleFunc("/api/frame", s.handleFrame)
	mux.HandleFunc("/api/play", s.handlePlay)
	mux.HandleFunc("/api/timezone", s.handleTimezone)
	mux.HandleFunc("/api/export.kml", s.handleExportKML)
	return mux
}
