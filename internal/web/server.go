// Package web provides the HTTP command API and status page for the
// actuator-control daemon.
package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/sweeney/actuator-control/internal/cycle"
	"github.com/sweeney/actuator-control/internal/status"
)

// Commander is the controller surface the API drives.
type Commander interface {
	Start() error
	Stop() error
	Configure(wait time.Duration) error
	Status() cycle.Status
}

// Server serves the command API and status page over HTTP.
type Server struct {
	httpServer *http.Server
	ctl        Commander
	tracker    *status.Tracker
}

// New creates a Server that sends commands to ctl and reads daemon state
// from tracker.
func New(addr string, ctl Commander, tracker *status.Tracker) *Server {
	s := &Server{ctl: ctl, tracker: tracker}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Post("/cycle_wait_time", s.handleWaitTime)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// snapshot merges the live controller state into the tracker view.
func (s *Server) snapshot() status.Snapshot {
	snap := s.tracker.Snapshot()
	st := s.ctl.Status()
	snap.Running = st.Running
	snap.CycleWait = st.CycleWait
	snap.Cycles = st.Cycles
	snap.LastFault = st.LastFault
	return snap
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, s.snapshot()); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.snapshot()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.ctl.Status()
	render.JSON(w, r, StatusResponse{
		Running:       st.Running,
		CycleWaitTime: st.CycleWait.Seconds(),
		Cycles:        st.Cycles,
		LastFault:     st.LastFault,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Start(); err != nil {
		if errors.Is(err, cycle.ErrAlreadyRunning) {
			render.Render(w, r, errAlreadyRunning)
			return
		}
		s.internalError(w, r, "start", err)
		return
	}
	render.JSON(w, r, CommandResponse{Success: true, Message: "Actuator cycling started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Stop(); err != nil {
		if errors.Is(err, cycle.ErrNotRunning) {
			render.Render(w, r, errNotRunning)
			return
		}
		s.internalError(w, r, "stop", err)
		return
	}
	render.JSON(w, r, CommandResponse{Success: true, Message: "Actuator cycling stopped"})
}

func (s *Server) handleWaitTime(w http.ResponseWriter, r *http.Request) {
	wait, errResp := parseWaitTime(r)
	if errResp != nil {
		render.Render(w, r, errResp)
		return
	}

	if err := s.ctl.Configure(wait); err != nil {
		if errors.Is(err, cycle.ErrNegativeWait) {
			render.Render(w, r, errNegativeTime)
			return
		}
		s.internalError(w, r, "configure", err)
		return
	}

	secs := wait.Seconds()
	render.JSON(w, r, CommandResponse{
		Success:       true,
		Message:       fmt.Sprintf("Cycle wait time set to %g seconds", secs),
		CycleWaitTime: &secs,
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log.Printf("web: %s: %v", op, err)
	render.Render(w, r, &ErrResponse{
		HTTPStatusCode: http.StatusInternalServerError,
		Message:        err.Error(),
		Code:           "internal",
	})
}
