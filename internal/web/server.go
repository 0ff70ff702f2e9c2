// Package web provides the HTTP status page and manual window control for
// the vent controller.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/vent-controller/internal/remote"
	"github.com/sweeney/vent-controller/internal/status"
	"github.com/sweeney/vent-controller/internal/window"
)

// Server serves the status page over HTTP and forwards control requests to
// the run loop.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   chan<- remote.Command
	hub        *hub
}

// New creates a Server that reads state from the given tracker and sends
// manual commands on commands.
func New(addr string, tracker *status.Tracker, commands chan<- remote.Command) *Server {
	s := &Server{
		tracker:  tracker,
		commands: commands,
		hub:      newHub(commands),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("POST /window/{axis}/{op}", s.handleWindow)
	mux.HandleFunc("POST /limits/{axis}", s.handleLimits)
	mux.HandleFunc("POST /timing", s.handleTiming)
	mux.HandleFunc("POST /stall/{axis}", s.handleStall)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown closes websocket clients and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}

// Broadcast pushes the current status to every websocket client.
func (s *Server) Broadcast() {
	s.hub.broadcast(status.FormatStatusEvent(s.tracker.Snapshot(), "", ""))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	cmd, err := remote.Parse(r.PathValue("axis"), r.PathValue("op"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.submit(w, r, cmd)
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	a, ok := window.ParseAxis(r.PathValue("axis"))
	if !ok {
		http.Error(w, fmt.Sprintf("unknown axis %q", r.PathValue("axis")), http.StatusBadRequest)
		return
	}
	open, err := strconv.ParseFloat(r.FormValue("open"), 64)
	if err != nil {
		http.Error(w, "bad open threshold", http.StatusBadRequest)
		return
	}
	closeAt, err := strconv.ParseFloat(r.FormValue("close"), 64)
	if err != nil {
		http.Error(w, "bad close threshold", http.StatusBadRequest)
		return
	}
	s.submit(w, r, remote.Command{Axis: a, Op: remote.OpLimits, Open: open, Close: closeAt})
}

func (s *Server) handleTiming(w http.ResponseWriter, r *http.Request) {
	cmd, err := remote.Timing(r.FormValue("run"), r.FormValue("lockout"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.submit(w, r, cmd)
}

func (s *Server) handleStall(w http.ResponseWriter, r *http.Request) {
	cutoff, err := strconv.Atoi(r.FormValue("cutoff"))
	if err != nil {
		http.Error(w, "bad stall cutoff", http.StatusBadRequest)
		return
	}
	cmd, err := remote.Stall(r.PathValue("axis"), cutoff)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.submit(w, r, cmd)
}

// submit hands cmd to the run loop without blocking. HTML forms are
// redirected back to the page; other clients get 202.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, cmd remote.Command) {
	select {
	case s.commands <- cmd:
	default:
		log.WithField("axis", cmd.Axis).Warn("web: command queue full, dropping request")
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}

	log.WithFields(log.Fields{"axis": cmd.Axis, "op": cmd.Op}).Info("web: command queued")
	if r.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
