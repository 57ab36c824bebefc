// Package status serves a local diagnostics endpoint: health, the pending
// schedule, Prometheus metrics and a websocket stream of events.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"theoption-trader/internal/events"
	"theoption-trader/internal/logger"
	"theoption-trader/internal/schedule"
	"theoption-trader/internal/scheduler"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

// Snapshotter is the read side of the scheduler state.
type Snapshotter interface {
	Snapshot() scheduler.Snapshot
}

type Server struct {
	state    Snapshotter
	hub      *events.Hub
	mode     string
	started  time.Time
	upgrader websocket.Upgrader
}

func NewServer(state Snapshotter, hub *events.Hub, mode string) *Server {
	return &Server{
		state:   state,
		hub:     hub,
		mode:    mode,
		started: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type statusResponse struct {
	Time        time.Time          `json:"time"`
	Mode        string             `json:"mode"`
	StartedAt   time.Time          `json:"started_at"`
	Schedule    scheduler.Snapshot `json:"schedule"`
	NextTrigger *time.Time         `json:"next_trigger,omitempty"`
	LastOutcome *events.Event      `json:"last_outcome,omitempty"`
	Subscribers int                `json:"subscribers"`
}

// Handler returns the router wrapped in CORS.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWebSocket)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(router)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Snapshot()
	resp := statusResponse{
		Time:      time.Now(),
		Mode:      s.mode,
		StartedAt: s.started,
		Schedule:  snap,
	}
	if next, ok := schedule.Set(snap.Pending).NextTrigger(); ok {
		resp.NextTrigger = &next
	}
	if s.hub != nil {
		if ev, ok := s.hub.LastCompleted(); ok {
			resp.LastOutcome = &ev
		}
		resp.Subscribers = s.hub.Subscribers()
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		http.Error(w, "failed to encode status", http.StatusInternalServerError)
	}
}

// handleWebSocket streams every event to the client until either side
// goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "event stream disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(r.Context(), "Websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.hub.Subscribe(subscriberBuffer)
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug(r.Context(), "Websocket client dropped", "error", err.Error())
				return
			}
		}
	}
}

// Start serves s on addr in the background. An empty, "off" or
// "disabled" addr disables the server and returns nil.
func Start(ctx context.Context, addr string, s *Server) *http.Server {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.EqualFold(addr, "off") || strings.EqualFold(addr, "disabled") {
		logger.Info(ctx, "Status server disabled")
		return nil
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info(ctx, "Status server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Status server error", err)
		}
	}()
	return server
}
