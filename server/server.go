// Package server exposes training sessions over HTTP and websockets. Each
// websocket connection owns its own game and agent.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"snake-dqn/config"
	"snake-dqn/training"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// Browser frontends are served from another origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

type Server struct {
	cfg    config.Config
	router *mux.Router

	// base outlives requests: hijacked websockets are not tracked by http.Server.
	base   context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*session
	wg       sync.WaitGroup
	seq      atomic.Uint64
}

// New builds a server and its routes.
func New(cfg config.Config) *Server {
	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		base:     base,
		cancel:   cancel,
		sessions: make(map[string]*session),
	}
	s.router.HandleFunc("/ping", s.servePing).Methods(http.MethodGet)
	s.router.HandleFunc("/sessions", s.serveSessions).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.serveWebsocket)
	return s
}

// Handler serves the routes, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down and waits for the sessions to end.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("server running at %s", s.cfg.Server.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close ends every session and waits for them.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// nextSeed gives every game its own seed, reproducible when game.seed is set.
func (s *Server) nextSeed() uint64 {
	n := s.seq.Add(1)
	if s.cfg.Game.Seed != 0 {
		return s.cfg.Game.Seed + n
	}
	return uint64(time.Now().UnixNano()) + n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// servePing keeps hosting platforms from idling the server.
func (s *Server) servePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"message": "pong"})
}

func (s *Server) serveSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sessions())
}

// Sessions returns the summaries of the connected clients, oldest first.
func (s *Server) Sessions() []SessionSummary {
	s.mu.RLock()
	out := make([]SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.summary())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Connected.Before(out[j].Connected)
	})
	return out
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.base.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}

	ping := s.cfg.Server.PingInterval
	if ping <= 0 {
		ping = 10 * time.Second
	}
	sess := &session{
		id:        uuid.New().String(),
		connected: time.Now(),
		sock:      newWebsock(ws),
		cfg:       s.cfg,
		seed:      s.nextSeed,
		ping:      ping,
		started:   make(chan *training.Manager, 1),
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	log.Printf("client connected: %s", sess.id)

	err = sess.Sync(s.base)

	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	if err != nil {
		log.Printf("disconnected: %s: %v", sess.id, err)
		return
	}
	log.Printf("disconnected: %s", sess.id)
}
