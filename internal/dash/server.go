package dash

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yanun0323/logs"

	"github.com/doug4987/New-MM-Test/internal/book"
	"github.com/doug4987/New-MM-Test/internal/obs"
	"github.com/doug4987/New-MM-Test/internal/position"
	"github.com/doug4987/New-MM-Test/internal/wager"
)

// Server exposes the operator HTTP surface. All endpoints are read-only:
// control stays in config and the environment.
type Server struct {
	addr    string
	books   *book.Store
	tracker *position.Tracker
	manager *wager.Manager
	hub     *Hub

	srv *http.Server
}

// NewServer builds the router over live pipeline state.
func NewServer(addr string, books *book.Store, tracker *position.Tracker, manager *wager.Manager, hub *Hub) *Server {
	s := &Server{
		addr:    addr,
		books:   books,
		tracker: tracker,
		manager: manager,
		hub:     hub,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", obs.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", s.hub.HandleWS)
		r.Get("/books", s.handleBooks)
		r.Get("/books/{marketID}", s.handleBook)
		r.Get("/positions", s.handlePositions)
		r.Get("/risk", s.handleRisk)
		r.Get("/wagers", s.handleWagers)
	})

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	logs.Infof("dashboard listening on %s", s.addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logs.Errorf("dashboard server, err: %+v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"markets": s.books.Len(),
	})
}

func (s *Server) handleBooks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.books.Snapshot())
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")
	view, ok := s.books.View(marketID)
	if !ok {
		http.Error(w, "unknown market", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	positions, _ := s.tracker.Snapshot()
	writeJSON(w, positions)
}

func (s *Server) handleRisk(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.tracker.Risk())
}

func (s *Server) handleWagers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.manager.Open())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logs.Debugf("write dashboard response, err: %+v", err)
	}
}
