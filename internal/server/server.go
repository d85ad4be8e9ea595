// Package server exposes the Power-Up capabilities as a JSON API. The host
// calls these endpoints the way it would call a registered capability callback.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/host"
	"github.com/h0rv/sumup/internal/powerup"
	"github.com/h0rv/sumup/internal/settings"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server routes capability requests to the PowerUp.
type Server struct {
	router  *mux.Router
	powerup *powerup.PowerUp
	storage host.Storage
	cards   host.CardSource // nil when cards only arrive with requests
	logger  *zap.Logger
}

// New creates a Server. cards may be nil, in which case badge requests must
// carry the list's cards.
func New(pu *powerup.PowerUp, storage host.Storage, cards host.CardSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:  mux.NewRouter(),
		powerup: pu,
		storage: storage,
		cards:   cards,
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.logRequests)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	// Registered on the root router so a known path with the wrong method is a 405
	const board = "/boards/{board}"
	r.HandleFunc(board+"/buttons", s.handleBoardButtons).Methods(http.MethodGet)

	r.HandleFunc(board+"/fields", s.handleListFields).Methods(http.MethodGet)
	r.HandleFunc(board+"/fields", s.handleAddField).Methods(http.MethodPost)
	r.HandleFunc(board+"/fields/{field}", s.handleRenameField).Methods(http.MethodPut)
	r.HandleFunc(board+"/fields/{field}", s.handleDeleteField).Methods(http.MethodDelete)

	r.HandleFunc(board+"/cards/{card}/buttons", s.handleCardButtons).Methods(http.MethodGet)
	r.HandleFunc(board+"/cards/{card}/values", s.handleGetValues).Methods(http.MethodGet)
	r.HandleFunc(board+"/cards/{card}/values", s.handleSetValues).Methods(http.MethodPut)
	r.HandleFunc(board+"/cards/{card}/values/{field}", s.handleSetValue).Methods(http.MethodPut)
	r.HandleFunc(board+"/cards/{card}/badges", s.handleBadges).Methods(http.MethodGet, http.MethodPost)

	r.HandleFunc(board+"/lists/{list}/sum", s.handleListSum).Methods(http.MethodGet)
	r.HandleFunc(board+"/lists/{list}/sum", s.handleRefreshSum).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("Server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// session builds the host session for a request.
func (s *Server) session(r *http.Request) host.Session {
	vars := mux.Vars(r)
	return host.Session{
		Storage: s.storage,
		Cards:   s.cards,
		Context: host.Context{
			Board:  vars["board"],
			List:   vars["list"],
			Card:   vars["card"],
			Member: r.Header.Get("X-Member-ID"),
		},
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBoardButtons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.powerup.BoardButtons(s.session(r)))
}

func (s *Server) handleCardButtons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.powerup.CardButtons(s.session(r)))
}

type fieldRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	fields, err := settings.Fields(r.Context(), s.session(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) handleAddField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if !s.decode(w, r, &req) {
		return
	}
	field, err := settings.AddField(r.Context(), s.session(r), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, field)
}

func (s *Server) handleRenameField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if !s.decode(w, r, &req) {
		return
	}
	field, err := settings.RenameField(r.Context(), s.session(r), mux.Vars(r)["field"], req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, field)
}

func (s *Server) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	if err := settings.DeleteField(r.Context(), s.session(r), mux.Vars(r)["field"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetValues(w http.ResponseWriter, r *http.Request) {
	values, err := settings.Values(r.Context(), s.session(r), mux.Vars(r)["card"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *Server) handleSetValues(w http.ResponseWriter, r *http.Request) {
	var values domain.ValueMap
	if !s.decode(w, r, &values) {
		return
	}
	saved, err := settings.SetValues(r.Context(), s.session(r), mux.Vars(r)["card"], values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type valueRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !s.decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	saved, err := settings.SetValue(r.Context(), s.session(r), vars["card"], vars["field"], req.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type badgesRequest struct {
	Cards []domain.CardRef `json:"cards"`
}

// handleBadges renders badges. A POST carries the cards of the board (or at
// least of the card's list) as the host passed them to its callback.
func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	if r.Method == http.MethodPost {
		var req badgesRequest
		if !s.decode(w, r, &req) {
			return
		}
		sess.Cards = host.StaticCards(req.Cards)
	}

	badges := s.powerup.CardBadges(r.Context(), sess, mux.Vars(r)["card"])
	if badges == nil {
		badges = []domain.Badge{}
	}
	writeJSON(w, http.StatusOK, badges)
}

type sumResponse struct {
	ListID     string             `json:"listId"`
	Totals     map[string]float64 `json:"totals"`
	Cached     bool               `json:"cached"`
	ComputedAt *time.Time         `json:"computedAt,omitempty"`
}

func (s *Server) handleListSum(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	listID := mux.Vars(r)["list"]

	if r.URL.Query().Get("cached") != "" {
		entry, ok, err := s.powerup.CachedSum(r.Context(), sess, listID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no cached sum for list " + listID})
			return
		}
		writeJSON(w, http.StatusOK, sumResponse{
			ListID:     listID,
			Totals:     entry.Totals,
			Cached:     true,
			ComputedAt: &entry.ComputedAt,
		})
		return
	}

	totals, err := s.powerup.ListSum(r.Context(), sess, listID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sumResponse{ListID: listID, Totals: totals})
}

func (s *Server) handleRefreshSum(w http.ResponseWriter, r *http.Request) {
	entry, err := s.powerup.RefreshCache(r.Context(), s.session(r), mux.Vars(r)["list"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sumResponse{
		ListID:     entry.ListID,
		Totals:     entry.Totals,
		Cached:     true,
		ComputedAt: &entry.ComputedAt,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

// decode reads a JSON body into dest, answering 400 when it cannot.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		s.logger.Debug("Invalid request body", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, settings.ErrEmptyName):
		return http.StatusBadRequest
	case errors.Is(err, settings.ErrFieldNotFound),
		errors.Is(err, host.ErrCardNotFound),
		errors.Is(err, host.ErrListNotFound),
		errors.Is(err, host.ErrBoardNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
