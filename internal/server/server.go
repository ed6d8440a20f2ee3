// Package server exposes tables over WebSocket. Each connection is one player
// at one game; state changes committed by the table service are pushed to
// every connection at that game, and hole cards only to their owner.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/internal/store"
	"github.com/lox/holdem-engine/internal/table"
	"github.com/lox/holdem-engine/poker"
)

const shutdownTimeout = 5 * time.Second

// Tables is the part of the table service the server drives.
type Tables interface {
	Get(ctx context.Context, gameID string) (*game.Game, error)
	Sit(ctx context.Context, gameID, playerID, name string, seat, buyIn int) (table.Outcome, error)
	Leave(ctx context.Context, gameID, playerID string) (table.Outcome, error)
	SitOut(ctx context.Context, gameID, playerID string) (table.Outcome, error)
	SitIn(ctx context.Context, gameID, playerID string) (table.Outcome, error)
	StartHand(ctx context.Context, gameID string) (table.Outcome, error)
	SubmitAction(ctx context.Context, gameID, playerID, turnID string, action game.Action) (table.Outcome, error)
	RunItTwice(ctx context.Context, gameID string, playerIDs []string) (table.Outcome, error)
}

type votes struct {
	hand    int
	players []string
}

// Server represents the WebSocket server. It is also the table.Notifier that
// fans committed state out to connected players.
type Server struct {
	svc      Tables
	upgrader websocket.Upgrader
	logger   *log.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu    sync.RWMutex
	conns map[string]map[*Connection]struct{}
	votes map[string]votes
}

// New creates a server. Call SetTables before serving requests when the
// service itself needs the server as its notifier.
func New(svc Tables, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		svc: svc,
		upgrader: websocket.Upgrader{
			// Identity is taken from the query string, so any origin may connect.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.WithPrefix("server"),
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[string]map[*Connection]struct{}),
		votes:  make(map[string]votes),
	}
}

// SetTables sets the service requests are sent to.
func (s *Server) SetTables(svc Tables) { s.svc = svc }

// Handler returns the HTTP routes: /ws?game=<id>&player=<id> and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down and
// closes every connection.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting WebSocket server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down WebSocket server")
		s.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Stop closes all connections.
func (s *Server) Stop() {
	s.cancel()

	s.mu.RLock()
	var all []*Connection
	for _, conns := range s.conns {
		for c := range conns {
			all = append(all, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range all {
		_ = c.Close()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID, playerID := r.URL.Query().Get("game"), r.URL.Query().Get("player")
	if gameID == "" || playerID == "" {
		http.Error(w, "game and player are required", http.StatusBadRequest)
		return
	}
	g, err := s.svc.Get(r.Context(), gameID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	} else if err != nil {
		s.logger.Error("Failed to load game", "game", gameID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	c := newConnection(ws, s, gameID, playerID)
	s.register(c)
	c.Start()
	c.sendData(MessageTypeState, game.PublicView(g))

	go func() {
		<-c.Done()
		s.unregister(c)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func (s *Server) register(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[c.gameID] == nil {
		s.conns[c.gameID] = make(map[*Connection]struct{})
	}
	s.conns[c.gameID][c] = struct{}{}
	s.logger.Info("Client connected", "game", c.gameID, "player", c.playerID, "total", len(s.conns[c.gameID]))
}

func (s *Server) unregister(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns[c.gameID], c)
	if len(s.conns[c.gameID]) == 0 {
		delete(s.conns, c.gameID)
	}
	s.logger.Info("Client disconnected", "game", c.gameID, "player", c.playerID)
}

// connections returns the connections at gameID, optionally only playerID's.
func (s *Server) connections(gameID, playerID string) []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Connection
	for c := range s.conns[gameID] {
		if playerID == "" || c.playerID == playerID {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) broadcast(gameID string, msgType MessageType, data any) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		s.logger.Error("Failed to encode message", "type", msgType, "error", err)
		return
	}
	count := 0
	for _, c := range s.connections(gameID, "") {
		if err := c.SendMessage(msg); err == nil {
			count++
		}
	}
	s.logger.Debug("Broadcasted message to table", "game", gameID, "type", msgType, "recipients", count)
}

// GameUpdated implements table.Notifier.
func (s *Server) GameUpdated(g *game.Game) {
	s.mu.Lock()
	if v, ok := s.votes[g.ID]; ok && (v.hand != g.HandNumber || g.Table.CurrentRound != game.RoundShowdown) {
		delete(s.votes, g.ID)
	}
	s.mu.Unlock()

	s.broadcast(g.ID, MessageTypeState, g)
}

// HoleCardsDealt implements table.Notifier.
func (s *Server) HoleCardsDealt(gameID string, hand int, playerID string, cards [2]poker.Card) {
	data := HoleCardsData{Hand: hand, Cards: cards}
	for _, c := range s.connections(gameID, playerID) {
		c.sendData(MessageTypeHoleCards, data)
	}
}

// voteRunItTwice records playerID's agreement. Once every player left in the
// hand has agreed the board is run twice.
func (s *Server) voteRunItTwice(ctx context.Context, gameID, playerID string) error {
	g, err := s.svc.Get(ctx, gameID)
	if err != nil {
		return err
	}
	seat := g.SeatByPlayer(playerID)
	if seat == nil || !seat.InHand() {
		return game.ErrPlayerNotFound
	}
	if !game.CanRunItTwice(g) {
		return &game.Error{Code: game.CodeInvalidAction, Message: "run it twice is not available"}
	}

	var inHand []string
	for _, st := range g.Seats {
		if st != nil && st.InHand() {
			inHand = append(inHand, st.PlayerID)
		}
	}

	s.mu.Lock()
	v := s.votes[gameID]
	if v.hand != g.HandNumber {
		v = votes{hand: g.HandNumber}
	}
	if !slices.Contains(v.players, playerID) {
		v.players = append(v.players, playerID)
	}
	s.votes[gameID] = v
	agreed := slices.Clone(v.players)
	s.mu.Unlock()

	s.broadcast(gameID, MessageTypeRunItTwice, RunItTwiceData{Hand: g.HandNumber, Agreed: agreed})

	for _, id := range inHand {
		if !slices.Contains(agreed, id) {
			return nil
		}
	}
	s.logger.Info("Players agreed to run it twice", "game", gameID, "hand", g.HandNumber, "players", agreed)
	_, err = s.svc.RunItTwice(ctx, gameID, inHand)
	return err
}
