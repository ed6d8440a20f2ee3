// Package scheduler fires turn timeouts and table auto-close callbacks.
//
// Timers carry the token that was current when they were armed. A timer that
// fires after its turn has moved on still calls the handler, which is expected
// to ignore a token it no longer recognises.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Handler receives fired timers.
type Handler interface {
	HandleTurnTimer(ctx context.Context, gameID, turnID string) error
	HandleAutoCloseTimer(ctx context.Context, gameID, closeID string) error
}

type timers struct {
	turn  *quartz.Timer
	close *quartz.Timer
}

// Scheduler keeps at most one turn timer and one auto-close timer per game.
type Scheduler struct {
	clock  quartz.Clock
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	handler Handler
	games   map[string]*timers
	stopped bool
}

// New returns a scheduler driven by clock.
func New(clock quartz.Clock, logger *log.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:  clock,
		logger: logger.WithPrefix("scheduler"),
		ctx:    ctx,
		cancel: cancel,
		games:  make(map[string]*timers),
	}
}

// SetHandler sets the receiver of fired timers.
func (s *Scheduler) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// ScheduleTurn arms the turn timer for gameID, replacing any earlier one.
func (s *Scheduler) ScheduleTurn(gameID, turnID string, deadline time.Time) {
	s.arm(gameID, deadline, "turn", func(t *timers) **quartz.Timer { return &t.turn },
		func(ctx context.Context, h Handler) error { return h.HandleTurnTimer(ctx, gameID, turnID) })
}

// ScheduleAutoClose arms the auto-close timer for gameID, replacing any earlier one.
func (s *Scheduler) ScheduleAutoClose(gameID, closeID string, at time.Time) {
	s.arm(gameID, at, "close", func(t *timers) **quartz.Timer { return &t.close },
		func(ctx context.Context, h Handler) error { return h.HandleAutoCloseTimer(ctx, gameID, closeID) })
}

func (s *Scheduler) arm(gameID string, at time.Time, kind string, slot func(*timers) **quartz.Timer, fire func(context.Context, Handler) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	t, ok := s.games[gameID]
	if !ok {
		t = &timers{}
		s.games[gameID] = t
	}
	p := slot(t)
	if *p != nil {
		(*p).Stop()
	}

	d := max(at.Sub(s.clock.Now()), 0)
	*p = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		h := s.handler
		s.mu.Unlock()
		if h == nil || s.ctx.Err() != nil {
			return
		}
		if err := fire(s.ctx, h); err != nil {
			s.logger.Error("timer handler failed", "game", gameID, "timer", kind, "error", err)
		}
	}, "scheduler", kind)
}

// Cancel stops every timer for gameID.
func (s *Scheduler) Cancel(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.games[gameID]; ok {
		stopTimers(t)
		delete(s.games, gameID)
	}
}

// CancelTurn stops the turn timer for gameID.
func (s *Scheduler) CancelTurn(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.games[gameID]; ok && t.turn != nil {
		t.turn.Stop()
		t.turn = nil
	}
}

// Stop cancels every timer. Callbacks already running see a cancelled context.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancel()
	for id, t := range s.games {
		stopTimers(t)
		delete(s.games, id)
	}
}

func stopTimers(t *timers) {
	if t.turn != nil {
		t.turn.Stop()
	}
	if t.close != nil {
		t.close.Stop()
	}
}
