package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

// PositionSource delivers the raw fixes of one session. The returned channel
// is closed when ctx is cancelled or when the source stops producing.
type PositionSource interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan domain.PositionFix, error)
}

type PermissionChecker interface {
	HasLocationPermission(sessionID string) bool
}

type State int32

const (
	StateIdle State = iota
	StateTracking
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type SessionDeps struct {
	Config      Config
	Source      PositionSource
	Permissions PermissionChecker
	Dispatcher  *Dispatcher
	Clock       clock.Clock
	Metrics     *Metrics
	Logger      *zap.Logger
}

// Session tracks one walk. A session moves Idle -> Tracking -> Stopped
// exactly once; tracking again needs a new Session.
type Session struct {
	deps        SessionDeps
	userID      string
	validator   *Validator
	accumulator *Accumulator
	logger      *zap.Logger

	mu     sync.Mutex
	state  State
	ref    domain.SessionRef
	cancel context.CancelFunc
	err    error
	onStop func(error)

	distance atomic.Uint64
	done     chan struct{}
}

func NewSession(deps SessionDeps, userID string) *Session {
	return &Session{
		deps:        deps,
		userID:      userID,
		validator:   NewValidator(deps.Config.Validator),
		accumulator: NewAccumulator(deps.Config.MinMovementMeters),
		logger:      deps.Logger.Named("session"),
		done:        make(chan struct{}),
	}
}

// OnStop registers a callback for stops the caller did not ask for, such
// as permission loss. It must be set before Start.
func (s *Session) OnStop(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStop = fn
}

// Start subscribes to the positioning source and begins processing fixes.
// Without location permission the session stays Idle and
// domain.ErrPermissionDenied is returned.
func (s *Session) Start(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("start session %s from %s: %w", sessionID, s.state, domain.ErrInvalidTransition)
	}
	if !s.deps.Permissions.HasLocationPermission(sessionID) {
		return fmt.Errorf("start session %s: %w", sessionID, domain.ErrPermissionDenied)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	fixes, err := s.deps.Source.Subscribe(runCtx, sessionID)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe session %s: %w", sessionID, err)
	}

	var ticker *clock.Ticker
	if interval := s.deps.Config.PermissionPollInterval; interval > 0 {
		ticker = s.deps.Clock.Ticker(interval)
	}

	s.ref = domain.SessionRef{SessionID: sessionID, UserID: s.userID}
	s.logger = s.logger.With(zap.String("session_id", sessionID))
	s.cancel = cancel
	s.state = StateTracking

	go s.run(runCtx, fixes, ticker, domain.NewSessionState(sessionID))

	s.logger.Info("tracking started", zap.String("user_id", s.userID))
	return nil
}

// Stop ends tracking and releases the subscription. It waits for the
// processing goroutine to exit but not for sink writes already issued.
func (s *Session) Stop() {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.state = StateStopped
		close(s.done)
		s.mu.Unlock()
		return
	case StateStopped:
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.cancel()
	s.mu.Unlock()

	<-s.done
	s.logger.Info("tracking stopped", zap.Float64("distance_m", s.Distance()))
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns why the session stopped on its own, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Distance is the cumulative distance in meters. Safe to call from any
// goroutine.
func (s *Session) Distance() float64 {
	return math.Float64frombits(s.distance.Load())
}

func (s *Session) Ref() domain.SessionRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref
}

// run is the session's only processing goroutine. ticker polls permission
// while the source is silent and may be nil.
func (s *Session) run(ctx context.Context, fixes <-chan domain.PositionFix, ticker *clock.Ticker, state *domain.SessionState) {
	defer close(s.done)

	gate := NewThrottleGate(s.deps.Config.Throttle, state.LastEmitPerSink)

	var tick <-chan time.Time
	if ticker != nil {
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			if !s.permitted() {
				s.halt(domain.ErrPermissionLost)
				return
			}
		case fix, ok := <-fixes:
			if !ok {
				if !s.permitted() {
					s.halt(domain.ErrPermissionLost)
				} else {
					s.halt(domain.ErrSourceClosed)
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			if s.deps.Config.CheckPermissionEachFix && !s.permitted() {
				s.halt(domain.ErrPermissionLost)
				return
			}
			s.process(gate, state, fix)
		}
	}
}

func (s *Session) process(gate *ThrottleGate, state *domain.SessionState, fix domain.PositionFix) {
	s.deps.Metrics.fixReceived()

	if err := s.validator.Validate(fix, state.LastAccepted); err != nil {
		s.deps.Metrics.fixRejected(err)
		s.logger.Debug("fix rejected", zap.Error(err))
		return
	}

	state.CumulativeMeters = s.accumulator.Accumulate(fix, state.LastAccepted, state.CumulativeMeters)
	accepted := fix
	state.LastAccepted = &accepted
	s.distance.Store(math.Float64bits(state.CumulativeMeters))

	s.deps.Dispatcher.Dispatch(s.ref, gate, fix, state.CumulativeMeters)
}

func (s *Session) permitted() bool {
	return s.deps.Permissions.HasLocationPermission(s.ref.SessionID)
}

// halt moves a tracking session to Stopped from inside the processing
// goroutine and notifies the OnStop callback.
func (s *Session) halt(reason error) {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.err = reason
	s.cancel()
	onStop := s.onStop
	s.mu.Unlock()

	s.logger.Warn("tracking stopped", zap.Error(reason), zap.Float64("distance_m", s.Distance()))
	if onStop != nil {
		onStop(reason)
	}
}
