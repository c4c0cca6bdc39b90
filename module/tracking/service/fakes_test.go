package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

var origin = domain.PositionFix{
	Lat:        -0.1807,
	Lon:        -78.4678,
	Accuracy:   8,
	CapturedAt: time.UnixMilli(1715003456000),
}

// north returns a fix the given meters north of from, captured after
// elapsed, with the given accuracy.
func north(from domain.PositionFix, meters float64, elapsed time.Duration, accuracy float64) domain.PositionFix {
	return domain.PositionFix{
		Lat:        from.Lat + meters/earthRadiusMeters*180/math.Pi,
		Lon:        from.Lon,
		Accuracy:   accuracy,
		CapturedAt: from.CapturedAt.Add(elapsed),
	}
}

type fakeLive struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	sendErr    error
	sent       []domain.LivePosition
	connects   int
}

func (f *fakeLive) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeLive) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeLive) Send(_ context.Context, pos *domain.LivePosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, *pos)
	return nil
}

func (f *fakeLive) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeLive) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

type fakeStore struct {
	mu          sync.Mutex
	currentErr  error
	historyErr  error
	current     []domain.CurrentPosition
	history     []domain.HistoryPoint
	historyKeys []string

	// historyHold, when set, parks AppendHistory until it is closed.
	historyHold chan struct{}
}

func (f *fakeStore) WriteCurrentPosition(_ context.Context, pos *domain.CurrentPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentErr != nil {
		return f.currentErr
	}
	f.current = append(f.current, *pos)
	return nil
}

func (f *fakeStore) AppendHistory(ctx context.Context, sessionID string, point *domain.HistoryPoint) error {
	f.mu.Lock()
	hold := f.historyHold
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return f.historyErr
	}
	f.historyKeys = append(f.historyKeys, sessionID)
	f.history = append(f.history, *point)
	return nil
}

func (f *fakeStore) GetCurrentPosition(_ context.Context, _ string) (*domain.CurrentPosition, error) {
	return nil, nil
}

func (f *fakeStore) GetHistory(_ context.Context, _ *domain.HistoryQuery) ([]domain.HistoryPoint, error) {
	return nil, nil
}

func (f *fakeStore) counts() (current, history int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.current), len(f.history)
}

// fakeSource hands out one channel per subscribed session.
type fakeSource struct {
	mu        sync.Mutex
	err       error
	streams   map[string]chan domain.PositionFix
	cancelled map[string]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		streams:   make(map[string]chan domain.PositionFix),
		cancelled: make(map[string]bool),
	}
}

func (f *fakeSource) Subscribe(ctx context.Context, sessionID string) (<-chan domain.PositionFix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan domain.PositionFix, 16)
	f.streams[sessionID] = ch
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		f.cancelled[sessionID] = true
		f.mu.Unlock()
	}()
	return ch, nil
}

func (f *fakeSource) stream(sessionID string) chan domain.PositionFix {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[sessionID]
}

func (f *fakeSource) subscribed(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.streams[sessionID]
	return ok
}

func (f *fakeSource) wasCancelled(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[sessionID]
}

type harness struct {
	clock   *clock.Mock
	live    *fakeLive
	store   *fakeStore
	source  *fakeSource
	perms   *PermissionRegistry
	metrics *Metrics
	disp    *Dispatcher
	deps    SessionDeps
}

func newHarness() *harness {
	h := &harness{
		clock:   clock.NewMock(),
		live:    &fakeLive{connected: true},
		store:   &fakeStore{},
		source:  newFakeSource(),
		perms:   NewPermissionRegistry(),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	h.clock.Set(time.UnixMilli(1715003456000))

	cfg := DefaultConfig()
	h.disp = NewDispatcher(h.live, h.store, cfg.Dispatcher, h.clock, h.metrics, zap.NewNop())
	h.deps = SessionDeps{
		Config:      cfg,
		Source:      h.source,
		Permissions: h.perms,
		Dispatcher:  h.disp,
		Clock:       h.clock,
		Metrics:     h.metrics,
		Logger:      zap.NewNop(),
	}
	return h
}
