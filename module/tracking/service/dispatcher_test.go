package service

import (
	"errors"
	"testing"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

var walkRef = domain.SessionRef{SessionID: "walk-1", UserID: "user-1"}

func TestDispatch_AllSinksOnFirstFix(t *testing.T) {
	h := newHarness()
	gate := NewThrottleGate(DefaultThrottleConfig(), nil)
	speed := 1.2
	fix := origin
	fix.Speed = &speed

	h.disp.Dispatch(walkRef, gate, fix, 42.5)
	h.disp.Flush()

	require.Equal(t, 1, h.live.sentCount())
	assert.Equal(t, domain.LivePosition{SessionID: "walk-1", Lat: fix.Lat, Lon: fix.Lon, Accuracy: fix.Accuracy}, h.live.sent[0])

	current, history := h.store.counts()
	require.Equal(t, 1, current)
	require.Equal(t, 1, history)

	pos := h.store.current[0]
	assert.Equal(t, "user-1", pos.UserID)
	assert.Equal(t, 42.5, pos.Distance)
	assert.Equal(t, geohash.EncodeWithPrecision(fix.Lat, fix.Lon, 10), pos.Geohash)
	assert.Len(t, pos.Geohash, 10)
	assert.Equal(t, h.clock.Now(), pos.UpdatedAt)

	point := h.store.history[0]
	assert.Equal(t, "walk-1", h.store.historyKeys[0])
	assert.Equal(t, "walk-1", point.SessionID)
	assert.NotEmpty(t, point.ID)
	assert.Equal(t, fix.CapturedAt, point.CapturedAt)
	require.NotNil(t, point.Speed)
	assert.Equal(t, 1.2, *point.Speed)
}

func TestDispatch_ThrottlesStoreSinks(t *testing.T) {
	h := newHarness()
	gate := NewThrottleGate(DefaultThrottleConfig(), nil)

	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.clock.Add(4999 * time.Millisecond)
	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()

	current, history := h.store.counts()
	assert.Equal(t, 1, current)
	assert.Equal(t, 1, history)
	assert.Equal(t, 2, h.live.sentCount(), "live sink is unthrottled")

	h.clock.Add(2 * time.Millisecond)
	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()

	current, history = h.store.counts()
	assert.Equal(t, 2, current)
	assert.Equal(t, 1, history)

	h.clock.Add(10 * time.Second)
	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()

	current, history = h.store.counts()
	assert.Equal(t, 3, current)
	assert.Equal(t, 2, history)
}

func TestDispatch_DisconnectedLiveDropsAndReconnects(t *testing.T) {
	h := newHarness()
	h.live.connected = false
	gate := NewThrottleGate(DefaultThrottleConfig(), nil)

	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()

	assert.Equal(t, 0, h.live.sentCount(), "fix is dropped, not queued")
	assert.Equal(t, 1, h.live.connectCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.liveDropped))

	current, history := h.store.counts()
	assert.Equal(t, 1, current, "other sinks are unaffected")
	assert.Equal(t, 1, history)

	h.clock.Add(time.Second)
	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()
	assert.Equal(t, 1, h.live.sentCount(), "next fix goes out after reconnect")
}

func TestDispatch_ReconnectIsRateLimited(t *testing.T) {
	h := newHarness()
	h.live.connected = false
	h.live.connectErr = errors.New("broker unreachable")
	gate := NewThrottleGate(DefaultThrottleConfig(), nil)

	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()
	h.clock.Add(500 * time.Millisecond)
	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()
	assert.Equal(t, 1, h.live.connectCount())

	h.clock.Add(2 * time.Second)
	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()
	assert.Equal(t, 2, h.live.connectCount())
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.liveDropped))
}

func TestDispatch_StoreFailureIsIsolated(t *testing.T) {
	h := newHarness()
	h.store.currentErr = errors.New("write timeout")
	gate := NewThrottleGate(DefaultThrottleConfig(), nil)

	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()

	current, history := h.store.counts()
	assert.Equal(t, 0, current)
	assert.Equal(t, 1, history)
	assert.Equal(t, 1, h.live.sentCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.failures.WithLabelValues(string(domain.SinkCurrentPosition))))

	// The attempt still counts for throttling.
	h.store.mu.Lock()
	h.store.currentErr = nil
	h.store.mu.Unlock()
	h.clock.Add(time.Second)
	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()

	current, _ = h.store.counts()
	assert.Equal(t, 0, current)
}

func TestDispatch_LiveSendFailureIsCounted(t *testing.T) {
	h := newHarness()
	h.live.sendErr = errors.New("socket closed")
	gate := NewThrottleGate(DefaultThrottleConfig(), nil)

	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.failures.WithLabelValues(string(domain.SinkLive))))
	current, history := h.store.counts()
	assert.Equal(t, 1, current)
	assert.Equal(t, 1, history)
}

func TestDispatch_BlockedHistoryDoesNotStall(t *testing.T) {
	h := newHarness()
	hold := make(chan struct{})
	h.store.historyHold = hold
	gate := NewThrottleGate(DefaultThrottleConfig(), nil)

	returned := make(chan struct{})
	go func() {
		h.disp.Dispatch(walkRef, gate, origin, 0)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(waitFor):
		t.Fatal("Dispatch waited on the history write")
	}

	require.Eventually(t, func() bool {
		current, _ := h.store.counts()
		return h.live.sentCount() == 1 && current == 1
	}, waitFor, time.Millisecond)

	next := north(origin, 10, 6*time.Second, 5)
	h.clock.Add(6 * time.Second)
	h.disp.Dispatch(walkRef, gate, next, 10)

	require.Eventually(t, func() bool {
		current, _ := h.store.counts()
		return h.live.sentCount() == 2 && current == 2
	}, waitFor, time.Millisecond)
	_, history := h.store.counts()
	assert.Equal(t, 0, history, "history write is still parked")

	close(hold)
	h.disp.Flush()

	_, history = h.store.counts()
	assert.Equal(t, 1, history)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.emissions.WithLabelValues(string(domain.SinkHistory))))
}

func TestDispatch_HistoryFailureIsIsolated(t *testing.T) {
	h := newHarness()
	h.store.historyErr = errors.New("insert failed")
	gate := NewThrottleGate(DefaultThrottleConfig(), nil)

	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()

	current, history := h.store.counts()
	assert.Equal(t, 1, current)
	assert.Equal(t, 0, history)
	assert.Equal(t, 1, h.live.sentCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.failures.WithLabelValues(string(domain.SinkHistory))))

	// The failed append still marks the history timer.
	h.store.mu.Lock()
	h.store.historyErr = nil
	h.store.mu.Unlock()
	h.clock.Add(time.Second)
	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()

	_, history = h.store.counts()
	assert.Equal(t, 0, history)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.emissions.WithLabelValues(string(domain.SinkHistory))))

	h.clock.Add(15 * time.Second)
	h.disp.Dispatch(walkRef, gate, origin, 0)
	h.disp.Flush()

	_, history = h.store.counts()
	assert.Equal(t, 1, history)
}
