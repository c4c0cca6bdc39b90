package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

func TestThrottleGate_StrictInterval(t *testing.T) {
	g := NewThrottleGate(DefaultThrottleConfig(), nil)
	start := time.UnixMilli(1715003456000)

	assert.True(t, g.IsDue(domain.SinkCurrentPosition, start), "never emitted sinks are due")
	g.MarkEmitted(domain.SinkCurrentPosition, start)

	assert.False(t, g.IsDue(domain.SinkCurrentPosition, start.Add(4999*time.Millisecond)))
	assert.False(t, g.IsDue(domain.SinkCurrentPosition, start.Add(5000*time.Millisecond)))
	assert.True(t, g.IsDue(domain.SinkCurrentPosition, start.Add(5001*time.Millisecond)))
}

func TestThrottleGate_HistoryInterval(t *testing.T) {
	g := NewThrottleGate(DefaultThrottleConfig(), nil)
	start := time.UnixMilli(1715003456000)
	g.MarkEmitted(domain.SinkHistory, start)

	assert.False(t, g.IsDue(domain.SinkHistory, start.Add(15*time.Second)))
	assert.True(t, g.IsDue(domain.SinkHistory, start.Add(15*time.Second+time.Millisecond)))
}

func TestThrottleGate_LiveIsUnthrottled(t *testing.T) {
	g := NewThrottleGate(DefaultThrottleConfig(), nil)
	now := time.UnixMilli(1715003456000)
	g.MarkEmitted(domain.SinkLive, now)

	assert.True(t, g.IsDue(domain.SinkLive, now))
}

func TestThrottleGate_SinksAreIndependent(t *testing.T) {
	lastEmit := make(map[domain.SinkID]time.Time)
	g := NewThrottleGate(DefaultThrottleConfig(), lastEmit)
	start := time.UnixMilli(1715003456000)

	g.MarkEmitted(domain.SinkCurrentPosition, start)

	assert.True(t, g.IsDue(domain.SinkHistory, start.Add(time.Second)))
	assert.False(t, g.IsDue(domain.SinkCurrentPosition, start.Add(time.Second)))
	assert.Equal(t, start, lastEmit[domain.SinkCurrentPosition], "gate writes through to session state")
	_, ok := lastEmit[domain.SinkHistory]
	assert.False(t, ok)
}
