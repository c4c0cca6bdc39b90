package service

import (
	"time"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

type ThrottleConfig struct {
	Live            time.Duration `yaml:"live"`
	CurrentPosition time.Duration `yaml:"current_position"`
	History         time.Duration `yaml:"history"`
}

func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		Live:            0,
		CurrentPosition: 5 * time.Second,
		History:         15 * time.Second,
	}
}

func (c ThrottleConfig) interval(sink domain.SinkID) time.Duration {
	switch sink {
	case domain.SinkLive:
		return c.Live
	case domain.SinkCurrentPosition:
		return c.CurrentPosition
	case domain.SinkHistory:
		return c.History
	}
	return 0
}

// ThrottleGate rate limits emission per sink. The timestamps it reads and
// writes belong to one session; the gate itself holds no per-session state.
type ThrottleGate struct {
	cfg      ThrottleConfig
	lastEmit map[domain.SinkID]time.Time
}

func NewThrottleGate(cfg ThrottleConfig, lastEmit map[domain.SinkID]time.Time) *ThrottleGate {
	if lastEmit == nil {
		lastEmit = make(map[domain.SinkID]time.Time)
	}
	return &ThrottleGate{cfg: cfg, lastEmit: lastEmit}
}

// IsDue reports whether strictly more than the sink's interval has passed
// since its last emission. A sink that never emitted is always due.
func (g *ThrottleGate) IsDue(sink domain.SinkID, now time.Time) bool {
	interval := g.cfg.interval(sink)
	if interval <= 0 {
		return true
	}
	last, ok := g.lastEmit[sink]
	if !ok {
		return true
	}
	return now.Sub(last) > interval
}

func (g *ThrottleGate) MarkEmitted(sink domain.SinkID, now time.Time) {
	g.lastEmit[sink] = now
}
