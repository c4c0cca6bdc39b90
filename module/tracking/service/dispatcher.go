package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/mmcloughlin/geohash"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/repository/database"
	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/internal/repository/publisher"
)

type DispatcherConfig struct {
	GeohashPrecision  uint          `yaml:"geohash_precision"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		GeohashPrecision:  10,
		WriteTimeout:      10 * time.Second,
		ReconnectInterval: 2 * time.Second,
	}
}

// Dispatcher fans admitted fixes out to the live transport and the two
// store sinks. Every emission runs on its own goroutine so a slow or failing
// sink never delays the caller or another sink.
type Dispatcher struct {
	live    publisher.LiveTransport
	store   database.PositionStore
	cfg     DispatcherConfig
	clock   clock.Clock
	metrics *Metrics
	logger  *zap.Logger

	reconnectLimit *rate.Limiter
	reconnecting   atomic.Bool
	inflight       sync.WaitGroup
}

func NewDispatcher(
	live publisher.LiveTransport,
	store database.PositionStore,
	cfg DispatcherConfig,
	clk clock.Clock,
	metrics *Metrics,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		live:           live,
		store:          store,
		cfg:            cfg,
		clock:          clk,
		metrics:        metrics,
		logger:         logger.Named("dispatcher"),
		reconnectLimit: rate.NewLimiter(rate.Every(cfg.ReconnectInterval), 1),
	}
}

// Dispatch emits one admitted fix to every sink the gate says is due. The
// gate is marked when an emission is issued, not when it completes.
func (d *Dispatcher) Dispatch(ref domain.SessionRef, gate *ThrottleGate, fix domain.PositionFix, cumulative float64) {
	now := d.clock.Now()

	if gate.IsDue(domain.SinkLive, now) {
		if d.live.Connected() {
			gate.MarkEmitted(domain.SinkLive, now)
			d.sendLive(ref, fix)
		} else {
			d.metrics.dropped()
			d.reconnect()
		}
	}

	if gate.IsDue(domain.SinkCurrentPosition, now) {
		gate.MarkEmitted(domain.SinkCurrentPosition, now)
		d.writeCurrentPosition(ref, fix, cumulative, now)
	}

	if gate.IsDue(domain.SinkHistory, now) {
		gate.MarkEmitted(domain.SinkHistory, now)
		d.appendHistory(ref, fix)
	}
}

// Flush blocks until every emission issued so far has finished.
func (d *Dispatcher) Flush() {
	d.inflight.Wait()
}

func (d *Dispatcher) sendLive(ref domain.SessionRef, fix domain.PositionFix) {
	pos := &domain.LivePosition{
		SessionID: ref.SessionID,
		Lat:       fix.Lat,
		Lon:       fix.Lon,
		Accuracy:  fix.Accuracy,
	}
	d.issue(domain.SinkLive, ref.SessionID, func(ctx context.Context) error {
		return d.live.Send(ctx, pos)
	})
}

func (d *Dispatcher) writeCurrentPosition(ref domain.SessionRef, fix domain.PositionFix, cumulative float64, now time.Time) {
	pos := &domain.CurrentPosition{
		UserID:    ref.UserID,
		Lat:       fix.Lat,
		Lon:       fix.Lon,
		Accuracy:  fix.Accuracy,
		Geohash:   geohash.EncodeWithPrecision(fix.Lat, fix.Lon, d.cfg.GeohashPrecision),
		Distance:  cumulative,
		UpdatedAt: now,
	}
	d.issue(domain.SinkCurrentPosition, ref.SessionID, func(ctx context.Context) error {
		return d.store.WriteCurrentPosition(ctx, pos)
	})
}

func (d *Dispatcher) appendHistory(ref domain.SessionRef, fix domain.PositionFix) {
	point := &domain.HistoryPoint{
		ID:         uuid.NewString(),
		SessionID:  ref.SessionID,
		Lat:        fix.Lat,
		Lon:        fix.Lon,
		Accuracy:   fix.Accuracy,
		Speed:      fix.Speed,
		CapturedAt: fix.CapturedAt,
	}
	d.issue(domain.SinkHistory, ref.SessionID, func(ctx context.Context) error {
		return d.store.AppendHistory(ctx, ref.SessionID, point)
	})
}

// issue runs write in the background. Failures are logged and counted; the
// next due fix is the only retry.
func (d *Dispatcher) issue(sink domain.SinkID, sessionID string, write func(ctx context.Context) error) {
	d.metrics.emitted(sink)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
		defer cancel()
		if err := write(ctx); err != nil {
			d.metrics.failed(sink)
			d.logger.Warn("sink write failed",
				zap.String("sink", string(sink)),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}()
}

// reconnect starts at most one background connection attempt at a time,
// and no more often than the configured interval.
func (d *Dispatcher) reconnect() {
	if !d.reconnectLimit.AllowN(d.clock.Now(), 1) {
		return
	}
	if !d.reconnecting.CompareAndSwap(false, true) {
		return
	}
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer d.reconnecting.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
		defer cancel()
		if err := d.live.Connect(ctx); err != nil {
			d.logger.Warn("live transport reconnect failed", zap.Error(err))
			return
		}
		d.logger.Info("live transport reconnected")
	}()
}
