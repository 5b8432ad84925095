// Package control runs the cycle that samples a temperature, maps it to
// per-zone targets and writes them to the controller.
package control

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/unifanctl/internal/device"
	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/logger"
	"codeberg.org/mutker/unifanctl/internal/metrics"
	"codeberg.org/mutker/unifanctl/internal/policy"
	"codeberg.org/mutker/unifanctl/internal/protocol"
	"codeberg.org/mutker/unifanctl/internal/sensor"
	"codeberg.org/mutker/unifanctl/internal/state"
)

const DefaultInterval = 2 * time.Second

// Loop owns the per-zone bookkeeping between cycles. Cycles never overlap.
type Loop struct {
	transport device.Transport
	source    sensor.Source
	policy    policy.Policy
	layout    protocol.Layout

	interval   time.Duration
	hysteresis int

	store   state.Store
	metrics metrics.Collector
	log     logger.Logger
	now     func() time.Time

	state atomic.Int32

	mu        sync.Mutex
	lastSpeed map[protocol.Zone]int
}

type Option func(*Loop)

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		l.interval = d
	}
}

// WithHysteresis sets how far, in RPM, a new speed target must move from the
// last one sent before the speed report is written again.
func WithHysteresis(rpm int) Option {
	return func(l *Loop) {
		l.hysteresis = rpm
	}
}

func WithStore(s state.Store) Option {
	return func(l *Loop) {
		l.store = s
	}
}

func WithMetrics(m metrics.Collector) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

func WithLogger(log logger.Logger) Option {
	return func(l *Loop) {
		l.log = log
	}
}

func WithLayout(layout protocol.Layout) Option {
	return func(l *Loop) {
		l.layout = layout
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		l.now = now
	}
}

// New builds a loop. source may be nil in fixed mode; in quiet modes a nil
// source makes every cycle skip for lack of temperature data.
func New(transport device.Transport, source sensor.Source, p policy.Policy, opts ...Option) (*Loop, error) {
	errFactory := errors.New()

	if transport == nil {
		return nil, errFactory.New(ErrNoTransport)
	}

	l := &Loop{
		transport: transport,
		source:    source,
		policy:    p,
		layout:    protocol.UniFan,
		interval:  DefaultInterval,
		store:     state.Noop(),
		metrics:   metrics.Noop(),
		log:       logger.Nop(),
		now:       time.Now,
		lastSpeed: make(map[protocol.Zone]int, protocol.ZoneCount),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.interval <= 0 {
		return nil, errFactory.WithData(ErrInvalidOption, "interval must be positive")
	}
	if l.hysteresis < 0 {
		return nil, errFactory.WithData(ErrInvalidOption, "hysteresis must not be negative")
	}

	return l, nil
}

// State returns the current lifecycle stage.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Run cycles until ctx is cancelled. The first cycle runs immediately.
// Failures inside a cycle are logged and never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateStarting)) {
		return errors.New().WithData(ErrAlreadyActive, l.State().String())
	}

	l.log.Info().
		Str("mode", l.policy.Mode.String()).
		Dur("interval", l.interval).
		Int("speed_hysteresis", l.hysteresis).
		Msg("Starting control loop")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.state.Store(int32(StateRunning))
	for {
		l.logCycle(l.Cycle(ctx))

		select {
		case <-ctx.Done():
			l.state.Store(int32(StateStopping))
			l.log.Info().Msg("Stopping control loop")
			l.state.Store(int32(StateStopped))

			return nil
		case <-ticker.C:
		}
	}
}

func (l *Loop) logCycle(res Result, err error) {
	if err != nil {
		if e, ok := err.(errors.Error); ok {
			l.log.ErrorWithCode(e).Msg("Control cycle skipped")
		} else {
			l.log.Error().Err(err).Msg("Control cycle skipped")
		}

		return
	}

	l.log.Debug().
		Int("applied", len(res.Applied)).
		Int("failed", len(res.Failed)).
		Msg("Control cycle complete")
}

// Result summarises one cycle.
type Result struct {
	Temperature *sensor.Celsius
	Applied     []policy.Target
	Failed      []protocol.Zone
}

// Cycle samples the temperature, computes the targets and applies every
// enabled zone once. A zone that fails is not retried; the remaining zones
// are still attempted. The returned error is set only when the whole cycle
// was skipped.
func (l *Loop) Cycle(ctx context.Context) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res Result
	if err := l.reconnect(); err != nil {
		l.metrics.CycleCompleted(metrics.ResultSkipped)
		l.flushMetrics()

		return res, errors.New().Wrap(ErrCycleSkipped, err)
	}
	res.Temperature = l.readTemperature(ctx)

	targets, err := l.policy.Targets(res.Temperature)
	if err != nil {
		l.metrics.CycleCompleted(metrics.ResultSkipped)
		l.flushMetrics()

		return res, errors.New().Wrap(ErrCycleSkipped, err)
	}

	for _, target := range targets {
		if err := l.apply(ctx, target, res.Temperature); err != nil {
			// the controller may have lost manual mode, resend speed next time
			delete(l.lastSpeed, target.Zone)
			res.Failed = append(res.Failed, target.Zone)
			l.metrics.ZoneFailed(target.Zone)
			l.logZoneError(target.Zone, err)

			continue
		}
		res.Applied = append(res.Applied, target)
	}

	if len(res.Failed) > 0 {
		l.metrics.CycleCompleted(metrics.ResultPartial)
	} else {
		l.metrics.CycleCompleted(metrics.ResultApplied)
	}
	l.flushMetrics()

	return res, nil
}

// reconnect reopens a transport that reported a failed write. Every zone
// gets its speed report again afterwards since a power-cycled controller
// forgets the manual-mode channel mask.
func (l *Loop) reconnect() error {
	r, ok := l.transport.(device.Reconnector)
	if !ok || !r.Broken() {
		return nil
	}

	l.log.Info().Msg("Reconnecting to controller")
	if err := r.Reconnect(); err != nil {
		return err
	}
	clear(l.lastSpeed)
	l.log.Info().Msg("Controller reconnected")

	return nil
}

// ApplyOnce runs a single cycle and reports any zone failure as an error.
func (l *Loop) ApplyOnce(ctx context.Context) (Result, error) {
	res, err := l.Cycle(ctx)
	if err != nil {
		return res, err
	}
	if len(res.Failed) > 0 {
		return res, errors.New().WithData(ErrApplyZone, res.Failed)
	}

	return res, nil
}

// readTemperature returns nil in fixed mode and when the source fails.
func (l *Loop) readTemperature(ctx context.Context) *sensor.Celsius {
	if l.policy.Mode == policy.ModeFixed {
		return nil
	}
	if l.source == nil {
		l.log.Warn().Str("mode", l.policy.Mode.String()).Msg("No temperature source available")
		return nil
	}

	temp, err := l.source.Read(ctx)
	if err != nil {
		if e, ok := err.(errors.Error); ok {
			l.log.ErrorWithCode(e).Str("sensor", l.source.Name()).Msg("Failed to read temperature")
		} else {
			l.log.Error().Err(err).Str("sensor", l.source.Name()).Msg("Failed to read temperature")
		}

		return nil
	}

	l.metrics.ObserveTemperature(l.source.Name(), temp)
	l.log.Debug().Str("sensor", l.source.Name()).Float64("temperature", float64(temp)).Msg("Temperature read")

	return &temp
}

// apply writes the color report and commit for the zone, then the speed
// report when the target moved past the hysteresis band. Both reports are
// encoded before anything is written so a bad target leaves the zone untouched.
func (l *Loop) apply(ctx context.Context, target policy.Target, temp *sensor.Celsius) error {
	zone := target.Zone

	report, err := l.layout.Encode(zone, target.Color, target.Brightness)
	if err != nil {
		return err
	}

	var speedReport protocol.Report
	if l.speedChanged(zone, target.Speed) {
		if speedReport, err = l.layout.EncodeSpeed(zone, target.Speed); err != nil {
			return err
		}
	}

	if err := l.transport.Send(report); err != nil {
		return err
	}
	l.metrics.ReportSent(zone, metrics.KindColor)

	if err := l.transport.Commit(); err != nil {
		return err
	}

	if speedReport != nil {
		if err := l.transport.Send(speedReport); err != nil {
			return err
		}
		l.lastSpeed[zone] = target.Speed
		l.metrics.ReportSent(zone, metrics.KindSpeed)
	}
	l.metrics.ObserveTarget(zone, target.Speed)

	l.log.Debug().
		Int("zone", int(zone)).
		Str("color", target.Color.String()).
		Float64("brightness", target.Brightness).
		Int("speed", target.Speed).
		Msg("Zone applied")

	rec := &state.ZoneState{
		Zone:       zone,
		Color:      target.Color,
		Brightness: target.Brightness,
		Speed:      target.Speed,
		Mode:       l.policy.Mode.String(),
		AppliedAt:  l.now(),
	}
	if temp != nil {
		t := float64(*temp)
		rec.Temperature = &t
	}
	if err := l.store.Save(ctx, rec); err != nil {
		// the zone itself was applied
		l.log.Warn().Err(err).Int("zone", int(zone)).Msg("Failed to save zone state")
	}

	return nil
}

func (l *Loop) speedChanged(zone protocol.Zone, rpm int) bool {
	last, ok := l.lastSpeed[zone]
	if !ok {
		return true
	}

	diff := rpm - last
	if diff < 0 {
		diff = -diff
	}

	return diff > l.hysteresis
}

func (l *Loop) logZoneError(zone protocol.Zone, err error) {
	if e, ok := err.(errors.Error); ok {
		l.log.ErrorWithCode(e).Int("zone", int(zone)).Msg("Failed to apply zone")
		return
	}

	l.log.Error().Err(err).Int("zone", int(zone)).Msg("Failed to apply zone")
}

func (l *Loop) flushMetrics() {
	if err := l.metrics.Flush(); err != nil {
		l.log.Warn().Err(err).Msg("Failed to write metrics")
	}
}
