// Package monitor runs the sequential acquire, alert, store and forward cycle.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/speedwagon-io/envmon/internal/acquire"
	"github.com/speedwagon-io/envmon/internal/alert"
	"github.com/speedwagon-io/envmon/internal/lib/logger/sl"
	"github.com/speedwagon-io/envmon/internal/metrics"
	"github.com/speedwagon-io/envmon/internal/model"
	"github.com/speedwagon-io/envmon/internal/sensor"
	"github.com/speedwagon-io/envmon/internal/telemetry"
)

var errStepPanicked = errors.New("step panicked")

type Acquirer interface {
	Acquire(ctx context.Context) (model.Reading, error)
}

// Recorder persists one reading.
type Recorder interface {
	Insert(ctx context.Context, reading model.Reading) error
}

type Dispatcher interface {
	Exceeds(temperature float64) bool
	Evaluate(ctx context.Context, temperature float64) (alert.Decision, error)
}

type Monitor struct {
	log        *slog.Logger
	acquirer   Acquirer
	indicator  sensor.Indicator
	dispatcher Dispatcher
	store      Recorder
	forwarder  telemetry.Forwarder
	metrics    *metrics.Metrics
	interval   time.Duration
	wait       acquire.WaitFunc
	closers    []io.Closer
	lastCycle  atomic.Int64
	now        func() time.Time
}

type Option func(*Monitor)

func WithWait(wait acquire.WaitFunc) Option {
	return func(m *Monitor) { m.wait = wait }
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithClosers registers hardware handles released by Close after the
// indicator and forwarder.
func WithClosers(closers ...io.Closer) Option {
	return func(m *Monitor) { m.closers = append(m.closers, closers...) }
}

func New(
	log *slog.Logger,
	acquirer Acquirer,
	indicator sensor.Indicator,
	dispatcher Dispatcher,
	st Recorder,
	forwarder telemetry.Forwarder,
	mtr *metrics.Metrics,
	interval time.Duration,
	opts ...Option,
) *Monitor {
	m := &Monitor{
		log:        log,
		acquirer:   acquirer,
		indicator:  indicator,
		dispatcher: dispatcher,
		store:      st,
		forwarder:  forwarder,
		metrics:    mtr,
		interval:   interval,
		wait:       acquire.Sleep,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes cycles back to back, sleeping interval after each one
// finishes, until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("starting monitor", slog.Duration("interval", m.interval))

	for {
		if ctx.Err() != nil {
			m.log.Info("context cancelled, stopping monitor")
			return
		}

		m.RunCycle(ctx)

		if err := m.wait(ctx, m.interval); err != nil {
			m.log.Info("context cancelled, stopping monitor")
			return
		}
	}
}

// RunCycle performs one cycle. It returns acquire.ErrSensorUnavailable when
// the cycle was abandoned before any downstream call.
func (m *Monitor) RunCycle(ctx context.Context) error {
	log := m.log.With(slog.String("cycle_id", uuid.NewString()))

	var (
		reading model.Reading
		err     error
	)
	if !m.step(log, "acquire", func() { reading, err = m.acquirer.Acquire(ctx) }) {
		err = errStepPanicked
	}
	if err != nil {
		log.Warn("cycle skipped", sl.Err(err))
		m.finish(metrics.CycleSkipped)
		if errors.Is(err, errStepPanicked) {
			return fmt.Errorf("%w: %w", acquire.ErrSensorUnavailable, err)
		}
		return err
	}

	if reading.AirQualityFaulted() {
		m.metrics.ADCFaults.Inc()
	}

	// A reading in hand is carried through to the forwarder even if an
	// interrupt arrives mid-cycle.
	ctx = context.WithoutCancel(ctx)

	above := m.dispatcher.Exceeds(reading.Temperature)

	m.step(log, "indicator", func() {
		if err := m.indicator.Set(above); err != nil {
			log.Warn("failed to set alert indicator", sl.Err(err))
		}
	})

	if above {
		m.step(log, "alert", func() {
			decision, err := m.dispatcher.Evaluate(ctx, reading.Temperature)
			m.metrics.Alerts.WithLabelValues(decision.String()).Inc()
			if err != nil {
				log.Error("alert dispatch failed", sl.Err(err))
			}
		})
	}

	m.step(log, "store", func() {
		if err := m.store.Insert(ctx, reading); err != nil {
			m.metrics.StoreErrors.Inc()
			log.Error("failed to store reading", sl.Err(err))
		}
	})

	m.step(log, "forward", func() {
		if err := m.forwarder.Push(ctx, reading.Sample()); err != nil {
			m.metrics.ForwardErrors.Inc()
			log.Error("failed to forward reading", sl.Err(err))
		}
	})

	log.Debug("cycle completed",
		slog.Bool("above_threshold", above),
		slog.Bool("adc_fault", reading.AirQualityFaulted()),
	)
	m.finish(metrics.CycleCompleted)
	return nil
}

// LastCycle reports when the most recent cycle finished, zero before the
// first one.
func (m *Monitor) LastCycle() time.Time {
	ns := m.lastCycle.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Close drives the indicator low and releases hardware and transport
// handles. Every handle is attempted; errors are joined.
func (m *Monitor) Close() error {
	var errs []error

	if err := m.indicator.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to release indicator: %w", err))
	}
	if err := m.forwarder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close forwarder: %w", err))
	}
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release %T: %w", c, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		m.log.Error("failed to release resources", sl.Err(err))
		return err
	}
	m.log.Info("resources released")
	return nil
}

func (m *Monitor) finish(outcome string) {
	at := m.now()
	m.lastCycle.Store(at.UnixNano())
	m.metrics.ObserveCycle(outcome, at)
}

// step runs fn and recovers a panic so the remaining steps still run. It
// reports false when fn panicked.
func (m *Monitor) step(log *slog.Logger, name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.StepPanics.WithLabelValues(name).Inc()
			log.Error("cycle step panicked",
				slog.String("step", name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			ok = false
		}
	}()

	fn()
	return true
}
