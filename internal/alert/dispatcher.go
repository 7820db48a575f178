// Package alert rate-limits high temperature notifications.
//
// The dispatcher is either Armed (cooldown elapsed since the last dispatch)
// or Cooling. Crossing the threshold while Armed sends one message and moves
// to Cooling; time alone moves it back. The only state kept is the time of
// the last dispatch, and it is not persisted: a restart re-arms it.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/speedwagon-io/envmon/internal/lib/logger/sl"
	"github.com/speedwagon-io/envmon/internal/model"
)

var ErrGateway = errors.New("alert gateway failed")

// Notifier delivers one text message and returns the gateway's message id.
type Notifier interface {
	Notify(ctx context.Context, body string) (string, error)
}

type Decision int

const (
	DecisionBelowThreshold Decision = iota
	DecisionSent
	DecisionSuppressed
	DecisionFailed
)

func (d Decision) String() string {
	switch d {
	case DecisionBelowThreshold:
		return "below_threshold"
	case DecisionSent:
		return "sent"
	case DecisionSuppressed:
		return "suppressed"
	case DecisionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type State struct {
	LastSentAt time.Time
}

func (s State) Armed(now time.Time, cooldown time.Duration) bool {
	return now.Sub(s.LastSentAt) >= cooldown
}

type Dispatcher struct {
	log       *slog.Logger
	notifier  Notifier
	threshold float64
	cooldown  time.Duration
	now       func() time.Time
	state     State
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithState(s State) Option {
	return func(d *Dispatcher) { d.state = s }
}

func NewDispatcher(log *slog.Logger, notifier Notifier, threshold float64, cooldown time.Duration, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:       log,
		notifier:  notifier,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Exceeds(temperature float64) bool {
	return temperature > d.threshold
}

func (d *Dispatcher) State() State {
	return d.state
}

func (d *Dispatcher) Armed() bool {
	return d.state.Armed(d.now(), d.cooldown)
}

// Evaluate decides whether temperature warrants a message and sends it.
// LastSentAt moves before the gateway answers, so a failed send still
// consumes the cooldown window.
func (d *Dispatcher) Evaluate(ctx context.Context, temperature float64) (Decision, error) {
	if !d.Exceeds(temperature) {
		return DecisionBelowThreshold, nil
	}

	now := d.now()
	if !d.state.Armed(now, d.cooldown) {
		d.log.Info("sms alert skipped, sent within cooldown",
			slog.Float64("temperature", temperature),
			slog.Time("last_sent_at", d.state.LastSentAt),
			slog.Duration("cooldown", d.cooldown),
		)
		return DecisionSuppressed, nil
	}

	d.state.LastSentAt = now

	id, err := d.notifier.Notify(ctx, Message(temperature))
	if err != nil {
		d.log.Error("failed to send sms alert",
			slog.Float64("temperature", temperature),
			sl.Err(err),
		)
		if !errors.Is(err, ErrGateway) {
			err = fmt.Errorf("%w: %w", ErrGateway, err)
		}
		return DecisionFailed, err
	}

	d.log.Info("sms alert sent",
		slog.Float64("temperature", temperature),
		slog.String("message_id", id),
	)
	return DecisionSent, nil
}

func Message(temperature float64) string {
	return fmt.Sprintf("ALERT: High Temperature Detected! Current Temp: %s°C", model.FormatFloat(temperature))
}
