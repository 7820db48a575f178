package alert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/speedwagon-io/envmon/internal/lib/logger/sl"
)

type stubNotifier struct {
	bodies []string
	err    error
}

func (s *stubNotifier) Notify(_ context.Context, body string) (string, error) {
	s.bodies = append(s.bodies, body)
	if s.err != nil {
		return "", s.err
	}
	return "SM123", nil
}

var fixedNow = time.Date(2025, 7, 1, 14, 0, 0, 0, time.UTC)

func newTestDispatcher(n Notifier, last time.Time) *Dispatcher {
	return NewDispatcher(sl.Discard(), n, 30.0, time.Hour,
		WithClock(func() time.Time { return fixedNow }),
		WithState(State{LastSentAt: last}),
	)
}

func TestEvaluateFiresAfterCooldown(t *testing.T) {
	n := &stubNotifier{}
	d := newTestDispatcher(n, fixedNow.Add(-3601*time.Second))

	decision, err := d.Evaluate(context.Background(), 31.0)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision != DecisionSent {
		t.Fatalf("expected sent, got %s", decision)
	}
	if !d.State().LastSentAt.Equal(fixedNow) {
		t.Fatalf("expected last_sent_at=now, got %s", d.State().LastSentAt)
	}
	if len(n.bodies) != 1 || !strings.Contains(n.bodies[0], "31.0°C") {
		t.Fatalf("unexpected messages: %v", n.bodies)
	}
}

func TestEvaluateSuppressedWithinCooldown(t *testing.T) {
	n := &stubNotifier{}
	last := fixedNow.Add(-100 * time.Second)
	d := newTestDispatcher(n, last)

	decision, err := d.Evaluate(context.Background(), 35.0)
	if err != nil {
		t.Fatalf("suppression is not an error: %v", err)
	}
	if decision != DecisionSuppressed {
		t.Fatalf("expected suppressed, got %s", decision)
	}
	if !d.State().LastSentAt.Equal(last) {
		t.Fatalf("last_sent_at must be unchanged, got %s", d.State().LastSentAt)
	}
	if len(n.bodies) != 0 {
		t.Fatalf("no message expected, got %v", n.bodies)
	}
}

func TestEvaluateBelowThreshold(t *testing.T) {
	n := &stubNotifier{}
	d := newTestDispatcher(n, time.Time{})

	for _, temp := range []float64{20, 30.0} {
		decision, err := d.Evaluate(context.Background(), temp)
		if err != nil || decision != DecisionBelowThreshold {
			t.Fatalf("temp %v: expected below threshold, got %s %v", temp, decision, err)
		}
	}
	if len(n.bodies) != 0 {
		t.Fatalf("no message expected, got %v", n.bodies)
	}
}

func TestEvaluateFirstAlertAfterStart(t *testing.T) {
	n := &stubNotifier{}
	d := NewDispatcher(sl.Discard(), n, 30.0, time.Hour, WithClock(func() time.Time { return fixedNow }))

	if !d.Armed() {
		t.Fatalf("dispatcher must start armed")
	}
	if decision, _ := d.Evaluate(context.Background(), 30.5); decision != DecisionSent {
		t.Fatalf("expected sent, got %s", decision)
	}
	if d.Armed() {
		t.Fatalf("dispatcher must be cooling after a send")
	}
	if decision, _ := d.Evaluate(context.Background(), 40); decision != DecisionSuppressed {
		t.Fatalf("expected suppressed, got %s", decision)
	}
}

func TestEvaluateExactCooldownBoundaryFires(t *testing.T) {
	n := &stubNotifier{}
	d := newTestDispatcher(n, fixedNow.Add(-time.Hour))

	if decision, _ := d.Evaluate(context.Background(), 31); decision != DecisionSent {
		t.Fatalf("expected sent at exactly the cooldown, got %s", decision)
	}
}

func TestEvaluateGatewayFailureConsumesCooldown(t *testing.T) {
	n := &stubNotifier{err: errors.New("503 from gateway")}
	d := newTestDispatcher(n, time.Time{})

	decision, err := d.Evaluate(context.Background(), 33)
	if decision != DecisionFailed {
		t.Fatalf("expected failed, got %s", decision)
	}
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}
	if !d.State().LastSentAt.Equal(fixedNow) {
		t.Fatalf("cooldown should be consumed optimistically, got %s", d.State().LastSentAt)
	}

	n.err = nil
	if decision, _ := d.Evaluate(context.Background(), 33); decision != DecisionSuppressed {
		t.Fatalf("expected suppressed after failed send, got %s", decision)
	}
}

func TestDecisionString(t *testing.T) {
	if DecisionSent.String() != "sent" || Decision(99).String() != "unknown" {
		t.Fatalf("unexpected decision strings")
	}
}
