package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/speedwagon-io/envmon/internal/lib/logger/sl"
	"github.com/speedwagon-io/envmon/internal/model"
)

type stubToken struct {
	completed bool
	err       error
}

func (t *stubToken) Wait() bool                     { return t.completed }
func (t *stubToken) WaitTimeout(time.Duration) bool { return t.completed }
func (t *stubToken) Error() error                   { return t.err }

func (t *stubToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type stubPublisher struct {
	topic        string
	payload      interface{}
	token        *stubToken
	open         bool
	disconnected bool
}

func (p *stubPublisher) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	p.topic = topic
	p.payload = payload
	return p.token
}

func (p *stubPublisher) IsConnectionOpen() bool { return p.open }

func (p *stubPublisher) Disconnect(uint) { p.disconnected = true }

func TestMQTTForwarderPublishesThingSpeakPayload(t *testing.T) {
	pub := &stubPublisher{token: &stubToken{completed: true}, open: true}
	f := newMQTTForwarder(sl.Discard(), pub, "2844187", time.Second)

	if err := f.Push(context.Background(), model.Sample{Temperature: 23.5, Humidity: 40, AirQuality: 7}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if pub.topic != "channels/2844187/publish" {
		t.Fatalf("unexpected topic %q", pub.topic)
	}
	if pub.payload != "field1=23.5&field2=40.0&field3=7" {
		t.Fatalf("unexpected payload %v", pub.payload)
	}
	if err := f.Health(context.Background()); err != nil {
		t.Fatalf("expected healthy: %v", err)
	}

	f.Close()
	if !pub.disconnected {
		t.Fatalf("expected disconnect on close")
	}
}

func TestMQTTForwarderFailures(t *testing.T) {
	timedOut := newMQTTForwarder(sl.Discard(), &stubPublisher{token: &stubToken{}}, "1", time.Millisecond)
	if err := timedOut.Push(context.Background(), model.Sample{}); !errors.Is(err, ErrForward) {
		t.Fatalf("expected ErrForward on timeout, got %v", err)
	}

	rejected := newMQTTForwarder(sl.Discard(), &stubPublisher{token: &stubToken{completed: true, err: errors.New("not authorized")}}, "1", time.Second)
	if err := rejected.Push(context.Background(), model.Sample{}); !errors.Is(err, ErrForward) {
		t.Fatalf("expected ErrForward on publish error, got %v", err)
	}
	if err := rejected.Health(context.Background()); err == nil {
		t.Fatalf("expected unhealthy when connection is closed")
	}
}
