package events

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

func testEvent() MarkEvent {
	return NewMarkEvent("001", "Alice", "2024-01-01", "09:00:00", 0.1, []float64{1, 2, 3, 4},
		time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
}

func TestNewMarkEvent_AssignsUniqueIDs(t *testing.T) {
	a, b := testEvent(), testEvent()
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.AddListener()
	ch2 := b.AddListener()

	if err := b.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	for i, ch := range []chan MarkEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.IdentityID != "001" {
				t.Errorf("listener %d: unexpected event %+v", i, ev)
			}
		default:
			t.Errorf("listener %d: expected an event", i)
		}
	}

	b.RemoveListener(ch1)
	if _, ok := <-ch1; ok {
		t.Error("expected removed listener channel to be closed")
	}
	if b.Listeners() != 1 {
		t.Errorf("expected 1 listener, got %d", b.Listeners())
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()
	ch := b.AddListener()

	b.Close()
	if _, ok := <-ch; ok {
		t.Error("expected listener channel to be closed")
	}
	if b.Listeners() != 0 {
		t.Errorf("expected no listeners, got %d", b.Listeners())
	}

	// Removing an already closed listener must not panic.
	b.RemoveListener(ch)

	late := b.AddListener()
	if _, ok := <-late; ok {
		t.Error("expected listener added after Close to be closed")
	}
	if err := b.Notify(context.Background(), testEvent()); err != nil {
		t.Errorf("Notify() after Close error: %v", err)
	}
}

func TestBroadcaster_FullListenerDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	ch := b.AddListener()

	done := make(chan struct{})
	go func() {
		for range cap(ch) + 10 {
			_ = b.Notify(context.Background(), testEvent())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full listener")
	}
	if len(ch) != cap(ch) {
		t.Errorf("expected a full buffer, got %d/%d", len(ch), cap(ch))
	}
}

func TestGreeter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewGreeter(&buf).Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if buf.String() != "Welcome to class, Alice\n" {
		t.Errorf("unexpected greeting %q", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestGreeter_WriteError(t *testing.T) {
	if err := NewGreeter(failingWriter{}).Notify(context.Background(), testEvent()); err == nil {
		t.Error("expected error")
	}
}

func TestMulti(t *testing.T) {
	var calls []string
	record := func(name string, err error) Notifier {
		return NotifierFunc(func(context.Context, MarkEvent) error {
			calls = append(calls, name)
			return err
		})
	}
	errA := errors.New("a failed")
	errC := errors.New("c failed")

	err := Multi{record("a", errA), nil, record("b", nil), record("c", errC)}.Notify(context.Background(), testEvent())
	if len(calls) != 3 {
		t.Errorf("expected all notifiers to run, got %v", calls)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Errorf("expected both failures joined, got %v", err)
	}

	if err := (Multi{}).Notify(context.Background(), testEvent()); err != nil {
		t.Errorf("empty Multi should succeed, got %v", err)
	}
}

type fakeKafkaWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Notify(t *testing.T) {
	w := &fakeKafkaWriter{}
	p := &KafkaPublisher{writer: w, topic: "attendance-marks"}

	ev := testEvent()
	if err := p.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "001" {
		t.Errorf("expected key 001, got %q", msg.Key)
	}

	var decoded MarkEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if decoded.ID != ev.ID || decoded.DisplayName != "Alice" || decoded.Time != "09:00:00" {
		t.Errorf("unexpected payload %+v", decoded)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != ev.ID {
		t.Errorf("expected event-id header, got %+v", msg.Headers)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("expected writer to be closed, err %v", err)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &KafkaPublisher{writer: &fakeKafkaWriter{err: boom}, topic: "t"}
	if err := p.Notify(context.Background(), testEvent()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped write error, got %v", err)
	}
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "t"); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, ""); err == nil {
		t.Error("expected error without topic")
	}
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "attendance-marks")
	if err != nil {
		t.Fatalf("NewKafkaPublisher() error: %v", err)
	}
	_ = p.Close()
}
