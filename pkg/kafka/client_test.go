package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"hospital-console-go/internal/event"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker down")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestEventSink_WritesKeyedMessages(t *testing.T) {
	w := &fakeWriter{}
	sink := &EventSink{writer: w, writeTimeout: time.Second}

	ch := make(chan event.Event, 2)
	ch <- event.Event{Type: event.AppointmentRequested, SessionID: "sess-1", Payload: map[string]string{"appointment_id": "apt_1"}, At: time.Now()}
	ch <- event.Event{Type: event.SessionEnded, SessionID: "sess-1", At: time.Now()}
	close(ch)

	sink.Run(context.Background(), ch)

	if len(w.msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(w.msgs))
	}
	first := w.msgs[0]
	if string(first.Key) != "sess-1" {
		t.Errorf("Key = %q, want sess-1", first.Key)
	}
	if len(first.Headers) != 1 || string(first.Headers[0].Value) != event.AppointmentRequested {
		t.Errorf("Headers = %+v", first.Headers)
	}
	var decoded event.Event
	if err := json.Unmarshal(first.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.Type != event.AppointmentRequested {
		t.Errorf("Type = %q", decoded.Type)
	}
}

func TestEventSink_WriteFailureDoesNotStop(t *testing.T) {
	w := &fakeWriter{fail: true}
	sink := &EventSink{writer: w, writeTimeout: time.Second}

	ch := make(chan event.Event, 2)
	ch <- event.Event{Type: event.ChatTyping}
	ch <- event.Event{Type: event.ChatTyping}
	close(ch)

	done := make(chan struct{})
	go func() {
		sink.Run(context.Background(), ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not drain the channel")
	}
	if err := sink.Close(); err != nil || !w.closed {
		t.Errorf("Close: %v closed=%v", err, w.closed)
	}
}

func TestEventSink_StopsOnContext(t *testing.T) {
	sink := &EventSink{writer: &fakeWriter{}, writeTimeout: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		sink.Run(ctx, make(chan event.Event))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run ignored cancelled context")
	}
}
