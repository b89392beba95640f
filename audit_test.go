package accountauth

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func (s *gateSink) Open() {
	close(s.gate)
}

func TestAuditDisabledDispatcherIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled audit config produced a dispatcher")
	}

	// All operations are no-ops on the nil dispatcher.
	d.Emit(context.Background(), newAuditEvent(auditEventLogout, true))
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports drops")
	}
}

func TestAuditDispatcherDelivers(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	sent := newAuditEvent(auditEventLoginSuccess, true)
	sent.Email = testEmail
	d.Emit(context.Background(), sent)

	select {
	case got := <-sink.Events():
		if got.EventType != auditEventLoginSuccess || got.Email != testEmail {
			t.Fatalf("delivered event = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	sink := newGateSink()
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event is consumed by the blocked worker, one fills the buffer;
	// everything after that is dropped.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), newAuditEvent(auditEventLogout, true))
	}
	if d.Dropped() == 0 {
		t.Fatal("no events dropped with a full buffer")
	}

	sink.Open()
	d.Close()
}

func TestAuditDispatcherCloseDrains(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 64}, sink)

	const n = 32
	for i := 0; i < n; i++ {
		d.Emit(context.Background(), newAuditEvent(auditEventLogout, true))
	}
	d.Close()

	if got := sink.Count(); got != n {
		t.Fatalf("delivered %d of %d buffered events after Close", got, n)
	}

	// Emit after Close is discarded silently, and a second Close is safe.
	d.Emit(context.Background(), newAuditEvent(auditEventLogout, true))
	d.Close()
	if got := sink.Count(); got != n {
		t.Fatalf("event accepted after Close, count = %d", got)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	event := newAuditEvent(auditEventLoginFailure, false)
	event.Email = testEmail
	event.Metadata = map[string]string{"reason": "unknown_email"}
	sink.Emit(context.Background(), event)

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("sink output is not one JSON line: %v", err)
	}
	if decoded.EventType != auditEventLoginFailure || decoded.Email != testEmail {
		t.Errorf("decoded event = %+v", decoded)
	}
	if decoded.Metadata["reason"] != "unknown_email" {
		t.Errorf("metadata lost: %v", decoded.Metadata)
	}
}

func TestEngineEmitsAuditEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit = AuditConfig{Enabled: true, BufferSize: 64}
	sink := NewChannelSink(64)

	h := newTestHarnessWithOptions(t, cfg, func(b *Builder) { b.WithAuditSink(sink) })
	b := newBrowser()
	h.registerAndActivate(t, b)
	h.login(t, b, false)

	// Stop the engine so the dispatcher drains before we inspect.
	h.engine.Close()

	types := map[string]AuditEvent{}
	for {
		select {
		case event := <-sink.Events():
			types[event.EventType] = event
			continue
		default:
		}
		break
	}

	for _, want := range []string{auditEventRegisterSuccess, auditEventActivationSuccess, auditEventLoginSuccess} {
		if _, ok := types[want]; !ok {
			t.Errorf("no %s event emitted, got %v", want, eventTypeList(types))
		}
	}
	login := types[auditEventLoginSuccess]
	if login.Email != testEmail {
		t.Errorf("login event email = %q", login.Email)
	}
	if login.IP != "203.0.113.7" {
		t.Errorf("login event ip = %q", login.IP)
	}
	if login.Timestamp.IsZero() || login.EventID == "" {
		t.Errorf("login event missing id or timestamp: %+v", login)
	}
}

func eventTypeList(m map[string]AuditEvent) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
