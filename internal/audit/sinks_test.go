package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type fakePublisher struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	p.topic, p.payload, p.qos, p.retained = topic, payload, qos, retained
	return nil
}

func TestMQTTSink_Write(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, "shopgate", 1)

	e := &Event{ID: "aud-1", Action: ActionLoginFailed, Username: "alice", Source: "api"}
	if err := sink.Write(context.Background(), e); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if pub.topic != "shopgate/events/auth/login.failed" {
		t.Errorf("topic = %q", pub.topic)
	}
	if pub.qos != 1 || pub.retained {
		t.Errorf("qos, retained = %d, %v; want 1, false", pub.qos, pub.retained)
	}

	var got Event
	if err := json.Unmarshal(pub.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Username != "alice" || got.Action != ActionLoginFailed {
		t.Errorf("payload = %+v", got)
	}
}

type fakePointWriter struct {
	measurement string
	tags        map[string]string
	fields      map[string]interface{}
	ts          time.Time
}

func (w *fakePointWriter) WritePointWithTime(m string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	w.measurement, w.tags, w.fields, w.ts = m, tags, fields, ts
}

func TestInfluxSink_Write(t *testing.T) {
	w := &fakePointWriter{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := NewInfluxSink(w).Write(context.Background(), &Event{
		Action: ActionLoginSucceeded, Username: "alice", Source: "api", CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if w.measurement != InfluxMeasurement {
		t.Errorf("measurement = %q, want %q", w.measurement, InfluxMeasurement)
	}
	if w.tags["action"] != ActionLoginSucceeded {
		t.Errorf("action tag = %q", w.tags["action"])
	}
	if _, tagged := w.tags["username"]; tagged {
		t.Error("username must not be a tag")
	}
	if w.fields["username"] != "alice" || w.fields["count"] != 1 {
		t.Errorf("fields = %v", w.fields)
	}
	if !w.ts.Equal(at) {
		t.Errorf("timestamp = %v, want %v", w.ts, at)
	}
}
