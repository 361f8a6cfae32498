package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher is the MQTT publish surface MQTTSink needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes each event as JSON to {prefix}/events/auth/{action}.
type MQTTSink struct {
	pub    Publisher
	prefix string
	qos    byte
}

// NewMQTTSink creates a sink publishing under topicPrefix at qos.
func NewMQTTSink(pub Publisher, topicPrefix string, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, prefix: topicPrefix, qos: qos}
}

// Topic returns the topic an action is published on.
func (s *MQTTSink) Topic(action string) string {
	return s.prefix + "/events/auth/" + action
}

// Write implements Sink.
func (s *MQTTSink) Write(_ context.Context, e *Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling audit event: %w", err)
	}
	return s.pub.Publish(s.Topic(e.Action), payload, s.qos, false)
}

// PointWriter is the InfluxDB write surface InfluxSink needs.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time)
}

// InfluxMeasurement is the measurement auth events are written to.
const InfluxMeasurement = "auth_events"

// InfluxSink writes one point per event, tagged by action and source.
// Usernames go in a field to keep series cardinality bounded.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Write implements Sink. Writes are batched by the client, so errors
// surface through the client's error callback rather than here.
func (s *InfluxSink) Write(_ context.Context, e *Event) error {
	tags := map[string]string{
		"action": e.Action,
		"source": e.Source,
	}
	fields := map[string]interface{}{
		"count": 1,
	}
	if e.Username != "" {
		fields["username"] = e.Username
	}
	s.w.WritePointWithTime(InfluxMeasurement, tags, fields, e.CreatedAt)
	return nil
}
