package producer

import (
	"testing"
	"time"

	"github.com/boyangli/sentinelmap-positioner/config"
	"github.com/boyangli/sentinelmap-positioner/models"
	"github.com/google/uuid"
)

func TestBuildMessage(t *testing.T) {
	kp := &KafkaProducer{
		config:    &config.KafkaConfig{Topic: "positions"},
		sessionID: "session-42",
		now:       func() time.Time { return time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC) },
	}

	radius := 0.75
	positions := []models.DetectedObjectPosition{
		{Latitude: 52.1, Longitude: 5.1, ID: 3, Type: "human", LocationRadius: &radius},
		{Latitude: 52.2, Longitude: 5.2, ID: 4, Type: "human"},
	}
	readAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	msg, err := kp.buildMessage(positions, 17, readAt)
	if err != nil {
		t.Fatalf("buildMessage failed: %v", err)
	}

	if *msg.TopicPartition.Topic != "positions" {
		t.Errorf("Expected topic 'positions', got '%s'", *msg.TopicPartition.Topic)
	}
	if string(msg.Key) != "session-42" {
		t.Errorf("Expected session key, got '%s'", msg.Key)
	}

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["frame_index"] != "17" || headers["object_count"] != "2" || headers["session_id"] != "session-42" {
		t.Errorf("Unexpected headers %v", headers)
	}

	frame, err := models.FrameFromJSON(msg.Value)
	if err != nil {
		t.Fatalf("Payload is not a frame: %v", err)
	}
	if frame.FrameIndex != 17 || frame.SessionID != "session-42" {
		t.Errorf("Unexpected frame %+v", frame)
	}
	if frame.FrameTimeStamp != "2024-05-01T12:00:00Z" || frame.SentTimeStamp != "2024-05-01T12:00:01Z" {
		t.Errorf("Unexpected timestamps %s / %s", frame.FrameTimeStamp, frame.SentTimeStamp)
	}
	if len(frame.DetectedObjects) != 2 || frame.DetectedObjects[1].LocationRadius != nil {
		t.Errorf("Unexpected positions %+v", frame.DetectedObjects)
	}
}

func TestGetMetrics(t *testing.T) {
	kp := &KafkaProducer{}
	kp.messagesSent.Add(10)
	kp.messagesAcked.Add(7)
	kp.messagesFailed.Add(1)

	metrics := kp.GetMetrics()
	if metrics["frames_pending"] != 2 {
		t.Errorf("Expected 2 pending frames, got %d", metrics["frames_pending"])
	}
	if metrics["frames_sent"] != 10 || metrics["frames_acked"] != 7 || metrics["frames_failed"] != 1 {
		t.Errorf("Unexpected metrics %v", metrics)
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == b {
		t.Errorf("Expected unique session ids")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("Expected a UUID, got %s", a)
	}
}

func TestProducerConfigMap(t *testing.T) {
	cfg := &config.KafkaConfig{
		BootstrapServers: "broker:9093",
		SecurityProtocol: "SASL_SSL",
		SASLMechanism:    "SCRAM-SHA-512",
		SASLUsername:     "positioner",
		SASLPassword:     "secret",
		Acks:             "all",
	}

	cm, err := producerConfigMap(cfg)
	if err != nil {
		t.Fatalf("producerConfigMap failed: %v", err)
	}
	if (*cm)["sasl.username"] != "positioner" || (*cm)["sasl.mechanism"] != "SCRAM-SHA-512" {
		t.Errorf("Expected SASL credentials, got %v", *cm)
	}
	if (*cm)["bootstrap.servers"] != "broker:9093" || (*cm)["enable.idempotence"] != true {
		t.Errorf("Unexpected base settings %v", *cm)
	}

	cfg.SecurityProtocol = "PLAINTEXT"
	cm, err = producerConfigMap(cfg)
	if err != nil {
		t.Fatalf("producerConfigMap failed: %v", err)
	}
	if _, ok := (*cm)["sasl.password"]; ok {
		t.Errorf("Expected no SASL settings for PLAINTEXT")
	}
}
