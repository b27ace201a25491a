package producer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boyangli/sentinelmap-positioner/config"
	"github.com/boyangli/sentinelmap-positioner/models"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
)

// KafkaProducer publishes frame payloads to a topic. It implements positioner.Sink.
type KafkaProducer struct {
	producer     *kafka.Producer
	config       *config.KafkaConfig
	deliveryChan chan kafka.Event
	sessionID    string
	now          func() time.Time

	// Metrics
	messagesSent   atomic.Int64
	messagesAcked  atomic.Int64
	messagesFailed atomic.Int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	maxRetries  int
	baseBackoff time.Duration
}

// producerConfigMap translates cfg into librdkafka settings
func producerConfigMap(cfg *config.KafkaConfig) (*kafka.ConfigMap, error) {
	producerConfig := &kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers,
		"security.protocol": cfg.SecurityProtocol,

		"compression.type":                      cfg.CompressionType,
		"acks":                                  cfg.Acks,
		"max.in.flight.requests.per.connection": cfg.MaxInFlight,
		"linger.ms":                             cfg.LingerMS,
		"batch.size":                            cfg.BatchSize,

		// Frames of one session stay ordered per partition
		"enable.idempotence": true,

		"request.timeout.ms":  30000,
		"delivery.timeout.ms": 120000,
	}
	if cfg.UsesSASL() {
		sasl := []struct{ key, value string }{
			{"sasl.mechanism", cfg.SASLMechanism},
			{"sasl.username", cfg.SASLUsername},
			{"sasl.password", cfg.SASLPassword},
		}
		for _, kv := range sasl {
			if err := producerConfig.SetKey(kv.key, kv.value); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", kv.key, err)
			}
		}
	}
	return producerConfig, nil
}

// NewKafkaProducer creates a producer tagging every frame with sessionID
func NewKafkaProducer(cfg *config.KafkaConfig, sessionID string) (*KafkaProducer, error) {
	producerConfig, err := producerConfigMap(cfg)
	if err != nil {
		return nil, err
	}

	p, err := kafka.NewProducer(producerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	if sessionID == "" {
		sessionID = NewSessionID()
	}

	ctx, cancel := context.WithCancel(context.Background())
	kp := &KafkaProducer{
		producer:     p,
		config:       cfg,
		deliveryChan: make(chan kafka.Event, 10000),
		sessionID:    sessionID,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
		maxRetries:   cfg.MaxRetries,
		baseBackoff:  100 * time.Millisecond,
	}

	kp.wg.Add(1)
	go kp.handleDeliveryReports()

	log.Printf("✅ Kafka producer initialized - Topic: %s, Servers: %s, Session: %s", cfg.Topic, cfg.BootstrapServers, sessionID)
	return kp, nil
}

func (kp *KafkaProducer) handleDeliveryReports() {
	defer kp.wg.Done()

	for {
		select {
		case <-kp.ctx.Done():
			log.Println("Delivery report handler shutting down")
			return
		case e := <-kp.deliveryChan:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}

			if m.TopicPartition.Error != nil {
				kp.messagesFailed.Add(1)
				log.Printf("❌ Delivery failed: %v (offset: %v)", m.TopicPartition.Error, m.TopicPartition.Offset)
			} else {
				acked := kp.messagesAcked.Add(1)
				if acked%1000 == 0 {
					log.Printf("✅ Frame delivered [%d/%d] - Partition: %d, Offset: %v",
						acked, kp.messagesSent.Load(), m.TopicPartition.Partition, m.TopicPartition.Offset)
				}
			}
		}
	}
}

// Send publishes the positions of one frame, retrying retriable errors with
// exponential backoff.
func (kp *KafkaProducer) Send(positions []models.DetectedObjectPosition, frameIndex int, readAt time.Time) error {
	message, err := kp.buildMessage(positions, frameIndex, readAt)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= kp.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := kp.baseBackoff * time.Duration(1<<uint(attempt-1))
			log.Printf("🔄 Retry attempt %d/%d for frame %d after %v", attempt, kp.maxRetries, frameIndex, backoff)
			select {
			case <-kp.ctx.Done():
				return fmt.Errorf("producer closed while retrying frame %d: %w", frameIndex, lastErr)
			case <-time.After(backoff):
			}
		}

		err := kp.producer.Produce(message, kp.deliveryChan)
		if err == nil {
			kp.messagesSent.Add(1)
			return nil
		}
		lastErr = err

		var kafkaErr kafka.Error
		if errors.As(err, &kafkaErr) && !kafkaErr.IsRetriable() {
			kp.messagesFailed.Add(1)
			return fmt.Errorf("non-retriable error: %w", err)
		}
	}

	kp.messagesFailed.Add(1)
	return fmt.Errorf("failed after %d retries: %w", kp.maxRetries, lastErr)
}

// buildMessage keys frames by session so one camera session stays on one partition
func (kp *KafkaProducer) buildMessage(positions []models.DetectedObjectPosition, frameIndex int, readAt time.Time) (*kafka.Message, error) {
	frame := models.NewFrame(positions, frameIndex, readAt, kp.now())
	frame.SessionID = kp.sessionID

	payload, err := frame.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize frame %d: %w", frameIndex, err)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &kp.config.Topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(kp.sessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "session_id", Value: []byte(kp.sessionID)},
			{Key: "frame_index", Value: []byte(strconv.Itoa(frameIndex))},
			{Key: "object_count", Value: []byte(strconv.Itoa(len(positions)))},
		},
	}, nil
}

// Flush waits for all pending frames to be delivered
func (kp *KafkaProducer) Flush(timeout time.Duration) {
	log.Printf("🔄 Flushing producer (timeout: %v)...", timeout)
	remaining := kp.producer.Flush(int(timeout.Milliseconds()))
	if remaining > 0 {
		log.Printf("⚠️  %d frames still in queue after flush timeout", remaining)
	} else {
		log.Println("✅ All frames flushed successfully")
	}
}

// GetMetrics returns current producer metrics
func (kp *KafkaProducer) GetMetrics() map[string]int64 {
	sent := kp.messagesSent.Load()
	acked := kp.messagesAcked.Load()
	failed := kp.messagesFailed.Load()
	return map[string]int64{
		"frames_sent":    sent,
		"frames_acked":   acked,
		"frames_failed":  failed,
		"frames_pending": max(sent-acked-failed, 0),
	}
}

// LogMetrics prints current metrics
func (kp *KafkaProducer) LogMetrics() {
	metrics := kp.GetMetrics()
	log.Printf("📊 Kafka - Sent: %d | Acked: %d | Failed: %d | Pending: %d",
		metrics["frames_sent"],
		metrics["frames_acked"],
		metrics["frames_failed"],
		metrics["frames_pending"])
}

// Close flushes outstanding frames and shuts the producer down
func (kp *KafkaProducer) Close() {
	log.Println("🛑 Shutting down Kafka producer...")

	// Flush before stopping the report handler so the last acks are counted
	kp.Flush(30 * time.Second)
	kp.cancel()
	kp.wg.Wait()

	kp.producer.Close()

	kp.LogMetrics()
	log.Println("✅ Kafka producer closed")
}

// NewSessionID creates a unique id for one positioning session
func NewSessionID() string {
	return uuid.New().String()
}
