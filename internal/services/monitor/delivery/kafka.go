package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lifesignal/monitor/internal/platform/timeouts"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes deliveries as JSON to a Kafka topic, keyed by dedupe
// key so repeats of one message land on the same partition.
type KafkaSink struct {
	topic  string
	writer messageWriter
}

// NewKafkaSink returns a synchronous producer for topic.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	var addrs []string
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	return newKafkaSink(topic, &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}), nil
}

func newKafkaSink(topic string, w messageWriter) *KafkaSink {
	return &KafkaSink{topic: topic, writer: w}
}

func (s *KafkaSink) Name() string { return "kafka:" + s.topic }

// Deliver publishes d and waits for the broker acknowledgement.
func (s *KafkaSink) Deliver(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.KafkaWrite)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(d.DedupeKey),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(d.Kind)},
			{Key: "category", Value: []byte(d.Category)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
