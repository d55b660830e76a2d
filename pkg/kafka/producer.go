package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Producer interface {
	Publish(ctx context.Context, key string, message interface{}) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer connects to the first reachable broker and makes sure the topic
// exists. When no broker answers it falls back to a producer that only logs.
func NewProducer(brokers []string, topic string) Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logrus.WithField("brokers", strings.Join(brokers, ",")).Info("Kafka producer configured")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := dialAny(ctx, brokers)
	if err != nil {
		logrus.WithError(err).Warn("Kafka connection failed, using mock producer instead")
		return &mockProducer{topic: topic}
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		logrus.WithError(err).Debug("Could not create topic (might already exist)")
	} else {
		logrus.WithField("topic", topic).Info("Created Kafka topic")
	}

	return &kafkaProducer{writer: writer, topic: topic}
}

func dialAny(ctx context.Context, brokers []string) (*kafka.Conn, error) {
	var lastErr error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no kafka brokers configured")
	}
	return nil, lastErr
}

// Publish writes message as JSON. Messages sharing a key land on one partition,
// so per-pair and per-event ordering is kept.
func (p *kafkaProducer) Publish(ctx context.Context, key string, message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: messageBytes,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	logrus.WithFields(logrus.Fields{"topic": p.topic, "key": key}).Debug("Message sent to Kafka")
	return nil
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// mockProducer для работы без Kafka
type mockProducer struct {
	topic string
}

func (m *mockProducer) Publish(ctx context.Context, key string, message interface{}) error {
	logrus.WithFields(logrus.Fields{"topic": m.topic, "key": key}).Infof("MOCK: %+v", message)
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}
