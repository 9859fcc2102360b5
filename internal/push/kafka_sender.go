package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/rhayalcantara/proyectos-sub001/pkg/log"
)

// notification is the record produced to the push topic.
type notification struct {
	UserID  string   `json:"user_id"`
	Payload *Payload `json:"payload"`
}

// KafkaSender dispatches push payloads to the notifications topic, where
// the push-delivery worker consumes them.
type KafkaSender struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

func NewKafkaSender(brokers, topic string, partitions int) (*KafkaSender, error) {
	// Ensure topic exists with desired partition count
	if err := ensureTopic(brokers, topic, partitions); err != nil {
		l := log.L()
		l.Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic (may already exist)")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	ks := &KafkaSender{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}

	go ks.deliveryReportHandler()

	return ks, nil
}

func ensureTopic(brokers, topic string, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		},
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}

	return nil
}

func (ks *KafkaSender) deliveryReportHandler() {
	l := log.With("push")
	for e := range ks.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				l.Warn().Err(ev.TopicPartition.Error).Msg("push dispatch delivery failed")
			}
		}
	}
	close(ks.doneCh)
}

func (ks *KafkaSender) Send(ctx context.Context, targetUserID string, payload *Payload) error {
	value, err := json.Marshal(&notification{UserID: targetUserID, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal push notification: %w", err)
	}

	// Key by target user for consistent partition assignment
	err = ks.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &ks.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(targetUserID),
		Value: value,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce push notification: %w", err)
	}

	return nil
}

func (ks *KafkaSender) Close() error {
	ks.producer.Flush(5000)
	ks.producer.Close()
	<-ks.doneCh
	return nil
}
