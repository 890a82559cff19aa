package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// KafkaPublisher writes each event type to its own topic, prefixed with the
// configured topic namespace.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	prefix   string
}

const connectAttempts = 5

func NewKafkaPublisher(broker, prefix string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	var (
		producer sarama.SyncProducer
		err      error
	)
	for i := 1; i <= connectAttempts; i++ {
		producer, err = sarama.NewSyncProducer([]string{broker}, config)
		if err == nil {
			log.Println("✅ Kafka producer initialized")
			return NewKafkaPublisherWithProducer(producer, prefix), nil
		}
		log.Printf("⚠️ Waiting for Kafka... (%d/%d) Error: %v", i, connectAttempts, err)
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("kafka producer: %w", err)
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, prefix string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, prefix: prefix}
}

func (p *KafkaPublisher) Topic(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *KafkaPublisher) Publish(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("🔥 Failed to marshal %s event: %v", eventType, err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.Topic(eventType),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Printf("🔥 Failed to send %s Kafka message: %v", eventType, err)
		return
	}
	log.Printf("📤 Published %s event", eventType)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
