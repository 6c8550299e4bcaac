package mq

import (
	"fmt"

	"atmledger/internal/config"

	"github.com/IBM/sarama"
)

// Producer publishes string messages to kafka.
type Producer struct {
	producer sarama.SyncProducer
}

// NewProducer builds a synchronous producer that waits for all in-sync
// replicas, so a message marked sent in the outbox is durable.
func NewProducer(cfg *config.KafkaConfig) (*Producer, error) {
	kc := sarama.NewConfig()
	kc.Producer.RequiredAcks = sarama.WaitForAll
	kc.Producer.Retry.Max = 3
	kc.Producer.Return.Successes = true
	kc.Producer.Idempotent = true
	kc.Net.MaxOpenRequests = 1
	kc.Version = sarama.V2_1_0_0

	p, err := sarama.NewSyncProducer(cfg.Brokers, kc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewProducerFrom(p), nil
}

// NewProducerFrom wraps an existing producer, e.g. a sarama mock.
func NewProducerFrom(p sarama.SyncProducer) *Producer {
	return &Producer{producer: p}
}

// Send publishes one message keyed by key.
func (p *Producer) Send(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
