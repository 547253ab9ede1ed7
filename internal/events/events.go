// Package events publishes a record of every remote weather lookup.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// Message is the JSON payload written to the topic.
type Message struct {
	ID    string    `json:"id"`
	Kind  string    `json:"kind"`
	Query string    `json:"query,omitempty"`
	Lat   *float64  `json:"lat,omitempty"`
	Lon   *float64  `json:"lon,omitempty"`
	Found bool      `json:"found"`
	At    time.Time `json:"at"`
}

// NewMessage converts ev into its wire form with a fresh ID.
func NewMessage(ev weather.SearchEvent) Message {
	m := Message{
		ID:    uuid.NewString(),
		Kind:  string(ev.Search.Kind),
		Query: ev.Search.Query,
		Found: ev.Found,
		At:    ev.At.UTC(),
	}
	if c := ev.Search.Coords; c != nil {
		lat, lon := c.Lat, c.Lon
		m.Lat, m.Lon = &lat, &lon
	}
	return m
}

// KafkaPublisher writes search events to a Kafka topic, keyed by search so
// repeated lookups of one place land on one partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaProducer dials brokers with acknowledgement from all replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("connect to kafka %v: %w", brokers, err)
	}
	return producer, nil
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// PublishSearch sends ev and waits for the broker to acknowledge it.
func (k *KafkaPublisher) PublishSearch(ctx context.Context, ev weather.SearchEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return fmt.Errorf("encode search event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.Search.Key()),
		Value: sarama.ByteEncoder(body),
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish search event: %w", err)
	}
	log.Printf("DEBUG: search event %s published to %s[%d]@%d", ev.Search.Key(), k.topic, partition, offset)
	return nil
}

// Close flushes and closes the producer.
func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}

// Nop discards events.
type Nop struct{}

func (Nop) PublishSearch(context.Context, weather.SearchEvent) error { return nil }
