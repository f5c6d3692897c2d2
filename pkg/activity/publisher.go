package activity

import (
	"context"
	"fmt"
	"os"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/kgo"
)

// LoadSchema parses the Avro schema at path, meant to be called once at
// service start.
func LoadSchema(path string) (avro.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("activity: read schema %s: %w", path, err)
	}
	schema, err := avro.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("activity: parse schema %s: %w", path, err)
	}
	return schema, nil
}

// producer is the slice of *kgo.Client Publisher depends on, narrowed so
// tests can substitute a fake instead of dialing a real broker.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Publisher Avro-encodes activity messages and publishes them to a single
// Kafka topic.
type Publisher struct {
	client producer
	schema avro.Schema
	topic  string
}

// NewPublisher dials brokers and returns a Publisher bound to topic/schema.
func NewPublisher(brokers []string, topic string, schema avro.Schema) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("activity: create kafka client: %w", err)
	}
	return &Publisher{client: client, schema: schema, topic: topic}, nil
}

// Close flushes and releases the underlying Kafka client.
func (p *Publisher) Close() {
	p.client.Close()
}

// Publish Avro-encodes msg and produces it to the configured topic,
// blocking until the broker acknowledges (or ctx is cancelled).
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	data, err := avro.Marshal(p.schema, msg)
	if err != nil {
		return fmt.Errorf("activity: encode message: %w", err)
	}

	record := &kgo.Record{Topic: p.topic, Value: data}
	result := p.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("activity: publish to %s: %w", p.topic, err)
	}
	return nil
}
