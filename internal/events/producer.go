// Package events publishes and (via the consumers package) fans out
// RouteEvent messages on the route-events topic.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/iamtahmad1/traffic-manager/internal/correlation"
	"github.com/iamtahmad1/traffic-manager/internal/domain"
)

// ProducerConfig configures the underlying Sarama sync producer.
type ProducerConfig struct {
	BootstrapServers []string
	Topic            string
	Retries          int
	RequestTimeout   time.Duration
}

// Producer publishes RouteEvents. Publish failures are never fatal to the
// write path: callers record the error and proceed, matching the original
// system's best-effort publish semantics.
type Producer struct {
	producer sarama.SyncProducer
	client   sarama.Client
	topic    string
}

// NewProducer dials a synchronous, idempotent, acks=all producer.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	conf := sarama.NewConfig()
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Retry.Max = cfg.Retries
	conf.Producer.Idempotent = true
	conf.Producer.Timeout = cfg.RequestTimeout
	conf.Producer.Return.Successes = true
	conf.Net.MaxOpenRequests = 1

	client, err := sarama.NewClient(cfg.BootstrapServers, conf)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &Producer{producer: producer, client: client, topic: cfg.Topic}, nil
}

// NewFromSyncProducer wraps an already-constructed producer (used by tests
// against sarama's mocks). Ping is a no-op in this shape since no backing
// client is available to probe.
func NewFromSyncProducer(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: producer, topic: topic}
}

// Publish builds and sends the RouteEvent envelope for a write-path
// mutation, keyed by tenant:service:environment:version so every event for
// a route coordinate lands on the same partition and is observed in order
// by consumers.
func (p *Producer) Publish(ctx context.Context, action domain.Action, key domain.Key, url string) error {
	event := domain.Event{
		EventID:       uuid.NewString(),
		Action:        action,
		Tenant:        key.Tenant,
		Service:       key.Service,
		Environment:   key.Environment,
		Version:       key.Version,
		URL:           url,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		CorrelationID: correlation.Current(ctx),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	partitionKey := key.Tenant + ":" + key.Service + ":" + key.Environment + ":" + key.Version
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(partitionKey),
		Value: sarama.ByteEncoder(payload),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

// Ping reports producer readiness by confirming the backing client still
// has a live broker connection, consumed by the metrics sampler's
// connectivity gauge.
func (p *Producer) Ping(ctx context.Context) error {
	if p.client == nil {
		return nil
	}
	controller, err := p.client.Controller()
	if err != nil {
		return err
	}
	connected, err := controller.Connected()
	if err != nil {
		return err
	}
	if !connected {
		return errNotConnected
	}
	return nil
}

// Close flushes and closes the producer and its backing client.
func (p *Producer) Close() error {
	err := p.producer.Close()
	if p.client != nil {
		if cerr := p.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

var errNotConnected = sarama.ErrOutOfBrokers
