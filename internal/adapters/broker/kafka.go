package broker

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/pkg/logger"
	"github.com/fragworks/fragstats/pkg/metrics"
)

const correlationHeader = "correlation_id"

// KafkaPublisher publishes events with a synchronous, idempotent
// producer. Keying by server id keeps each server's events on one
// partition, preserving their order.
type KafkaPublisher struct {
	sync sarama.SyncProducer
	log  logger.Logger
}

// NewKafkaPublisher connects a sync producer to the given brokers.
func NewKafkaPublisher(brokers []string, cfg *sarama.Config) (*KafkaPublisher, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Net.MaxOpenRequests = 1

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return &KafkaPublisher{
		sync: sp,
		log:  logger.Named("broker.kafka"),
	}, nil
}

// Publish sends the event to the topic matching its queue class.
func (p *KafkaPublisher) Publish(_ context.Context, e event.Event) error {
	payload, err := e.Encode()
	if err != nil {
		metrics.RecordBrokerPublishError()
		return err
	}

	topic := TopicFor(e)
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(e.ServerID),
		Value: sarama.ByteEncoder(payload),
	}
	if e.CorrelationID != "" {
		msg.Headers = []sarama.RecordHeader{{
			Key:   []byte(correlationHeader),
			Value: []byte(e.CorrelationID),
		}}
	}

	if _, _, err := p.sync.SendMessage(msg); err != nil {
		metrics.RecordBrokerPublishError()
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	metrics.RecordBrokerPublished(topic)
	return nil
}

// Close shuts down the producer.
func (p *KafkaPublisher) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}

// KafkaConsumer consumes all three event topics as part of a consumer
// group and hands decoded events to a dispatch function.
type KafkaConsumer struct {
	group sarama.ConsumerGroup
	log   logger.Logger
}

// NewKafkaConsumer joins the given consumer group on the brokers.
func NewKafkaConsumer(brokers []string, groupID string, cfg *sarama.Config) (*KafkaConsumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0

	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("join consumer group %s: %w", groupID, err)
	}
	return &KafkaConsumer{
		group: g,
		log:   logger.Named("broker.kafka"),
	}, nil
}

// Run consumes until the context ends. Rebalances restart the claim
// loop; a dispatch error leaves the message unmarked so the next
// consumer of the partition retries it.
func (c *KafkaConsumer) Run(ctx context.Context, dispatch DispatchFunc) error {
	h := groupHandler{dispatch: dispatch, log: c.log}
	for {
		if err := c.group.Consume(ctx, Topics(), h); err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close leaves the consumer group.
func (c *KafkaConsumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	dispatch DispatchFunc
	log      logger.Logger
}

func (h groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		ctx := sess.Context()

		e, err := event.Decode(msg.Value)
		if err != nil {
			// Poison message: mark it so it never redelivers.
			metrics.RecordBrokerConsumeError()
			h.log.Warn(ctx, "dropping undecodable message",
				logger.String("topic", msg.Topic),
				logger.Int64("offset", msg.Offset),
				logger.Error(err))
			sess.MarkMessage(msg, "")
			continue
		}

		if err := h.dispatch(ctx, e); err != nil {
			metrics.RecordBrokerConsumeError()
			h.log.Error(ctx, "dispatch failed, leaving message unmarked",
				logger.String("topic", msg.Topic),
				logger.String("event_id", e.EventID),
				logger.Error(err))
			continue
		}
		metrics.RecordBrokerConsumed(msg.Topic)
		sess.MarkMessage(msg, "")
	}
	return nil
}
