// Package events delivers gift-received notifications to room subscribers.
// Every sink is best-effort: nothing is persisted and nothing is retried.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NATSSubject returns the subject a room's gift events are published on.
func NATSSubject(roomID string) string {
	return "rooms." + roomID + ".gifts"
}

// RedisChannel returns the pub/sub channel a room's gift events are published on.
func RedisChannel(roomID string) string {
	return "room:" + roomID + ":gifts"
}

// NATSPublisher is satisfied by *nats.Conn.
type NATSPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes events as JSON on the room subject.
type NATSSink struct {
	publisher NATSPublisher
}

func NewNATSSink(publisher NATSPublisher) *NATSSink {
	return &NATSSink{publisher: publisher}
}

func (sink *NATSSink) Publish(ctx context.Context, event ledger.GiftReceivedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("nats: marshal event: %w", err)
	}
	if err := sink.publisher.Publish(NATSSubject(event.RoomID), payload); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}
	return nil
}

// RedisPublisher is satisfied by *redis.Client and *redis.ClusterClient.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes events on the room's Redis pub/sub channel.
type RedisSink struct {
	client RedisPublisher
}

func NewRedisSink(client RedisPublisher) *RedisSink {
	return &RedisSink{client: client}
}

func (sink *RedisSink) Publish(ctx context.Context, event ledger.GiftReceivedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	if err := sink.client.Publish(ctx, RedisChannel(event.RoomID), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish: %w", err)
	}
	return nil
}

// KafkaSink writes events to a topic keyed by room so a room's events stay ordered.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaSink(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (sink *KafkaSink) Publish(ctx context.Context, event ledger.GiftReceivedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}
	message := &sarama.ProducerMessage{
		Topic: sink.topic,
		Key:   sarama.StringEncoder(event.RoomID),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := sink.producer.SendMessage(message); err != nil {
		return fmt.Errorf("kafka: send: %w", err)
	}
	return nil
}

// LogSink records events in the service log. Useful when no broker is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (sink *LogSink) Publish(_ context.Context, event ledger.GiftReceivedEvent) error {
	sink.logger.Info("gift received",
		zap.String("transaction_id", event.TransactionID),
		zap.String("room_id", event.RoomID),
		zap.String("buyer", event.BuyerDisplayName),
		zap.String("gift", event.GiftName),
		zap.Int64("quantity", event.Quantity),
		zap.Int64("total_amount", event.TotalAmount),
	)
	return nil
}

// Fanout publishes to every sink and joins their failures.
type Fanout []ledger.EventSink

func (sinks Fanout) Publish(ctx context.Context, event ledger.GiftReceivedEvent) error {
	var failures []error
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}
