package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/subext/internal/config"
)

// ErrDisabled is returned when publishing while messaging is disabled.
var ErrDisabled = errors.New("messaging is disabled")

// Message represents a message on the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes an inbound message. A returned error means the message
// was not handled and must be delivered again.
type Handler func(context.Context, Message) error

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
	Enabled() bool
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// noopClient is used when messaging is disabled.
type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, Message) error { return ErrDisabled }
func (n noopClient) Consume(ctx context.Context, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (n noopClient) Topic() string { return n.topic }
func (n noopClient) Enabled() bool { return false }

// reader is the consumer side of kafka-go used by Consume.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaClient implements the Client via kafka-go.
type kafkaClient struct {
	writer    *kafka.Writer
	newReader func() reader
	retry     config.Retry
	topic     string
	logger    *zap.Logger
}

func (k *kafkaClient) Publish(ctx context.Context, msg Message) error {
	out := kafka.Message{Key: msg.Key, Value: msg.Value}
	for key, value := range msg.Headers {
		out.Headers = append(out.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return k.writer.WriteMessages(ctx, out)
}

// Consume opens a group reader owned by this call, so each consumer commits
// only the partitions it was assigned.
func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	r := k.newReader()
	defer func() {
		if err := r.Close(); err != nil {
			k.logger.Warn("closing kafka reader", zap.Error(err))
		}
	}()
	return consume(ctx, r, k.retry, k.logger, handler)
}

func (k *kafkaClient) Topic() string { return k.topic }
func (k *kafkaClient) Enabled() bool { return true }

// consume fetches messages in order and commits each one after the handler
// succeeds or its attempts run out. Nothing is committed once ctx ends, so an
// interrupted message is fetched again by the next group member.
func consume(ctx context.Context, r reader, policy config.Retry, logger *zap.Logger, handler Handler) error {
	for {
		msg, err := backoff.Retry(ctx, func() (kafka.Message, error) {
			msg, err := r.FetchMessage(ctx)
			if err != nil && ctx.Err() != nil {
				return msg, backoff.Permanent(ctx.Err())
			}
			return msg, err
		},
			backoff.WithBackOff(newBackOff(policy)),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, wait time.Duration) {
				logger.Error("kafka fetch failed", zap.Error(err), zap.Duration("backoff", wait))
			}),
		)
		if err != nil {
			return err
		}

		wrapped := fromKafka(msg)
		if err := deliver(ctx, logger, policy, handler, wrapped); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("dropping message after retries",
				zap.Error(err),
				zap.String("topic", wrapped.Topic),
				zap.Int64("offset", wrapped.Offset),
				zap.Int("attempts", policy.MaxAttempts),
			)
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			logger.Warn("commit failed", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
	}
}

// deliver runs handler until it succeeds, policy.MaxAttempts is reached, or
// ctx ends. The last handler error is returned when attempts run out.
func deliver(ctx context.Context, logger *zap.Logger, policy config.Retry, handler Handler, msg Message) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, handler(ctx, msg)
	},
		backoff.WithBackOff(newBackOff(policy)),
		backoff.WithMaxTries(uint(max(policy.MaxAttempts, 1))),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Error("message handler failed; redelivering",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
			)
		}),
	)
	return err
}

func newBackOff(policy config.Retry) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}
	b.Reset()
	return b
}

func fromKafka(msg kafka.Message) Message {
	wrapped := Message{
		Topic:  msg.Topic,
		Key:    append([]byte(nil), msg.Key...),
		Value:  append([]byte(nil), msg.Value...),
		Offset: msg.Offset,
		Time:   msg.Time,
	}
	if len(msg.Headers) > 0 {
		wrapped.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			wrapped.Headers[h.Key] = string(h.Value)
		}
	}
	return wrapped
}

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")

		return noopClient{topic: cfg.Messaging.Kafka.Topic}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	topic := cfg.Messaging.Kafka.Topic

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Messaging.Kafka.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger},
	}

	// Commits are explicit per message; CommitInterval batches them.
	readerConfig := kafka.ReaderConfig{
		Brokers:        cfg.Messaging.Kafka.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          topic,
		MinBytes:       cfg.Messaging.Kafka.MinBytes,
		MaxBytes:       cfg.Messaging.Kafka.MaxBytes,
		CommitInterval: cfg.Messaging.Kafka.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  cfg.Messaging.Kafka.ConnectTimeout,
			ClientID: cfg.Messaging.Kafka.ClientID,
		},
		Logger:      kafkaLogger{logger: logger},
		ErrorLogger: kafkaLogger{logger: logger},
	}

	client := &kafkaClient{
		writer:    writer,
		newReader: func() reader { return kafka.NewReader(readerConfig) },
		retry:     cfg.Messaging.Retry,
		topic:     topic,
		logger:    logger,
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing kafka writer")

			return writer.Close()
		},
	})

	return client, nil
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	k.logger.Sugar().Debugf(msg, args...)
}
