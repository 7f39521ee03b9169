package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	consumerTracer = otel.Tracer("messaging/consumer")

	eventsConsumed, _ = otel.Meter("messaging").Int64Counter("storefront.events.consumed",
		metric.WithDescription("Events handled by consumers, by topic and outcome"),
	)
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 500 * time.Millisecond
)

// Handler processes one message payload.
type Handler func(ctx context.Context, payload []byte) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error that retrying cannot fix, such as a payload
// that does not decode. The consumer drops such messages and moves on.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type Consumer struct {
	reader  *kafka.Reader
	topic   string
	groupID string
	logger  *slog.Logger

	maxAttempts int
	retryDelay  time.Duration
	readerOpts  []func(*kafka.ReaderConfig)
}

type ConsumerOption func(*Consumer)

func WithStartOffset(offset int64) ConsumerOption {
	return func(c *Consumer) {
		c.readerOpts = append(c.readerOpts, func(cfg *kafka.ReaderConfig) {
			cfg.StartOffset = offset
		})
	}
}

func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithRetry sets how often a failing message is handed to the handler before
// the consumer gives up, and the delay before the first retry. The delay
// doubles on every further attempt.
func WithRetry(maxAttempts int, delay time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.maxAttempts = max(1, maxAttempts)
		c.retryDelay = delay
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		topic:       topic,
		groupID:     groupID,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	cfg := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	}
	for _, opt := range c.readerOpts {
		opt(&cfg)
	}
	c.reader = kafka.NewReader(cfg)

	return c
}

// Consume hands every message to handler until ctx ends or a message keeps
// failing after all retries. Messages the handler rejects as Permanent are
// committed and skipped.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.deliver(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

// deliver runs handler with retries. It returns nil when the message may be
// committed.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, handler Handler) error {
	delay := c.retryDelay

	for attempt := 1; ; attempt++ {
		err := c.processMessage(ctx, msg, handler, attempt)
		switch {
		case err == nil:
			c.count(ctx, "ok")
			return nil

		case IsPermanent(err):
			c.logger.Error("dropping unprocessable message", "error", err, "topic", c.topic, "offset", msg.Offset)
			c.count(ctx, "dropped")
			return nil

		case attempt >= c.maxAttempts:
			c.count(ctx, "failed")
			return err
		}

		c.logger.Warn("message handling failed, retrying", "error", err, "attempt", attempt, "offset", msg.Offset)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler Handler, attempt int) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, carrierFor(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
			attribute.Int("messaging.attempt", attempt),
		),
	)
	defer span.End()

	if err := handler(spanCtx, msg.Value); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) count(ctx context.Context, outcome string) {
	eventsConsumed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", c.topic),
		attribute.String("outcome", outcome),
	))
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
