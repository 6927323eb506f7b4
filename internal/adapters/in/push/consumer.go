package push

import (
	"context"
	"log/slog"
	"time"

	"dispatch/internal/core/application/engine"
	"dispatch/internal/pkg/errs"

	"github.com/IBM/sarama"
)

// HandleFunc processes one decoded engine event.
type HandleFunc func(ctx context.Context, ev engine.Event)

// Consumer wraps a Sarama consumer group and dispatches decoded events to a
// handler. Malformed messages are logged and skipped; the stream never stalls
// on bad input.
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler HandleFunc
	logger  *slog.Logger
}

// NewConsumer creates a Kafka consumer for the event stream.
func NewConsumer(brokers []string, groupID, topic string, handler HandleFunc, logger *slog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errs.NewValueIsRequiredError("brokers")
	}
	if topic == "" {
		return nil, errs.NewValueIsRequiredError("topic")
	}
	if groupID == "" {
		return nil, errs.NewValueIsRequiredError("groupID")
	}
	if handler == nil {
		return nil, errs.NewValueIsRequiredError("handler")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:   group,
		topic:   topic,
		handler: handler,
		logger:  logger.With("component", "push_consumer"),
	}, nil
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	h := &groupHandler{c: c}

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("consume error", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close shuts the consumer group down.
func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct{ c *Consumer }

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		ev, err := DecodeEvent(msg.Value)
		if err != nil {
			h.c.logger.Warn("skipping malformed event",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			sess.MarkMessage(msg, "")
			continue
		}

		h.c.handler(sess.Context(), ev)
		sess.MarkMessage(msg, "")
	}
	return nil
}
