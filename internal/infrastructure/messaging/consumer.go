package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/eventrelay/internal/infrastructure/logging"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler processes one decoded event. eventType is the subscribed event
// type. The delivery is acknowledged whatever the handler returns.
type Handler func(ctx context.Context, eventType string, env Envelope) error

type subscription struct {
	eventType string
	queue     QueueConfig
	tag       string
	handler   Handler
}

// Subscription describes an active consumer.
type Subscription struct {
	EventType   string
	Queue       string
	Exchange    string
	ConsumerTag string
}

type subscribeOptions struct {
	group string
}

type SubscribeOption func(*subscribeOptions)

// WithQueueGroup suffixes every queue name with group. Consumers sharing a
// group compete for messages; distinct groups each receive every message.
func WithQueueGroup(group string) SubscribeOption {
	return func(o *subscribeOptions) {
		o.group = group
	}
}

// Subscribe binds one queue per event type and starts one consumer per
// queue, each on its own channel. When the broker is unreachable the
// consumers are still registered, the client keeps redialling in the
// background and they start as soon as a connection is established; the
// connection error is returned.
func (c *Client) Subscribe(ctx context.Context, eventTypes []string, handler Handler, opts ...SubscribeOption) error {
	if handler == nil {
		return ErrNilHandler
	}
	if len(eventTypes) == 0 {
		return ErrNoEventTypes
	}

	so := subscribeOptions{group: c.cfg.QueueGroup}
	for _, opt := range opts {
		opt(&so)
	}

	var connErr error
	if !c.Connected() {
		connErr = c.Connect(ctx)
	}

	conn, _ := c.connection()

	var errs []error
	var life *lifecycle
	for _, eventType := range eventTypes {
		sub := &subscription{
			eventType: eventType,
			queue:     QueueConfigFor(eventType).WithGroup(so.group),
			tag:       fmt.Sprintf("%s_%s_consumer_%s", c.cfg.ServiceName, eventType, uuid.NewString()[:8]),
			handler:   handler,
		}

		var (
			ch         Channel
			deliveries <-chan amqp.Delivery
		)
		if conn != nil {
			subCh, d, err := c.bind(conn, sub)
			if err != nil {
				errs = append(errs, err)
			} else {
				ch, deliveries = subCh, d
			}
		}

		c.mu.Lock()
		life = c.life
		c.subs = append(c.subs, sub)
		life.wg.Add(1)
		c.mu.Unlock()

		go c.consume(life, sub, ch, deliveries)

		c.logger.Info(logging.RabbitMQ, logging.Consume, "subscribed to event", map[logging.ExtraKey]any{
			logging.Service:     c.cfg.ServiceName,
			logging.EventType:   eventType,
			logging.Queue:       sub.queue.Name,
			logging.ConsumerTag: sub.tag,
		})
	}

	if connErr != nil {
		c.startReconnect(life)
		return connErr
	}
	return errors.Join(errs...)
}

// Subscriptions lists the consumers registered since the last Disconnect.
func (c *Client) Subscriptions() []Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		out = append(out, Subscription{
			EventType:   sub.eventType,
			Queue:       sub.queue.Name,
			Exchange:    sub.queue.Exchange,
			ConsumerTag: sub.tag,
		})
	}
	return out
}

// bind opens a channel for the subscription, declares the exchange and
// queue, binds them and starts consuming. A broker rejection closes only the
// subscription's channel, never the shared one.
func (c *Client) bind(conn Connection, sub *subscription) (Channel, <-chan amqp.Delivery, error) {
	q := sub.queue

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open consumer channel for %s: %w", q.Name, err)
	}

	fail := func(err error) (Channel, <-chan amqp.Delivery, error) {
		_ = ch.Close()
		return nil, nil, err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fail(fmt.Errorf("failed to set QoS for %s: %w", q.Name, err))
	}

	if err := ch.ExchangeDeclare(q.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("failed to declare exchange %s: %w", q.Exchange, err))
	}

	queue, err := ch.QueueDeclare(q.Name, q.Durable, false, false, false, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to declare queue %s: %w", q.Name, err))
	}

	if err := ch.QueueBind(queue.Name, q.RoutingKey, q.Exchange, false, nil); err != nil {
		return fail(fmt.Errorf("failed to bind queue %s to %s: %w", queue.Name, q.Exchange, err))
	}

	deliveries, err := ch.Consume(queue.Name, sub.tag, false, false, false, false, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to consume from %s: %w", queue.Name, err))
	}

	c.logger.Debug(logging.RabbitMQ, logging.Topology, "queue bound", map[logging.ExtraKey]any{
		logging.Queue:      queue.Name,
		logging.Exchange:   q.Exchange,
		logging.RoutingKey: q.RoutingKey,
	})

	return ch, deliveries, nil
}

// consume runs for the lifetime of the subscription, rebinding after every
// reconnect or channel failure.
func (c *Client) consume(life *lifecycle, sub *subscription, ch Channel, deliveries <-chan amqp.Delivery) {
	defer life.wg.Done()

	for {
		if deliveries == nil {
			var ok bool
			ch, deliveries, ok = c.resume(life, sub)
			if !ok {
				return
			}
		}

		c.drain(life.ctx, sub, deliveries)
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Debug(logging.RabbitMQ, logging.Consume, "failed to close consumer channel", map[logging.ExtraKey]any{
				logging.Queue:        sub.queue.Name,
				logging.ErrorMessage: err.Error(),
			})
		}
		ch, deliveries = nil, nil

		if life.ctx.Err() != nil {
			return
		}
	}
}

// resume waits for a live connection and binds the subscription to it.
func (c *Client) resume(life *lifecycle, sub *subscription) (Channel, <-chan amqp.Delivery, bool) {
	for {
		conn, ready := c.connection()
		if conn == nil {
			select {
			case <-life.ctx.Done():
				return nil, nil, false
			case <-ready:
				continue
			}
		}

		ch, deliveries, err := c.bind(conn, sub)
		if err == nil {
			c.logger.Info(logging.RabbitMQ, logging.Consume, "consumer started", map[logging.ExtraKey]any{
				logging.EventType:   sub.eventType,
				logging.Queue:       sub.queue.Name,
				logging.ConsumerTag: sub.tag,
			})
			return ch, deliveries, true
		}

		c.logger.Warn(logging.RabbitMQ, logging.Consume, "failed to start consumer, retrying", map[logging.ExtraKey]any{
			logging.EventType:    sub.eventType,
			logging.Queue:        sub.queue.Name,
			logging.ErrorMessage: err.Error(),
		})

		select {
		case <-life.ctx.Done():
			return nil, nil, false
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}

func (c *Client) drain(ctx context.Context, sub *subscription, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn(logging.RabbitMQ, logging.Consume, "delivery stream closed", map[logging.ExtraKey]any{
					logging.EventType: sub.eventType,
					logging.Queue:     sub.queue.Name,
				})
				return
			}
			c.handle(ctx, sub, d)
		}
	}
}

func (c *Client) handle(ctx context.Context, sub *subscription, d amqp.Delivery) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(d.Headers))
	ctx, span := c.tracer.Start(ctx, "process "+sub.eventType,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", sub.queue.Name),
			attribute.String("messaging.message.id", d.MessageId),
		),
	)
	defer span.End()

	start := time.Now()

	env, err := DecodeEnvelope(d.Body)
	if err != nil {
		c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to decode event", map[logging.ExtraKey]any{
			logging.EventType:    sub.eventType,
			logging.Queue:        sub.queue.Name,
			logging.ErrorMessage: err.Error(),
		})
	} else {
		c.logger.Info(logging.RabbitMQ, logging.Consume, "processing event", map[logging.ExtraKey]any{
			logging.EventType: sub.eventType,
			logging.Service:   env.Service,
			logging.Queue:     sub.queue.Name,
			logging.Payload:   env.Data,
		})

		err = c.invoke(ctx, sub, env)
		if err != nil {
			c.logger.Error(logging.RabbitMQ, logging.Callback, "event handler failed", map[logging.ExtraKey]any{
				logging.EventType:    sub.eventType,
				logging.Queue:        sub.queue.Name,
				logging.ErrorMessage: err.Error(),
			})
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.metrics.EventConsumed(sub.eventType, time.Since(start), err)

	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error(logging.RabbitMQ, logging.Consume, "failed to acknowledge delivery", map[logging.ExtraKey]any{
			logging.EventType:    sub.eventType,
			logging.Queue:        sub.queue.Name,
			logging.ErrorMessage: ackErr.Error(),
		})
	}
}

func (c *Client) invoke(ctx context.Context, sub *subscription, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{EventType: sub.eventType, Queue: sub.queue.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if herr := sub.handler(ctx, sub.eventType, env); herr != nil {
		return &CallbackError{EventType: sub.eventType, Queue: sub.queue.Name, Err: herr}
	}
	return nil
}
