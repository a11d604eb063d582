package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeBroker is an in-memory topic broker. Queues outlive connections, like
// durable queues on a real broker.
type fakeBroker struct {
	mu        sync.Mutex
	exchanges map[string]string
	queues    map[string]*fakeQueue
	bindings  map[string][]fakeBinding
	published []amqp.Publishing
	routes    []string
	dialErr   error
	dials     int
	props     []amqp.Table
	prefetch  int
	conns     []*fakeConn
	tag       uint64
	rejected  map[string]bool
	rejects   int

	acks atomic.Int64
}

type fakeBinding struct {
	queue string
	key   string
}

type fakeQueue struct {
	name string
	msgs chan amqp.Delivery
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		exchanges: map[string]string{},
		queues:    map[string]*fakeQueue{},
		bindings:  map[string][]fakeBinding{},
		rejected:  map[string]bool{},
	}
}

// rejectQueue makes every declaration of name fail the way a broker answers
// a declaration with inequivalent arguments: the channel is closed.
func (b *fakeBroker) rejectQueue(name string) {
	b.mu.Lock()
	b.rejected[name] = true
	b.mu.Unlock()
}

func (b *fakeBroker) rejectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejects
}

func (b *fakeBroker) prefetchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prefetch
}

func (b *fakeBroker) bound(exchange, queue string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, binding := range b.bindings[exchange] {
		if binding.queue == queue {
			return true
		}
	}
	return false
}

func (b *fakeBroker) dial(_ string, cfg amqp.Config) (Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if b.dialErr != nil {
		return nil, b.dialErr
	}

	b.props = append(b.props, cfg.Properties)
	conn := &fakeConn{broker: b, closed: make(chan struct{})}
	b.conns = append(b.conns, conn)
	return conn, nil
}

func (b *fakeBroker) setDialErr(err error) {
	b.mu.Lock()
	b.dialErr = err
	b.mu.Unlock()
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *fakeBroker) lastConn() *fakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		return nil
	}
	return b.conns[len(b.conns)-1]
}

func (b *fakeBroker) publishedMessages() []amqp.Publishing {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]amqp.Publishing, len(b.published))
	copy(out, b.published)
	return out
}

func (b *fakeBroker) publishedRoutes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.routes))
	copy(out, b.routes)
	return out
}

func (b *fakeBroker) queue(name string) *fakeQueue {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = &fakeQueue{name: name, msgs: make(chan amqp.Delivery, 128)}
		b.queues[name] = q
	}
	return q
}

func (b *fakeBroker) hasQueue(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.queues[name]
	return ok
}

// inject enqueues a raw body, bypassing exchange routing.
func (b *fakeBroker) inject(queue string, body []byte) {
	q := b.queue(queue)
	b.mu.Lock()
	b.tag++
	tag := b.tag
	b.mu.Unlock()
	q.msgs <- amqp.Delivery{DeliveryTag: tag, Body: body}
}

func (b *fakeBroker) route(exchange, key string, msg amqp.Publishing) {
	b.mu.Lock()
	b.published = append(b.published, msg)
	b.routes = append(b.routes, exchange+"/"+key)
	var targets []*fakeQueue
	for _, binding := range b.bindings[exchange] {
		if binding.key == key {
			targets = append(targets, b.queues[binding.queue])
		}
	}
	b.mu.Unlock()

	for _, q := range targets {
		b.mu.Lock()
		b.tag++
		tag := b.tag
		b.mu.Unlock()

		q.msgs <- amqp.Delivery{
			DeliveryTag:  tag,
			Exchange:     exchange,
			RoutingKey:   key,
			Headers:      msg.Headers,
			ContentType:  msg.ContentType,
			DeliveryMode: msg.DeliveryMode,
			MessageId:    msg.MessageId,
			Type:         msg.Type,
			AppId:        msg.AppId,
			Body:         msg.Body,
		}
	}
}

type fakeConn struct {
	broker *fakeBroker

	mu       sync.Mutex
	closed   chan struct{}
	isClosed bool
	notify   []chan *amqp.Error
	channels []*fakeChannel
}

func (c *fakeConn) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed {
		return nil, amqp.ErrClosed
	}
	ch := &fakeChannel{broker: c.broker, closed: make(chan struct{})}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed {
		close(receiver)
		return receiver
	}
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isClosed
}

func (c *fakeConn) Close() error {
	c.shutdown(nil)
	return nil
}

// drop simulates the broker going away.
func (c *fakeConn) drop() {
	c.shutdown(&amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED", Server: true})
}

func (c *fakeConn) shutdown(cause *amqp.Error) {
	c.mu.Lock()
	if c.isClosed {
		c.mu.Unlock()
		return
	}
	c.isClosed = true
	close(c.closed)
	notify := c.notify
	c.notify = nil
	channels := c.channels
	c.mu.Unlock()

	for _, ch := range channels {
		ch.shutdown(cause)
	}
	for _, n := range notify {
		if cause != nil {
			n <- cause
		}
		close(n)
	}
}

type fakeChannel struct {
	broker *fakeBroker

	mu       sync.Mutex
	closed   chan struct{}
	isClosed bool
	notify   []chan *amqp.Error
}

func (ch *fakeChannel) alive() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.isClosed {
		return amqp.ErrClosed
	}
	return nil
}

func (ch *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	if err := ch.alive(); err != nil {
		return err
	}
	ch.broker.mu.Lock()
	ch.broker.exchanges[name] = kind
	ch.broker.mu.Unlock()
	return nil
}

func (ch *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if err := ch.alive(); err != nil {
		return amqp.Queue{}, err
	}

	ch.broker.mu.Lock()
	rejected := ch.broker.rejected[name]
	if rejected {
		ch.broker.rejects++
	}
	ch.broker.mu.Unlock()

	if rejected {
		cause := &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED - inequivalent arg 'durable' for queue '" + name + "'", Server: true}
		ch.shutdown(cause)
		return amqp.Queue{}, cause
	}

	ch.broker.queue(name)
	return amqp.Queue{Name: name}, nil
}

func (ch *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	if err := ch.alive(); err != nil {
		return err
	}
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, binding := range b.bindings[exchange] {
		if binding.queue == name && binding.key == key {
			return nil
		}
	}
	b.bindings[exchange] = append(b.bindings[exchange], fakeBinding{queue: name, key: key})
	return nil
}

func (ch *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	if err := ch.alive(); err != nil {
		return err
	}
	ch.broker.mu.Lock()
	ch.broker.prefetch = prefetchCount
	ch.broker.mu.Unlock()
	return nil
}

func (ch *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if err := ch.alive(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ch.broker.route(exchange, key, msg)
	return nil
}

// Consume delivers one message at a time and waits for its ack, mirroring a
// prefetch of one.
func (ch *fakeChannel) Consume(queue, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	if err := ch.alive(); err != nil {
		return nil, err
	}

	q := ch.broker.queue(queue)
	out := make(chan amqp.Delivery)

	go func() {
		defer close(out)
		for {
			var d amqp.Delivery
			select {
			case <-ch.closed:
				return
			case d = <-q.msgs:
			}

			ack := &fakeAck{broker: ch.broker, done: make(chan struct{})}
			d.Acknowledger = ack

			select {
			case out <- d:
			case <-ch.closed:
				q.msgs <- d
				return
			}

			select {
			case <-ack.done:
			case <-ch.closed:
				return
			}
		}
	}()

	return out, nil
}

func (ch *fakeChannel) Cancel(string, bool) error {
	return ch.alive()
}

func (ch *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.isClosed {
		close(receiver)
		return receiver
	}
	ch.notify = append(ch.notify, receiver)
	return receiver
}

func (ch *fakeChannel) Close() error {
	ch.shutdown(nil)
	return nil
}

func (ch *fakeChannel) shutdown(cause *amqp.Error) {
	ch.mu.Lock()
	if ch.isClosed {
		ch.mu.Unlock()
		return
	}
	ch.isClosed = true
	close(ch.closed)
	notify := ch.notify
	ch.notify = nil
	ch.mu.Unlock()

	for _, n := range notify {
		if cause != nil {
			n <- cause
		}
		close(n)
	}
}

type fakeAck struct {
	broker *fakeBroker
	once   sync.Once
	done   chan struct{}
}

func (a *fakeAck) Ack(uint64, bool) error {
	a.once.Do(func() {
		a.broker.acks.Add(1)
		close(a.done)
	})
	return nil
}

func (a *fakeAck) Nack(uint64, bool, bool) error {
	return errors.New("nack not expected")
}

func (a *fakeAck) Reject(uint64, bool) error {
	return errors.New("reject not expected")
}
