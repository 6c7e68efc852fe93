package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrNotifierClosed is returned by Publish after Close
var ErrNotifierClosed = errors.New("notifier is closed")

// amqpChannel is the part of *amqp.Channel the notifier uses
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// channelPool hands out channels; AMQP channels are not safe for concurrent publishing.
// Channels that could not be replaced are counted in missing and reopened by get.
type channelPool struct {
	channels chan amqpChannel
	open     func() (amqpChannel, error)

	mu      sync.Mutex
	missing int
}

func newChannelPool(size int, open func() (amqpChannel, error)) (*channelPool, error) {
	if size < 1 {
		size = 1
	}
	pool := &channelPool{channels: make(chan amqpChannel, size), open: open}

	for i := 0; i < size; i++ {
		ch, err := open()
		if err != nil {
			pool.close()
			return nil, fmt.Errorf("failed to create channel: %w", err)
		}
		pool.channels <- ch
	}
	return pool, nil
}

func (p *channelPool) get(ctx context.Context) (amqpChannel, error) {
	select {
	case ch := <-p.channels:
		return p.usable(ch)
	default:
	}

	if p.takeMissing() {
		ch, err := p.open()
		if err != nil {
			p.addMissing()
			return nil, err
		}
		return ch, nil
	}

	select {
	case ch := <-p.channels:
		return p.usable(ch)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *channelPool) usable(ch amqpChannel) (amqpChannel, error) {
	if !ch.IsClosed() {
		return ch, nil
	}
	fresh, err := p.open()
	if err != nil {
		p.addMissing()
		return nil, err
	}
	return fresh, nil
}

// put returns a channel to the pool, replacing it if the broker closed it
func (p *channelPool) put(ch amqpChannel) {
	if ch.IsClosed() {
		fresh, err := p.open()
		if err != nil {
			p.addMissing()
			return
		}
		ch = fresh
	}
	select {
	case p.channels <- ch:
	default:
		_ = ch.Close()
	}
}

func (p *channelPool) takeMissing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.missing == 0 {
		return false
	}
	p.missing--
	return true
}

func (p *channelPool) addMissing() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.missing++
}

func (p *channelPool) close() {
	for {
		select {
		case ch := <-p.channels:
			_ = ch.Close()
		default:
			return
		}
	}
}

// RabbitMQNotifier publishes JSON events to a durable topic exchange
type RabbitMQNotifier struct {
	conn     *amqp.Connection
	pool     *channelPool
	exchange string
	logger   *zap.Logger
	closed   chan struct{}
}

// NewRabbitMQNotifier dials the broker, declares the exchange and fills the channel pool
func NewRabbitMQNotifier(url, exchange string, poolSize int, logger *zap.Logger) (*RabbitMQNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	setup, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := setup.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	setup.Close()

	n, err := newRabbitMQNotifier(exchange, poolSize, logger, func() (amqpChannel, error) {
		return conn.Channel()
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	n.conn = conn
	return n, nil
}

func newRabbitMQNotifier(exchange string, poolSize int, logger *zap.Logger, open func() (amqpChannel, error)) (*RabbitMQNotifier, error) {
	pool, err := newChannelPool(poolSize, open)
	if err != nil {
		return nil, err
	}
	return &RabbitMQNotifier{
		pool:     pool,
		exchange: exchange,
		logger:   logger.Named("rabbitmq"),
		closed:   make(chan struct{}),
	}, nil
}

// Publish sends the event with its type as routing key and persistent delivery
func (n *RabbitMQNotifier) Publish(ctx context.Context, event Event) error {
	select {
	case <-n.closed:
		return ErrNotifierClosed
	default:
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ch, err := n.pool.get(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire channel: %w", err)
	}
	defer n.pool.put(ch)

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, n.exchange, string(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	n.logger.Debug("Event published",
		zap.String("event_id", event.ID.String()),
		zap.String("type", string(event.Type)),
	)
	return nil
}

// Close drains the pool and closes the connection
func (n *RabbitMQNotifier) Close() error {
	select {
	case <-n.closed:
		return nil
	default:
		close(n.closed)
	}

	n.pool.close()
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
