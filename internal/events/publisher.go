package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smallbiznis/spotlight/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// Publisher delivers relayed outbox messages to subscribers.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

var ErrPublisherClosed = errors.New("publisher_closed")

// LogPublisher writes messages to the log. Used when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events.log_publisher")}
}

func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	p.log.Info("event published",
		zap.String("event_id", msg.ID),
		zap.String("event_type", msg.Type),
		zap.String("correlation_id", msg.CorrelationID),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// AMQPPublisher publishes persistent JSON messages to a durable topic
// exchange, routed by event type.
type AMQPPublisher struct {
	url      string
	exchange string
	log      *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	closed  bool
	dialFn  func(url string) (*amqp.Connection, error)
	timeout time.Duration
}

func NewAMQPPublisher(url, exchange string, log *zap.Logger) *AMQPPublisher {
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = "spotlight.events"
	}
	return &AMQPPublisher{
		url:      url,
		exchange: exchange,
		log:      log.Named("events.amqp_publisher"),
		dialFn:   amqp.Dial,
		timeout:  5 * time.Second,
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = ch.PublishWithContext(pubCtx,
		p.exchange,
		msg.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     msg.ID,
			CorrelationId: msg.CorrelationID,
			Type:          msg.Type,
			Timestamp:     msg.OccurredAt.UTC(),
			Headers:       traceHeaders(msg.Metadata),
			Body:          body,
		},
	)
	if err != nil {
		p.log.Warn("amqp publish failed", zap.String("event_type", msg.Type), zap.Error(err))
		p.reset()
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// channel lazily (re)connects. Caller must hold p.mu.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.closed {
		return nil, ErrPublisherClosed
	}
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := p.dialFn(p.url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}
	p.conn = conn
	p.ch = ch
	p.log.Info("amqp publisher connected", zap.String("exchange", p.exchange))
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.reset()
	return nil
}

// traceHeaders forwards trace ids so consumers can join the producing trace.
func traceHeaders(meta map[string]string) amqp.Table {
	headers := amqp.Table{}
	for _, key := range []string{correlation.KeyTraceID, correlation.KeySpanID} {
		if v := meta[key]; v != "" {
			headers[key] = v
		}
	}
	return headers
}
