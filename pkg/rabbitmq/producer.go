package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close()
}

// FallbackPublisher logs events instead of publishing them. It is used when
// RabbitMQ is not configured or unreachable at startup.
type FallbackPublisher struct{}

func (FallbackPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	log.Printf("[MQ-FALLBACK] routingKey=%s body=%v", routingKey, body)
	return nil
}

func (FallbackPublisher) Close() {}

// EventProducer publishes JSON events to a durable topic exchange. A dropped
// connection or channel is re-established on the next publish.
type EventProducer struct {
	mu       sync.Mutex
	url      string
	dial     func(url string) (*amqp.Connection, error)
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func dialAMQP(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials RabbitMQ and declares the exchange.
func NewEventProducer(amqpURL, exchange string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	p := &EventProducer{url: cleanURL, dial: dialAMQP, exchange: exchange}
	if err := p.ensureChannel(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// ensureChannel redials the connection if the broker dropped it, then
// reopens the channel and redeclares the exchange. Callers hold p.mu.
func (p *EventProducer) ensureChannel() error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := p.dial(p.url)
		if err != nil {
			return err
		}
		p.conn = conn
		p.channel = nil
	}
	if p.channel != nil && !p.channel.IsClosed() {
		return nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return err
	}
	p.channel = ch
	return nil
}

// Publish sends body as JSON. A failed publish reconnects once and retries.
func (p *EventProducer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         jsonBody,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureChannel(); err != nil {
		return fmt.Errorf("rabbitmq reconnect: %w", err)
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}
	log.Printf("[MQ] publish to %s/%s failed, reconnecting: %v", p.exchange, routingKey, err)
	p.channel = nil
	if rerr := p.ensureChannel(); rerr != nil {
		return errors.Join(err, rerr)
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
