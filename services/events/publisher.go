package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/clientflow/mailsync/interfaces"
	"github.com/clientflow/mailsync/internal/logger"
	"github.com/clientflow/mailsync/internal/tracing"
)

const (
	ExchangeMailsync = "mailsync-direct"

	DefaultPublishTimeout   = 5 * time.Second
	DefaultReconnectBackoff = time.Second
)

type RabbitMQPublisher struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	publishChannel  *amqp091.Channel
	publishMutex    sync.Mutex
	url             string
	logger          logger.Logger
}

func NewRabbitMQPublisher(url string, log logger.Logger) (*RabbitMQPublisher, error) {
	publisher := &RabbitMQPublisher{
		url:    url,
		logger: log,
	}

	if err := publisher.connect(); err != nil {
		return nil, err
	}

	return publisher, nil
}

func (p *RabbitMQPublisher) connect() error {
	p.connectionMutex.Lock()
	defer p.connectionMutex.Unlock()

	conn, err := amqp091.Dial(p.url)
	if err != nil {
		return errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to open publish channel")
	}

	err = channel.ExchangeDeclare(
		ExchangeMailsync,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return errors.Wrap(err, "failed to declare exchange")
	}

	p.connection = conn
	p.publishChannel = channel
	return nil
}

// PublishEvent sends one JSON message to the mailsync exchange. Callers
// treat publish failures as non-fatal; sync results never depend on the
// broker being up.
func (p *RabbitMQPublisher) PublishEvent(ctx context.Context, routingKey string, message interface{}) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishEvent")
	defer span.Finish()
	span.SetTag("routing.key", routingKey)

	body, err := json.Marshal(message)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to marshal event")
	}

	publishCtx, cancel := context.WithTimeout(ctx, DefaultPublishTimeout)
	defer cancel()

	p.publishMutex.Lock()
	defer p.publishMutex.Unlock()

	if p.publishChannel == nil || p.publishChannel.IsClosed() {
		if err := p.reconnect(); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	err = p.publishChannel.PublishWithContext(
		publishCtx,
		ExchangeMailsync,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
			Headers: amqp091.Table{
				"uber-trace-id": tracing.GetTraceId(span),
			},
		},
	)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to publish event")
	}

	return nil
}

func (p *RabbitMQPublisher) reconnect() error {
	p.logger.Warn("RabbitMQ publish channel closed, reconnecting")
	time.Sleep(DefaultReconnectBackoff)
	return p.connect()
}

func (p *RabbitMQPublisher) Close() error {
	p.connectionMutex.Lock()
	defer p.connectionMutex.Unlock()

	if p.publishChannel != nil {
		p.publishChannel.Close()
	}
	if p.connection != nil {
		return p.connection.Close()
	}
	return nil
}

var _ interfaces.EventPublisher = (*RabbitMQPublisher)(nil)
