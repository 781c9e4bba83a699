package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/Renal37/wa-orderbot/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	Exchange       = "orders_topic"
	publishTimeout = 5 * time.Second
)

var ErrPublisherClosed = errors.New("публикатор событий закрыт")

// channel - часть amqp.Channel, которой пользуется публикатор
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher публикует события заказов в topic-exchange RabbitMQ.
// Ключ маршрутизации совпадает с типом события.
type Publisher struct {
	conn   *amqp.Connection
	ch     channel
	mu     sync.Mutex
	closed bool
}

// New подключается к брокеру и объявляет exchange
func New(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к брокеру: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("не удалось открыть канал брокера: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("не удалось объявить exchange %s: %w", Exchange, err)
	}

	return &Publisher{conn: conn, ch: ch}, nil
}

func newWithChannel(ch channel) *Publisher {
	return &Publisher{ch: ch}
}

func (p *Publisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("не удалось сериализовать событие: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx,
		Exchange,
		string(event.Type),
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.OrderID.String(),
			Body:         body,
			Timestamp:    event.OccurredAt.Time,
		})
	if err != nil {
		return fmt.Errorf("не удалось опубликовать %s: %w", event.Type, err)
	}

	logger.Log.Debug("order event published",
		zap.String("routingKey", string(event.Type)),
		zap.String("orderNumber", event.OrderNumber),
	)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// EventPublisher - публикатор событий заказов вместе с освобождением ресурсов
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
	Close() error
}

// Connect возвращает NoopPublisher для пустого url
func Connect(url string) (EventPublisher, error) {
	if url == "" {
		logger.Log.Info("order event publishing disabled")
		return NoopPublisher{}, nil
	}

	publisher, err := New(url)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("order event publisher connected", zap.String("exchange", Exchange))
	return publisher, nil
}

// NoopPublisher используется, когда AMQP_URL не задан
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderEvent(context.Context, models.OrderEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
