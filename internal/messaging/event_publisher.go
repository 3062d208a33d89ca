package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"quest-server/internal/model"
)

// SessionEventMessage - конверт события сессии для внешних консьюмеров.
type SessionEventMessage struct {
	RoomID    string             `json:"room_id"`
	Event     model.SessionEvent `json:"event"`
	Timestamp time.Time          `json:"timestamp"`
}

// EventPublisher публикует события сессии во внешнюю шину.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, roomID string, event model.SessionEvent) error
	Close() error
}

// --- Реализация для RabbitMQ ---
type rabbitMQEventPublisher struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQEventPublisher создает паблишер и объявляет очередь.
// Параметры очереди должны совпадать с консьюмерами (durable=true).
func NewRabbitMQEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (EventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("event publisher: не удалось открыть канал: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("event publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}

	logger.Info("RabbitMQEventPublisher инициализирован", zap.String("queue", queueName))
	return &rabbitMQEventPublisher{
		conn:      conn,
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("event_publisher"),
	}, nil
}

func (p *rabbitMQEventPublisher) PublishSessionEvent(ctx context.Context, roomID string, event model.SessionEvent) error {
	if p.channel == nil {
		p.logger.Error("Канал RabbitMQ не инициализирован (nil)")
		return errors.New("канал RabbitMQ не инициализирован")
	}

	msg := SessionEventMessage{
		RoomID:    roomID,
		Event:     event,
		Timestamp: time.Now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("Ошибка маршалинга SessionEventMessage",
			zap.String("room_id", roomID), zap.Error(err))
		return fmt.Errorf("ошибка подготовки сообщения события сессии: %w", err)
	}

	// Таймаут на публикацию
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		"",          // exchange (используем default)
		p.queueName, // routing key (имя очереди)
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        "quest-server",
		},
	)
	if err != nil {
		p.logger.Error("Ошибка публикации события в очередь",
			zap.String("queue", p.queueName),
			zap.String("room_id", roomID),
			zap.Error(err))
		return fmt.Errorf("ошибка публикации в очередь %s: %w", p.queueName, err)
	}

	p.logger.Debug("Событие сессии опубликовано",
		zap.String("queue", p.queueName),
		zap.String("room_id", roomID),
		zap.String("event_type", string(event.Type)),
	)
	return nil
}

// Close закрывает канал RabbitMQ.
func (p *rabbitMQEventPublisher) Close() error {
	if p.channel != nil {
		p.logger.Info("Закрытие канала RabbitMQ паблишера...")
		return p.channel.Close()
	}
	return nil
}
